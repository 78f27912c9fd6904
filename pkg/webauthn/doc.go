// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package webauthn implements the server side of the WebAuthn (FIDO2)
// ceremonies used for passkey login: challenge lifecycle, attestation and
// assertion verification, and the handoff that bridges asynchronous
// verification onto a synchronous login decision.
//
// # Architecture
//
//  1. Service - options builders and ceremony verifiers
//  2. ChallengeStore / LoginHandoff - short-lived per-username state with
//     atomic fetch-and-delete semantics
//  3. Bridge - two-phase login: verify writes a result, login consumes it
//  4. HTTP layer (pkg/webauthn/http) - handlers mounted on any chi router
//
// # Usage
//
// Basic usage with the in-memory challenge store:
//
//	store := webauthn.NewMemoryChallengeStore()
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "HRMS",
//	        RPOrigins:     []string{"http://localhost:3000"},
//	    },
//	    Users:      userStore,
//	    Challenges: store,
//	})
//
// For production deployments the ChallengeStore interface can be backed by
// any store that provides an atomic get-and-delete (a Redis GETDEL, a
// transaction). Every verification failure requires the client to restart
// the ceremony with fresh options.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers only expose
// the WebAuthn API in secure contexts.
package webauthn
