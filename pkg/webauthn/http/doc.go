// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package http provides composable HTTP handlers for the WebAuthn
// authentication flow.
//
// The handlers reproduce the JSON contract the HRMS frontend expects and can
// be mounted on any chi router.
//
// # Usage
//
// Create a handler from a WebAuthn service and bridge and mount it:
//
//	svc, _ := webauthn.NewService(...)
//	bridge, _ := webauthn.NewBridge(...)
//	handler := webauthnhttp.NewHandler(svc, bridge)
//	webauthnhttp.MountChi(r, handler, verifier)
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST /webauthn-login-options       - Issue a login challenge
//	GET  /webauthn-register            - Issue a registration challenge (authenticated)
//	POST /webauthn-verify-login        - Verify an assertion response
//	POST /webauthn-verify-registration - Verify an attestation response (authenticated)
//	POST /webauthn-login               - Complete login after verification
//	GET  /webauthn-credentials         - List registered credentials (authenticated)
//	DELETE /webauthn-credentials/{id}  - Remove a credential (authenticated)
//
// # Response Format
//
// All responses are JSON. Verification failures return generic messages
// ("Authentication failed") while the specific internal reason is logged
// server-side; clients never learn which verification step failed.
package http
