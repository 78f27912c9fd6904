// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the WebAuthn routes on a chi router. Routes that manage
// credentials for an existing account are wrapped in RequireAuth; the login
// flow endpoints are public by nature.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc, bridge)
//	r.Route("/api", func(r chi.Router) {
//	    webauthnhttp.MountChi(r, handler, verifier)
//	})
func MountChi(r chi.Router, h *Handler, verifier TokenVerifier) {
	r.Post("/webauthn-login-options", h.LoginOptions)
	r.Post("/webauthn-verify-login", h.VerifyLogin)
	r.Post("/webauthn-login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(verifier))
		r.Get("/webauthn-register", h.RegisterOptions)
		r.Post("/webauthn-verify-registration", h.VerifyRegistration)
		r.Get("/webauthn-credentials", h.ListCredentials)
		r.Delete("/webauthn-credentials/{id}", h.DeleteCredential)
	})
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method        string
	Path          string
	Handler       http.HandlerFunc
	Authenticated bool
}

// Routes returns the route table for manual mounting on other routers.
// Authenticated entries must be wrapped in RequireAuth (or equivalent) by
// the caller.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/webauthn-login-options", Handler: h.LoginOptions},
		{Method: "POST", Path: "/webauthn-verify-login", Handler: h.VerifyLogin},
		{Method: "POST", Path: "/webauthn-login", Handler: h.Login},
		{Method: "GET", Path: "/webauthn-register", Handler: h.RegisterOptions, Authenticated: true},
		{Method: "POST", Path: "/webauthn-verify-registration", Handler: h.VerifyRegistration, Authenticated: true},
		{Method: "GET", Path: "/webauthn-credentials", Handler: h.ListCredentials, Authenticated: true},
		{Method: "DELETE", Path: "/webauthn-credentials/{id}", Handler: h.DeleteCredential, Authenticated: true},
	}
}
