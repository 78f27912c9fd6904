// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ysam020/hrms-sub000/pkg/audit"
	"github.com/ysam020/hrms-sub000/pkg/metrics"
	"github.com/ysam020/hrms-sub000/pkg/user"
	"github.com/ysam020/hrms-sub000/pkg/webauthn"
)

// Handler provides HTTP handlers for the WebAuthn authentication flow.
// These handlers can be mounted on any chi router.
type Handler struct {
	service *webauthn.Service
	bridge  *webauthn.Bridge
	logger  *slog.Logger
	auditor audit.Recorder
}

// NewHandler creates a new WebAuthn HTTP handler.
func NewHandler(service *webauthn.Service, bridge *webauthn.Bridge) *Handler {
	return &Handler{
		service: service,
		bridge:  bridge,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// WithAuditor sets the audit recorder for registration events.
func (h *Handler) WithAuditor(auditor audit.Recorder) *Handler {
	h.auditor = auditor
	return h
}

// LoginOptions handles POST /webauthn-login-options
//
// Request body:
//
//	{
//	    "username": "alice"
//	}
//
// Response: WebAuthn PublicKeyCredentialRequestOptions, or an error body.
// A user without registered credentials receives 404 with
// fallbackToPassword set so the frontend can route to password login.
func (h *Handler) LoginOptions(w http.ResponseWriter, r *http.Request) {
	var req LoginOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		h.writeOptionsError(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	options, err := h.service.BeginLogin(r.Context(), req.Username)
	if err != nil {
		var disabled *webauthn.AccountDisabledError
		var noCreds *webauthn.NoCredentialsError
		switch {
		case webauthn.IsUserNotFound(err):
			h.writeOptionsError(w, http.StatusNotFound, MsgUserNotFound)
		case errors.As(err, &disabled):
			h.writeOptionsError(w, http.StatusForbidden, disabled.Error())
		case errors.As(err, &noCreds):
			twoFactor := noCreds.TwoFactorEnabled
			h.writeJSON(w, http.StatusNotFound, OptionsErrorResponse{
				Error:              true,
				Message:            MsgNoCredentials,
				FallbackToPassword: true,
				IsTwoFactorEnabled: &twoFactor,
			})
		default:
			h.logger.Error("failed to build login options",
				"username", req.Username,
				"error", err)
			h.writeOptionsError(w, http.StatusInternalServerError, MsgInternalError)
		}
		return
	}

	metrics.RecordChallengeIssued(metrics.CeremonyLogin)
	h.writeJSON(w, http.StatusOK, options)
}

// RegisterOptions handles GET /webauthn-register (authenticated)
//
// The username comes from the bearer token, so employees can only register
// credentials for their own account.
// Response: WebAuthn PublicKeyCredentialCreationOptions.
func (h *Handler) RegisterOptions(w http.ResponseWriter, r *http.Request) {
	username, ok := UsernameFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), username)
	if err != nil {
		h.logger.Error("failed to build registration options",
			"username", username,
			"error", err)
		h.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: MsgInternalError})
		return
	}

	metrics.RecordChallengeIssued(metrics.CeremonyRegistration)
	h.writeJSON(w, http.StatusOK, options)
}

// VerifyRegistration handles POST /webauthn-verify-registration (authenticated)
//
// Request body:
//
//	{
//	    "username": "alice",
//	    "credential": { ... authenticator attestation response ... }
//	}
//
// Response: {"verified": true, "message": "..."} on success. Failures return
// a generic message; the specific reason is logged server-side.
func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	tokenUsername, ok := UsernameFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	var req VerifyRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: MsgInvalidRequest})
		return
	}

	// The body username is advisory; the token decides whose account the
	// credential is attached to.
	username := tokenUsername
	if req.Username != "" && user.NormalizeUsername(req.Username) != user.NormalizeUsername(tokenUsername) {
		h.logger.Warn("registration username does not match token",
			"token_username", tokenUsername,
			"body_username", req.Username)
		h.writeJSON(w, http.StatusForbidden, MessageResponse{Message: MsgRegistrationFailed})
		return
	}

	if err := h.service.FinishRegistration(r.Context(), username, &req.Credential); err != nil {
		metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusError, time.Since(start).Seconds())
		h.logger.Error("registration verification failed",
			"username", username,
			"error", err)
		h.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: MsgRegistrationFailed})
		return
	}

	metrics.RecordCeremony(metrics.CeremonyRegistration, metrics.StatusSuccess, time.Since(start).Seconds())
	if h.auditor != nil {
		h.auditor.Record(r.Context(), audit.NewEvent(audit.EventRegistration, username, func(e *audit.Event) {
			e.UserAgent = r.UserAgent()
			e.Detail = "passkey registered"
		}))
	}
	h.writeJSON(w, http.StatusOK, VerifyRegistrationResponse{
		Verified: true,
		Message:  MsgRegistrationVerified,
	})
}

// VerifyLogin handles POST /webauthn-verify-login
//
// Request body:
//
//	{
//	    "username": "alice",
//	    "credential": { ... authenticator assertion response ... }
//	}
//
// On success the verification result is parked for POST /webauthn-login to
// consume. All failures return 401 with a generic message.
func (h *Handler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req VerifyLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		h.writeJSON(w, http.StatusBadRequest, VerifyLoginResponse{
			Success: false,
			Message: MsgInvalidRequest,
		})
		return
	}

	snapshot, err := h.service.FinishLogin(r.Context(), req.Username, &req.Credential)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StatusError, time.Since(start).Seconds())
		metrics.RecordFailure(metrics.CeremonyLogin, failureReason(err))
		h.logger.Warn("login verification failed",
			"username", req.Username,
			"error", err)
		h.writeJSON(w, http.StatusUnauthorized, VerifyLoginResponse{
			Success: false,
			Message: MsgAuthFailed,
		})
		return
	}

	if err := h.bridge.RecordVerification(r.Context(), snapshot); err != nil {
		h.logger.Error("failed to record verification result",
			"username", snapshot.Username,
			"error", err)
		h.writeJSON(w, http.StatusInternalServerError, VerifyLoginResponse{
			Success: false,
			Message: MsgInternalError,
		})
		return
	}

	metrics.RecordCeremony(metrics.CeremonyLogin, metrics.StatusSuccess, time.Since(start).Seconds())
	h.writeJSON(w, http.StatusOK, VerifyLoginResponse{
		Success: true,
		Message: MsgLoginVerified,
		User:    snapshot,
	})
}

// Login handles POST /webauthn-login
//
// Request body:
//
//	{
//	    "username": "alice",
//	    "geolocation": "...",  // optional
//	    "userAgent": "..."     // optional
//	}
//
// Consumes the verification result parked by VerifyLogin. The result is
// single-use and expires, so this must follow verification promptly.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		h.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: MsgInvalidRequest})
		return
	}

	u, token, err := h.bridge.Authenticate(r.Context(), req.Username, webauthn.LoginMetadata{
		Geolocation: req.Geolocation,
		UserAgent:   req.UserAgent,
	})
	if err != nil {
		h.logger.Warn("login failed",
			"username", req.Username,
			"error", err)
		h.writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: MsgAuthFailed})
		return
	}

	h.writeJSON(w, http.StatusOK, LoginResponse{
		Message: MsgLoginSuccessful,
		Token:   token,
		User:    userPayload(u),
	})
}

// ListCredentials handles GET /webauthn-credentials (authenticated)
//
// Response: array of credential summaries for the authenticated user.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	username, ok := UsernameFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	creds, err := h.service.Credentials(r.Context(), username)
	if err != nil {
		h.logger.Error("failed to list credentials",
			"username", username,
			"error", err)
		h.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: MsgInternalError})
		return
	}

	summaries := make([]CredentialSummary, 0, len(creds))
	for _, c := range creds {
		summaries = append(summaries, credentialSummary(c))
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// DeleteCredential handles DELETE /webauthn-credentials/{id} (authenticated)
//
// The id path parameter is the base64url credential id.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	username, ok := UsernameFromContext(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	credID, err := webauthn.DecodeFlexibleBase64(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, MessageResponse{Message: MsgInvalidRequest})
		return
	}

	if err := h.service.DeleteCredential(r.Context(), username, credID); err != nil {
		if webauthn.IsCredentialNotFound(err) {
			h.writeJSON(w, http.StatusNotFound, MessageResponse{Message: "Credential not found"})
			return
		}
		h.logger.Error("failed to delete credential",
			"username", username,
			"error", err)
		h.writeJSON(w, http.StatusInternalServerError, MessageResponse{Message: MsgInternalError})
		return
	}

	h.writeJSON(w, http.StatusOK, MessageResponse{Message: "Credential deleted"})
}

// failureReason maps a verification error to a stable metric label.
func failureReason(err error) string {
	switch {
	case webauthn.IsNoChallenge(err):
		return "no_challenge"
	case errors.Is(err, webauthn.ErrChallengeMismatch):
		return "challenge_mismatch"
	case errors.Is(err, webauthn.ErrInvalidCeremonyType):
		return "ceremony_type"
	case errors.Is(err, webauthn.ErrOriginMismatch):
		return "origin_mismatch"
	case errors.Is(err, webauthn.ErrRPIDHashMismatch):
		return "rpid_hash_mismatch"
	case errors.Is(err, webauthn.ErrUserNotPresent):
		return "user_not_present"
	case errors.Is(err, webauthn.ErrUserNotVerified):
		return "user_not_verified"
	case errors.Is(err, webauthn.ErrCounterReplay):
		return "counter_replay"
	case errors.Is(err, webauthn.ErrInvalidSignature):
		return "invalid_signature"
	case webauthn.IsCredentialNotFound(err):
		return "credential_not_found"
	case webauthn.IsUserNotFound(err):
		return "user_not_found"
	default:
		return "other"
	}
}

func userPayload(u *user.User) *UserPayload {
	p := &UserPayload{
		ID:          webauthn.EncodeBase64(u.ID),
		Username:    u.Username,
		DisplayName: u.WebAuthnDisplayName(),
	}
	if u.LastLoginAt != nil {
		p.LastLoginAt = u.LastLoginAt.UTC().Format(time.RFC3339)
	}
	return p
}

func credentialSummary(c user.Credential) CredentialSummary {
	s := CredentialSummary{
		ID:         webauthn.EncodeBase64(c.ID),
		Transports: c.Transports,
		SignCount:  c.SignCount,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.LastUsedAt != nil {
		s.LastUsedAt = c.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return s
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeOptionsError writes an options-endpoint error body.
func (h *Handler) writeOptionsError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, OptionsErrorResponse{
		Error:   true,
		Message: message,
	})
}
