// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"github.com/ysam020/hrms-sub000/pkg/webauthn"
)

// LoginOptionsRequest is the request body for POST /webauthn-login-options.
type LoginOptionsRequest struct {
	// Username identifies the employee requesting login options.
	Username string `json:"username"`
}

// VerifyLoginRequest is the request body for POST /webauthn-verify-login.
type VerifyLoginRequest struct {
	Username string `json:"username"`

	// Credential is the assertion response produced by the authenticator.
	Credential webauthn.CredentialAssertionResponse `json:"credential"`
}

// VerifyRegistrationRequest is the request body for POST /webauthn-verify-registration.
type VerifyRegistrationRequest struct {
	Username string `json:"username"`

	// Credential is the attestation response produced by the authenticator.
	Credential webauthn.CredentialCreationResponse `json:"credential"`
}

// LoginRequest is the request body for POST /webauthn-login. The username
// names the account whose verification result is consumed; geolocation and
// user agent are recorded in the audit trail when present.
type LoginRequest struct {
	Username    string `json:"username"`
	Geolocation string `json:"geolocation,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
}

// OptionsErrorResponse is the error body for the options endpoints.
// FallbackToPassword and IsTwoFactorEnabled are populated only when the user
// exists but has no registered credentials.
type OptionsErrorResponse struct {
	Error              bool   `json:"error"`
	Message            string `json:"message"`
	FallbackToPassword bool   `json:"fallbackToPassword,omitempty"`
	IsTwoFactorEnabled *bool  `json:"isTwoFactorEnabled,omitempty"`
}

// VerifyLoginResponse is the response body for POST /webauthn-verify-login.
type VerifyLoginResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    *webauthn.UserSnapshot `json:"user,omitempty"`
}

// VerifyRegistrationResponse is the success body for POST /webauthn-verify-registration.
type VerifyRegistrationResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// LoginResponse is the success body for POST /webauthn-login.
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token,omitempty"`
	User    *UserPayload `json:"user"`
}

// UserPayload is the client-facing projection of an authenticated user.
type UserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

// CredentialSummary describes one registered credential for the
// credential-management endpoints.
type CredentialSummary struct {
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
	SignCount  uint32   `json:"signCount"`
	CreatedAt  string   `json:"createdAt"`
	LastUsedAt string   `json:"lastUsedAt,omitempty"`
}

// MessageResponse is a generic message body used for failures where the
// client receives no detail.
type MessageResponse struct {
	Message string `json:"message"`
}

// Client-facing messages. Deliberately generic so failures do not reveal
// which verification step rejected the request.
const (
	MsgUserNotFound         = "User not found"
	MsgNoCredentials        = "No credentials registered"
	MsgAuthFailed           = "Authentication failed"
	MsgLoginSuccessful      = "Login successful"
	MsgLoginVerified        = "Login verified"
	MsgRegistrationVerified = "Registration successful"
	MsgRegistrationFailed   = "Registration verification failed"
	MsgInvalidRequest       = "Invalid request"
	MsgInternalError        = "Internal server error"
	MsgUnauthorized         = "Unauthorized"
)
