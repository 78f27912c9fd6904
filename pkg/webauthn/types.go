// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"time"
)

// Ceremony type literals echoed by the client in clientDataJSON.
const (
	CeremonyCreate = "webauthn.create"
	CeremonyGet    = "webauthn.get"
)

// Purpose distinguishes registration challenges from login challenges.
type Purpose string

const (
	// PurposeRegistration marks a challenge issued for an attestation ceremony.
	PurposeRegistration Purpose = "registration"
	// PurposeLogin marks a challenge issued for an assertion ceremony.
	PurposeLogin Purpose = "login"
)

// Challenge is an outstanding nonce issued to a username. It is consumed
// exactly once by the matching verifier or expires unconsumed.
type Challenge struct {
	// Value is the base64url-encoded random nonce.
	Value string `json:"value"`

	// Purpose is the ceremony the challenge was issued for.
	Purpose Purpose `json:"purpose"`

	// ExpiresAt is when the challenge becomes unavailable.
	ExpiresAt time.Time `json:"expires_at"`
}

// UserSnapshot is the minimal identity carried in a verification result and
// returned to clients after login.
type UserSnapshot struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// VerificationResult is the single-use mailbox entry written after a
// successful assertion and consumed by the login call.
type VerificationResult struct {
	Verified  bool         `json:"verified"`
	User      UserSnapshot `json:"user"`
	Timestamp time.Time    `json:"timestamp"`
}

// CollectedClientData is the parsed clientDataJSON payload.
type CollectedClientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// CredentialCreationResponse is the raw attestation ceremony response
// submitted by the client.
type CredentialCreationResponse struct {
	ID       string              `json:"id"`
	Type     string              `json:"type,omitempty"`
	Response AttestationResponse `json:"response"`
}

// AttestationResponse holds the authenticator output of a registration ceremony.
type AttestationResponse struct {
	ClientDataJSON    BinaryData `json:"clientDataJSON"`
	AttestationObject BinaryData `json:"attestationObject"`
	Transports        []string   `json:"transports,omitempty"`
}

// CredentialAssertionResponse is the raw assertion ceremony response
// submitted by the client.
type CredentialAssertionResponse struct {
	ID       string            `json:"id"`
	Type     string            `json:"type,omitempty"`
	Response AssertionResponse `json:"response"`
}

// AssertionResponse holds the authenticator output of a login ceremony.
type AssertionResponse struct {
	ClientDataJSON    BinaryData `json:"clientDataJSON"`
	AuthenticatorData BinaryData `json:"authenticatorData"`
	Signature         BinaryData `json:"signature"`
	UserHandle        BinaryData `json:"userHandle,omitempty"`
}

// RelyingParty identifies the service in creation options.
type RelyingParty struct {
	Name string `json:"name"`
}

// UserEntity identifies the account in creation options. ID is the
// base64url user handle derived deterministically from the username.
type UserEntity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CredentialParameter is an accepted public-key algorithm.
type CredentialParameter struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// CredentialDescriptor references a registered credential in
// excludeCredentials and allowCredentials lists.
type CredentialDescriptor struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

// CredentialCreationOptions is the registration options payload.
type CredentialCreationOptions struct {
	Challenge          string                 `json:"challenge"`
	RP                 RelyingParty           `json:"rp"`
	RPID               string                 `json:"rpId"`
	User               UserEntity             `json:"user"`
	PubKeyCredParams   []CredentialParameter  `json:"pubKeyCredParams"`
	Timeout            int64                  `json:"timeout"`
	Attestation        string                 `json:"attestation"`
	ExcludeCredentials []CredentialDescriptor `json:"excludeCredentials"`
}

// CredentialRequestOptions is the login options payload.
type CredentialRequestOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int64                  `json:"timeout"`
	UserVerification string                 `json:"userVerification"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
}

// COSE algorithm identifiers accepted at registration.
const (
	AlgES256 = -7
	AlgEdDSA = -8
	AlgES384 = -35
	AlgES512 = -36
	AlgRS256 = -257
)

// DefaultCredentialParameters returns the algorithms offered in
// registration options, strongest-preferred ordering as sent to clients.
func DefaultCredentialParameters() []CredentialParameter {
	return []CredentialParameter{
		{Type: "public-key", Alg: AlgES256},
		{Type: "public-key", Alg: AlgEdDSA},
		{Type: "public-key", Alg: AlgRS256},
	}
}
