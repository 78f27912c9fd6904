// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"errors"
	"fmt"

	"github.com/ysam020/hrms-sub000/pkg/user"
)

// Sentinel errors for WebAuthn operations. Every ceremony step fails with a
// distinct error so callers can log the precise reason while returning a
// generic message to the client.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoChallenge is returned when no stored challenge exists for the
	// username. The client must restart the ceremony.
	ErrNoChallenge = errors.New("no challenge found")

	// ErrChallengeMismatch is returned when the client data echoes a
	// challenge other than the stored one.
	ErrChallengeMismatch = errors.New("challenge mismatch")

	// ErrInvalidCeremonyType is returned when the client data type does not
	// match the ceremony being completed.
	ErrInvalidCeremonyType = errors.New("invalid ceremony type")

	// ErrOriginMismatch is returned when the client data origin is not in
	// the configured allow-list.
	ErrOriginMismatch = errors.New("origin not allowed")

	// ErrMalformedClientData is returned when clientDataJSON cannot be
	// decoded or parsed.
	ErrMalformedClientData = errors.New("failed to parse clientDataJSON")

	// ErrMalformedAuthenticatorData is returned when the authenticator data
	// is too short or structurally invalid.
	ErrMalformedAuthenticatorData = errors.New("malformed authenticator data")

	// ErrMalformedAttestation is returned when the attestation object
	// cannot be decoded.
	ErrMalformedAttestation = errors.New("malformed attestation object")

	// ErrCredentialNotFound is returned when a login references a
	// credential the user never registered.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialAlreadyExists is returned when registering a duplicate credential.
	ErrCredentialAlreadyExists = errors.New("credential already registered")

	// ErrRPIDHashMismatch is returned when the authenticator data was
	// produced for a different relying party.
	ErrRPIDHashMismatch = errors.New("relying party ID hash mismatch")

	// ErrUserNotPresent is returned when the user-presence flag is unset.
	ErrUserNotPresent = errors.New("user presence flag not set")

	// ErrUserNotVerified is returned when the user-verification flag is
	// unset. Login policy requires a verified factor.
	ErrUserNotVerified = errors.New("user verification flag not set")

	// ErrCounterReplay is returned when the reported signature counter is
	// not strictly greater than the stored non-zero counter.
	ErrCounterReplay = errors.New("signature counter replay detected")

	// ErrInvalidSignature is returned when the assertion signature does not
	// verify against the stored public key.
	ErrInvalidSignature = errors.New("invalid assertion signature")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrAccountDisabled is returned when the user's employment status
	// blocks authentication.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrVerificationExpired is returned when the login call finds no
	// pending verification result for the username.
	ErrVerificationExpired = errors.New("verification result missing or expired")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("webauthn service not configured")
)

// WebAuthnError wraps an error with the operation that produced it.
type WebAuthnError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *WebAuthnError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *WebAuthnError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *WebAuthnError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new WebAuthnError with the given operation and error.
func NewError(op string, err error) error {
	return &WebAuthnError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// AccountDisabledError carries the employment status that blocked a login so
// the HTTP layer can surface the status-specific message.
type AccountDisabledError struct {
	Status user.EmploymentStatus
}

// Error returns the status-specific message.
func (e *AccountDisabledError) Error() string {
	return e.Status.DisabledMessage()
}

// Is reports whether the target is ErrAccountDisabled.
func (e *AccountDisabledError) Is(target error) bool {
	return target == ErrAccountDisabled
}

// NoCredentialsError signals that login must fall back to password
// authentication. TwoFactorEnabled tells the client whether the password
// flow requires a second factor.
type NoCredentialsError struct {
	TwoFactorEnabled bool
}

// Error returns the sentinel message.
func (e *NoCredentialsError) Error() string {
	return ErrNoCredentials.Error()
}

// Is reports whether the target is ErrNoCredentials.
func (e *NoCredentialsError) Is(target error) bool {
	return target == ErrNoCredentials
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsNoChallenge returns true if the error indicates no stored challenge.
func IsNoChallenge(err error) bool {
	return errors.Is(err, ErrNoChallenge)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsAccountDisabled returns true if the error indicates a disabled account.
func IsAccountDisabled(err error) bool {
	return errors.Is(err, ErrAccountDisabled)
}
