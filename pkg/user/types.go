// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package user provides employee account management for the HR service.
// Employees authenticate with FIDO2/WebAuthn passkeys; accounts whose
// employment has ended are blocked from logging in.
package user

import (
	"encoding/binary"
	"time"
)

// EmploymentStatus represents an employee's standing with the company.
type EmploymentStatus string

const (
	// StatusActive is a current employee in good standing.
	StatusActive EmploymentStatus = "active"
	// StatusOnNotice is an employee serving a notice period. Login is allowed.
	StatusOnNotice EmploymentStatus = "on-notice"
	// StatusTerminated is an employee whose contract was terminated.
	StatusTerminated EmploymentStatus = "terminated"
	// StatusAbsconded is an employee who left without notice.
	StatusAbsconded EmploymentStatus = "absconded"
	// StatusResigned is an employee who resigned.
	StatusResigned EmploymentStatus = "resigned"
)

// IsValidStatus reports whether the status is one of the known values.
func IsValidStatus(s EmploymentStatus) bool {
	switch s {
	case StatusActive, StatusOnNotice, StatusTerminated, StatusAbsconded, StatusResigned:
		return true
	}
	return false
}

// Disabled reports whether the status blocks authentication.
func (s EmploymentStatus) Disabled() bool {
	switch s {
	case StatusTerminated, StatusAbsconded, StatusResigned:
		return true
	}
	return false
}

// DisabledMessage returns the status-specific message shown when a disabled
// account attempts to log in.
func (s EmploymentStatus) DisabledMessage() string {
	switch s {
	case StatusTerminated:
		return "Account disabled: employment terminated"
	case StatusAbsconded:
		return "Account disabled: employee absconded"
	case StatusResigned:
		return "Account disabled: employee resigned"
	}
	return ""
}

// User represents an employee account.
type User struct {
	// ID is the unique identifier for the user (WebAuthn user handle).
	// It is derived deterministically from the username.
	ID []byte `json:"id"`

	// Username is the user's username (unique, typically email).
	Username string `json:"username"`

	// DisplayName is the human-readable name for display.
	DisplayName string `json:"display_name"`

	// EmploymentStatus gates whether the account may authenticate.
	EmploymentStatus EmploymentStatus `json:"employment_status"`

	// TwoFactorEnabled indicates whether password login requires a second factor.
	// Reported to clients when passkey login falls back to password.
	TwoFactorEnabled bool `json:"two_factor_enabled"`

	// Credentials are the FIDO2/WebAuthn credentials registered for this user.
	Credentials []Credential `json:"credentials"`

	// CreatedAt is when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLoginAt is the last successful login time.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Credential represents a FIDO2/WebAuthn credential for a user.
type Credential struct {
	// ID is the credential identifier from the authenticator.
	ID []byte `json:"id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the attestation type used.
	AttestationType string `json:"attestation_type"`

	// Transports are the transport hints reported at registration.
	Transports []string `json:"transports,omitempty"`

	// SignCount is the signature counter for replay detection.
	// Zero means the authenticator does not maintain a counter.
	SignCount uint32 `json:"sign_count"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential was last used.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// WebAuthnDisplayName returns the display name, falling back to the username.
func (u *User) WebAuthnDisplayName() string {
	if u.DisplayName == "" {
		return u.Username
	}
	return u.DisplayName
}

// AddCredential adds a new credential to the user.
func (u *User) AddCredential(cred *Credential) {
	u.Credentials = append(u.Credentials, *cred)
}

// UpdateCredential updates a credential's sign counter and last-used time.
func (u *User) UpdateCredential(credID []byte, signCount uint32) {
	now := time.Now().UTC()
	for i := range u.Credentials {
		if string(u.Credentials[i].ID) == string(credID) {
			u.Credentials[i].SignCount = signCount
			u.Credentials[i].LastUsedAt = &now
			return
		}
	}
}

// RemoveCredential removes a credential by ID.
func (u *User) RemoveCredential(credID []byte) bool {
	for i, c := range u.Credentials {
		if string(c.ID) == string(credID) {
			u.Credentials = append(u.Credentials[:i], u.Credentials[i+1:]...)
			return true
		}
	}
	return false
}

// GetCredential returns a credential by ID, or nil if not found.
func (u *User) GetCredential(credID []byte) *Credential {
	for i := range u.Credentials {
		if string(u.Credentials[i].ID) == string(credID) {
			return &u.Credentials[i]
		}
	}
	return nil
}

// GenerateUserID derives the deterministic WebAuthn user handle for a
// username. The same username always maps to the same 8-byte handle.
func GenerateUserID(username string) []byte {
	// FNV-1a
	var h uint64 = 14695981039346656037
	for _, b := range []byte("user:" + username) {
		h ^= uint64(b)
		h *= 1099511628211
	}
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, h)
	return id
}
