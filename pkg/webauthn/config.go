// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"fmt"
	"time"
)

// Config configures the WebAuthn service.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Differs per deployment: the production domain vs "localhost".
	RPID string `yaml:"id" json:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name"`

	// RPOrigins are the allowed origins for WebAuthn operations.
	// Example: []string{"https://hrms.example.com"}
	RPOrigins []string `yaml:"origins" json:"origins"`

	// ChallengeTTL is how long an issued challenge stays consumable.
	// Default: 5 minutes.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// HandoffTTL is how long a verification result waits to be consumed
	// by the login call. Default: 60 seconds.
	HandoffTTL time.Duration `yaml:"handoff_ttl" json:"handoff_ttl"`

	// CeremonyTimeout is the client-side ceremony timeout sent in options.
	// Default: 60 seconds.
	CeremonyTimeout time.Duration `yaml:"timeout" json:"timeout"`

	// UserVerification specifies the user verification requirement for
	// login. Options: "required", "preferred", "discouraged".
	// Default: "required". Mere possession is not enough for login.
	UserVerification string `yaml:"user_verification" json:"user_verification"`

	// AttestationPreference specifies the attestation conveyance preference.
	// Options: "none", "indirect", "direct", "enterprise"
	// Default: "direct"
	AttestationPreference string `yaml:"attestation" json:"attestation"`

	// AllowOriginMismatch downgrades an origin mismatch from a fatal
	// verification failure to a logged warning. Off by default.
	AllowOriginMismatch bool `yaml:"allow_origin_mismatch" json:"allow_origin_mismatch"`

	// Debug enables debug logging.
	Debug bool `yaml:"debug" json:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}

	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
		// Valid
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}

	switch c.AttestationPreference {
	case "", "none", "indirect", "direct", "enterprise":
		// Valid
	default:
		return fmt.Errorf("invalid attestation preference: %s", c.AttestationPreference)
	}

	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.HandoffTTL == 0 {
		c.HandoffTTL = 60 * time.Second
	}
	if c.CeremonyTimeout == 0 {
		c.CeremonyTimeout = 60 * time.Second
	}
	if c.UserVerification == "" {
		c.UserVerification = "required"
	}
	if c.AttestationPreference == "" {
		c.AttestationPreference = "direct"
	}
}

// OriginAllowed reports whether the origin is in the configured allow-list.
func (c *Config) OriginAllowed(origin string) bool {
	for _, o := range c.RPOrigins {
		if o == origin {
			return true
		}
	}
	return false
}
