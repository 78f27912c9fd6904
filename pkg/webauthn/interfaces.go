// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"time"

	"github.com/ysam020/hrms-sub000/pkg/user"
)

// ChallengeStore holds outstanding ceremony challenges keyed by username.
// Storing overwrites any prior challenge for the username; a user who opens
// two ceremonies in parallel has the second win and the first fail with
// ErrNoChallenge or ErrChallengeMismatch.
//
// Implementations must provide fetch-and-delete as one atomic step. Two
// concurrent fetches for the same username must never both observe the
// challenge.
type ChallengeStore interface {
	// StoreChallenge stores (or replaces) the challenge for a username.
	StoreChallenge(ctx context.Context, username string, challenge *Challenge) error

	// FetchAndDeleteChallenge atomically retrieves and removes the
	// challenge for a username. Returns ErrNoChallenge when no live
	// challenge exists; backing-store failures are returned as-is.
	FetchAndDeleteChallenge(ctx context.Context, username string) (*Challenge, error)

	// Connect establishes the backing-store connection.
	Connect(ctx context.Context) error

	// Close releases the backing-store connection.
	Close() error
}

// LoginHandoff is the mailbox that carries a verification result from the
// verify call to the login call. Results are written once, consumed once,
// and expire quickly if unread. Same atomicity contract as ChallengeStore.
type LoginHandoff interface {
	// StoreResult stores (or replaces) the pending result for a username.
	// The result becomes unavailable after ttl.
	StoreResult(ctx context.Context, username string, result *VerificationResult, ttl time.Duration) error

	// FetchAndDeleteResult atomically retrieves and removes the pending
	// result. Returns ErrVerificationExpired when none exists.
	FetchAndDeleteResult(ctx context.Context, username string) (*VerificationResult, error)
}

// TokenGenerator issues a session token after successful authentication.
// If not provided, the bridge returns the base64-encoded user ID.
type TokenGenerator interface {
	// GenerateToken creates a token for the authenticated user.
	GenerateToken(ctx context.Context, u *user.User) (string, error)
}
