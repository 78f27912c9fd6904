// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ysam020/hrms-sub000/pkg/audit"
	"github.com/ysam020/hrms-sub000/pkg/user"
)

// Bridge adapts the two-request verification flow onto a synchronous login
// decision. The verify endpoint records a VerificationResult after a
// successful assertion; the login endpoint consumes it. The gap between the
// two calls lets the client gather geolocation and user-agent data. A login
// without a prior verify finds an empty mailbox and fails.
type Bridge struct {
	handoff LoginHandoff
	users   user.Store
	tokens  TokenGenerator
	ttl     time.Duration
	auditor audit.Recorder
	logger  *slog.Logger
}

// BridgeParams contains dependencies for creating a Bridge.
type BridgeParams struct {
	// Handoff is the verification-result mailbox (required).
	Handoff LoginHandoff

	// Users is the account persistence layer (required).
	Users user.Store

	// Tokens issues session tokens. Optional; when nil the bridge returns
	// the base64-encoded user ID.
	Tokens TokenGenerator

	// ResultTTL bounds how long a verification result waits for the login
	// call. Default: 60 seconds.
	ResultTTL time.Duration

	// Auditor records login events. Optional.
	Auditor audit.Recorder

	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// LoginMetadata is client-supplied context captured between the verify and
// login calls, recorded in the audit trail.
type LoginMetadata struct {
	Geolocation string
	UserAgent   string
}

// NewBridge creates a new authentication bridge.
func NewBridge(params BridgeParams) (*Bridge, error) {
	if params.Handoff == nil {
		return nil, fmt.Errorf("login handoff is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	ttl := params.ResultTTL
	if ttl == 0 {
		ttl = 60 * time.Second
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		handoff: params.Handoff,
		users:   params.Users,
		tokens:  params.Tokens,
		ttl:     ttl,
		auditor: params.Auditor,
		logger:  logger,
	}, nil
}

// RecordVerification writes the verification result for a username into the
// handoff mailbox. Called by the verify endpoint after FinishLogin succeeds.
func (b *Bridge) RecordVerification(ctx context.Context, snapshot *UserSnapshot) error {
	result := &VerificationResult{
		Verified:  true,
		User:      *snapshot,
		Timestamp: time.Now().UTC(),
	}
	return WrapError("record verification", b.handoff.StoreResult(ctx, snapshot.Username, result, b.ttl))
}

// Authenticate consumes the pending verification result for a username and
// establishes the session. An empty or expired mailbox fails the login.
// Returns the authenticated user and a session token.
func (b *Bridge) Authenticate(ctx context.Context, username string, meta LoginMetadata) (*user.User, string, error) {
	result, err := b.handoff.FetchAndDeleteResult(ctx, username)
	if err != nil {
		if errors.Is(err, ErrVerificationExpired) {
			b.recordAudit(ctx, audit.EventLoginFailed, username, meta, "no pending verification")
			return nil, "", ErrVerificationExpired
		}
		return nil, "", WrapError("fetch verification result", err)
	}
	if !result.Verified {
		b.recordAudit(ctx, audit.EventLoginFailed, username, meta, "verification result not verified")
		return nil, "", ErrVerificationExpired
	}

	u, err := b.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", WrapError("get user", err)
	}

	now := time.Now().UTC()
	u.LastLoginAt = &now
	if err := b.users.Update(ctx, u); err != nil {
		return nil, "", WrapError("record login time", err)
	}

	token, err := b.generateToken(ctx, u)
	if err != nil {
		return nil, "", WrapError("generate token", err)
	}

	b.recordAudit(ctx, audit.EventLoginSuccess, u.Username, meta, "passkey login")
	return u, token, nil
}

func (b *Bridge) generateToken(ctx context.Context, u *user.User) (string, error) {
	if b.tokens != nil {
		return b.tokens.GenerateToken(ctx, u)
	}
	return EncodeBase64(u.ID), nil
}

func (b *Bridge) recordAudit(ctx context.Context, eventType audit.EventType, username string, meta LoginMetadata, detail string) {
	if b.auditor == nil {
		return
	}
	b.auditor.Record(ctx, audit.NewEvent(eventType, username, func(e *audit.Event) {
		e.Geolocation = meta.Geolocation
		e.UserAgent = meta.UserAgent
		e.Detail = detail
	}))
}
