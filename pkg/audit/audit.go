// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package audit records authentication events for later investigation.
// Events carry the client context captured at login time (geolocation,
// user agent) but never secret material.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	// EventLoginSuccess records a completed passkey login.
	EventLoginSuccess EventType = "login-success"
	// EventLoginFailed records a rejected login attempt.
	EventLoginFailed EventType = "login-failed"
	// EventRegistration records a completed passkey registration.
	EventRegistration EventType = "registration-completed"
)

// Event is a single audit trail entry.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Username    string    `json:"username"`
	Geolocation string    `json:"geolocation,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

// NewEvent creates an event with a fresh ID and timestamp. Modifiers fill
// in the optional fields.
func NewEvent(eventType EventType, username string, mods ...func(*Event)) *Event {
	e := &Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		Username: username,
		At:       time.Now().UTC(),
	}
	for _, mod := range mods {
		mod(e)
	}
	return e
}

// Recorder persists audit events.
type Recorder interface {
	// Record persists the event. Implementations must not fail the
	// request on recording errors.
	Record(ctx context.Context, e *Event)
}

// SlogRecorder writes audit events to a structured log.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a recorder backed by the given logger.
// slog.Default() is used when logger is nil.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger}
}

// Record writes the event as a structured log line.
func (r *SlogRecorder) Record(ctx context.Context, e *Event) {
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
		slog.String("username", e.Username),
		slog.String("geolocation", e.Geolocation),
		slog.String("user_agent", e.UserAgent),
		slog.String("detail", e.Detail),
		slog.Time("at", e.At),
	)
}
