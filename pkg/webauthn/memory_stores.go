// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"sync"
	"time"

	"github.com/ysam020/hrms-sub000/pkg/user"
)

// MemoryChallengeStore is an in-memory ChallengeStore and LoginHandoff.
// A single mutex guards both namespaces so every fetch-and-delete is one
// atomic step. Suitable for single-process deployments and tests; replace
// with a shared store when running replicated.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	results    map[string]resultEntry
	now        func() time.Time

	cleanupInterval time.Duration
	cleanupDone     chan struct{}
	started         bool
	closed          bool
}

type resultEntry struct {
	result    *VerificationResult
	expiresAt time.Time
}

// MemoryStoreOption is a functional option for configuring a MemoryChallengeStore.
type MemoryStoreOption func(*MemoryChallengeStore)

// WithClock injects the time source. Tests use this to simulate TTL expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryChallengeStore) {
		s.now = now
	}
}

// WithCleanupInterval sets the expired-entry sweep interval.
// Default is 1 minute. Use a smaller value for testing.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryChallengeStore) {
		s.cleanupInterval = d
	}
}

// NewMemoryChallengeStore creates a new in-memory challenge store.
func NewMemoryChallengeStore(opts ...MemoryStoreOption) *MemoryChallengeStore {
	s := &MemoryChallengeStore{
		challenges:      make(map[string]*Challenge),
		results:         make(map[string]resultEntry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		cleanupDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect starts the background sweeper. Entries are also checked for
// expiry on read, so Connect is optional for tests.
func (s *MemoryChallengeStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConfigured
	}
	if s.started {
		return nil
	}
	s.started = true
	go s.cleanupLoop()
	return nil
}

// Close stops the sweeper and drops all entries.
func (s *MemoryChallengeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.started {
		close(s.cleanupDone)
	}
	s.challenges = nil
	s.results = nil
	return nil
}

// StoreChallenge stores (or replaces) the challenge for a username.
func (s *MemoryChallengeStore) StoreChallenge(ctx context.Context, username string, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConfigured
	}
	s.challenges[user.NormalizeUsername(username)] = challenge
	return nil
}

// FetchAndDeleteChallenge atomically retrieves and removes the challenge.
func (s *MemoryChallengeStore) FetchAndDeleteChallenge(ctx context.Context, username string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrNotConfigured
	}

	key := user.NormalizeUsername(username)
	challenge, ok := s.challenges[key]
	if !ok {
		return nil, ErrNoChallenge
	}
	delete(s.challenges, key)

	if s.now().After(challenge.ExpiresAt) {
		return nil, ErrNoChallenge
	}
	return challenge, nil
}

// StoreResult stores (or replaces) the pending verification result.
func (s *MemoryChallengeStore) StoreResult(ctx context.Context, username string, result *VerificationResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrNotConfigured
	}
	s.results[user.NormalizeUsername(username)] = resultEntry{
		result:    result,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// FetchAndDeleteResult atomically retrieves and removes the pending result.
func (s *MemoryChallengeStore) FetchAndDeleteResult(ctx context.Context, username string) (*VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrNotConfigured
	}

	key := user.NormalizeUsername(username)
	entry, ok := s.results[key]
	if !ok {
		return nil, ErrVerificationExpired
	}
	delete(s.results, key)

	if s.now().After(entry.expiresAt) {
		return nil, ErrVerificationExpired
	}
	return entry.result, nil
}

func (s *MemoryChallengeStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			now := s.now()
			for key, challenge := range s.challenges {
				if now.After(challenge.ExpiresAt) {
					delete(s.challenges, key)
				}
			}
			for key, entry := range s.results {
				if now.After(entry.expiresAt) {
					delete(s.results, key)
				}
			}
			s.mu.Unlock()
		case <-s.cleanupDone:
			return
		}
	}
}
