// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package user

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ysam020/hrms-sub000/pkg/storage"
)

const (
	userByIDPrefix   = "users/by-id/"
	userByNamePrefix = "users/by-name/"
)

// Store defines the interface for user persistence.
type Store interface {
	// Create creates a new user.
	Create(ctx context.Context, username, displayName string) (*User, error)

	// Upsert returns the user with the given username, creating the
	// account if it does not exist yet.
	Upsert(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by their ID.
	GetByID(ctx context.Context, id []byte) (*User, error)

	// GetByUsername retrieves a user by their username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update saves changes to a user.
	Update(ctx context.Context, user *User) error

	// Delete removes a user by their ID.
	Delete(ctx context.Context, id []byte) error

	// List returns all users.
	List(ctx context.Context) ([]*User, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// FileStore implements Store using the storage.Backend interface.
type FileStore struct {
	backend storage.Backend
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a new backend-based user store.
func NewFileStore(backend storage.Backend) (*FileStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	return &FileStore{backend: backend}, nil
}

// Create creates a new user with an active employment status.
func (s *FileStore) Create(ctx context.Context, username, displayName string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(username, displayName)
}

// Upsert returns the existing user or creates a fresh active account.
// Registration options are served for usernames that have never logged
// in before, so a missing account is not an error here.
func (s *FileStore) Upsert(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	existing, err := s.getByUsernameLocked(username)
	if err == nil {
		return existing, nil
	}
	if err != ErrUserNotFound {
		return nil, err
	}

	return s.createLocked(username, "")
}

// GetByID retrieves a user by their ID.
func (s *FileStore) GetByID(ctx context.Context, id []byte) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	idKey := userByIDPrefix + base64.URLEncoding.EncodeToString(id)
	data, err := s.backend.Get(idKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

// GetByUsername retrieves a user by their username.
func (s *FileStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	return s.getByUsernameLocked(NormalizeUsername(username))
}

// Update saves changes to a user.
func (s *FileStore) Update(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	idKey := userByIDPrefix + base64.URLEncoding.EncodeToString(user.ID)
	exists, err := s.backend.Exists(idKey)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}

	return s.saveUserLocked(user)
}

// Delete removes a user by their ID.
func (s *FileStore) Delete(ctx context.Context, id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	idKey := userByIDPrefix + base64.URLEncoding.EncodeToString(id)
	data, err := s.backend.Get(idKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("failed to unmarshal user: %w", err)
	}

	nameKey := userByNamePrefix + user.Username
	_ = s.backend.Delete(nameKey) // Ignore error if not exists

	if err := s.backend.Delete(idKey); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}

// List returns all users.
func (s *FileStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	keys, err := s.backend.List(userByIDPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err != nil {
			continue // Skip invalid entries
		}

		var user User
		if err := json.Unmarshal(data, &user); err != nil {
			continue // Skip invalid entries
		}

		users = append(users, &user)
	}

	return users, nil
}

// Count returns the number of users.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStorageClosed
	}

	keys, err := s.backend.List(userByIDPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return len(keys), nil
}

// Close releases resources.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// NormalizeUsername lowercases and trims a username. Usernames are
// case-insensitive throughout the service.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Helper functions

func (s *FileStore) createLocked(username, displayName string) (*User, error) {
	if s.closed {
		return nil, ErrStorageClosed
	}

	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	nameKey := userByNamePrefix + username
	exists, err := s.backend.Exists(nameKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	user := &User{
		ID:               GenerateUserID(username),
		Username:         username,
		DisplayName:      displayName,
		EmploymentStatus: StatusActive,
		Credentials:      []Credential{},
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.saveUserLocked(user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *FileStore) getByUsernameLocked(username string) (*User, error) {
	nameKey := userByNamePrefix + username

	idData, err := s.backend.Get(nameKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}

	idKey := userByIDPrefix + string(idData)
	data, err := s.backend.Get(idKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

func (s *FileStore) saveUserLocked(user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	idKey := userByIDPrefix + base64.URLEncoding.EncodeToString(user.ID)
	opts := storage.DefaultOptions()
	opts.Permissions = 0600

	if err := s.backend.Put(idKey, data, opts); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	nameKey := userByNamePrefix + user.Username
	encodedID := base64.URLEncoding.EncodeToString(user.ID)
	if err := s.backend.Put(nameKey, []byte(encodedID), opts); err != nil {
		return fmt.Errorf("failed to save name index: %w", err)
	}

	return nil
}
