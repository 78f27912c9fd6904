// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		require.NoError(t, backend.Put("users/by-name/alice", []byte("record"), nil))

		value, err := backend.Get("users/by-name/alice")
		require.NoError(t, err)
		assert.Equal(t, []byte("record"), value)
	})

	t.Run("get missing key", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		_, err := backend.Get("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		require.NoError(t, backend.Put("key", []byte("original"), nil))

		value, err := backend.Get("key")
		require.NoError(t, err)
		value[0] = 'X'

		again, err := backend.Get("key")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), again)
	})

	t.Run("delete", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		require.NoError(t, backend.Put("key", []byte("value"), nil))
		require.NoError(t, backend.Delete("key"))

		_, err := backend.Get("key")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete missing key", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		assert.ErrorIs(t, backend.Delete("missing"), ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		require.NoError(t, backend.Put("users/by-name/alice", []byte("a"), nil))
		require.NoError(t, backend.Put("users/by-name/bob", []byte("b"), nil))
		require.NoError(t, backend.Put("users/by-id/1234", []byte("a"), nil))

		keys, err := backend.List("users/by-name/")
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("exists", func(t *testing.T) {
		backend := NewMemory()
		defer backend.Close()

		require.NoError(t, backend.Put("key", []byte("value"), nil))

		exists, err := backend.Exists("key")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = backend.Exists("missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("closed backend rejects operations", func(t *testing.T) {
		backend := NewMemory()
		require.NoError(t, backend.Close())

		_, err := backend.Get("key")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, backend.Put("key", []byte("value"), nil), ErrClosed)

		// Close is idempotent
		assert.NoError(t, backend.Close())
	})
}
