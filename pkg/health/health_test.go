// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyNoChecks(t *testing.T) {
	c := NewChecker()
	results := c.Ready(context.Background())
	assert.Empty(t, results)
	assert.True(t, c.IsHealthy(context.Background()))
}

func TestReadyAllPassing(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("storage", func(ctx context.Context) error { return nil })
	c.RegisterCheck("challenges", func(ctx context.Context) error { return nil })

	results := c.Ready(context.Background())
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, StatusHealthy, r.Status)
		assert.Empty(t, r.Error)
	}
	assert.True(t, c.IsHealthy(context.Background()))
	assert.Equal(t, StatusHealthy, AggregateStatus(results))
}

func TestReadyFailingCheck(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("storage", func(ctx context.Context) error {
		return errors.New("backend unavailable")
	})

	results := c.Ready(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Equal(t, "backend unavailable", results[0].Error)
	assert.False(t, c.IsHealthy(context.Background()))
	assert.Equal(t, StatusUnhealthy, AggregateStatus(results))
}

func TestRegisterCheckReplaces(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("storage", func(ctx context.Context) error { return errors.New("down") })
	c.RegisterCheck("storage", func(ctx context.Context) error { return nil })

	assert.True(t, c.IsHealthy(context.Background()))
}

func TestRegisterNilCheckIgnored(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("noop", nil)
	assert.Empty(t, c.Ready(context.Background()))
}

func TestUptime(t *testing.T) {
	c := NewChecker()
	assert.GreaterOrEqual(t, c.Uptime().Nanoseconds(), int64(0))
}
