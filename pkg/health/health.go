// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package health reports whether the authentication server and its
// dependencies (account storage, challenge store) can serve traffic.
package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc probes one dependency. It should return quickly.
type CheckFunc func(ctx context.Context) error

// Checker runs registered dependency checks.
type Checker struct {
	mu        sync.RWMutex
	startTime time.Time
	checks    map[string]CheckFunc
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
	}
}

// RegisterCheck adds a dependency check, replacing any existing check
// with the same name. Nil checks are ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Ready runs all registered checks and returns their results.
func (c *Checker) Ready(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make([]CheckResult, 0, len(checks))
	for name, check := range checks {
		start := time.Now()
		result := CheckResult{Name: name, Status: StatusHealthy}
		if err := check(ctx); err != nil {
			result.Status = StatusUnhealthy
			result.Error = err.Error()
		}
		result.Latency = time.Since(start)
		results = append(results, result)
	}

	return results
}

// IsHealthy reports whether every registered check passes.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	for _, result := range c.Ready(ctx) {
		if result.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// Uptime returns how long the checker has been running.
func (c *Checker) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.startTime)
}

// AggregateStatus folds check results into one status.
func AggregateStatus(results []CheckResult) Status {
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}
