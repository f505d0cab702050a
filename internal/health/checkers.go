// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter is the part of the list store a readiness probe needs.
type Counter interface {
	ApproximateCount(ctx context.Context) (int64, error)
}

// StoreChecker reports the list store unhealthy when it cannot answer a
// count within the timeout.
type StoreChecker struct {
	store   Counter
	timeout time.Duration
}

func NewStoreChecker(store Counter, timeout time.Duration) *StoreChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StoreChecker{store: store, timeout: timeout}
}

func (c *StoreChecker) Name() string { return "list_store" }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	n, err := c.store.ApproximateCount(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("approximately %d lists", n)}
}

// StageTracker records which pipeline stages are running. The process is
// ready once every expected stage has started, and unhealthy again as soon
// as one stops.
type StageTracker struct {
	mu      sync.RWMutex
	running map[string]bool
}

// NewStageTracker expects the given stages; none is running yet.
func NewStageTracker(stages ...string) *StageTracker {
	t := &StageTracker{running: make(map[string]bool, len(stages))}
	for _, s := range stages {
		t.running[s] = false
	}
	return t
}

// Set marks a stage as running or stopped.
func (t *StageTracker) Set(stage string, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[stage] = running
}

func (t *StageTracker) Name() string { return "stages" }

func (t *StageTracker) Check(context.Context) CheckResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var stopped []string
	for stage, ok := range t.running {
		if !ok {
			stopped = append(stopped, stage)
		}
	}
	if len(stopped) > 0 {
		sort.Strings(stopped)
		return CheckResult{Status: StatusUnhealthy, Message: "not running: " + strings.Join(stopped, ", ")}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d stages running", len(t.running))}
}
