// ABOUTME: Auto-start of stopped agents and bounded fault recovery for critical ones.
// ABOUTME: Restart attempts are counted per agent and never exceed the configured bound.

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

// ErrRestartLimit means the agent has exhausted its restart budget and
// stays down until the counter is externally reset.
var ErrRestartLimit = errors.New("restart attempt limit reached")

// DefaultMaxRestartAttempts bounds automatic restarts per agent.
const DefaultMaxRestartAttempts = 3

// Controller starts and restarts agent processes. The process
// supervision behind it is opaque to the lifecycle manager.
type Controller interface {
	StartAgent(ctx context.Context, agentID string) error
	RestartAgent(ctx context.Context, agentID string) error
}

// AutoStarter launches stopped agents configured for auto-start.
type AutoStarter struct {
	controller Controller
	logger     *slog.Logger

	mu      sync.Mutex
	enabled bool
}

// NewAutoStarter creates an enabled AutoStarter.
func NewAutoStarter(controller Controller, logger *slog.Logger) *AutoStarter {
	return &AutoStarter{
		controller: controller,
		logger:     logger.With("component", "autostarter"),
		enabled:    true,
	}
}

// SetEnabled toggles auto-starting globally.
func (s *AutoStarter) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether auto-starting is active.
func (s *AutoStarter) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Sweep starts every stopped agent with AutoStart set. Individual
// start failures are logged and do not stop the sweep.
func (s *AutoStarter) Sweep(ctx context.Context, agents []*registry.Agent) {
	if !s.Enabled() {
		return
	}

	for _, a := range agents {
		if a.Status != registry.StatusStopped || !a.AutoStart {
			continue
		}
		if err := s.controller.StartAgent(ctx, a.ID); err != nil {
			s.logger.Warn("auto-start failed", "agent_id", a.ID, "error", err)
			continue
		}
		s.logger.Info("agent auto-started", "agent_id", a.ID)
	}
}

// FaultRecovery restarts critically unhealthy agents within a bounded
// attempt budget.
type FaultRecovery struct {
	controller  Controller
	logger      *slog.Logger
	maxAttempts int

	mu       sync.Mutex
	attempts map[string]int
}

// NewFaultRecovery creates a FaultRecovery. maxAttempts <= 0 uses the
// default bound.
func NewFaultRecovery(controller Controller, maxAttempts int, logger *slog.Logger) *FaultRecovery {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRestartAttempts
	}
	return &FaultRecovery{
		controller:  controller,
		logger:      logger.With("component", "recovery"),
		maxAttempts: maxAttempts,
		attempts:    make(map[string]int),
	}
}

// Recover attempts a restart of a critical agent. Returns
// ErrRestartLimit once the agent's budget is exhausted; the counter is
// incremented on every attempt, successful or not.
func (f *FaultRecovery) Recover(ctx context.Context, agentID string) error {
	f.mu.Lock()
	if f.attempts[agentID] >= f.maxAttempts {
		f.mu.Unlock()
		return ErrRestartLimit
	}
	f.attempts[agentID]++
	attempt := f.attempts[agentID]
	f.mu.Unlock()

	f.logger.Info("restarting critical agent",
		"agent_id", agentID,
		"attempt", attempt,
		"max_attempts", f.maxAttempts,
	)

	if err := f.controller.RestartAgent(ctx, agentID); err != nil {
		return fmt.Errorf("restarting agent %s: %w", agentID, err)
	}
	return nil
}

// Attempts returns the restart attempts consumed by an agent.
func (f *FaultRecovery) Attempts(agentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[agentID]
}

// ResetAttempts zeroes an agent's restart counter, typically after
// sustained health.
func (f *FaultRecovery) ResetAttempts(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attempts, agentID)
}
