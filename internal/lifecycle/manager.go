// ABOUTME: Lifecycle manager polling agent health and resources on fixed intervals.
// ABOUTME: Wires the health checker, resource monitor, auto-starter, and fault recovery together.

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

// Default supervision cadences.
const (
	DefaultCheckInterval  = 30 * time.Second
	DefaultHealthInterval = 60 * time.Second
)

// AgentSource lists supervised agents. Implemented by
// registry.Registry.
type AgentSource interface {
	List() []*registry.Agent
}

// SystemStatus is a read-only snapshot of the supervision state.
type SystemStatus struct {
	Running         bool
	Health          map[string]HealthResult
	RestartAttempts map[string]int
	ResourceSamples map[string]int
}

// Manager supervises all registered agents.
type Manager struct {
	agents   AgentSource
	checker  *HealthChecker
	monitor  *ResourceMonitor
	starter  *AutoStarter
	recovery *FaultRecovery
	logger   *slog.Logger

	checkInterval  time.Duration
	healthInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	health  map[string]HealthResult
}

// Option configures a Manager.
type Option func(*Manager)

// WithCheckInterval sets the resource/auto-start cadence.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.checkInterval = d
		}
	}
}

// WithHealthInterval sets the health-check cadence.
func WithHealthInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.healthInterval = d
		}
	}
}

// NewManager wires the supervision components together.
func NewManager(agents AgentSource, checker *HealthChecker, monitor *ResourceMonitor, starter *AutoStarter, recovery *FaultRecovery, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		agents:         agents,
		checker:        checker,
		monitor:        monitor,
		starter:        starter,
		recovery:       recovery,
		logger:         logger.With("component", "lifecycle"),
		checkInterval:  DefaultCheckInterval,
		healthInterval: DefaultHealthInterval,
		health:         make(map[string]HealthResult),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the supervision loop. Idempotent.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run(ctx)
	m.logger.Info("lifecycle manager started",
		"check_interval", m.checkInterval,
		"health_interval", m.healthInterval,
	)
}

// Stop halts supervision. The stop is observed at the next tick, not
// mid-cycle; in-flight work finishes. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("lifecycle manager stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	checkTicker := time.NewTicker(m.checkInterval)
	defer checkTicker.Stop()
	healthTicker := time.NewTicker(m.healthInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			m.CheckCycle(ctx)
		case <-healthTicker.C:
			m.HealthCycle(ctx)
		}
	}
}

// CheckCycle records resource samples and sweeps auto-start
// candidates. Exported so operators can force a cycle.
func (m *Manager) CheckCycle(ctx context.Context) {
	agents := m.agents.List()

	for _, a := range agents {
		if a.Status != registry.StatusRunning {
			continue
		}
		if err := m.monitor.Record(ctx, a); err != nil {
			m.logger.Warn("resource sample failed", "agent_id", a.ID, "error", err)
		}
	}

	m.starter.Sweep(ctx, agents)
}

// HealthCycle checks every agent's health and recovers critical ones
// within the restart budget. Warnings are logged only; restarting on a
// warning would turn transient slowness into restart storms.
func (m *Manager) HealthCycle(ctx context.Context) {
	for _, a := range m.agents.List() {
		res := m.checker.Check(ctx, a)

		m.mu.Lock()
		m.health[a.ID] = res
		m.mu.Unlock()

		switch res.Status {
		case HealthWarning:
			m.logger.Warn("agent degraded",
				"agent_id", a.ID,
				"response_time", res.ResponseTime,
				"message", res.Message,
			)
		case HealthCritical:
			if err := m.recovery.Recover(ctx, a.ID); err != nil {
				if errors.Is(err, ErrRestartLimit) {
					m.logger.Error("agent restart budget exhausted", "agent_id", a.ID)
				} else {
					m.logger.Error("agent restart failed", "agent_id", a.ID, "error", err)
				}
			}
		}
	}
}

// Health returns the latest health result for an agent.
func (m *Manager) Health(agentID string) (HealthResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.health[agentID]
	return h, ok
}

// ResetRestartAttempts zeroes an agent's restart counter.
func (m *Manager) ResetRestartAttempts(agentID string) {
	m.recovery.ResetAttempts(agentID)
}

// Status returns a read-only snapshot of the supervision state.
func (m *Manager) Status() SystemStatus {
	m.mu.Lock()
	running := m.running
	health := make(map[string]HealthResult, len(m.health))
	for id, h := range m.health {
		health[id] = h
	}
	m.mu.Unlock()

	status := SystemStatus{
		Running:         running,
		Health:          health,
		RestartAttempts: make(map[string]int),
		ResourceSamples: make(map[string]int),
	}
	for _, a := range m.agents.List() {
		status.RestartAttempts[a.ID] = m.recovery.Attempts(a.ID)
		status.ResourceSamples[a.ID] = len(m.monitor.History(a.ID))
	}
	return status
}
