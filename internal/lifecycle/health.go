// ABOUTME: Health checking for registered agents via a pluggable response probe.
// ABOUTME: Derives HEALTHY/WARNING/CRITICAL/UNKNOWN from agent status and probe latency.

package lifecycle

import (
	"context"
	"time"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

// HealthStatus classifies an agent's health.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthWarning
	HealthCritical
)

// String returns the lowercase name of the status.
func (s HealthStatus) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthWarning:
		return "warning"
	case HealthCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// HealthResult is the outcome of one health check.
type HealthResult struct {
	Status       HealthStatus
	Message      string
	ResponseTime time.Duration
	Timestamp    time.Time
}

// Probe measures an agent's responsiveness. Implementations ping the
// agent process; tests supply canned latencies.
type Probe func(ctx context.Context, agent *registry.Agent) (time.Duration, error)

// Default probe latency thresholds.
const (
	DefaultWarningThreshold  = time.Second
	DefaultCriticalThreshold = 5 * time.Second
)

// HealthChecker derives a health status for each agent.
type HealthChecker struct {
	probe             Probe
	warningThreshold  time.Duration
	criticalThreshold time.Duration
}

// NewHealthChecker creates a checker with the given probe and
// thresholds. Zero thresholds fall back to the defaults.
func NewHealthChecker(probe Probe, warning, critical time.Duration) *HealthChecker {
	if warning <= 0 {
		warning = DefaultWarningThreshold
	}
	if critical <= 0 {
		critical = DefaultCriticalThreshold
	}
	return &HealthChecker{
		probe:             probe,
		warningThreshold:  warning,
		criticalThreshold: critical,
	}
}

// Check derives the health of one agent. Stopped and transitioning
// agents are Unknown; Error and Offline are Critical; Running agents
// are probed and classified against the thresholds.
func (h *HealthChecker) Check(ctx context.Context, agent *registry.Agent) HealthResult {
	now := time.Now()

	switch agent.Status {
	case registry.StatusStopped, registry.StatusStarting, registry.StatusStopping:
		return HealthResult{
			Status:    HealthUnknown,
			Message:   "agent is " + agent.Status.String(),
			Timestamp: now,
		}
	case registry.StatusError, registry.StatusOffline:
		return HealthResult{
			Status:    HealthCritical,
			Message:   "agent is " + agent.Status.String(),
			Timestamp: now,
		}
	}

	elapsed, err := h.probe(ctx, agent)
	if err != nil {
		return HealthResult{
			Status:       HealthCritical,
			Message:      "probe failed: " + err.Error(),
			ResponseTime: elapsed,
			Timestamp:    now,
		}
	}

	switch {
	case elapsed >= h.criticalThreshold:
		return HealthResult{
			Status:       HealthCritical,
			Message:      "response time above critical threshold",
			ResponseTime: elapsed,
			Timestamp:    now,
		}
	case elapsed >= h.warningThreshold:
		return HealthResult{
			Status:       HealthWarning,
			Message:      "response time above warning threshold",
			ResponseTime: elapsed,
			Timestamp:    now,
		}
	default:
		return HealthResult{
			Status:       HealthHealthy,
			ResponseTime: elapsed,
			Timestamp:    now,
		}
	}
}
