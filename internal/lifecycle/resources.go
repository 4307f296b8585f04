// ABOUTME: Bounded per-agent resource usage history with trend queries.
// ABOUTME: Sampling is pluggable; the default reports the process's own memory stats.

package lifecycle

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

// ResourceUsage is one point-in-time resource sample for an agent.
type ResourceUsage struct {
	CPUPercent float64
	MemoryMB   float64
	DiskMB     float64
	NetRxMB    float64
	NetTxMB    float64
	Timestamp  time.Time
}

// Sampler collects a resource sample for one agent.
type Sampler interface {
	Sample(ctx context.Context, agent *registry.Agent) (ResourceUsage, error)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(ctx context.Context, agent *registry.Agent) (ResourceUsage, error)

// Sample calls f.
func (f SamplerFunc) Sample(ctx context.Context, agent *registry.Agent) (ResourceUsage, error) {
	return f(ctx, agent)
}

// RuntimeSampler reports the orchestrator process's own memory usage.
// CPU, disk, and network require an external collector and are left
// zero.
func RuntimeSampler() Sampler {
	return SamplerFunc(func(ctx context.Context, agent *registry.Agent) (ResourceUsage, error) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return ResourceUsage{
			MemoryMB:  float64(m.Alloc) / (1 << 20),
			Timestamp: time.Now(),
		}, nil
	})
}

// DefaultMaxSamples bounds each agent's resource history.
const DefaultMaxSamples = 120

// ResourceMonitor keeps a bounded time-ordered resource history per
// agent.
type ResourceMonitor struct {
	sampler    Sampler
	maxSamples int

	mu      sync.RWMutex
	history map[string][]ResourceUsage
}

// NewResourceMonitor creates a monitor. maxSamples <= 0 uses the
// default bound.
func NewResourceMonitor(sampler Sampler, maxSamples int) *ResourceMonitor {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &ResourceMonitor{
		sampler:    sampler,
		maxSamples: maxSamples,
		history:    make(map[string][]ResourceUsage),
	}
}

// Record samples the agent and appends to its history, dropping the
// oldest sample past the bound.
func (m *ResourceMonitor) Record(ctx context.Context, agent *registry.Agent) error {
	usage, err := m.sampler.Sample(ctx, agent)
	if err != nil {
		return err
	}
	if usage.Timestamp.IsZero() {
		usage.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[agent.ID], usage)
	if len(h) > m.maxSamples {
		h = h[len(h)-m.maxSamples:]
	}
	m.history[agent.ID] = h
	return nil
}

// History returns a copy of the agent's resource history.
func (m *ResourceMonitor) History(agentID string) []ResourceUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ResourceUsage, len(m.history[agentID]))
	copy(out, m.history[agentID])
	return out
}

// Trend averages the samples recorded within the trailing window.
// Returns false when the window holds no samples.
func (m *ResourceMonitor) Trend(agentID string, window time.Duration) (ResourceUsage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var sum ResourceUsage
	count := 0
	for _, u := range m.history[agentID] {
		if u.Timestamp.Before(cutoff) {
			continue
		}
		sum.CPUPercent += u.CPUPercent
		sum.MemoryMB += u.MemoryMB
		sum.DiskMB += u.DiskMB
		sum.NetRxMB += u.NetRxMB
		sum.NetTxMB += u.NetTxMB
		count++
	}
	if count == 0 {
		return ResourceUsage{}, false
	}

	n := float64(count)
	return ResourceUsage{
		CPUPercent: sum.CPUPercent / n,
		MemoryMB:   sum.MemoryMB / n,
		DiskMB:     sum.DiskMB / n,
		NetRxMB:    sum.NetRxMB / n,
		NetTxMB:    sum.NetTxMB / n,
		Timestamp:  time.Now(),
	}, true
}
