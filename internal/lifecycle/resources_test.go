// ABOUTME: Tests for the bounded resource monitor.
// ABOUTME: Covers history bounding, copies, and windowed trend averages.

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork-ai/meshwork/internal/registry"
)

func usageSampler(usages ...ResourceUsage) Sampler {
	i := 0
	return SamplerFunc(func(ctx context.Context, agent *registry.Agent) (ResourceUsage, error) {
		u := usages[i%len(usages)]
		i++
		return u, nil
	})
}

func TestRecord_BoundsHistory(t *testing.T) {
	m := NewResourceMonitor(usageSampler(ResourceUsage{MemoryMB: 1}), 3)
	a := &registry.Agent{ID: "agent-1"}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Record(ctx, a))
	}

	assert.Len(t, m.History("agent-1"), 3)
}

func TestRecord_SamplerErrorPropagates(t *testing.T) {
	m := NewResourceMonitor(SamplerFunc(func(ctx context.Context, agent *registry.Agent) (ResourceUsage, error) {
		return ResourceUsage{}, errors.New("collector down")
	}), 0)

	err := m.Record(context.Background(), &registry.Agent{ID: "agent-1"})
	assert.Error(t, err)
	assert.Empty(t, m.History("agent-1"))
}

func TestHistory_ReturnsCopy(t *testing.T) {
	m := NewResourceMonitor(usageSampler(ResourceUsage{MemoryMB: 7}), 0)
	a := &registry.Agent{ID: "agent-1"}
	require.NoError(t, m.Record(context.Background(), a))

	h := m.History("agent-1")
	require.Len(t, h, 1)
	h[0].MemoryMB = 999

	fresh := m.History("agent-1")
	assert.Equal(t, 7.0, fresh[0].MemoryMB)
}

func TestTrend_AveragesWindow(t *testing.T) {
	now := time.Now()
	m := NewResourceMonitor(usageSampler(
		ResourceUsage{MemoryMB: 100, CPUPercent: 10, Timestamp: now.Add(-2 * time.Hour)}, // outside window
		ResourceUsage{MemoryMB: 10, CPUPercent: 20, Timestamp: now},
		ResourceUsage{MemoryMB: 30, CPUPercent: 40, Timestamp: now},
	), 0)
	a := &registry.Agent{ID: "agent-1"}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Record(ctx, a))
	}

	trend, ok := m.Trend("agent-1", time.Minute)
	require.True(t, ok)
	assert.InDelta(t, 20.0, trend.MemoryMB, 1e-9)
	assert.InDelta(t, 30.0, trend.CPUPercent, 1e-9)
}

func TestTrend_EmptyWindow(t *testing.T) {
	m := NewResourceMonitor(RuntimeSampler(), 0)

	_, ok := m.Trend("ghost", time.Minute)
	assert.False(t, ok)
}

func TestRuntimeSampler_ReportsMemory(t *testing.T) {
	s := RuntimeSampler()

	u, err := s.Sample(context.Background(), &registry.Agent{ID: "agent-1"})
	require.NoError(t, err)
	assert.Greater(t, u.MemoryMB, 0.0)
	assert.False(t, u.Timestamp.IsZero())
}
