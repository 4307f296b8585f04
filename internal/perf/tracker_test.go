// ABOUTME: Tests for the rolling performance tracker.
// ABOUTME: Verifies EMA evolution, success rates, and snapshot ordering.

package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_EMAEvolution(t *testing.T) {
	tr := NewTracker()

	// First sample becomes the average as-is.
	tr.Record("agent-a", "summarize", 1200*time.Millisecond, true)
	p, ok := tr.Get("agent-a", "summarize")
	require.True(t, ok)
	assert.InDelta(t, 1.2, p.AverageResponseTime.Seconds(), 1e-6)

	// Second sample is folded in with alpha 0.1.
	tr.Record("agent-a", "summarize", 200*time.Millisecond, true)
	p, ok = tr.Get("agent-a", "summarize")
	require.True(t, ok)
	assert.InDelta(t, 1.2*0.9+0.2*0.1, p.AverageResponseTime.Seconds(), 1e-6)
}

func TestTracker_SuccessRate(t *testing.T) {
	tr := NewTracker()

	tr.Record("agent-a", "review", time.Second, true)
	tr.Record("agent-a", "review", time.Second, true)
	tr.Record("agent-a", "review", time.Second, false)
	tr.Record("agent-a", "review", time.Second, true)

	p, ok := tr.Get("agent-a", "review")
	require.True(t, ok)
	assert.Equal(t, 4, p.TotalTasks)
	assert.Equal(t, 3, p.SuccessfulTasks)
	assert.Equal(t, 1, p.FailedTasks)
	assert.InDelta(t, 0.75, p.SuccessRate, 1e-9)
	assert.Equal(t, 4*time.Second, p.TotalExecutionTime)
	assert.False(t, p.LastUsed.IsZero())
}

func TestTracker_PairsAreIndependent(t *testing.T) {
	tr := NewTracker()

	tr.Record("agent-a", "review", time.Second, true)
	tr.Record("agent-b", "review", 2*time.Second, false)

	_, ok := tr.Get("agent-a", "summarize")
	assert.False(t, ok)

	pa, _ := tr.Get("agent-a", "review")
	pb, _ := tr.Get("agent-b", "review")
	assert.Equal(t, 1.0, pa.SuccessRate)
	assert.Equal(t, 0.0, pb.SuccessRate)
}

func TestTracker_SnapshotOrdered(t *testing.T) {
	tr := NewTracker()

	tr.Record("agent-b", "review", time.Second, true)
	tr.Record("agent-a", "summarize", time.Second, true)
	tr.Record("agent-a", "review", time.Second, true)

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "agent-a", snap[0].AgentID)
	assert.Equal(t, "review", snap[0].CapabilityID)
	assert.Equal(t, "agent-a", snap[1].AgentID)
	assert.Equal(t, "summarize", snap[1].CapabilityID)
	assert.Equal(t, "agent-b", snap[2].AgentID)
}
