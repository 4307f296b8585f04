// ABOUTME: Tests for the composition root wiring.
// ABOUTME: Covers loopback transport delivery, agent cost plumbing, and the simulated task path.

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork-ai/meshwork/internal/config"
	"github.com/meshwork-ai/meshwork/internal/protocol"
	"github.com/meshwork-ai/meshwork/internal/registry"
	"github.com/meshwork-ai/meshwork/internal/task"
)

func buildTestCore(t *testing.T, agents []config.AgentConfig) *core {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := buildCore(&config.Config{Agents: agents}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.store.Close() })
	return c
}

func TestBuildCore_LoopbackDeliversMessages(t *testing.T) {
	c := buildTestCore(t, simulationAgents)
	c.start(context.Background())
	defer c.stop()

	msg := protocol.NewMessage("meshworkd", "meshwork-hub",
		protocol.StatusUpdate{Status: "running"}, task.PriorityNormal)
	require.NoError(t, c.client.Send(msg))

	assert.Eventually(t, func() bool {
		return c.client.Stats().MessagesSent == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, c.client.Stats().FailedMessages)
}

func TestBuildCore_LoopbackAcknowledgesHeartbeats(t *testing.T) {
	c := buildTestCore(t, simulationAgents)
	c.start(context.Background())
	defer c.stop()

	hb := protocol.NewMessage("meshworkd", "meshwork-hub",
		protocol.Heartbeat{SentAt: time.Now()}, task.PriorityNormal)
	require.NoError(t, c.client.Send(hb))

	assert.Eventually(t, func() bool {
		_, ok := c.protocol.LastHeartbeat("meshwork-hub")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBuildCore_PlumbsBaseCost(t *testing.T) {
	c := buildTestCore(t, []config.AgentConfig{{
		ID:           "billed",
		Capabilities: []string{"code.generate"},
		Tier:         registry.TierPremium,
		BaseCost:     3.5,
	}})

	a, ok := c.registry.Get("billed")
	require.True(t, ok)
	assert.Equal(t, 3.5, a.Cost())
}

func TestSimulateTask_RecordsOnceAgainstAllocatedAgent(t *testing.T) {
	c := buildTestCore(t, simulationAgents)
	ctx := context.Background()
	for _, a := range c.registry.List() {
		require.NoError(t, c.registry.SetStatus(a.ID, registry.StatusRunning))
	}

	// Only sim-coder declares code.generate.
	require.NoError(t, simulateTask(ctx, c, "code.generate", task.PriorityNormal, 0))

	snap := c.tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "sim-coder", snap[0].AgentID)
	assert.Equal(t, "code.generate", snap[0].CapabilityID)
	assert.Equal(t, 1, snap[0].TotalTasks)
	assert.Equal(t, 0, c.allocator.Load("sim-coder"))

	history, err := c.allocator.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "sim-coder", history[0].AgentID)
}
