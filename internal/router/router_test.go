// ABOUTME: Tests for the task router.
// ABOUTME: Covers candidate filtering, all three strategies, and performance recording.

package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork-ai/meshwork/internal/perf"
	"github.com/meshwork-ai/meshwork/internal/registry"
	"github.com/meshwork-ai/meshwork/internal/task"
)

// mockAgentSource serves a fixed id-ordered agent list.
type mockAgentSource struct {
	mu     sync.Mutex
	agents []*registry.Agent
	loads  map[string]int
}

func newMockAgentSource(agents ...*registry.Agent) *mockAgentSource {
	return &mockAgentSource{agents: agents, loads: make(map[string]int)}
}

func (m *mockAgentSource) List() []*registry.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*registry.Agent, len(m.agents))
	copy(out, m.agents)
	return out
}

func (m *mockAgentSource) AddLoad(agentID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[agentID] += delta
	return nil
}

// mockExecutor returns canned outputs or errors per capability.
type mockExecutor struct {
	mu     sync.Mutex
	err    error
	delay  time.Duration
	calls  int
	output map[string]any
}

func (m *mockExecutor) Execute(ctx context.Context, capabilityID string, input map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.output != nil {
		return m.output, nil
	}
	return map[string]any{"capability": capabilityID}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discard{}, nil))
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }

func running(id string, caps ...string) *registry.Agent {
	return &registry.Agent{
		ID:                 id,
		Status:             registry.StatusRunning,
		Capabilities:       caps,
		MaxConcurrentTasks: 10,
		Priority:           0.5,
	}
}

func mustTask(t *testing.T, capability string, prio task.Priority) *task.Task {
	t.Helper()
	tk, err := task.New(capability, nil, prio, 0, nil)
	require.NoError(t, err)
	return tk
}

func TestRoute_FiltersStoppedAgents(t *testing.T) {
	// Capability held by running A and stopped B: A must win.
	b := running("agent-b", "summarize")
	b.Status = registry.StatusStopped
	source := newMockAgentSource(running("agent-a", "summarize"), b)

	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger())

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-a", agentID)
}

func TestRoute_FiltersUndeclaredCapability(t *testing.T) {
	source := newMockAgentSource(running("agent-a", "review"))

	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger())

	_, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	assert.ErrorIs(t, err, ErrNoAvailableAgent)
}

func TestRoute_BestMatchPrefersReliableAgent(t *testing.T) {
	source := newMockAgentSource(
		running("agent-a", "summarize"),
		running("agent-b", "summarize"),
	)
	tracker := perf.NewTracker()
	// agent-a: fast and reliable. agent-b: slow and failing.
	tracker.Record("agent-a", "summarize", 100*time.Millisecond, true)
	tracker.Record("agent-b", "summarize", 8*time.Second, false)

	r := New(source, tracker, &mockExecutor{}, testLogger())

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-a", agentID)
}

func TestRoute_TieBreaksLexically(t *testing.T) {
	// Identical agents: the lexically smallest id wins.
	source := newMockAgentSource(
		running("agent-a", "summarize"),
		running("agent-b", "summarize"),
		running("agent-c", "summarize"),
	)

	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger())

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-a", agentID)
}

func TestRoute_FastestResponse(t *testing.T) {
	source := newMockAgentSource(
		running("agent-a", "summarize"),
		running("agent-b", "summarize"),
		running("agent-c", "summarize"),
	)
	tracker := perf.NewTracker()
	tracker.Record("agent-a", "summarize", 2*time.Second, true)
	tracker.Record("agent-c", "summarize", 500*time.Millisecond, true)
	// agent-b is unmeasured and must rank below both.

	r := New(source, tracker, &mockExecutor{}, testLogger())
	r.SetStrategy(StrategyFastestResponse)

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-c", agentID)
}

func TestRoute_FastestResponseAllUnmeasured(t *testing.T) {
	source := newMockAgentSource(
		running("agent-b", "summarize"),
		running("agent-c", "summarize"),
	)

	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger())
	r.SetStrategy(StrategyFastestResponse)

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-b", agentID) // id order when nothing is measured
}

func TestRoute_LoadBalanced(t *testing.T) {
	a := running("agent-a", "summarize")
	a.CurrentTasks = 5
	b := running("agent-b", "summarize")
	b.CurrentTasks = 1
	source := newMockAgentSource(a, b)

	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger())
	r.SetStrategy(StrategyLoadBalanced)

	agentID, err := r.Route(mustTask(t, "summarize", task.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, "agent-b", agentID)
}

func TestExecute_NoAgentReturnsFailedResult(t *testing.T) {
	r := New(newMockAgentSource(), perf.NewTracker(), &mockExecutor{}, testLogger())

	res := r.Execute(context.Background(), mustTask(t, "summarize", task.PriorityNormal))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no available agent")
}

func TestExecute_RecordsPerformanceUnconditionally(t *testing.T) {
	source := newMockAgentSource(running("agent-a", "summarize"))
	tracker := perf.NewTracker()
	exec := &mockExecutor{err: errors.New("backend exploded")}

	r := New(source, tracker, exec, testLogger())

	res := r.Execute(context.Background(), mustTask(t, "summarize", task.PriorityNormal))
	assert.False(t, res.Success)
	assert.Equal(t, "agent-a", res.AgentID)

	p, ok := tracker.Get("agent-a", "summarize")
	require.True(t, ok)
	assert.Equal(t, 1, p.FailedTasks)
}

func TestExecute_SuccessUpdatesEMA(t *testing.T) {
	source := newMockAgentSource(running("agent-a", "summarize"))
	tracker := perf.NewTracker()

	r := New(source, tracker, &mockExecutor{}, testLogger())

	res := r.Execute(context.Background(), mustTask(t, "summarize", task.PriorityNormal))
	require.True(t, res.Success)

	p, ok := tracker.Get("agent-a", "summarize")
	require.True(t, ok)
	assert.Equal(t, 1, p.SuccessfulTasks)
	// First sample sets the average (modulo float conversion).
	assert.InDelta(t, res.ExecutionTime.Seconds(), p.AverageResponseTime.Seconds(), 1e-6)
}

func TestSubmit_NeverBlocks(t *testing.T) {
	source := newMockAgentSource(running("agent-a", "summarize"))
	r := New(source, perf.NewTracker(), &mockExecutor{}, testLogger(), WithQueueSize(1))

	_, err := r.Submit("summarize", nil, task.PriorityNormal, 0, nil)
	require.NoError(t, err)

	// Queue of one is now full; the second submit fails fast.
	_, err = r.Submit("summarize", nil, task.PriorityNormal, 0, nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = r.Submit("", nil, task.PriorityNormal, 0, nil)
	assert.ErrorIs(t, err, task.ErrNoCapability)
}

func TestStartStop_WorkerDrainsQueue(t *testing.T) {
	source := newMockAgentSource(running("agent-a", "summarize"))
	exec := &mockExecutor{}

	var mu sync.Mutex
	var results []*task.Result
	r := New(source, perf.NewTracker(), exec, testLogger(),
		WithResultCallback(func(res *task.Result) {
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}))

	r.Start(context.Background())
	r.Start(context.Background()) // idempotent
	defer r.Stop()

	_, err := r.Submit("summarize", nil, task.PriorityHigh, 0, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1 && results[0].Success
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop() // idempotent
	assert.Equal(t, 1, exec.callCount())
}
