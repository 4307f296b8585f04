// ABOUTME: Tests for sequential and parallel collaboration workflows.
// ABOUTME: Covers dependency enforcement and aggregate success semantics.

package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepExecutor fails the configured capabilities and records call order.
type stepExecutor struct {
	mu    sync.Mutex
	fail  map[string]bool
	order []string
}

func (s *stepExecutor) Execute(ctx context.Context, capabilityID string, input map[string]any) (map[string]any, error) {
	s.mu.Lock()
	s.order = append(s.order, capabilityID)
	s.mu.Unlock()
	if s.fail[capabilityID] {
		return nil, errors.New("capability failed")
	}
	return map[string]any{"capability": capabilityID}, nil
}

func newWorkflowProtocol(exec Executor) *Protocol {
	return New("agent-a", exec, &capturingDeliverer{}, testLogger())
}

func TestExecuteWorkflow_EmptyFails(t *testing.T) {
	p := newWorkflowProtocol(&stepExecutor{})

	_, err := p.ExecuteWorkflow(context.Background(), &Workflow{ID: "wf-1"})
	assert.Error(t, err)
}

func TestExecuteWorkflow_SequentialRunsInOrder(t *testing.T) {
	exec := &stepExecutor{}
	p := newWorkflowProtocol(exec)

	res, err := p.ExecuteWorkflow(context.Background(), &Workflow{
		ID:   "wf-1",
		Mode: WorkflowSequential,
		Steps: []WorkflowStep{
			{ID: "draft", CapabilityID: "write"},
			{ID: "check", CapabilityID: "review", DependsOn: []string{"draft"}},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"write", "review"}, exec.order)
	assert.True(t, res.Steps["draft"].Success)
	assert.True(t, res.Steps["check"].Success)
}

func TestExecuteWorkflow_SequentialSkipsOnFailedDependency(t *testing.T) {
	exec := &stepExecutor{fail: map[string]bool{"write": true}}
	p := newWorkflowProtocol(exec)

	res, err := p.ExecuteWorkflow(context.Background(), &Workflow{
		ID:   "wf-1",
		Mode: WorkflowSequential,
		Steps: []WorkflowStep{
			{ID: "draft", CapabilityID: "write"},
			{ID: "check", CapabilityID: "review", DependsOn: []string{"draft"}},
			{ID: "extra", CapabilityID: "summarize"},
		},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.False(t, res.Steps["draft"].Success)
	// The dependent step never ran.
	assert.Equal(t, []string{"write", "summarize"}, exec.order)
	assert.Contains(t, res.Steps["check"].Error, "draft")
	// Independent steps still run.
	assert.True(t, res.Steps["extra"].Success)
}

func TestExecuteWorkflow_SequentialUnknownDependency(t *testing.T) {
	p := newWorkflowProtocol(&stepExecutor{})

	res, err := p.ExecuteWorkflow(context.Background(), &Workflow{
		ID:   "wf-1",
		Mode: WorkflowSequential,
		Steps: []WorkflowStep{
			{ID: "check", CapabilityID: "review", DependsOn: []string{"ghost"}},
		},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Contains(t, res.Steps["check"].Error, "ghost")
}

func TestExecuteWorkflow_ParallelAggregatesAllSteps(t *testing.T) {
	exec := &stepExecutor{fail: map[string]bool{"review": true}}
	p := newWorkflowProtocol(exec)

	res, err := p.ExecuteWorkflow(context.Background(), &Workflow{
		ID:   "wf-1",
		Mode: WorkflowParallel,
		Steps: []WorkflowStep{
			{ID: "draft", CapabilityID: "write"},
			{ID: "check", CapabilityID: "review"},
			{ID: "extra", CapabilityID: "summarize"},
		},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Steps, 3)
	assert.True(t, res.Steps["draft"].Success)
	assert.False(t, res.Steps["check"].Success)
	assert.True(t, res.Steps["extra"].Success)
}

func TestExecuteWorkflow_ParallelAllSucceed(t *testing.T) {
	p := newWorkflowProtocol(&stepExecutor{})

	res, err := p.ExecuteWorkflow(context.Background(), &Workflow{
		ID:   "wf-1",
		Mode: WorkflowParallel,
		Steps: []WorkflowStep{
			{ID: "a", CapabilityID: "write"},
			{ID: "b", CapabilityID: "review"},
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "write", res.Steps["a"].Output["capability"])
}
