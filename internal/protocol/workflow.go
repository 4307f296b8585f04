// ABOUTME: Multi-step collaboration workflows executed over the capability executor.
// ABOUTME: Sequential mode honors step dependencies; parallel mode fans out with errgroup.

package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meshwork-ai/meshwork/internal/task"
)

// WorkflowMode selects how workflow steps are scheduled.
type WorkflowMode int

const (
	// WorkflowSequential runs steps strictly in listed order.
	WorkflowSequential WorkflowMode = iota
	// WorkflowParallel fans all steps out concurrently.
	WorkflowParallel
)

// String returns the lowercase name of the mode.
func (m WorkflowMode) String() string {
	switch m {
	case WorkflowSequential:
		return "sequential"
	case WorkflowParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// WorkflowStep is one unit of a collaboration plan.
type WorkflowStep struct {
	ID           string
	CapabilityID string
	Input        map[string]any
	DependsOn    []string // enforced only by sequential workflows
}

// Workflow is an ordered list of steps executed under one mode.
type Workflow struct {
	ID    string
	Mode  WorkflowMode
	Steps []WorkflowStep
}

// WorkflowResult aggregates per-step results keyed by step id.
// Success is the AND of every step's success.
type WorkflowResult struct {
	WorkflowID string
	Success    bool
	Steps      map[string]*task.Result
}

// ExecuteWorkflow runs the workflow against the protocol's executor.
func (p *Protocol) ExecuteWorkflow(ctx context.Context, wf *Workflow) (*WorkflowResult, error) {
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("workflow %s has no steps", wf.ID)
	}

	switch wf.Mode {
	case WorkflowParallel:
		return p.runParallel(ctx, wf), nil
	default:
		return p.runSequential(ctx, wf), nil
	}
}

func (p *Protocol) runSequential(ctx context.Context, wf *Workflow) *WorkflowResult {
	res := &WorkflowResult{
		WorkflowID: wf.ID,
		Success:    true,
		Steps:      make(map[string]*task.Result, len(wf.Steps)),
	}

	for _, step := range wf.Steps {
		if failed := unmetDependency(step, res.Steps); failed != "" {
			res.Steps[step.ID] = task.Failed(step.ID, p.agentID,
				fmt.Sprintf("dependency %s did not succeed", failed))
			res.Success = false
			continue
		}
		stepRes := p.runStep(ctx, step)
		res.Steps[step.ID] = stepRes
		if !stepRes.Success {
			res.Success = false
		}
	}
	return res
}

func (p *Protocol) runParallel(ctx context.Context, wf *Workflow) *WorkflowResult {
	res := &WorkflowResult{
		WorkflowID: wf.ID,
		Success:    true,
		Steps:      make(map[string]*task.Result, len(wf.Steps)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, step := range wf.Steps {
		g.Go(func() error {
			stepRes := p.runStep(gctx, step)
			mu.Lock()
			res.Steps[step.ID] = stepRes
			if !stepRes.Success {
				res.Success = false
			}
			mu.Unlock()
			return nil
		})
	}

	// Steps report failure through their results, never as errors.
	_ = g.Wait()
	return res
}

func (p *Protocol) runStep(ctx context.Context, step WorkflowStep) *task.Result {
	start := time.Now()
	output, err := p.executor.Execute(ctx, step.CapabilityID, step.Input)
	elapsed := time.Since(start)

	res := &task.Result{
		TaskID:        step.ID,
		AgentID:       p.agentID,
		ExecutionTime: elapsed,
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.Output = output
	return res
}

// unmetDependency returns the id of the first dependency that has not
// completed successfully, or "" when all are satisfied.
func unmetDependency(step WorkflowStep, done map[string]*task.Result) string {
	for _, dep := range step.DependsOn {
		prev, ok := done[dep]
		if !ok || !prev.Success {
			return dep
		}
	}
	return ""
}
