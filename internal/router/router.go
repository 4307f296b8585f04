// ABOUTME: TaskRouter selects a running agent for a capability-tagged task.
// ABOUTME: Pluggable strategy over a weighted score; execution outcomes feed the performance tracker.

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/perf"
	"github.com/meshwork-ai/meshwork/internal/registry"
	"github.com/meshwork-ai/meshwork/internal/task"
)

// Router errors
var (
	// ErrNoAvailableAgent means no running agent declares the capability.
	ErrNoAvailableAgent = errors.New("no available agent for capability")

	// ErrQueueFull means the submission queue is at capacity.
	ErrQueueFull = errors.New("task queue is full")
)

// Strategy selects how candidate agents are ranked.
type Strategy int

const (
	// StrategyBestMatch ranks by the composite weighted score.
	StrategyBestMatch Strategy = iota
	// StrategyFastestResponse ranks by recorded average response time.
	StrategyFastestResponse
	// StrategyLoadBalanced ranks by current concurrent-task count.
	StrategyLoadBalanced
)

// String returns the snake_case name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBestMatch:
		return "best_match"
	case StrategyFastestResponse:
		return "fastest_response"
	case StrategyLoadBalanced:
		return "load_balanced"
	default:
		return "unknown"
	}
}

// AgentSource lists candidate agents. Implemented by registry.Registry.
type AgentSource interface {
	List() []*registry.Agent
	AddLoad(agentID string, delta int) error
}

// Executor runs a capability with the given input. The model-backend
// adapter behind it is opaque to the router.
type Executor interface {
	Execute(ctx context.Context, capabilityID string, input map[string]any) (map[string]any, error)
}

// Router accepts tasks and routes them to agents.
type Router struct {
	agents   AgentSource
	tracker  *perf.Tracker
	executor Executor
	logger   *slog.Logger

	strategyMu sync.RWMutex
	strategy   Strategy

	queue    chan *task.Task
	onResult func(*task.Result)

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

// WithQueueSize sets the submission queue capacity (default 256).
func WithQueueSize(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.queue = make(chan *task.Task, n)
		}
	}
}

// WithResultCallback registers a callback invoked with every result
// produced by the background worker.
func WithResultCallback(fn func(*task.Result)) Option {
	return func(r *Router) { r.onResult = fn }
}

// New creates a Router with the default BestMatch strategy.
func New(agents AgentSource, tracker *perf.Tracker, executor Executor, logger *slog.Logger, opts ...Option) *Router {
	r := &Router{
		agents:   agents,
		tracker:  tracker,
		executor: executor,
		logger:   logger.With("component", "router"),
		strategy: StrategyBestMatch,
		queue:    make(chan *task.Task, 256),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetStrategy switches the routing strategy at runtime.
func (r *Router) SetStrategy(s Strategy) {
	r.strategyMu.Lock()
	defer r.strategyMu.Unlock()
	r.strategy = s
}

// CurrentStrategy returns the active routing strategy.
func (r *Router) CurrentStrategy() Strategy {
	r.strategyMu.RLock()
	defer r.strategyMu.RUnlock()
	return r.strategy
}

// QueueSize returns the number of tasks awaiting dispatch.
func (r *Router) QueueSize() int {
	return len(r.queue)
}

// Submit validates and enqueues a task, returning its id. Submit never
// blocks: a full queue fails with ErrQueueFull.
func (r *Router) Submit(capabilityID string, input map[string]any, priority task.Priority, timeout time.Duration, metadata map[string]string) (string, error) {
	t, err := task.New(capabilityID, input, priority, timeout, metadata)
	if err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}

	select {
	case r.queue <- t:
		r.logger.Debug("task submitted",
			"task_id", t.ID,
			"capability", t.CapabilityID,
			"priority", t.Priority.String(),
		)
		return t.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Start launches the dispatch worker. Idempotent.
func (r *Router) Start(ctx context.Context) {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.dispatchLoop(ctx)
}

// Stop halts the dispatch worker. The in-flight task finishes.
// Idempotent.
func (r *Router) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	r.cancel()
	r.wg.Wait()
}

func (r *Router) dispatchLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			res := r.Execute(ctx, t)
			if r.onResult != nil {
				r.onResult(res)
			}
		}
	}
}

// Route selects an agent for the task using the active strategy.
// Returns ErrNoAvailableAgent when no running agent declares the
// capability.
func (r *Router) Route(t *task.Task) (string, error) {
	candidates := r.candidates(t.CapabilityID)
	if len(candidates) == 0 {
		return "", ErrNoAvailableAgent
	}

	var chosen *registry.Agent
	switch r.CurrentStrategy() {
	case StrategyFastestResponse:
		chosen = r.pickFastest(candidates, t.CapabilityID)
	case StrategyLoadBalanced:
		chosen = r.pickLeastLoaded(candidates)
	default:
		chosen = r.pickBestMatch(candidates, t)
	}

	return chosen.ID, nil
}

// Execute routes the task, runs it, and records performance. All
// failures come back as a failed Result, never as an error across the
// scheduling boundary.
func (r *Router) Execute(ctx context.Context, t *task.Task) *task.Result {
	agentID, err := r.Route(t)
	if err != nil {
		r.logger.Warn("routing failed",
			"task_id", t.ID,
			"capability", t.CapabilityID,
			"error", err,
		)
		return task.Failed(t.ID, "", err.Error())
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	_ = r.agents.AddLoad(agentID, 1)
	start := time.Now()
	output, execErr := r.executor.Execute(ctx, t.CapabilityID, t.Input)
	elapsed := time.Since(start)
	_ = r.agents.AddLoad(agentID, -1)

	// Performance is updated unconditionally, success or not.
	r.tracker.Record(agentID, t.CapabilityID, elapsed, execErr == nil)

	res := &task.Result{
		TaskID:        t.ID,
		AgentID:       agentID,
		ExecutionTime: elapsed,
	}
	if execErr != nil {
		res.Error = execErr.Error()
		r.logger.Debug("task failed", "task_id", t.ID, "agent_id", agentID, "error", execErr)
		return res
	}
	res.Success = true
	res.Output = output
	return res
}

// candidates filters to running agents declaring the capability. The
// source list is id-ordered, which makes every tie-break lexical.
func (r *Router) candidates(capabilityID string) []*registry.Agent {
	var out []*registry.Agent
	for _, a := range r.agents.List() {
		if a.Status != registry.StatusRunning {
			continue
		}
		if !a.HasCapability(capabilityID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *Router) pickBestMatch(candidates []*registry.Agent, t *task.Task) *registry.Agent {
	var best *registry.Agent
	bestScore := -1.0
	for _, a := range candidates {
		score := r.scoreAgent(a, t)
		if score > bestScore {
			best = a
			bestScore = score
		}
	}
	return best
}

// scoreAgent computes the composite weighted score for one candidate.
func (r *Router) scoreAgent(a *registry.Agent, t *task.Task) float64 {
	capScore := perf.CapabilityScore(a.HasCapability(t.CapabilityID))

	perfScore := 0.5 // neutral when the pair has no history
	if p, ok := r.tracker.Get(a.ID, t.CapabilityID); ok {
		perfScore = perf.PerformanceScore(p.AverageResponseTime.Seconds(), p.SuccessRate)
	}

	loadScore := perf.LoadScore(a.CurrentTasks, a.MaxConcurrentTasks)
	prioScore := perf.PriorityScore(t.Priority.Weight(), a.Priority)

	return perf.CompositeScore(capScore, perfScore, loadScore, prioScore)
}

func (r *Router) pickFastest(candidates []*registry.Agent, capabilityID string) *registry.Agent {
	var best *registry.Agent
	var bestAvg time.Duration
	measured := false

	for _, a := range candidates {
		p, ok := r.tracker.Get(a.ID, capabilityID)
		if !ok {
			continue
		}
		if !measured || p.AverageResponseTime < bestAvg {
			best = a
			bestAvg = p.AverageResponseTime
			measured = true
		}
	}

	// Unmeasured agents rank lowest; fall back to id order.
	if best == nil {
		return candidates[0]
	}
	return best
}

func (r *Router) pickLeastLoaded(candidates []*registry.Agent) *registry.Agent {
	best := candidates[0]
	for _, a := range candidates[1:] {
		if a.CurrentTasks < best.CurrentTasks {
			best = a
		}
	}
	return best
}
