// ABOUTME: TaskAllocator performs multi-factor agent selection with load and reliability gates.
// ABOUTME: Every successful allocation is appended to a persistent audit trail.

package alloc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshwork-ai/meshwork/internal/perf"
	"github.com/meshwork-ai/meshwork/internal/registry"
	"github.com/meshwork-ai/meshwork/internal/store"
	"github.com/meshwork-ai/meshwork/internal/task"
)

// Allocator errors
var (
	// ErrNoAvailableAgent means no running agent declares the capability.
	ErrNoAvailableAgent = errors.New("no available agent for capability")

	// ErrCapacityExceeded means every eligible agent is at its load ceiling.
	ErrCapacityExceeded = errors.New("all eligible agents at capacity")

	// ErrReliabilityGate means an urgent task had only historically
	// unreliable agents to choose from.
	ErrReliabilityGate = errors.New("no agent meets the reliability bar for urgent work")
)

// DefaultMaxLoad is the per-agent concurrent-task ceiling.
const DefaultMaxLoad = 10

// DefaultMinSuccessRate is the reliability bar applied to urgent tasks.
const DefaultMinSuccessRate = 0.7

// defaultEstimatedResponse is assumed for pairs with no history.
const defaultEstimatedResponse = time.Second

// Strategy selects how eligible agents are ranked.
type Strategy int

const (
	// StrategyBestMatch ranks by the composite weighted score.
	StrategyBestMatch Strategy = iota
	// StrategyFastestResponse ranks by recorded average response time.
	StrategyFastestResponse
	// StrategyLowestCost ranks by estimated cost.
	StrategyLowestCost
	// StrategyRoundRobin rotates by allocation recency.
	StrategyRoundRobin
	// StrategyLoadBalanced ranks by the allocator's load counters.
	StrategyLoadBalanced
)

// String returns the snake_case name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyBestMatch:
		return "best_match"
	case StrategyFastestResponse:
		return "fastest_response"
	case StrategyLowestCost:
		return "lowest_cost"
	case StrategyRoundRobin:
		return "round_robin"
	case StrategyLoadBalanced:
		return "load_balanced"
	default:
		return "unknown"
	}
}

// AgentSource lists candidate agents. Implemented by registry.Registry.
type AgentSource interface {
	List() []*registry.Agent
}

// Allocator selects agents for tasks and maintains the audit trail.
type Allocator struct {
	agents  AgentSource
	tracker *perf.Tracker
	store   store.Store
	logger  *slog.Logger

	mu             sync.Mutex
	strategy       Strategy
	maxLoad        int
	minSuccessRate float64
	loads          map[string]int
	lastAllocated  map[string]time.Time
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxLoad overrides the per-agent concurrent-task ceiling.
func WithMaxLoad(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxLoad = n
		}
	}
}

// WithMinSuccessRate overrides the urgent-task reliability bar.
func WithMinSuccessRate(rate float64) Option {
	return func(a *Allocator) { a.minSuccessRate = rate }
}

// WithStrategy sets the initial allocation strategy.
func WithStrategy(s Strategy) Option {
	return func(a *Allocator) { a.strategy = s }
}

// New creates an Allocator. The store receives the audit trail; use
// store.NewMemoryStore for store-less deployments.
func New(agents AgentSource, tracker *perf.Tracker, st store.Store, logger *slog.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		agents:         agents,
		tracker:        tracker,
		store:          st,
		logger:         logger.With("component", "allocator"),
		strategy:       StrategyBestMatch,
		maxLoad:        DefaultMaxLoad,
		minSuccessRate: DefaultMinSuccessRate,
		loads:          make(map[string]int),
		lastAllocated:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetStrategy switches the allocation strategy at runtime.
func (a *Allocator) SetStrategy(s Strategy) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strategy = s
}

// Allocate selects an agent for the task, records the allocation, and
// bumps the chosen agent's load counter. The caller releases the load
// via UpdateLoad(agentID, -1) when execution completes.
func (a *Allocator) Allocate(ctx context.Context, t *task.Task) (*store.Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidates := a.eligible(t.CapabilityID)
	if len(candidates) == 0 {
		return nil, ErrNoAvailableAgent
	}

	underCeiling := candidates[:0:0]
	for _, c := range candidates {
		if a.loads[c.ID] >= a.maxLoad {
			continue
		}
		underCeiling = append(underCeiling, c)
	}
	if len(underCeiling) == 0 {
		return nil, ErrCapacityExceeded
	}

	// Urgent work must not go to historically unreliable agents.
	if t.Priority == task.PriorityUrgent {
		reliable := underCeiling[:0:0]
		for _, c := range underCeiling {
			if p, ok := a.tracker.Get(c.ID, t.CapabilityID); ok && p.SuccessRate < a.minSuccessRate {
				continue
			}
			reliable = append(reliable, c)
		}
		if len(reliable) == 0 {
			return nil, ErrReliabilityGate
		}
		underCeiling = reliable
	}

	chosen := a.pick(underCeiling, t)

	alloc := &store.Allocation{
		AgentID:               chosen.ID,
		TaskID:                t.ID,
		Score:                 a.score(chosen, t),
		Strategy:              a.strategy.String(),
		EstimatedResponseTime: a.estimateResponse(chosen, t.CapabilityID),
		EstimatedCost:         chosen.Cost() * t.Priority.ComplexityFactor(),
		Timestamp:             time.Now(),
	}

	if err := a.store.SaveAllocation(ctx, alloc); err != nil {
		return nil, fmt.Errorf("recording allocation: %w", err)
	}

	a.loads[chosen.ID]++
	a.lastAllocated[chosen.ID] = alloc.Timestamp

	a.logger.Debug("task allocated",
		"task_id", t.ID,
		"agent_id", chosen.ID,
		"strategy", alloc.Strategy,
		"score", alloc.Score,
		"estimated_cost", alloc.EstimatedCost,
	)
	return alloc, nil
}

// History returns the most recent limit allocations, most-recent-last.
func (a *Allocator) History(ctx context.Context, limit int) ([]*store.Allocation, error) {
	return a.store.ListAllocations(ctx, limit)
}

// UpdatePerformance folds an execution outcome into the tracker and
// persists the updated snapshot. Safe to call from the completion
// callback.
func (a *Allocator) UpdatePerformance(ctx context.Context, agentID, capabilityID string, elapsed time.Duration, success bool) error {
	a.tracker.Record(agentID, capabilityID, elapsed, success)

	p, _ := a.tracker.Get(agentID, capabilityID)
	rec := &store.PerformanceRecord{
		AgentID:             p.AgentID,
		CapabilityID:        p.CapabilityID,
		TotalTasks:          p.TotalTasks,
		SuccessfulTasks:     p.SuccessfulTasks,
		FailedTasks:         p.FailedTasks,
		TotalExecutionTime:  p.TotalExecutionTime,
		AverageResponseTime: p.AverageResponseTime,
		SuccessRate:         p.SuccessRate,
		LastUsed:            p.LastUsed,
	}
	if err := a.store.SavePerformance(ctx, rec); err != nil {
		return fmt.Errorf("persisting performance: %w", err)
	}
	return nil
}

// UpdateLoad adjusts the allocator's load counter for an agent,
// clamping at zero.
func (a *Allocator) UpdateLoad(agentID string, delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.loads[agentID] += delta
	if a.loads[agentID] < 0 {
		a.loads[agentID] = 0
	}
}

// Load returns the allocator's current load counter for an agent.
func (a *Allocator) Load(agentID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads[agentID]
}

// eligible filters to running agents declaring the capability. The
// source list is id-ordered, which makes every tie-break lexical.
func (a *Allocator) eligible(capabilityID string) []*registry.Agent {
	var out []*registry.Agent
	for _, ag := range a.agents.List() {
		if ag.Status != registry.StatusRunning {
			continue
		}
		if !ag.HasCapability(capabilityID) {
			continue
		}
		out = append(out, ag)
	}
	return out
}

func (a *Allocator) pick(candidates []*registry.Agent, t *task.Task) *registry.Agent {
	switch a.strategy {
	case StrategyFastestResponse:
		return a.pickFastest(candidates, t.CapabilityID)
	case StrategyLowestCost:
		return a.pickCheapest(candidates, t)
	case StrategyRoundRobin:
		return a.pickLeastRecent(candidates)
	case StrategyLoadBalanced:
		return a.pickLeastLoaded(candidates)
	default:
		return a.pickBestMatch(candidates, t)
	}
}

func (a *Allocator) pickBestMatch(candidates []*registry.Agent, t *task.Task) *registry.Agent {
	var best *registry.Agent
	bestScore := -1.0
	for _, c := range candidates {
		if s := a.score(c, t); s > bestScore {
			best = c
			bestScore = s
		}
	}
	return best
}

// score computes the composite weighted score using the allocator's
// own load counters.
func (a *Allocator) score(ag *registry.Agent, t *task.Task) float64 {
	capScore := perf.CapabilityScore(ag.HasCapability(t.CapabilityID))

	perfScore := 0.5
	if p, ok := a.tracker.Get(ag.ID, t.CapabilityID); ok {
		perfScore = perf.PerformanceScore(p.AverageResponseTime.Seconds(), p.SuccessRate)
	}

	loadScore := perf.LoadScore(a.loads[ag.ID], a.maxLoad)
	prioScore := perf.PriorityScore(t.Priority.Weight(), ag.Priority)

	return perf.CompositeScore(capScore, perfScore, loadScore, prioScore)
}

func (a *Allocator) pickFastest(candidates []*registry.Agent, capabilityID string) *registry.Agent {
	var best *registry.Agent
	var bestAvg time.Duration
	measured := false

	for _, c := range candidates {
		p, ok := a.tracker.Get(c.ID, capabilityID)
		if !ok {
			continue
		}
		if !measured || p.AverageResponseTime < bestAvg {
			best = c
			bestAvg = p.AverageResponseTime
			measured = true
		}
	}
	if best == nil {
		return candidates[0]
	}
	return best
}

func (a *Allocator) pickCheapest(candidates []*registry.Agent, t *task.Task) *registry.Agent {
	best := candidates[0]
	bestCost := best.Cost() * t.Priority.ComplexityFactor()
	for _, c := range candidates[1:] {
		if cost := c.Cost() * t.Priority.ComplexityFactor(); cost < bestCost {
			best = c
			bestCost = cost
		}
	}
	return best
}

// pickLeastRecent chooses the agent allocated longest ago; agents
// never allocated come first.
func (a *Allocator) pickLeastRecent(candidates []*registry.Agent) *registry.Agent {
	best := candidates[0]
	bestAt := a.lastAllocated[best.ID]
	for _, c := range candidates[1:] {
		if at := a.lastAllocated[c.ID]; at.Before(bestAt) {
			best = c
			bestAt = at
		}
	}
	return best
}

func (a *Allocator) pickLeastLoaded(candidates []*registry.Agent) *registry.Agent {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if a.loads[c.ID] < a.loads[best.ID] {
			best = c
		}
	}
	return best
}

func (a *Allocator) estimateResponse(ag *registry.Agent, capabilityID string) time.Duration {
	if p, ok := a.tracker.Get(ag.ID, capabilityID); ok && p.AverageResponseTime > 0 {
		return p.AverageResponseTime
	}
	return defaultEstimatedResponse
}
