// ABOUTME: In-memory registry of known agents with status and load counters.
// ABOUTME: Read-mostly; status and counters are mutated only by the lifecycle manager and completion callbacks.

package registry

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAgentExists indicates an agent with the same id is already registered.
var ErrAgentExists = errors.New("agent already registered")

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// Status is the lifecycle state of an agent.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusError
	StatusOffline
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusError:
		return "error"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Tier names an agent's pricing class.
const (
	TierStandard = "standard"
	TierPremium  = "premium"
)

// Agent is one configured, independently executable worker.
type Agent struct {
	ID                 string
	Name               string
	Status             Status
	Capabilities       []string
	CurrentTasks       int
	MaxConcurrentTasks int
	Priority           float64 // static scheduling weight in [0,1]
	Tier               string
	BaseCost           float64 // overrides the tier base cost when > 0
	AutoStart          bool
	LastSeen           time.Time
}

// HasCapability reports whether the agent declares the capability.
func (a *Agent) HasCapability(capabilityID string) bool {
	for _, c := range a.Capabilities {
		if c == capabilityID {
			return true
		}
	}
	return false
}

// Cost returns the agent's base cost, defaulting from its tier.
func (a *Agent) Cost() float64 {
	if a.BaseCost > 0 {
		return a.BaseCost
	}
	if a.Tier == TierPremium {
		return 2.0
	}
	return 1.0
}

// clone returns a copy so callers cannot mutate registry state.
func (a *Agent) clone() *Agent {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	return &cp
}

// Registry tracks all known agents.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an agent. Returns ErrAgentExists if the id is taken.
func (r *Registry) Register(agent *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[agent.ID]; exists {
		return ErrAgentExists
	}
	if agent.MaxConcurrentTasks <= 0 {
		agent.MaxConcurrentTasks = 10
	}
	r.agents[agent.ID] = agent.clone()
	return nil
}

// Unregister removes an agent. Unknown ids are ignored.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// Get retrieves a copy of an agent by id.
func (r *Registry) Get(agentID string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// List returns copies of all agents, ordered by id for deterministic
// iteration.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStatus updates an agent's status and last-seen time.
func (r *Registry) SetStatus(agentID string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	a.Status = status
	a.LastSeen = time.Now()
	return nil
}

// AddLoad adjusts an agent's concurrent-task counter by delta,
// clamping at zero. Called from task start/completion paths only.
func (r *Registry) AddLoad(agentID string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	a.CurrentTasks += delta
	if a.CurrentTasks < 0 {
		a.CurrentTasks = 0
	}
	return nil
}
