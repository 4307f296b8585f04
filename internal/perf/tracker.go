// ABOUTME: Rolling per-(agent, capability) performance statistics.
// ABOUTME: Updated after every execution; read by routing and allocation.

package perf

import (
	"sort"
	"sync"
	"time"
)

// Performance holds the rolling stats for one (agent, capability) pair.
type Performance struct {
	AgentID             string
	CapabilityID        string
	TotalTasks          int
	SuccessfulTasks     int
	FailedTasks         int
	TotalExecutionTime  time.Duration
	AverageResponseTime time.Duration // EMA
	SuccessRate         float64
	LastUsed            time.Time
}

// Tracker records execution outcomes and serves read-only snapshots.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*Performance // keyed by agentID + "\x00" + capabilityID
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*Performance)}
}

func key(agentID, capabilityID string) string {
	return agentID + "\x00" + capabilityID
}

// Record folds one execution outcome into the pair's stats. The first
// sample sets the average response time directly; later samples are
// folded in with NextEMA.
func (t *Tracker) Record(agentID, capabilityID string, elapsed time.Duration, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(agentID, capabilityID)
	p, ok := t.stats[k]
	if !ok {
		p = &Performance{AgentID: agentID, CapabilityID: capabilityID}
		t.stats[k] = p
	}

	hadSamples := p.TotalTasks > 0

	p.TotalTasks++
	if success {
		p.SuccessfulTasks++
	} else {
		p.FailedTasks++
	}
	p.TotalExecutionTime += elapsed
	p.SuccessRate = float64(p.SuccessfulTasks) / float64(p.TotalTasks)
	p.AverageResponseTime = time.Duration(
		NextEMA(p.AverageResponseTime.Seconds(), elapsed.Seconds(), hadSamples) * float64(time.Second))
	p.LastUsed = time.Now()
}

// Get returns a copy of the stats for a pair, and whether any exist.
func (t *Tracker) Get(agentID, capabilityID string) (Performance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.stats[key(agentID, capabilityID)]
	if !ok {
		return Performance{}, false
	}
	return *p, true
}

// Snapshot returns copies of all recorded stats, ordered by agent then
// capability.
func (t *Tracker) Snapshot() []Performance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Performance, 0, len(t.stats))
	for _, p := range t.stats {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgentID != out[j].AgentID {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].CapabilityID < out[j].CapabilityID
	})
	return out
}
