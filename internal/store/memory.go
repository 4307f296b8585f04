// ABOUTME: In-memory Store implementation for testing and store-less deployments
// ABOUTME: Allows the allocator to run without SQLite

package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu          sync.RWMutex
	allocations []*Allocation
	performance map[string]*PerformanceRecord // keyed by "agentID:capabilityID"
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		performance: make(map[string]*PerformanceRecord),
	}
}

// SaveAllocation appends one allocation to the audit trail.
func (m *MemoryStore) SaveAllocation(ctx context.Context, a *Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid external modification
	cp := *a
	m.allocations = append(m.allocations, &cp)
	return nil
}

// ListAllocations returns the most recent limit allocations,
// most-recent-last.
func (m *MemoryStore) ListAllocations(ctx context.Context, limit int) ([]*Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if limit > 0 && len(m.allocations) > limit {
		start = len(m.allocations) - limit
	}

	out := make([]*Allocation, 0, len(m.allocations)-start)
	for _, a := range m.allocations[start:] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// SavePerformance upserts a performance snapshot for a pair.
func (m *MemoryStore) SavePerformance(ctx context.Context, p *PerformanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.performance[p.AgentID+":"+p.CapabilityID] = &cp
	return nil
}

// GetPerformance fetches the snapshot for one pair.
func (m *MemoryStore) GetPerformance(ctx context.Context, agentID, capabilityID string) (*PerformanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.performance[agentID+":"+capabilityID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
