// ABOUTME: Store interface and persisted record types for orchestration history.
// ABOUTME: Holds the append-only allocation audit trail and performance snapshots.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Allocation is one entry in the append-only allocation audit trail.
type Allocation struct {
	AgentID               string
	TaskID                string
	Score                 float64
	Strategy              string
	EstimatedResponseTime time.Duration
	EstimatedCost         float64
	Timestamp             time.Time
}

// PerformanceRecord is a persisted snapshot of one (agent, capability)
// pair's rolling stats.
type PerformanceRecord struct {
	AgentID             string
	CapabilityID        string
	TotalTasks          int
	SuccessfulTasks     int
	FailedTasks         int
	TotalExecutionTime  time.Duration
	AverageResponseTime time.Duration
	SuccessRate         float64
	LastUsed            time.Time
}

// Store persists allocation and performance history.
type Store interface {
	// SaveAllocation appends one allocation to the audit trail.
	SaveAllocation(ctx context.Context, a *Allocation) error

	// ListAllocations returns the most recent limit allocations,
	// most-recent-last. limit <= 0 returns everything.
	ListAllocations(ctx context.Context, limit int) ([]*Allocation, error)

	// SavePerformance upserts a performance snapshot for a pair.
	SavePerformance(ctx context.Context, p *PerformanceRecord) error

	// GetPerformance fetches the snapshot for one pair.
	// Returns ErrNotFound if the pair has no history.
	GetPerformance(ctx context.Context, agentID, capabilityID string) (*PerformanceRecord, error)

	// Close releases store resources.
	Close() error
}
