// ABOUTME: Core task types shared by the router, allocator, and protocol.
// ABOUTME: Defines Task, Result, and the four-level Priority scale.

package task

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoCapability is returned when a task is created without a capability id.
var ErrNoCapability = errors.New("capability id is required")

// Priority orders tasks and messages. Higher values are served first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// Weight maps a priority onto the [0,1] scale used by the routing score.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityLow:
		return 0.2
	case PriorityNormal:
		return 0.5
	case PriorityHigh:
		return 0.8
	case PriorityUrgent:
		return 1.0
	default:
		return 0.5
	}
}

// ComplexityFactor scales an agent's base cost by task priority.
// Normal-priority work is cost-neutral.
func (p Priority) ComplexityFactor() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityNormal:
		return 1.0
	case PriorityHigh:
		return 1.5
	case PriorityUrgent:
		return 2.0
	default:
		return 1.0
	}
}

// Task is one request to execute a capability with specific input.
// A Task is immutable once submitted; the queue owns it until delivery.
type Task struct {
	ID           string
	CapabilityID string
	Input        map[string]any
	Priority     Priority
	Timeout      time.Duration
	Metadata     map[string]string
	CreatedAt    time.Time
}

// New creates a task with a generated id.
// Returns ErrNoCapability if capabilityID is empty.
func New(capabilityID string, input map[string]any, priority Priority, timeout time.Duration, metadata map[string]string) (*Task, error) {
	if capabilityID == "" {
		return nil, ErrNoCapability
	}

	return &Task{
		ID:           uuid.New().String(),
		CapabilityID: capabilityID,
		Input:        input,
		Priority:     priority,
		Timeout:      timeout,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}, nil
}

// Result is the outcome of a single execution attempt.
type Result struct {
	TaskID        string
	Success       bool
	Output        map[string]any
	Error         string
	ExecutionTime time.Duration
	AgentID       string
}

// Failed builds a failed Result for a task. Scheduling failures are
// reported this way rather than as errors across the boundary.
func Failed(taskID, agentID, reason string) *Result {
	return &Result{
		TaskID:  taskID,
		Success: false,
		Error:   reason,
		AgentID: agentID,
	}
}
