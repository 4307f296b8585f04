// ABOUTME: Tests for the SQLite and in-memory stores.
// ABOUTME: Both implementations run the same contract suite.

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "meshwork.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStore_AllocationTrail(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				require.NoError(t, st.SaveAllocation(ctx, &Allocation{
					AgentID:               "agent-a",
					TaskID:                fmt.Sprintf("task-%d", i),
					Score:                 0.8,
					Strategy:              "best_match",
					EstimatedResponseTime: time.Second,
					EstimatedCost:         1.5,
					Timestamp:             time.Now(),
				}))
			}

			all, err := st.ListAllocations(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 5)
			assert.Equal(t, "task-0", all[0].TaskID)
			assert.Equal(t, "task-4", all[4].TaskID)
			assert.Equal(t, time.Second, all[0].EstimatedResponseTime)
			assert.Equal(t, 1.5, all[0].EstimatedCost)

			// Limited listing keeps the most recent, most-recent-last.
			recent, err := st.ListAllocations(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "task-3", recent[0].TaskID)
			assert.Equal(t, "task-4", recent[1].TaskID)
		})
	}
}

func TestStore_PerformanceUpsert(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.GetPerformance(ctx, "agent-a", "summarize")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.SavePerformance(ctx, &PerformanceRecord{
				AgentID:             "agent-a",
				CapabilityID:        "summarize",
				TotalTasks:          1,
				SuccessfulTasks:     1,
				TotalExecutionTime:  time.Second,
				AverageResponseTime: time.Second,
				SuccessRate:         1.0,
				LastUsed:            time.Now(),
			}))

			// Second save for the same pair replaces, not duplicates.
			require.NoError(t, st.SavePerformance(ctx, &PerformanceRecord{
				AgentID:             "agent-a",
				CapabilityID:        "summarize",
				TotalTasks:          2,
				SuccessfulTasks:     1,
				FailedTasks:         1,
				TotalExecutionTime:  3 * time.Second,
				AverageResponseTime: 1500 * time.Millisecond,
				SuccessRate:         0.5,
				LastUsed:            time.Now(),
			}))

			p, err := st.GetPerformance(ctx, "agent-a", "summarize")
			require.NoError(t, err)
			assert.Equal(t, 2, p.TotalTasks)
			assert.Equal(t, 1, p.FailedTasks)
			assert.Equal(t, 1500*time.Millisecond, p.AverageResponseTime)
			assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
		})
	}
}

func TestStore_PairsAreIndependent(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, st.SavePerformance(ctx, &PerformanceRecord{
				AgentID: "agent-a", CapabilityID: "summarize", TotalTasks: 1, SuccessRate: 1.0, LastUsed: time.Now(),
			}))

			_, err := st.GetPerformance(ctx, "agent-a", "review")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = st.GetPerformance(ctx, "agent-b", "summarize")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshwork.db")
	ctx := context.Background()

	st, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, st.SaveAllocation(ctx, &Allocation{
		AgentID: "agent-a", TaskID: "task-1", Strategy: "best_match", Timestamp: time.Now(),
	}))
	require.NoError(t, st.Close())

	st, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer st.Close()

	all, err := st.ListAllocations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "task-1", all[0].TaskID)
}

func TestMemoryStore_CopiesOnReadAndWrite(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	a := &Allocation{AgentID: "agent-a", TaskID: "task-1"}
	require.NoError(t, st.SaveAllocation(ctx, a))
	a.TaskID = "mutated"

	all, err := st.ListAllocations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "task-1", all[0].TaskID)

	all[0].TaskID = "mutated again"
	fresh, err := st.ListAllocations(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "task-1", fresh[0].TaskID)
}
