// ABOUTME: Tests for the agent registry.
// ABOUTME: Covers registration, status changes, load counters, and copy semantics.

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()

	err := r.Register(&Agent{ID: "agent-1", Name: "one", Capabilities: []string{"summarize"}})
	require.NoError(t, err)

	a, ok := r.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "one", a.Name)
	assert.Equal(t, 10, a.MaxConcurrentTasks) // defaulted

	err = r.Register(&Agent{ID: "agent-1"})
	assert.ErrorIs(t, err, ErrAgentExists)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Agent{ID: "agent-1", Capabilities: []string{"summarize"}}))

	a, _ := r.Get("agent-1")
	a.Status = StatusError
	a.Capabilities[0] = "mutated"

	fresh, _ := r.Get("agent-1")
	assert.Equal(t, StatusStopped, fresh.Status)
	assert.Equal(t, "summarize", fresh.Capabilities[0])
}

func TestRegistry_ListOrderedByID(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Agent{ID: "charlie"}))
	require.NoError(t, r.Register(&Agent{ID: "alpha"}))
	require.NoError(t, r.Register(&Agent{ID: "bravo"}))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "bravo", list[1].ID)
	assert.Equal(t, "charlie", list[2].ID)
}

func TestRegistry_SetStatus(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Agent{ID: "agent-1"}))

	require.NoError(t, r.SetStatus("agent-1", StatusRunning))
	a, _ := r.Get("agent-1")
	assert.Equal(t, StatusRunning, a.Status)
	assert.False(t, a.LastSeen.IsZero())

	assert.ErrorIs(t, r.SetStatus("ghost", StatusRunning), ErrAgentNotFound)
}

func TestRegistry_AddLoadClampsAtZero(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Agent{ID: "agent-1"}))

	require.NoError(t, r.AddLoad("agent-1", 2))
	require.NoError(t, r.AddLoad("agent-1", -5))

	a, _ := r.Get("agent-1")
	assert.Equal(t, 0, a.CurrentTasks)
}

func TestAgent_Cost(t *testing.T) {
	assert.Equal(t, 1.0, (&Agent{Tier: TierStandard}).Cost())
	assert.Equal(t, 2.0, (&Agent{Tier: TierPremium}).Cost())
	assert.Equal(t, 3.5, (&Agent{Tier: TierPremium, BaseCost: 3.5}).Cost())
	assert.Equal(t, 1.0, (&Agent{}).Cost()) // unset tier is standard
}
