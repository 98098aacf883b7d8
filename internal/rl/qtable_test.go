package rl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

func TestQTableLazyInit(t *testing.T) {
	q := NewQTable()
	s := supplychain.State{3, 3, 3, 3}

	_, ok := q.Value(s, 1)
	assert.False(t, ok)
	assert.Equal(t, 0.0, q.MaxValue(s))

	q.EnsureState(s)
	assert.Equal(t, 1, q.Len())
	_, ok = q.BestAction(s)
	assert.False(t, ok, "an empty row has no best action")

	q.EnsureAction(s, 2)
	v, ok := q.Value(s, 2)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	q.Set(s, 2, -4)
	q.EnsureAction(s, 2)
	v, _ = q.Value(s, 2)
	assert.Equal(t, -4.0, v, "EnsureAction must not reset a recorded value")
}

func TestQTableBestActionFirstSeenTie(t *testing.T) {
	q := NewQTable()
	s := supplychain.State{1, 2}

	q.Set(s, 3, -2)
	q.Set(s, 0, -1)
	q.Set(s, 2, -1)
	q.Set(s, 1, -5)

	best, ok := q.BestAction(s)
	require.True(t, ok)
	assert.Equal(t, 0, best)
	assert.Equal(t, -1.0, q.MaxValue(s))

	q.Set(s, 2, 0)
	best, _ = q.BestAction(s)
	assert.Equal(t, 2, best)
}

func TestQTableMaxValueAllNegative(t *testing.T) {
	q := NewQTable()
	s := supplychain.State{9}
	q.Set(s, 0, -30)
	q.Set(s, 1, -12)
	assert.Equal(t, -12.0, q.MaxValue(s))
}

func TestQTableSnapshotRoundTrip(t *testing.T) {
	q := NewQTable()
	q.Set(supplychain.State{1, 1}, 2, -3.5)
	q.Set(supplychain.State{1, 1}, 0, -1)
	q.Set(supplychain.State{4, 5}, 1, 2)
	q.EnsureState(supplychain.State{9, 9})

	restored := QTableFromSnapshot(q.Snapshot())
	assert.True(t, q.Equal(restored))
	assert.Equal(t, []ActionValue{{Action: 2, Value: -3.5}, {Action: 0, Value: -1}}, restored.Row("1-1"))
	assert.Equal(t, []string{"1-1", "4-5", "9-9"}, restored.StateKeys())
	assert.Equal(t, 3, restored.Entries())

	restored.Set(supplychain.State{4, 5}, 1, 7)
	assert.False(t, q.Equal(restored))
}

func TestQTableCloneIsDeep(t *testing.T) {
	q := NewQTable()
	s := supplychain.State{2, 2}
	q.Set(s, 1, 1)

	c := q.Clone()
	c.Set(s, 1, 100)

	v, _ := q.Value(s, 1)
	assert.Equal(t, 1.0, v)
}

func TestQTableAverageValue(t *testing.T) {
	q := NewQTable()
	assert.Equal(t, 0.0, q.AverageValue())
	q.Set(supplychain.State{1}, 0, -2)
	q.Set(supplychain.State{1}, 1, -4)
	q.Set(supplychain.State{2}, 0, 3)
	assert.InDelta(t, -1.0, q.AverageValue(), 1e-9)
}
