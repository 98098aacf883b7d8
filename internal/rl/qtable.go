package rl

import (
	"math"
	"sort"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// ActionValue is one recorded Q-value of a state
type ActionValue struct {
	Action int     `json:"action"`
	Value  float64 `json:"value"`
}

// qRow keeps action values together with the order in which actions were first seen,
// so that argmax ties resolve to the earliest recorded action.
type qRow struct {
	order  []int
	values map[int]float64
}

func newQRow() *qRow {
	return &qRow{values: make(map[int]float64)}
}

func (r *qRow) set(action int, value float64) {
	if _, exists := r.values[action]; !exists {
		r.order = append(r.order, action)
	}
	r.values[action] = value
}

// QTable is one tier's sparse action-value function: state key -> action -> value.
// Rows are created lazily on first visit.
type QTable struct {
	rows map[string]*qRow
}

// NewQTable creates an empty Q-table
func NewQTable() *QTable {
	return &QTable{rows: make(map[string]*qRow)}
}

func (q *QTable) row(state supplychain.State) *qRow {
	return q.rows[state.Key()]
}

// EnsureState creates an empty row for the state if it has never been visited
func (q *QTable) EnsureState(state supplychain.State) {
	key := state.Key()
	if _, exists := q.rows[key]; !exists {
		q.rows[key] = newQRow()
	}
}

// EnsureAction initializes Q(state, action) to 0 if not present
func (q *QTable) EnsureAction(state supplychain.State, action int) {
	q.EnsureState(state)
	r := q.row(state)
	if _, exists := r.values[action]; !exists {
		r.set(action, 0)
	}
}

// Value returns Q(state, action) and whether it has been recorded
func (q *QTable) Value(state supplychain.State, action int) (float64, bool) {
	r := q.row(state)
	if r == nil {
		return 0, false
	}
	v, ok := r.values[action]
	return v, ok
}

// Set stores Q(state, action), creating the row if needed
func (q *QTable) Set(state supplychain.State, action int, value float64) {
	q.EnsureState(state)
	q.row(state).set(action, value)
}

// MaxValue returns the highest recorded value of the state, or 0 for an unseen or empty row
func (q *QTable) MaxValue(state supplychain.State) float64 {
	r := q.row(state)
	if r == nil || len(r.order) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, action := range r.order {
		if v := r.values[action]; v > best {
			best = v
		}
	}
	return best
}

// BestAction returns the first-seen action attaining the maximum value.
// ok is false when the state is unseen or has no recorded actions.
func (q *QTable) BestAction(state supplychain.State) (action int, ok bool) {
	r := q.row(state)
	if r == nil || len(r.order) == 0 {
		return 0, false
	}
	best := math.Inf(-1)
	for _, a := range r.order {
		if v := r.values[a]; v > best {
			best = v
			action = a
		}
	}
	return action, true
}

// Len returns the number of visited states
func (q *QTable) Len() int {
	return len(q.rows)
}

// Entries returns the number of recorded state-action values
func (q *QTable) Entries() int {
	total := 0
	for _, r := range q.rows {
		total += len(r.order)
	}
	return total
}

// AverageValue returns the mean of all recorded values
func (q *QTable) AverageValue() float64 {
	total := 0.0
	count := 0
	for _, r := range q.rows {
		for _, v := range r.values {
			total += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// StateKeys returns the visited state keys in sorted order
func (q *QTable) StateKeys() []string {
	keys := make([]string, 0, len(q.rows))
	for key := range q.rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Row returns the recorded values of a state key in first-seen order
func (q *QTable) Row(key string) []ActionValue {
	r, exists := q.rows[key]
	if !exists {
		return nil
	}
	out := make([]ActionValue, 0, len(r.order))
	for _, a := range r.order {
		out = append(out, ActionValue{Action: a, Value: r.values[a]})
	}
	return out
}

// SetRow replaces the row of a state key, preserving the given action order
func (q *QTable) SetRow(key string, values []ActionValue) {
	r := newQRow()
	for _, av := range values {
		r.set(av.Action, av.Value)
	}
	q.rows[key] = r
}

// Snapshot exports the table as state key -> ordered action values
func (q *QTable) Snapshot() map[string][]ActionValue {
	out := make(map[string][]ActionValue, len(q.rows))
	for key := range q.rows {
		out[key] = q.Row(key)
	}
	return out
}

// QTableFromSnapshot rebuilds a table exported with Snapshot
func QTableFromSnapshot(snapshot map[string][]ActionValue) *QTable {
	q := NewQTable()
	for key, values := range snapshot {
		q.SetRow(key, values)
	}
	return q
}

// Clone returns a deep copy of the table
func (q *QTable) Clone() *QTable {
	return QTableFromSnapshot(q.Snapshot())
}

// Equal reports whether both tables hold the same rows, values and action order
func (q *QTable) Equal(other *QTable) bool {
	if q.Len() != other.Len() {
		return false
	}
	for key, r := range q.rows {
		o, exists := other.rows[key]
		if !exists || len(o.order) != len(r.order) {
			return false
		}
		for i, a := range r.order {
			if o.order[i] != a || o.values[a] != r.values[a] {
				return false
			}
		}
	}
	return true
}
