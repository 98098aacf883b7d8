package supplychain

import (
	"strconv"
	"strings"
)

// Buckets is the number of discrete codes a tier's net position can take
const Buckets = 9

// State is the coded supply chain state, one bucket (1..9) per tier
type State []int

// Action holds one order buffer (the Y of the X+Y rule) per tier
type Action []int

// bucketUpperBounds are the inclusive upper limits of codes 1..8; anything above is code 9
var bucketUpperBounds = [Buckets - 1]int{-6, -3, 0, 3, 6, 10, 15, 20}

// CodeNetPosition maps a tier's inventory minus backlog into its bucket code
func CodeNetPosition(net int) int {
	for i, upper := range bucketUpperBounds {
		if net <= upper {
			return i + 1
		}
	}
	return Buckets
}

// CodeState codes every tier's net position independently
func CodeState(inventory, backlog []int) State {
	state := make(State, len(inventory))
	for i := range inventory {
		state[i] = CodeNetPosition(inventory[i] - backlog[i])
	}
	return state
}

// Key generates a string key for the state (for Q-table indexing)
func (s State) Key() string {
	var b strings.Builder
	for i, code := range s {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(strconv.Itoa(code))
	}
	return b.String()
}

// String implements fmt.Stringer
func (s State) String() string {
	return "(" + strings.ReplaceAll(s.Key(), "-", ", ") + ")"
}

// Equal reports whether both states hold the same codes
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the state
func (s State) Clone() State {
	return append(State(nil), s...)
}

// ParseStateKey is the inverse of State.Key
func ParseStateKey(key string) (State, error) {
	if key == "" {
		return State{}, nil
	}
	parts := strings.Split(key, "-")
	state := make(State, len(parts))
	for i, part := range parts {
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		state[i] = code
	}
	return state, nil
}

// Clone returns an independent copy of the action vector
func (a Action) Clone() Action {
	return append(Action(nil), a...)
}

// StateSpace enumerates every coded state for the given number of tiers.
// Q-tables are filled lazily, so this only documents the size of the space.
func StateSpace(tiers int) []State {
	if tiers <= 0 {
		return nil
	}
	total := 1
	for i := 0; i < tiers; i++ {
		total *= Buckets
	}

	space := make([]State, 0, total)
	current := make(State, tiers)
	for i := range current {
		current[i] = 1
	}
	for {
		space = append(space, current.Clone())

		// odometer increment, last tier fastest
		pos := tiers - 1
		for pos >= 0 && current[pos] == Buckets {
			current[pos] = 1
			pos--
		}
		if pos < 0 {
			return space
		}
		current[pos]++
	}
}
