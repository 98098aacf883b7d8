// Package rl implements independent tabular Q-learning for the beer game:
// one Q-table per tier, epsilon-greedy action selection and a shared scalar
// reward driving every tier's TD update.
package rl

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// ErrInvalidAgentConfig is returned by NewAgent for out-of-range hyperparameters
var ErrInvalidAgentConfig = errors.New("invalid agent configuration")

// AgentConfig holds the Q-learning hyperparameters
type AgentConfig struct {
	Actions       []int   `json:"actions"`
	Tiers         int     `json:"tiers"`
	TimeHorizon   int     `json:"time_horizon"`
	MaxIterations int     `json:"max_iterations"`
	Alpha         float64 `json:"alpha"`         // Learning rate
	Gamma         float64 `json:"gamma"`         // Discount factor
	EpsilonStart  float64 `json:"epsilon_start"` // Exploration rate of the first episode
	EpsilonEnd    float64 `json:"epsilon_end"`   // Episode start rate reached after all episodes
	EpsilonFinal  float64 `json:"epsilon_final"` // Rate reached at the end of each episode
	Seed          int64   `json:"seed"`
}

// DefaultAgentConfig returns the hyperparameters of the reference experiments
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Actions:       []int{0, 1, 2, 3},
		Tiers:         4,
		TimeHorizon:   35,
		MaxIterations: 100,
		Alpha:         0.17,
		Gamma:         1,
		EpsilonStart:  0.98,
		EpsilonEnd:    0.1,
		EpsilonFinal:  0.02,
		Seed:          1,
	}
}

// Validate checks the hyperparameters
func (c AgentConfig) Validate() error {
	var problems []string
	if len(c.Actions) == 0 {
		problems = append(problems, "action set must not be empty")
	}
	if c.Tiers <= 0 {
		problems = append(problems, fmt.Sprintf("tiers must be positive, got %d", c.Tiers))
	}
	if c.TimeHorizon <= 0 {
		problems = append(problems, fmt.Sprintf("time horizon must be positive, got %d", c.TimeHorizon))
	}
	if c.MaxIterations <= 0 {
		problems = append(problems, fmt.Sprintf("max iterations must be positive, got %d", c.MaxIterations))
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		problems = append(problems, fmt.Sprintf("alpha must be in (0,1], got %f", c.Alpha))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		problems = append(problems, fmt.Sprintf("gamma must be in [0,1], got %f", c.Gamma))
	}
	epsilons := []struct {
		name  string
		value float64
	}{
		{"epsilon_start", c.EpsilonStart},
		{"epsilon_end", c.EpsilonEnd},
		{"epsilon_final", c.EpsilonFinal},
	}
	for _, eps := range epsilons {
		if eps.value < 0 || eps.value > 1 {
			problems = append(problems, fmt.Sprintf("%s must be in [0,1], got %f", eps.name, eps.value))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAgentConfig, problems)
	}
	return nil
}

// Recorder receives training progress. pkg/metrics provides the prometheus implementation.
type Recorder interface {
	ObserveEpisode(episode int, totalReward, epsilon float64)
	ObserveQTables(states []int)
	ObserveSimulation(totalReward float64)
}

type noopRecorder struct{}

func (noopRecorder) ObserveEpisode(int, float64, float64) {}
func (noopRecorder) ObserveQTables([]int)                 {}
func (noopRecorder) ObserveSimulation(float64)            {}

// AgentOption configures the Agent
type AgentOption func(*Agent)

// WithRand replaces the seeded random source
func WithRand(rng *rand.Rand) AgentOption {
	return func(a *Agent) {
		a.rng = rng
	}
}

// WithLogger sets the log entry training progress is written to
func WithLogger(entry *logrus.Entry) AgentOption {
	return func(a *Agent) {
		a.log = entry
	}
}

// WithRecorder attaches a training metrics recorder; nil keeps the no-op recorder
func WithRecorder(r Recorder) AgentOption {
	return func(a *Agent) {
		if r != nil {
			a.recorder = r
		}
	}
}

// Agent holds one independent Q-table per tier. It is not safe for concurrent use.
type Agent struct {
	cfg      AgentConfig
	tables   []*QTable
	rng      *rand.Rand
	log      *logrus.Entry
	recorder Recorder
}

// NewAgent creates a new Q-learning agent
func NewAgent(cfg AgentConfig, opts ...AgentOption) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Actions = append([]int(nil), cfg.Actions...)

	a := &Agent{
		cfg:      cfg,
		tables:   make([]*QTable, cfg.Tiers),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		log:      logrus.NewEntry(logrus.StandardLogger()),
		recorder: noopRecorder{},
	}
	for i := range a.tables {
		a.tables[i] = NewQTable()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the agent's hyperparameters
func (a *Agent) Config() AgentConfig {
	cfg := a.cfg
	cfg.Actions = append([]int(nil), a.cfg.Actions...)
	return cfg
}

// ChooseAction selects one action per tier with an epsilon-greedy policy.
// Tiers decide independently and never see each other's choice.
func (a *Agent) ChooseAction(state supplychain.State, epsilon float64) supplychain.Action {
	return a.chooseAction(state, epsilon, a.rng)
}

// ChooseGreedy selects the best known action per tier without exploring
func (a *Agent) ChooseGreedy(state supplychain.State) supplychain.Action {
	return a.chooseAction(state, 0, a.rng)
}

func (a *Agent) chooseAction(state supplychain.State, epsilon float64, rng *rand.Rand) supplychain.Action {
	action := make(supplychain.Action, a.cfg.Tiers)
	for tier, table := range a.tables {
		// Explore: choose a random action
		if rng.Float64() < epsilon {
			action[tier] = a.randomAction(rng)
			continue
		}

		// Exploit: unseen states fall back to a random action
		best, ok := table.BestAction(state)
		if !ok {
			best = a.randomAction(rng)
		}
		action[tier] = best
	}
	return action
}

func (a *Agent) randomAction(rng *rand.Rand) int {
	return a.cfg.Actions[rng.Intn(len(a.cfg.Actions))]
}

// UpdateQ applies the one-step Q-learning rule to every tier's table:
// Q(s,a) = Q(s,a) + α[r + γ*max(Q(s',a')) - Q(s,a)]
// All tiers learn from the same chain-wide reward.
func (a *Agent) UpdateQ(state supplychain.State, action supplychain.Action, reward float64, next supplychain.State) {
	for tier, table := range a.tables {
		maxNext := table.MaxValue(next)
		old, _ := table.Value(state, action[tier])

		tdTarget := reward + a.cfg.Gamma*maxNext
		table.Set(state, action[tier], old+a.cfg.Alpha*(tdTarget-old))
	}
}

// QTables returns deep copies of every tier's table
func (a *Agent) QTables() []*QTable {
	out := make([]*QTable, len(a.tables))
	for i, t := range a.tables {
		out[i] = t.Clone()
	}
	return out
}

// SetQTables replaces the agent's tables, e.g. after loading a saved model
func (a *Agent) SetQTables(tables []*QTable) error {
	if len(tables) != a.cfg.Tiers {
		return fmt.Errorf("%w: %d tables for %d tiers", ErrInvalidAgentConfig, len(tables), a.cfg.Tiers)
	}
	a.tables = make([]*QTable, len(tables))
	for i, t := range tables {
		a.tables[i] = t.Clone()
	}
	return nil
}

// TableSizes returns the number of visited states per tier
func (a *Agent) TableSizes() []int {
	sizes := make([]int, len(a.tables))
	for i, t := range a.tables {
		sizes[i] = t.Len()
	}
	return sizes
}
