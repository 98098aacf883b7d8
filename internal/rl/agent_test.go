package rl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

func newTestAgent(t *testing.T, mutate func(*AgentConfig)) *Agent {
	t.Helper()
	cfg := DefaultAgentConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	agent, err := NewAgent(cfg)
	require.NoError(t, err)
	return agent
}

func TestAgentConfigValidate(t *testing.T) {
	require.NoError(t, DefaultAgentConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*AgentConfig)
	}{
		{"no actions", func(c *AgentConfig) { c.Actions = nil }},
		{"no tiers", func(c *AgentConfig) { c.Tiers = 0 }},
		{"no horizon", func(c *AgentConfig) { c.TimeHorizon = 0 }},
		{"no iterations", func(c *AgentConfig) { c.MaxIterations = -1 }},
		{"alpha zero", func(c *AgentConfig) { c.Alpha = 0 }},
		{"alpha above one", func(c *AgentConfig) { c.Alpha = 1.5 }},
		{"gamma negative", func(c *AgentConfig) { c.Gamma = -0.1 }},
		{"epsilon above one", func(c *AgentConfig) { c.EpsilonStart = 2 }},
		{"epsilon negative", func(c *AgentConfig) { c.EpsilonFinal = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultAgentConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidAgentConfig)

			_, err = NewAgent(cfg)
			assert.ErrorIs(t, err, ErrInvalidAgentConfig)
		})
	}
}

func TestUpdateQFirstVisit(t *testing.T) {
	agent := newTestAgent(t, nil)
	s := supplychain.State{3, 3, 3, 3}
	next := supplychain.State{2, 2, 2, 2}
	action := supplychain.Action{1, 0, 3, 2}

	agent.UpdateQ(s, action, -24, next)

	for tier, table := range agent.QTables() {
		v, ok := table.Value(s, action[tier])
		require.True(t, ok)
		assert.InDelta(t, 0.17*-24, v, 1e-9, "tier %d", tier)
	}
}

func TestUpdateQBootstrapsFromNextState(t *testing.T) {
	agent := newTestAgent(t, func(c *AgentConfig) {
		c.Tiers = 1
		c.Alpha = 0.5
		c.Gamma = 0.9
	})
	s := supplychain.State{4}
	next := supplychain.State{5}

	tables := agent.QTables()
	tables[0].Set(s, 1, -10)
	tables[0].Set(next, 0, -4)
	tables[0].Set(next, 2, -2)
	require.NoError(t, agent.SetQTables(tables))

	agent.UpdateQ(s, supplychain.Action{1}, -6, next)

	// -10 + 0.5 * (-6 + 0.9*-2 - -10)
	v, _ := agent.QTables()[0].Value(s, 1)
	assert.InDelta(t, -8.9, v, 1e-9)
}

func TestUpdateQZeroRewardTerminal(t *testing.T) {
	agent := newTestAgent(t, func(c *AgentConfig) { c.Tiers = 1 })
	s := supplychain.State{1}

	tables := agent.QTables()
	tables[0].Set(s, 0, 10)
	require.NoError(t, agent.SetQTables(tables))

	agent.UpdateQ(s, supplychain.Action{0}, 0, supplychain.State{9})

	v, _ := agent.QTables()[0].Value(s, 0)
	assert.InDelta(t, 8.3, v, 1e-9)
}

func TestChooseActionUnseenStateStaysInActionSet(t *testing.T) {
	agent := newTestAgent(t, func(c *AgentConfig) { c.Actions = []int{0, 2, 5} })
	for i := 0; i < 200; i++ {
		action := agent.ChooseAction(supplychain.State{7, 7, 7, 7}, 0)
		require.Len(t, action, 4)
		for _, a := range action {
			assert.Contains(t, []int{0, 2, 5}, a)
		}
	}
}

func TestChooseActionExploresWithEpsilonOne(t *testing.T) {
	agent := newTestAgent(t, func(c *AgentConfig) { c.Tiers = 1 })
	s := supplychain.State{5}
	tables := agent.QTables()
	tables[0].Set(s, 3, 100)
	require.NoError(t, agent.SetQTables(tables))

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		seen[agent.ChooseAction(s, 1)[0]] = true
	}
	assert.Len(t, seen, 4)
}

func TestChooseGreedyFollowsTable(t *testing.T) {
	agent := newTestAgent(t, func(c *AgentConfig) { c.Tiers = 2 })
	s := supplychain.State{4, 6}
	tables := agent.QTables()
	tables[0].Set(s, 2, -1)
	tables[0].Set(s, 3, -5)
	tables[1].Set(s, 0, -7)
	tables[1].Set(s, 1, -7)
	require.NoError(t, agent.SetQTables(tables))

	for i := 0; i < 20; i++ {
		assert.Equal(t, supplychain.Action{2, 0}, agent.ChooseGreedy(s))
	}
}

func TestWithRandIsUsed(t *testing.T) {
	cfg := DefaultAgentConfig()
	a, err := NewAgent(cfg, WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)
	b, err := NewAgent(cfg, WithRand(rand.New(rand.NewSource(42))))
	require.NoError(t, err)

	s := supplychain.State{1, 1, 1, 1}
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.ChooseAction(s, 0.5), b.ChooseAction(s, 0.5))
	}
}

func TestSetQTablesRejectsWrongTierCount(t *testing.T) {
	agent := newTestAgent(t, nil)
	err := agent.SetQTables([]*QTable{NewQTable()})
	assert.ErrorIs(t, err, ErrInvalidAgentConfig)
}

func TestQTablesAreCopies(t *testing.T) {
	agent := newTestAgent(t, nil)
	tables := agent.QTables()
	tables[0].Set(supplychain.State{1, 1, 1, 1}, 0, 5)
	assert.Equal(t, []int{0, 0, 0, 0}, agent.TableSizes())
}

func TestConfigReturnsCopy(t *testing.T) {
	agent := newTestAgent(t, nil)
	cfg := agent.Config()
	cfg.Actions[0] = 99
	assert.Equal(t, []int{0, 1, 2, 3}, agent.Config().Actions)
}
