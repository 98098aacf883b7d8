package rl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanKruse/Beer-Game-RL/internal/scenario"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

func newScenarioEnv(t *testing.T, name string) *supplychain.Environment {
	t.Helper()
	s, err := scenario.Get(name)
	require.NoError(t, err)
	env, err := supplychain.NewEnvironment(s.DefaultParams())
	require.NoError(t, err)
	return env
}

func smallConfig() AgentConfig {
	cfg := DefaultAgentConfig()
	cfg.MaxIterations = 25
	return cfg
}

type countingRecorder struct {
	episodes    []int
	epsilons    []float64
	tableSizes  []int
	simulations int
}

func (r *countingRecorder) ObserveEpisode(episode int, _ float64, epsilon float64) {
	r.episodes = append(r.episodes, episode)
	r.epsilons = append(r.epsilons, epsilon)
}

func (r *countingRecorder) ObserveQTables(states []int) { r.tableSizes = states }
func (r *countingRecorder) ObserveSimulation(float64)   { r.simulations++ }

func TestEpsilonSchedule(t *testing.T) {
	s := newEpsilonSchedule(DefaultAgentConfig())

	assert.InDelta(t, 0.98, s.episodeStart(0), 1e-12)
	assert.InDelta(t, 0.98-50*0.88/100, s.episodeStart(50), 1e-12)
	assert.InDelta(t, 0.1, s.episodeStart(100), 1e-12)

	start := s.episodeStart(10)
	assert.InDelta(t, start, s.at(start, 0), 1e-12)
	assert.InDelta(t, 0.02, s.at(start, 35), 1e-12)
	assert.Less(t, s.at(start, 20), s.at(start, 10))
}

func TestTrainLogShape(t *testing.T) {
	env := newScenarioEnv(t, "main")
	rec := &countingRecorder{}
	agent, err := NewAgent(smallConfig(), WithRecorder(rec))
	require.NoError(t, err)

	result, err := agent.Train(env)
	require.NoError(t, err)

	require.Len(t, result.Episodes, 25)
	require.Len(t, result.EpisodeEpsilon, 25)
	assert.InDelta(t, 0.98, result.EpisodeEpsilon[0], 1e-12)

	for i, episode := range append(result.Episodes, result.Simulation) {
		require.Len(t, episode, 36, "episode %d", i)
		assert.Equal(t, 0, episode[0].Reward)
		assert.Equal(t, 0, episode[35].Demand)
		assert.Equal(t, 15, episode[0].Demand)
		assert.Equal(t, supplychain.State{7, 7, 7, 7}, episode[0].State)
		for _, entry := range episode {
			assert.LessOrEqual(t, entry.Reward, 0)
			assert.Len(t, entry.Action, 4)
		}
	}

	assert.Len(t, rec.episodes, 25)
	assert.Equal(t, 1, rec.simulations)
	assert.Equal(t, agent.TableSizes(), rec.tableSizes)
	for _, size := range agent.TableSizes() {
		assert.Positive(t, size)
	}
}

func TestTrainIsDeterministicForSeed(t *testing.T) {
	run := func() (*Agent, *TrainingResult) {
		agent, err := NewAgent(smallConfig())
		require.NoError(t, err)
		result, err := agent.Train(newScenarioEnv(t, "test1"))
		require.NoError(t, err)
		return agent, result
	}

	a, ra := run()
	b, rb := run()

	assert.Equal(t, CalculateRewards(ra.Episodes), CalculateRewards(rb.Episodes))
	assert.Equal(t, ra.Simulation, rb.Simulation)
	ta, tb := a.QTables(), b.QTables()
	for i := range ta {
		assert.True(t, ta[i].Equal(tb[i]), "tier %d", i)
	}
}

func TestSimulationReplaysIdentically(t *testing.T) {
	env := newScenarioEnv(t, "main")
	agent, err := NewAgent(smallConfig())
	require.NoError(t, err)
	result, err := agent.Train(env)
	require.NoError(t, err)

	again, err := agent.Simulation(env)
	require.NoError(t, err)
	assert.Equal(t, result.Simulation, again)
}

func TestSimulationLogMatchesEnvironment(t *testing.T) {
	env := newScenarioEnv(t, "test2")
	agent, err := NewAgent(smallConfig())
	require.NoError(t, err)
	result, err := agent.Train(env)
	require.NoError(t, err)

	replay := newScenarioEnv(t, "test2")
	replay.Reset()
	log := result.Simulation
	for tick := 0; tick < 35; tick++ {
		state, reward, err := replay.Step(log[tick].Action)
		require.NoError(t, err)
		assert.Equal(t, log[tick+1].State, state, "tick %d", tick)
		assert.Equal(t, log[tick+1].Reward, reward, "tick %d", tick)
		assert.Equal(t, log[tick+1].Inventory, replay.Inventory(), "tick %d", tick)
	}
}

func TestSimulationDoesNotLearn(t *testing.T) {
	env := newScenarioEnv(t, "main")
	agent, err := NewAgent(smallConfig())
	require.NoError(t, err)
	_, err = agent.Train(env)
	require.NoError(t, err)

	before := agent.QTables()
	_, err = agent.Simulation(env)
	require.NoError(t, err)
	for i, table := range agent.QTables() {
		assert.True(t, before[i].Equal(table), "tier %d", i)
	}
}

func TestTrainHorizonMismatch(t *testing.T) {
	cfg := smallConfig()
	cfg.TimeHorizon = 40
	agent, err := NewAgent(cfg)
	require.NoError(t, err)

	_, err = agent.Train(newScenarioEnv(t, "main"))
	assert.ErrorIs(t, err, supplychain.ErrHorizonExceeded)
}

func TestCalculateRewardsAndLastEpisodes(t *testing.T) {
	logs := []EpisodeLog{
		{{Reward: 0}, {Reward: -3}, {Reward: -4}},
		{{Reward: 0}, {Reward: -1}},
		{{Reward: -10}},
	}
	assert.Equal(t, []float64{-7, -1, -10}, CalculateRewards(logs))
	assert.Len(t, LastEpisodes(logs, 2), 2)
	assert.Equal(t, -10.0, LastEpisodes(logs, 1)[0].TotalReward())
	assert.Len(t, LastEpisodes(logs, 10), 3)
	assert.Nil(t, LastEpisodes(logs, 0))
}
