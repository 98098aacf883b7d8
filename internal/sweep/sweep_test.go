package sweep

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/scenario"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

func sweepInputs(t *testing.T) (rl.AgentConfig, supplychain.Params) {
	t.Helper()
	s, err := scenario.Get("main")
	require.NoError(t, err)
	cfg := rl.DefaultAgentConfig()
	cfg.MaxIterations = 8
	return cfg, s.DefaultParams()
}

func TestGridPoints(t *testing.T) {
	points := Grid{Seeds: []int64{1, 2}, Alphas: []float64{0.1, 0.2, 0.3}}.Points()
	require.Len(t, points, 6)
	assert.Equal(t, Point{Index: 0, Seed: 1, Alpha: 0.1}, points[0])
	assert.Equal(t, Point{Index: 4, Seed: 2, Alpha: 0.2}, points[4])
	assert.Empty(t, Grid{Seeds: []int64{1}}.Points())
}

func TestRunMatchesSequentialTraining(t *testing.T) {
	base, params := sweepInputs(t)
	grid := Grid{Seeds: []int64{1, 2, 3}, Alphas: []float64{0.17, 0.3}}

	results, err := Run(context.Background(), base, params, grid, 3)
	require.NoError(t, err)
	require.Len(t, results, 6)

	runIDs := map[string]bool{}
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		runIDs[res.RunID] = true

		cfg := base
		cfg.Seed = res.Seed
		cfg.Alpha = res.Alpha
		assert.Equal(t, cfg, res.Config)

		env, err := supplychain.NewEnvironment(params)
		require.NoError(t, err)
		agent, err := rl.NewAgent(cfg)
		require.NoError(t, err)
		want, err := agent.Train(env)
		require.NoError(t, err)

		assert.Equal(t, rl.CalculateRewards(want.Episodes), res.Rewards(), "point %d", i)
		assert.Equal(t, want.Simulation.TotalReward(), res.SimulationReward(), "point %d", i)
	}
	assert.Len(t, runIDs, 6)
}

func TestRunRecorderPerPoint(t *testing.T) {
	base, params := sweepInputs(t)
	grid := Grid{Seeds: []int64{1, 2}, Alphas: []float64{0.17}}

	var mu sync.Mutex
	seen := map[string]Point{}
	_, err := Run(context.Background(), base, params, grid, 2, WithRecorder(func(runID string, p Point) rl.Recorder {
		mu.Lock()
		defer mu.Unlock()
		seen[runID] = p
		return nil
	}))
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestRunCancelled(t *testing.T) {
	base, params := sweepInputs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, base, params, Grid{Seeds: []int64{1, 2}, Alphas: []float64{0.1}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsBadInput(t *testing.T) {
	base, params := sweepInputs(t)

	_, err := Run(context.Background(), base, params, Grid{}, 2)
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = Run(context.Background(), base, params, Grid{Seeds: []int64{1}, Alphas: []float64{0.1}}, 0)
	assert.Error(t, err)

	_, err = Run(context.Background(), base, params, Grid{Seeds: []int64{1}, Alphas: []float64{1.5}}, 1)
	assert.ErrorIs(t, err, rl.ErrInvalidAgentConfig)
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	mk := func(idx int, reward int) Result {
		return Result{
			Point:    Point{Index: idx},
			Training: &rl.TrainingResult{Simulation: rl.EpisodeLog{{Reward: reward}}},
		}
	}
	best, ok := Best([]Result{mk(0, -30), mk(1, -10), mk(2, -10)})
	require.True(t, ok)
	assert.Equal(t, 1, best.Index)
}
