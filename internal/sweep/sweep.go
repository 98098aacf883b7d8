// Package sweep trains independent environment and agent pairs over a grid of
// seeds and learning rates in parallel.
package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// ErrEmptyGrid is returned when the grid has no points
var ErrEmptyGrid = errors.New("sweep grid is empty")

// Grid is the cartesian product of seeds and learning rates
type Grid struct {
	Seeds  []int64
	Alphas []float64
}

// Point is one grid cell; Index orders the results
type Point struct {
	Index int
	Seed  int64
	Alpha float64
}

// Points enumerates the grid seed-major
func (g Grid) Points() []Point {
	points := make([]Point, 0, len(g.Seeds)*len(g.Alphas))
	for _, seed := range g.Seeds {
		for _, alpha := range g.Alphas {
			points = append(points, Point{Index: len(points), Seed: seed, Alpha: alpha})
		}
	}
	return points
}

// Result is the outcome of one grid point
type Result struct {
	Point
	RunID    string
	Config   rl.AgentConfig
	Training *rl.TrainingResult
	Agent    *rl.Agent
}

// Rewards returns the total reward per training episode
func (r Result) Rewards() []float64 {
	return rl.CalculateRewards(r.Training.Episodes)
}

// SimulationReward is the total reward of the greedy rollout
func (r Result) SimulationReward() float64 {
	return r.Training.Simulation.TotalReward()
}

type options struct {
	log      *logrus.Entry
	recorder func(runID string, p Point) rl.Recorder
}

// Option configures Run
type Option func(*options)

// WithLogger sets the entry progress is logged to
func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) {
		o.log = entry
	}
}

// WithRecorder attaches a metrics recorder to every run
func WithRecorder(factory func(runID string, p Point) rl.Recorder) Option {
	return func(o *options) {
		o.recorder = factory
	}
}

// Run trains one agent per grid point with at most workers running at once.
// Results are ordered by point index. The first failure cancels the remaining
// points; cancelling ctx stops dispatching new points.
func Run(ctx context.Context, base rl.AgentConfig, params supplychain.Params, grid Grid, workers int, opts ...Option) ([]Result, error) {
	o := options{log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(&o)
	}

	points := grid.Points()
	if len(points) == 0 {
		return nil, ErrEmptyGrid
	}
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}

	results := make([]Result, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, p := range points {
		if gctx.Err() != nil {
			break
		}
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runPoint(base, params, p, o)
			if err != nil {
				return fmt.Errorf("seed %d alpha %g: %w", p.Seed, p.Alpha, err)
			}
			results[p.Index] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func runPoint(base rl.AgentConfig, params supplychain.Params, p Point, o options) (Result, error) {
	cfg := base
	cfg.Actions = append([]int(nil), base.Actions...)
	cfg.Seed = p.Seed
	cfg.Alpha = p.Alpha

	env, err := supplychain.NewEnvironment(params)
	if err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	log := o.log.WithFields(logrus.Fields{
		"run_id": runID,
		"seed":   p.Seed,
		"alpha":  p.Alpha,
	})

	agentOpts := []rl.AgentOption{rl.WithLogger(log)}
	if o.recorder != nil {
		agentOpts = append(agentOpts, rl.WithRecorder(o.recorder(runID, p)))
	}
	agent, err := rl.NewAgent(cfg, agentOpts...)
	if err != nil {
		return Result{}, err
	}

	training, err := agent.Train(env)
	if err != nil {
		return Result{}, err
	}

	log.WithField("simulation_reward", training.Simulation.TotalReward()).Info("Sweep point finished")
	return Result{
		Point:    p,
		RunID:    runID,
		Config:   agent.Config(),
		Training: training,
		Agent:    agent,
	}, nil
}

// Best returns the result with the highest simulation reward; ties keep the lowest index
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.SimulationReward() > best.SimulationReward() {
			best = r
		}
	}
	return best, true
}
