package rl

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// Environment is the part of the supply chain the trainer drives.
// Inventory and Backlog must return copies since the log keeps them.
type Environment interface {
	Reset() supplychain.State
	Step(action supplychain.Action) (supplychain.State, int, error)
	Demand(t int) int
	Inventory() []int
	Backlog() []int
}

// epsilonSchedule linearly anneals exploration across episodes and within each episode
type epsilonSchedule struct {
	start    float64
	end      float64
	final    float64
	episodes int
	horizon  int
}

func newEpsilonSchedule(cfg AgentConfig) epsilonSchedule {
	return epsilonSchedule{
		start:    cfg.EpsilonStart,
		end:      cfg.EpsilonEnd,
		final:    cfg.EpsilonFinal,
		episodes: cfg.MaxIterations,
		horizon:  cfg.TimeHorizon,
	}
}

// episodeStart is the exploration rate at the first tick of the given episode
func (s epsilonSchedule) episodeStart(episode int) float64 {
	return s.start - float64(episode)*(s.start-s.end)/float64(s.episodes)
}

// at is the exploration rate at the given tick of an episode starting at episodeStart
func (s epsilonSchedule) at(episodeStart float64, tick int) float64 {
	return episodeStart - float64(tick)*(episodeStart-s.final)/float64(s.horizon)
}

// Train runs MaxIterations learning episodes followed by one greedy rollout
func (a *Agent) Train(env Environment) (*TrainingResult, error) {
	schedule := newEpsilonSchedule(a.cfg)
	result := &TrainingResult{
		Episodes:       make([]EpisodeLog, 0, a.cfg.MaxIterations),
		EpisodeEpsilon: make([]float64, 0, a.cfg.MaxIterations),
	}

	started := time.Now()
	a.log.WithFields(logrus.Fields{
		"episodes": a.cfg.MaxIterations,
		"horizon":  a.cfg.TimeHorizon,
		"alpha":    a.cfg.Alpha,
		"gamma":    a.cfg.Gamma,
		"seed":     a.cfg.Seed,
	}).Info("Starting Q-learning training")

	for episode := 0; episode < a.cfg.MaxIterations; episode++ {
		epsilon := schedule.episodeStart(episode)
		episodeLog, err := a.runEpisode(env, schedule, epsilon)
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", episode, err)
		}

		total := episodeLog.TotalReward()
		result.Episodes = append(result.Episodes, episodeLog)
		result.EpisodeEpsilon = append(result.EpisodeEpsilon, epsilon)
		a.recorder.ObserveEpisode(episode, total, epsilon)

		a.log.WithFields(logrus.Fields{
			"episode": episode + 1,
			"reward":  total,
			"epsilon": epsilon,
		}).Debug("Episode completed")
	}
	a.recorder.ObserveQTables(a.TableSizes())

	simulation, err := a.Simulation(env)
	if err != nil {
		return nil, fmt.Errorf("greedy simulation: %w", err)
	}
	result.Simulation = simulation

	a.log.WithFields(logrus.Fields{
		"duration":          time.Since(started).String(),
		"q_table_states":    a.TableSizes(),
		"simulation_reward": simulation.TotalReward(),
	}).Info("Q-learning training finished")

	return result, nil
}

// runEpisode plays one learning episode: select, log, step, update, advance
func (a *Agent) runEpisode(env Environment, schedule epsilonSchedule, episodeStart float64) (EpisodeLog, error) {
	state := env.Reset()
	episodeLog := make(EpisodeLog, 0, a.cfg.TimeHorizon+1)

	reward := 0
	var action supplychain.Action
	for t := 0; t < a.cfg.TimeHorizon; t++ {
		action = a.ChooseAction(state, schedule.at(episodeStart, t))
		episodeLog = append(episodeLog, a.snapshot(env, state, action, reward, env.Demand(t)))

		next, r, err := env.Step(action)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", t, err)
		}
		reward = r

		// record first visits before updating so argmax ties follow visit order
		for tier, table := range a.tables {
			table.EnsureAction(state, action[tier])
			table.EnsureState(next)
		}

		a.UpdateQ(state, action, float64(reward), next)
		state = next
	}

	return append(episodeLog, a.snapshot(env, state, action, reward, 0)), nil
}

// Simulation plays one greedy episode on the learned tables without learning.
// Unseen states draw from a source re-seeded with the agent seed, so repeated
// rollouts on the same tables are identical.
func (a *Agent) Simulation(env Environment) (EpisodeLog, error) {
	rng := rand.New(rand.NewSource(a.cfg.Seed))
	state := env.Reset()
	simulationLog := make(EpisodeLog, 0, a.cfg.TimeHorizon+1)

	reward := 0
	var action supplychain.Action
	for t := 0; t < a.cfg.TimeHorizon; t++ {
		action = a.chooseAction(state, 0, rng)
		simulationLog = append(simulationLog, a.snapshot(env, state, action, reward, env.Demand(t)))

		next, r, err := env.Step(action)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", t, err)
		}
		reward = r
		state = next
	}

	simulationLog = append(simulationLog, a.snapshot(env, state, action, reward, 0))
	a.recorder.ObserveSimulation(simulationLog.TotalReward())
	return simulationLog, nil
}

func (a *Agent) snapshot(env Environment, state supplychain.State, action supplychain.Action, reward, demand int) LogEntry {
	return LogEntry{
		State:     state.Clone(),
		Action:    action.Clone(),
		Reward:    reward,
		Demand:    demand,
		Inventory: env.Inventory(),
		Backlog:   env.Backlog(),
	}
}
