package rl

import "github.com/TristanKruse/Beer-Game-RL/internal/supplychain"

// LogEntry records one tick for reporting. Reward is the reward of the previous
// step (0 on the first tick); Demand is 0 on the terminal entry.
type LogEntry struct {
	State     supplychain.State  `json:"state"`
	Action    supplychain.Action `json:"action"`
	Reward    int                `json:"reward"`
	Demand    int                `json:"demand"`
	Inventory []int              `json:"inventory"`
	Backlog   []int              `json:"backlog"`
}

// EpisodeLog is the ordered record of one episode, terminal entry included
type EpisodeLog []LogEntry

// TotalReward sums the rewards of the episode
func (l EpisodeLog) TotalReward() float64 {
	total := 0.0
	for _, entry := range l {
		total += float64(entry.Reward)
	}
	return total
}

// TrainingResult is returned by Agent.Train
type TrainingResult struct {
	Episodes       []EpisodeLog `json:"episodes"`
	EpisodeEpsilon []float64    `json:"episode_epsilon"`
	Simulation     EpisodeLog   `json:"simulation"`
}

// CalculateRewards returns the total reward of every episode
func CalculateRewards(logs []EpisodeLog) []float64 {
	rewards := make([]float64, len(logs))
	for i, l := range logs {
		rewards[i] = l.TotalReward()
	}
	return rewards
}

// LastEpisodes returns up to n of the most recent episode logs
func LastEpisodes(logs []EpisodeLog, n int) []EpisodeLog {
	if n <= 0 {
		return nil
	}
	if n > len(logs) {
		n = len(logs)
	}
	return logs[len(logs)-n:]
}
