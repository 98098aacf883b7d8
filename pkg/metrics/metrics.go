package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
)

const namespace = "beergame"

// rewardBuckets cover the episode costs seen on the 35-tick scenarios
var rewardBuckets = prometheus.LinearBuckets(-6000, 500, 13)

// PrometheusMetrics implements training metrics using Prometheus
type PrometheusMetrics struct {
	// Counters
	episodes    *prometheus.CounterVec
	simulations *prometheus.CounterVec

	// Histograms
	episodeRewardDist *prometheus.HistogramVec

	// Gauges
	episodeReward    *prometheus.GaugeVec
	epsilon          *prometheus.GaugeVec
	qTableStates     *prometheus.GaugeVec
	simulationReward *prometheus.GaugeVec

	// Internal tracking
	startTime time.Time
	mu        sync.RWMutex
	stats     map[string]*runStats
}

type runStats struct {
	Episodes         int     `json:"episodes"`
	LastReward       float64 `json:"last_reward"`
	BestReward       float64 `json:"best_reward"`
	Epsilon          float64 `json:"epsilon"`
	QTableStates     []int   `json:"q_table_states,omitempty"`
	SimulationReward float64 `json:"simulation_reward"`
	Simulated        bool    `json:"simulated"`
}

// NewPrometheusMetrics creates the training collectors on the given registerer.
// Pass prometheus.DefaultRegisterer to expose them on the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		episodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Total number of completed training episodes",
		}, []string{"run"}),
		simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Total number of greedy simulation rollouts",
		}, []string{"run"}),
		episodeRewardDist: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "episode_reward_distribution",
			Help:      "Distribution of total episode rewards",
			Buckets:   rewardBuckets,
		}, []string{"run"}),
		episodeReward: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "episode_reward",
			Help:      "Total reward of the most recent training episode",
		}, []string{"run"}),
		epsilon: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "epsilon",
			Help:      "Exploration rate at the start of the most recent episode",
		}, []string{"run"}),
		qTableStates: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "q_table_states",
			Help:      "Number of visited states in each tier's Q-table",
		}, []string{"run", "tier"}),
		simulationReward: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulation_reward",
			Help:      "Total reward of the greedy simulation rollout",
		}, []string{"run"}),
		startTime: time.Now(),
		stats:     make(map[string]*runStats),
	}
}

// ForRun returns a recorder whose observations carry the run label
func (m *PrometheusMetrics) ForRun(run string) rl.Recorder {
	return &runRecorder{run: run, m: m}
}

type runRecorder struct {
	run string
	m   *PrometheusMetrics
}

func (r *runRecorder) ObserveEpisode(episode int, totalReward, epsilon float64) {
	r.m.episodes.WithLabelValues(r.run).Inc()
	r.m.episodeRewardDist.WithLabelValues(r.run).Observe(totalReward)
	r.m.episodeReward.WithLabelValues(r.run).Set(totalReward)
	r.m.epsilon.WithLabelValues(r.run).Set(epsilon)

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.run(r.run)
	if s.Episodes == 0 || totalReward > s.BestReward {
		s.BestReward = totalReward
	}
	s.Episodes = episode + 1
	s.LastReward = totalReward
	s.Epsilon = epsilon
}

func (r *runRecorder) ObserveQTables(states []int) {
	for tier, n := range states {
		r.m.qTableStates.WithLabelValues(r.run, strconv.Itoa(tier)).Set(float64(n))
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.run(r.run).QTableStates = append([]int(nil), states...)
}

func (r *runRecorder) ObserveSimulation(totalReward float64) {
	r.m.simulations.WithLabelValues(r.run).Inc()
	r.m.simulationReward.WithLabelValues(r.run).Set(totalReward)

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.m.run(r.run)
	s.SimulationReward = totalReward
	s.Simulated = true
}

// run must be called with mu held
func (m *PrometheusMetrics) run(name string) *runStats {
	s, ok := m.stats[name]
	if !ok {
		s = &runStats{}
		m.stats[name] = s
	}
	return s
}

// GetStats returns a JSON-friendly summary of every observed run
func (m *PrometheusMetrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make(map[string]runStats, len(m.stats))
	for name, s := range m.stats {
		runs[name] = *s
	}
	return map[string]interface{}{
		"runs":   runs,
		"uptime": time.Since(m.startTime).String(),
	}
}
