package config

import (
	"github.com/spf13/viper"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/scenario"
)

// setDefaults configures default values for all configuration parameters
func setDefaults(v *viper.Viper) {
	agent := rl.DefaultAgentConfig()

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Environment defaults
	v.SetDefault("environment.scenario", "main")
	v.SetDefault("environment.initial_inventory", scenario.InitialInventory)
	v.SetDefault("environment.holding_costs", scenario.HoldingCosts)
	v.SetDefault("environment.penalty_costs", scenario.PenaltyCosts)

	// Q-Learning defaults
	v.SetDefault("agent.actions", scenario.Actions)
	v.SetDefault("agent.alpha", agent.Alpha)
	v.SetDefault("agent.gamma", agent.Gamma)
	v.SetDefault("agent.epsilon_start", agent.EpsilonStart)
	v.SetDefault("agent.epsilon_end", agent.EpsilonEnd)
	v.SetDefault("agent.epsilon_final", agent.EpsilonFinal)
	v.SetDefault("agent.seed", agent.Seed)

	v.SetDefault("training.mode", ModeTrain)
	v.SetDefault("training.max_iterations", agent.MaxIterations)
	v.SetDefault("training.report_episodes", 1)

	// Persistence defaults
	v.SetDefault("persistence.enabled", false)
	v.SetDefault("persistence.models_path", "./models")
	v.SetDefault("persistence.model_name", "beergame")
	v.SetDefault("persistence.backup_count", 5)
	v.SetDefault("persistence.database_path", "./data/runs.db")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Report defaults
	v.SetDefault("report.output_dir", "./reports")
	v.SetDefault("report.print_log", true)
	v.SetDefault("report.export_xlsx", false)
	v.SetDefault("report.chart", false)

	// Sweep defaults
	v.SetDefault("sweep.seeds", []int64{1, 2, 3, 4})
	v.SetDefault("sweep.alphas", []float64{0.1, agent.Alpha, 0.3})
	v.SetDefault("sweep.workers", 4)
}
