package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
	"github.com/TristanKruse/Beer-Game-RL/pkg/config"
	"github.com/TristanKruse/Beer-Game-RL/pkg/logger"
	"github.com/TristanKruse/Beer-Game-RL/pkg/metrics"
	"github.com/TristanKruse/Beer-Game-RL/pkg/report"
	"github.com/TristanKruse/Beer-Game-RL/pkg/storage"
)

const shutdownTimeout = 5 * time.Second

var errInterrupted = errors.New("interrupted")

func main() {
	loader := config.NewLoader(os.Getenv("CONFIG_FILE_PATH")) // or "" for auto-discovery
	cfg, err := loader.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger.Initialize(&cfg.Logging)
	loader.Watch(func(c *config.Config) {
		logger.SetLevel(c.Logging.Level)
	})

	runID := storage.NewRunID()
	log := logger.ForRun(runID, cfg.Environment.Scenario)

	started := time.Now()
	if err := run(cfg, runID, log); err != nil {
		if errors.Is(err, errInterrupted) {
			log.Info("Run abandoned")
			return
		}
		log.Errorf("Run failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Total execution time: %.2f seconds\n", time.Since(started).Seconds())
}

// run owns the metrics server for the whole run so every exit path stops it
func run(cfg *config.Config, runID string, log *logrus.Entry) error {
	m := metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	metricsServer := metrics.NewMetricsServer(&cfg.Metrics, m, prometheus.DefaultGatherer)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Stop(ctx); err != nil {
			log.Errorf("Failed to stop metrics server gracefully: %v", err)
		}
	}()

	params, err := cfg.Params()
	if err != nil {
		return fmt.Errorf("resolve scenario: %w", err)
	}
	env, err := supplychain.NewEnvironment(params)
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}

	if cfg.Training.Mode == config.ModeEvaluate {
		log.Info("Evaluating saved model")
		return evaluate(cfg, env, log, rl.WithLogger(log), rl.WithRecorder(m.ForRun(runID)))
	}

	log.Info("Starting beer game training")
	agent, err := rl.NewAgent(
		cfg.AgentConfig(env.Tiers(), env.Horizon()),
		rl.WithLogger(log),
		rl.WithRecorder(m.ForRun(runID)),
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	result, err := train(agent, env, log)
	if err != nil {
		return err
	}
	return publish(cfg, runID, agent, result, log)
}

// train runs the agent until it finishes or the process is signalled
func train(agent *rl.Agent, env *supplychain.Environment, log *logrus.Entry) (*rl.TrainingResult, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	type outcome struct {
		result *rl.TrainingResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := agent.Train(env)
		done <- outcome{result, err}
	}()

	select {
	case sig := <-sigCh:
		log.Infof("Received signal: %v, abandoning training", sig)
		return nil, errInterrupted
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("training: %w", out.err)
		}
		return out.result, nil
	}
}

// evaluate replays the saved tables greedily on the configured scenario
func evaluate(cfg *config.Config, env *supplychain.Environment, log *logrus.Entry, opts ...rl.AgentOption) error {
	agent, model, err := storage.NewModelStorage(&cfg.Persistence).LoadAgent(opts...)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if agent.Config().Tiers != env.Tiers() {
		return fmt.Errorf("model %s has %d tiers, scenario has %d", model.RunID, agent.Config().Tiers, env.Tiers())
	}

	simulation, err := agent.Simulation(env)
	if err != nil {
		return fmt.Errorf("greedy simulation: %w", err)
	}

	printer := report.NewPrinter(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
	printer.PrintSimulation(simulation)
	log.WithFields(logrus.Fields{
		"model_run_id":      model.RunID,
		"trained_on":        model.Scenario,
		"simulation_reward": simulation.TotalReward(),
	}).Info("Evaluation finished")
	return nil
}

// publish prints, exports and persists the training outcome as configured
func publish(cfg *config.Config, runID string, agent *rl.Agent, result *rl.TrainingResult, log *logrus.Entry) error {
	rewards := rl.CalculateRewards(result.Episodes)

	if cfg.Report.PrintLog {
		printer := report.NewPrinter(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
		printer.PrintLogs(result.Episodes, cfg.Training.ReportEpisodes)
		printer.PrintRewards(rewards)
		printer.PrintSimulation(result.Simulation)
	}

	if cfg.Report.ExportXLSX {
		path := filepath.Join(cfg.Report.OutputDir, runID+".xlsx")
		if err := report.ExportXLSX(path, result, cfg.Training.ReportEpisodes); err != nil {
			return fmt.Errorf("export workbook: %w", err)
		}
		log.WithField("path", path).Info("Workbook exported")
	}

	if cfg.Report.Chart {
		path := filepath.Join(cfg.Report.OutputDir, runID+"_rewards.html")
		title := fmt.Sprintf("Episode rewards (%s)", cfg.Environment.Scenario)
		if err := report.SaveRewardChart(path, title, report.Series{Name: "training", Values: rewards}); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		log.WithField("path", path).Info("Reward chart written")
	}

	if !cfg.Persistence.Enabled {
		return nil
	}

	ms := storage.NewModelStorage(&cfg.Persistence)
	meta := storage.ModelMetadata{
		TrainingEpisodes: len(result.Episodes),
		SimulationReward: result.Simulation.TotalReward(),
	}
	if err := ms.SaveAgent(agent, runID, cfg.Environment.Scenario, meta); err != nil {
		return err
	}

	store, err := storage.OpenRunStore(cfg.Persistence.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	agentCfg := agent.Config()
	record := storage.Run{
		ID:       runID,
		Scenario: cfg.Environment.Scenario,
		Seed:     agentCfg.Seed,
		Alpha:    agentCfg.Alpha,
		Gamma:    agentCfg.Gamma,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.SaveRun(ctx, record, result); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	log.WithField("database", cfg.Persistence.DatabasePath).Info("Run recorded")
	return nil
}
