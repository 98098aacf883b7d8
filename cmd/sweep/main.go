package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/sweep"
	"github.com/TristanKruse/Beer-Game-RL/pkg/config"
	"github.com/TristanKruse/Beer-Game-RL/pkg/logger"
	"github.com/TristanKruse/Beer-Game-RL/pkg/metrics"
	"github.com/TristanKruse/Beer-Game-RL/pkg/report"
	"github.com/TristanKruse/Beer-Game-RL/pkg/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE_PATH"))
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.Initialize(&cfg.Logging)
	log := logger.Component("sweep").WithField("scenario", cfg.Environment.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	if err := run(ctx, cfg, log); err != nil {
		log.Errorf("Sweep failed: %v", err)
		stop()
		os.Exit(1)
	}
	fmt.Printf("Total execution time: %.2f seconds\n", time.Since(started).Seconds())
}

// run owns the metrics server for the whole sweep so every exit path stops it
func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	m := metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	metricsServer := metrics.NewMetricsServer(&cfg.Metrics, m, prometheus.DefaultGatherer)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Stop(shutdownCtx)
	}()

	params, err := cfg.Params()
	if err != nil {
		return fmt.Errorf("resolve scenario: %w", err)
	}
	base := cfg.AgentConfig(len(params.InitialInventory), len(params.CustomerDemand))
	grid := sweep.Grid{Seeds: cfg.Sweep.Seeds, Alphas: cfg.Sweep.Alphas}

	log.WithFields(logrus.Fields{
		"points":  len(grid.Points()),
		"workers": cfg.Sweep.Workers,
	}).Info("Starting sweep")

	results, err := sweep.Run(ctx, base, params, grid, cfg.Sweep.Workers,
		sweep.WithLogger(log),
		sweep.WithRecorder(func(runID string, _ sweep.Point) rl.Recorder {
			return m.ForRun(runID)
		}),
	)
	if err != nil {
		return err
	}

	printSummary(results, isatty.IsTerminal(os.Stdout.Fd()))

	if cfg.Report.Chart {
		series := make([]report.Series, len(results))
		for i, r := range results {
			series[i] = report.Series{Name: fmt.Sprintf("seed %d alpha %g", r.Seed, r.Alpha), Values: r.Rewards()}
		}
		path := filepath.Join(cfg.Report.OutputDir, "sweep_rewards.html")
		if err := report.SaveRewardChart(path, "Sweep episode rewards", series...); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
	}

	if cfg.Persistence.Enabled {
		if err := persist(ctx, cfg, results, log); err != nil {
			return fmt.Errorf("persist sweep: %w", err)
		}
	}
	return nil
}

func printSummary(results []sweep.Result, colors bool) {
	au := aurora.NewAurora(colors)
	best, _ := sweep.Best(results)

	fmt.Println(au.Bold(fmt.Sprintf("%6s %8s %12s %12s  %s", "Seed", "Alpha", "Best ep.", "Simulation", "Run")))
	for _, r := range results {
		bestEpisode := r.Rewards()[0]
		for _, v := range r.Rewards() {
			bestEpisode = max(bestEpisode, v)
		}
		line := fmt.Sprintf("%6d %8.3f %12.0f %12.0f  %s", r.Seed, r.Alpha, bestEpisode, r.SimulationReward(), r.RunID)
		if r.Index == best.Index {
			fmt.Println(au.Green(line))
		} else {
			fmt.Println(line)
		}
	}
}

// persist records every run and saves the best agent as the current model
func persist(ctx context.Context, cfg *config.Config, results []sweep.Result, log *logrus.Entry) error {
	store, err := storage.OpenRunStore(cfg.Persistence.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, r := range results {
		run := storage.Run{
			ID:       r.RunID,
			Scenario: cfg.Environment.Scenario,
			Seed:     r.Seed,
			Alpha:    r.Alpha,
			Gamma:    r.Config.Gamma,
		}
		if err := store.SaveRun(ctx, run, r.Training); err != nil {
			return fmt.Errorf("record run %s: %w", r.RunID, err)
		}
	}

	best, ok := sweep.Best(results)
	if !ok {
		return nil
	}
	meta := storage.ModelMetadata{
		TrainingEpisodes: len(best.Training.Episodes),
		SimulationReward: best.SimulationReward(),
	}
	if err := storage.NewModelStorage(&cfg.Persistence).SaveAgent(best.Agent, best.RunID, cfg.Environment.Scenario, meta); err != nil {
		return err
	}
	log.WithField("run_id", best.RunID).Info("Best sweep agent saved")
	return nil
}
