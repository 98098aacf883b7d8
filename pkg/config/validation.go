package config

import (
	"fmt"
	"strings"

	"github.com/TristanKruse/Beer-Game-RL/internal/scenario"
)

// Validate performs validation checks on the configuration and reports every problem found
func (c *Config) Validate() error {
	var validationErrors []string

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		validationErrors = append(validationErrors, fmt.Sprintf("invalid logging level: %s", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		validationErrors = append(validationErrors, fmt.Sprintf("invalid logging format: %s (must be 'json' or 'text')", c.Logging.Format))
	}

	// Environment
	if _, err := scenario.Get(c.Environment.Scenario); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}
	tiers := len(c.Environment.InitialInventory)
	if tiers == 0 {
		validationErrors = append(validationErrors, "initial inventory must not be empty")
	}
	if len(c.Environment.HoldingCosts) != tiers || len(c.Environment.PenaltyCosts) != tiers {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"per-tier vectors differ in length: inventory %d, holding %d, penalty %d",
			tiers, len(c.Environment.HoldingCosts), len(c.Environment.PenaltyCosts)))
	}

	// Agent
	if len(c.Agent.Actions) == 0 {
		validationErrors = append(validationErrors, "agent action set must not be empty")
	}
	if c.Agent.Alpha <= 0 || c.Agent.Alpha > 1 {
		validationErrors = append(validationErrors, fmt.Sprintf("alpha must be in (0,1], got %f", c.Agent.Alpha))
	}
	if c.Agent.Gamma < 0 || c.Agent.Gamma > 1 {
		validationErrors = append(validationErrors, fmt.Sprintf("gamma must be in [0,1], got %f", c.Agent.Gamma))
	}
	for _, eps := range []struct {
		name  string
		value float64
	}{
		{"epsilon_start", c.Agent.EpsilonStart},
		{"epsilon_end", c.Agent.EpsilonEnd},
		{"epsilon_final", c.Agent.EpsilonFinal},
	} {
		if eps.value < 0 || eps.value > 1 {
			validationErrors = append(validationErrors, fmt.Sprintf("%s must be in [0,1], got %f", eps.name, eps.value))
		}
	}

	// Training
	if c.Training.Mode != ModeTrain && c.Training.Mode != ModeEvaluate {
		validationErrors = append(validationErrors, fmt.Sprintf("invalid training mode: %s (must be '%s' or '%s')", c.Training.Mode, ModeTrain, ModeEvaluate))
	}
	if c.Training.Mode == ModeEvaluate && (c.Persistence.ModelsPath == "" || c.Persistence.ModelName == "") {
		validationErrors = append(validationErrors, "evaluate mode needs persistence models_path and model_name")
	}
	if c.Training.MaxIterations <= 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("max iterations must be positive, got %d", c.Training.MaxIterations))
	}
	if c.Training.ReportEpisodes < 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("report episodes cannot be negative, got %d", c.Training.ReportEpisodes))
	}

	// Persistence
	if c.Persistence.Enabled {
		if c.Persistence.ModelsPath == "" {
			validationErrors = append(validationErrors, "models path must be set when persistence is enabled")
		}
		if c.Persistence.ModelName == "" {
			validationErrors = append(validationErrors, "model name must be set when persistence is enabled")
		}
		if c.Persistence.DatabasePath == "" {
			validationErrors = append(validationErrors, "database path must be set when persistence is enabled")
		}
	}
	if c.Persistence.BackupCount < 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("backup count cannot be negative, got %d", c.Persistence.BackupCount))
	}

	// Metrics
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid metrics port: %d", c.Metrics.Port))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			validationErrors = append(validationErrors, fmt.Sprintf("metrics path must start with '/': %s", c.Metrics.Path))
		}
	}

	// Sweep
	if c.Sweep.Workers <= 0 {
		validationErrors = append(validationErrors, fmt.Sprintf("sweep workers must be positive, got %d", c.Sweep.Workers))
	}
	for _, alpha := range c.Sweep.Alphas {
		if alpha <= 0 || alpha > 1 {
			validationErrors = append(validationErrors, fmt.Sprintf("sweep alpha must be in (0,1], got %f", alpha))
		}
	}

	// If we have any validation errors, return them
	if len(validationErrors) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(validationErrors, "; "))
	}
	return nil
}
