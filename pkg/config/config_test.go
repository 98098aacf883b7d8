package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "main", cfg.Environment.Scenario)
	assert.Equal(t, []int{12, 12, 12, 12}, cfg.Environment.InitialInventory)
	assert.Equal(t, []int{0, 1, 2, 3}, cfg.Agent.Actions)
	assert.Equal(t, 0.17, cfg.Agent.Alpha)
	assert.Equal(t, 1.0, cfg.Agent.Gamma)
	assert.Equal(t, 100, cfg.Training.MaxIterations)
	assert.Equal(t, ModeTrain, cfg.Training.Mode)

	agentCfg := cfg.AgentConfig(4, 35)
	assert.Equal(t, rl.DefaultAgentConfig(), agentCfg)

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Len(t, params.CustomerDemand, 35)
	assert.Equal(t, []int{2, 2, 2, 2}, params.PenaltyCosts)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
logging:
  level: debug
  format: json
environment:
  scenario: test3
agent:
  alpha: 0.25
  seed: 7
training:
  max_iterations: 40
`)
	t.Setenv("BEERGAME_AGENT_GAMMA", "0.9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "test3", cfg.Environment.Scenario)
	assert.Equal(t, 0.25, cfg.Agent.Alpha)
	assert.Equal(t, 0.9, cfg.Agent.Gamma)
	assert.Equal(t, int64(7), cfg.Agent.Seed)
	assert.Equal(t, 40, cfg.Training.MaxIterations)
	assert.Equal(t, 0.98, cfg.Agent.EpsilonStart, "unset keys keep their defaults")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
logging:
  level: loud
agent:
  alpha: 3
environment:
  scenario: nowhere
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "invalid logging level: loud")
	assert.Contains(t, err.Error(), "alpha must be in (0,1]")
	assert.Contains(t, err.Error(), "unknown scenario")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"format", func(c *Config) { c.Logging.Format = "xml" }, "invalid logging format"},
		{"tier mismatch", func(c *Config) { c.Environment.HoldingCosts = []int{1} }, "per-tier vectors differ"},
		{"empty inventory", func(c *Config) { c.Environment.InitialInventory = nil }, "initial inventory must not be empty"},
		{"no actions", func(c *Config) { c.Agent.Actions = nil }, "action set must not be empty"},
		{"gamma", func(c *Config) { c.Agent.Gamma = 2 }, "gamma must be in [0,1]"},
		{"epsilon", func(c *Config) { c.Agent.EpsilonEnd = -0.5 }, "epsilon_end must be in [0,1]"},
		{"iterations", func(c *Config) { c.Training.MaxIterations = 0 }, "max iterations must be positive"},
		{"mode", func(c *Config) { c.Training.Mode = "replay" }, "invalid training mode"},
		{"evaluate without model", func(c *Config) {
			c.Training.Mode = ModeEvaluate
			c.Persistence.ModelName = ""
		}, "evaluate mode needs persistence"},
		{"persistence", func(c *Config) {
			c.Persistence.Enabled = true
			c.Persistence.DatabasePath = ""
		}, "database path must be set"},
		{"metrics port", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Port = 70000
		}, "invalid metrics port"},
		{"workers", func(c *Config) { c.Sweep.Workers = 0 }, "sweep workers must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "logging:\n  level: info\n")

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	reloaded := make(chan *Config, 16)
	loader.Watch(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	writeConfig(t, dir, "logging:\n  level: debug\n")

	// the truncate and the write may arrive as separate events
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Logging.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("config change was not observed")
		}
	}
}
