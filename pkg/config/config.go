package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/scenario"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application's configuration
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Training    TrainingConfig    `mapstructure:"training"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Report      ReportConfig      `mapstructure:"report"`
	Sweep       SweepConfig       `mapstructure:"sweep"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// EnvironmentConfig selects the scenario and the chain parameters
type EnvironmentConfig struct {
	Scenario         string `mapstructure:"scenario"`
	InitialInventory []int  `mapstructure:"initial_inventory"`
	HoldingCosts     []int  `mapstructure:"holding_costs"`
	PenaltyCosts     []int  `mapstructure:"penalty_costs"`
}

// AgentConfig contains the Q-learning hyperparameters
type AgentConfig struct {
	Actions      []int   `mapstructure:"actions"`
	Alpha        float64 `mapstructure:"alpha"`
	Gamma        float64 `mapstructure:"gamma"`
	EpsilonStart float64 `mapstructure:"epsilon_start"`
	EpsilonEnd   float64 `mapstructure:"epsilon_end"`
	EpsilonFinal float64 `mapstructure:"epsilon_final"`
	Seed         int64   `mapstructure:"seed"`
}

// Run modes of cmd/beergame
const (
	ModeTrain    = "train"
	ModeEvaluate = "evaluate" // greedy rollout of the saved model, no learning
)

// TrainingConfig controls the training run
type TrainingConfig struct {
	Mode           string `mapstructure:"mode"`
	MaxIterations  int `mapstructure:"max_iterations"`
	ReportEpisodes int `mapstructure:"report_episodes"` // trailing episodes printed after training
}

// PersistenceConfig contains model and run store settings
type PersistenceConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ModelsPath   string `mapstructure:"models_path"`
	ModelName    string `mapstructure:"model_name"`
	BackupCount  int    `mapstructure:"backup_count"`
	DatabasePath string `mapstructure:"database_path"`
}

// MetricsConfig contains metrics exposition settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// ReportConfig selects the report outputs
type ReportConfig struct {
	OutputDir  string `mapstructure:"output_dir"`
	PrintLog   bool   `mapstructure:"print_log"`
	ExportXLSX bool   `mapstructure:"export_xlsx"`
	Chart      bool   `mapstructure:"chart"`
}

// SweepConfig describes the hyperparameter grid of cmd/sweep
type SweepConfig struct {
	Seeds   []int64   `mapstructure:"seeds"`
	Alphas  []float64 `mapstructure:"alphas"`
	Workers int       `mapstructure:"workers"`
}

// Loader reads the configuration from file and environment and can watch the file for changes
type Loader struct {
	v  *viper.Viper
	mu sync.Mutex
}

// NewLoader creates a loader. An empty path searches for config.yaml in the default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/beergame/")
	}

	// BEERGAME_AGENT_ALPHA overrides agent.alpha
	v.AutomaticEnv()
	v.SetEnvPrefix("BEERGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	return &Loader{v: v}
}

// Load reads and validates the configuration
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads the configuration file if present, applies env overrides and validates
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logrus.Debug("Config file not found, using defaults and environment variables")
	} else {
		logrus.WithField("file", l.v.ConfigFileUsed()).Debug("Using config file")
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the configuration when the file changes. The callback only sees
// configurations that pass validation.
func (l *Loader) Watch(callback func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log := logrus.WithField("file", e.Name)
		log.Info("Config file changed")

		l.mu.Lock()
		cfg, err := l.unmarshal()
		l.mu.Unlock()
		if err != nil {
			log.WithError(err).Warn("Config reload rejected")
			return
		}

		log.Info("Configuration reloaded successfully")
		if callback != nil {
			callback(cfg)
		}
	})
	l.v.WatchConfig()
}

// AgentConfig builds the learner hyperparameters for a chain of the given size
func (c *Config) AgentConfig(tiers, horizon int) rl.AgentConfig {
	return rl.AgentConfig{
		Actions:       append([]int(nil), c.Agent.Actions...),
		Tiers:         tiers,
		TimeHorizon:   horizon,
		MaxIterations: c.Training.MaxIterations,
		Alpha:         c.Agent.Alpha,
		Gamma:         c.Agent.Gamma,
		EpsilonStart:  c.Agent.EpsilonStart,
		EpsilonEnd:    c.Agent.EpsilonEnd,
		EpsilonFinal:  c.Agent.EpsilonFinal,
		Seed:          c.Agent.Seed,
	}
}

// Params resolves the configured scenario into environment parameters
func (c *Config) Params() (supplychain.Params, error) {
	s, err := scenario.Get(c.Environment.Scenario)
	if err != nil {
		return supplychain.Params{}, err
	}
	if err := s.Validate(); err != nil {
		return supplychain.Params{}, err
	}
	return s.Params(c.Environment.InitialInventory, c.Environment.HoldingCosts, c.Environment.PenaltyCosts), nil
}
