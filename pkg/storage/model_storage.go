package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
	"github.com/TristanKruse/Beer-Game-RL/pkg/config"
	"github.com/TristanKruse/Beer-Game-RL/pkg/logger"
)

const modelVersion = "1"

// ErrNoModel is returned when no saved model exists
var ErrNoModel = errors.New("no saved model")

// ModelStorage persists learned Q-tables as JSON snapshots
type ModelStorage struct {
	config *config.PersistenceConfig
	mutex  sync.RWMutex
	log    *logrus.Entry
}

// ModelData is the on-disk representation of a trained agent
type ModelData struct {
	Version  string         `json:"version"`
	RunID    string         `json:"run_id"`
	Scenario string         `json:"scenario"`
	Agent    rl.AgentConfig `json:"agent"`
	Metadata ModelMetadata  `json:"metadata"`
	QTables  []TierTable    `json:"q_tables"`
}

// ModelMetadata describes the training that produced the model
type ModelMetadata struct {
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	TrainingEpisodes int       `json:"training_episodes"`
	SimulationReward float64   `json:"simulation_reward"`
}

// TierTable is one tier's Q-table with summary statistics
type TierTable struct {
	Tier          int                         `json:"tier"`
	States        int                         `json:"states"`
	Entries       int                         `json:"entries"`
	AverageQValue float64                     `json:"average_q_value"`
	Coverage      float64                     `json:"coverage"` // visited share of the coded state space
	Rows          map[string][]rl.ActionValue `json:"rows"` // state key -> actions in first-seen order
}

// NewModelStorage creates a model store rooted at cfg.ModelsPath/cfg.ModelName
func NewModelStorage(cfg *config.PersistenceConfig) *ModelStorage {
	return &ModelStorage{
		config: cfg,
		log:    logger.Component("model_storage"),
	}
}

// SaveAgent writes the agent's tables, keeping a timestamped backup of the previous model
func (ms *ModelStorage) SaveAgent(agent *rl.Agent, runID, scenario string, meta ModelMetadata) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	model := &ModelData{
		Version:  modelVersion,
		RunID:    runID,
		Scenario: scenario,
		Agent:    agent.Config(),
		Metadata: meta,
	}
	space := len(supplychain.StateSpace(model.Agent.Tiers))
	for tier, table := range agent.QTables() {
		model.QTables = append(model.QTables, TierTable{
			Tier:          tier,
			States:        table.Len(),
			Entries:       table.Entries(),
			AverageQValue: table.AverageValue(),
			Coverage:      float64(table.Len()) / float64(space),
			Rows:          table.Snapshot(),
		})
	}

	if err := ms.saveModel(model); err != nil {
		return fmt.Errorf("failed to save Q-learning agent: %w", err)
	}

	ms.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"scenario": scenario,
		"episodes": meta.TrainingEpisodes,
		"states":   agent.TableSizes(),
	}).Info("Q-learning agent saved")
	return nil
}

// LoadModel reads the current model file
func (ms *ModelStorage) LoadModel() (*ModelData, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	data, err := os.ReadFile(ms.currentModelPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model ModelData
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if model.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %q", model.Version)
	}
	return &model, nil
}

// LoadAgent rebuilds an agent from the current model. Options are applied to the new agent.
func (ms *ModelStorage) LoadAgent(opts ...rl.AgentOption) (*rl.Agent, *ModelData, error) {
	model, err := ms.LoadModel()
	if err != nil {
		return nil, nil, err
	}

	agent, err := rl.NewAgent(model.Agent, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("saved agent configuration: %w", err)
	}

	tables := make([]*rl.QTable, len(model.QTables))
	for i, t := range model.QTables {
		if t.Tier != i {
			return nil, nil, fmt.Errorf("q-table %d is stored out of order (tier %d)", i, t.Tier)
		}
		for key := range t.Rows {
			if err := checkStateKey(key, model.Agent.Tiers); err != nil {
				return nil, nil, fmt.Errorf("q-table %d: %w", i, err)
			}
		}
		tables[i] = rl.QTableFromSnapshot(t.Rows)
	}
	if err := agent.SetQTables(tables); err != nil {
		return nil, nil, err
	}

	ms.log.WithFields(logrus.Fields{
		"run_id":   model.RunID,
		"scenario": model.Scenario,
		"states":   agent.TableSizes(),
	}).Info("Q-learning agent loaded")
	return agent, model, nil
}

// checkStateKey rejects keys that are not coded states of a chain with the given tiers
func checkStateKey(key string, tiers int) error {
	state, err := supplychain.ParseStateKey(key)
	if err != nil {
		return fmt.Errorf("state key %q: %w", key, err)
	}
	if len(state) != tiers {
		return fmt.Errorf("state key %q has %d tiers, want %d", key, len(state), tiers)
	}
	for _, code := range state {
		if code < 1 || code > supplychain.Buckets {
			return fmt.Errorf("state key %q: code %d outside 1..%d", key, code, supplychain.Buckets)
		}
	}
	return nil
}

// Exists reports whether a current model file is present
func (ms *ModelStorage) Exists() bool {
	_, err := os.Stat(ms.currentModelPath())
	return err == nil
}

// Backups lists backup files, oldest first
func (ms *ModelStorage) Backups() ([]string, error) {
	entries, err := os.ReadDir(ms.backupDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "model_") && strings.HasSuffix(e.Name(), ".json") {
			backups = append(backups, filepath.Join(ms.backupDir(), e.Name()))
		}
	}
	sort.Strings(backups)
	return backups, nil
}

func (ms *ModelStorage) saveModel(model *ModelData) error {
	modelDir := filepath.Dir(ms.currentModelPath())
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	// Create backup if current model exists
	currentPath := ms.currentModelPath()
	if _, err := os.Stat(currentPath); err == nil && ms.config.BackupCount > 0 {
		if err := ms.createBackup(currentPath); err != nil {
			ms.log.Warnf("Failed to create backup: %v", err)
		}
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	// Write to temporary file first, then rename
	tempPath := currentPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp model file: %w", err)
	}
	if err := os.Rename(tempPath, currentPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp model file: %w", err)
	}
	return nil
}

func (ms *ModelStorage) createBackup(currentPath string) error {
	if err := os.MkdirAll(ms.backupDir(), 0755); err != nil {
		return err
	}

	backupPath := ms.nextBackupPath(time.Now())

	data, err := os.ReadFile(currentPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return err
	}
	return ms.pruneBackups()
}

// nextBackupPath names a backup after t. Names sort in creation order; a name
// already taken gets a numeric suffix.
func (ms *ModelStorage) nextBackupPath(t time.Time) string {
	base := "model_" + t.Format("20060102_150405.000000000")
	path := filepath.Join(ms.backupDir(), base+".json")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(ms.backupDir(), fmt.Sprintf("%s_%03d.json", base, n))
	}
}

// pruneBackups keeps the newest BackupCount backups
func (ms *ModelStorage) pruneBackups() error {
	backups, err := ms.Backups()
	if err != nil {
		return err
	}
	for len(backups) > ms.config.BackupCount {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

func (ms *ModelStorage) currentModelPath() string {
	return filepath.Join(ms.config.ModelsPath, ms.config.ModelName, "current", "model.json")
}

func (ms *ModelStorage) backupDir() string {
	return filepath.Join(ms.config.ModelsPath, ms.config.ModelName, "backups")
}
