package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// ErrRunNotFound is returned when a run ID is not in the store
var ErrRunNotFound = errors.New("run not found")

// createdAtLayout is fixed width so text order in created_at is time order
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunStore records training runs, their episode rewards and the greedy simulation log in SQLite
type RunStore struct {
	conn *sqlx.DB
}

// Run is the summary row of one training run
type Run struct {
	ID                string    `db:"id"`
	Scenario          string    `db:"scenario"`
	Seed              int64     `db:"seed"`
	Alpha             float64   `db:"alpha"`
	Gamma             float64   `db:"gamma"`
	Episodes          int       `db:"episodes"`
	BestEpisodeReward float64   `db:"best_episode_reward"`
	SimulationReward  float64   `db:"simulation_reward"`
	CreatedAt         time.Time `db:"-"`
	CreatedAtRaw      string    `db:"created_at"`
}

// EpisodeReward is the total reward of one training episode
type EpisodeReward struct {
	Episode     int     `db:"episode"`
	TotalReward float64 `db:"total_reward"`
	Epsilon     float64 `db:"epsilon"`
}

type logRow struct {
	Tick      int    `db:"tick"`
	State     string `db:"state_json"`
	Action    string `db:"action_json"`
	Reward    int    `db:"reward"`
	Demand    int    `db:"demand"`
	Inventory string `db:"inventory_json"`
	Backlog   string `db:"backlog_json"`
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// OpenRunStore opens or creates a SQLite database at the given path
func OpenRunStore(path string) (*RunStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// single writer; parallel sweep workers queue on the pool
	conn.SetMaxOpenConns(1)

	s := &RunStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *RunStore) Close() error {
	return s.conn.Close()
}

func (s *RunStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		alpha REAL NOT NULL,
		gamma REAL NOT NULL,
		episodes INTEGER NOT NULL,
		best_episode_reward REAL NOT NULL,
		simulation_reward REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS episode_rewards (
		run_id TEXT NOT NULL REFERENCES runs(id),
		episode INTEGER NOT NULL,
		total_reward REAL NOT NULL,
		epsilon REAL NOT NULL,
		PRIMARY KEY (run_id, episode)
	);

	CREATE TABLE IF NOT EXISTS simulation_log (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		action_json TEXT NOT NULL,
		reward INTEGER NOT NULL,
		demand INTEGER NOT NULL,
		inventory_json TEXT NOT NULL,
		backlog_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveRun writes the run summary, its episode rewards and the simulation log in one transaction
func (s *RunStore) SaveRun(ctx context.Context, run Run, result *rl.TrainingResult) error {
	if run.ID == "" {
		return errors.New("run ID must be set")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	rewards := rl.CalculateRewards(result.Episodes)
	run.Episodes = len(rewards)
	run.SimulationReward = result.Simulation.TotalReward()
	for i, r := range rewards {
		if i == 0 || r > run.BestEpisodeReward {
			run.BestEpisodeReward = r
		}
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, scenario, seed, alpha, gamma, episodes, best_episode_reward, simulation_reward, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Seed, run.Alpha, run.Gamma, run.Episodes,
		run.BestEpisodeReward, run.SimulationReward, run.CreatedAt.UTC().Format(createdAtLayout),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	rewardStmt, err := tx.PreparexContext(ctx, `INSERT INTO episode_rewards
		(run_id, episode, total_reward, epsilon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rewardStmt.Close()

	for i, r := range rewards {
		epsilon := 0.0
		if i < len(result.EpisodeEpsilon) {
			epsilon = result.EpisodeEpsilon[i]
		}
		if _, err := rewardStmt.ExecContext(ctx, run.ID, i, r, epsilon); err != nil {
			return fmt.Errorf("insert episode %d: %w", i, err)
		}
	}

	logStmt, err := tx.PreparexContext(ctx, `INSERT INTO simulation_log
		(run_id, tick, state_json, action_json, reward, demand, inventory_json, backlog_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer logStmt.Close()

	for tick, entry := range result.Simulation {
		cols, err := marshalLogColumns(entry)
		if err != nil {
			return fmt.Errorf("simulation tick %d: %w", tick, err)
		}

		if _, err := logStmt.ExecContext(ctx, run.ID, tick,
			cols[0], cols[1], entry.Reward, entry.Demand, cols[2], cols[3],
		); err != nil {
			return fmt.Errorf("insert simulation tick %d: %w", tick, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the summary of one run
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.conn.GetContext(ctx, &run, `SELECT id, scenario, seed, alpha, gamma, episodes,
		best_episode_reward, simulation_reward, created_at FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := run.parseCreatedAt(); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := s.conn.SelectContext(ctx, &runs, `SELECT id, scenario, seed, alpha, gamma, episodes,
		best_episode_reward, simulation_reward, created_at FROM runs
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if err := runs[i].parseCreatedAt(); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// EpisodeRewards returns the per-episode rewards of a run in episode order
func (s *RunStore) EpisodeRewards(ctx context.Context, runID string) ([]EpisodeReward, error) {
	var rewards []EpisodeReward
	err := s.conn.SelectContext(ctx, &rewards,
		"SELECT episode, total_reward, epsilon FROM episode_rewards WHERE run_id = ? ORDER BY episode",
		runID,
	)
	return rewards, err
}

// SimulationLog rebuilds the greedy simulation log of a run
func (s *RunStore) SimulationLog(ctx context.Context, runID string) (rl.EpisodeLog, error) {
	var rows []logRow
	err := s.conn.SelectContext(ctx, &rows, `SELECT tick, state_json, action_json, reward, demand,
		inventory_json, backlog_json FROM simulation_log WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}

	log := make(rl.EpisodeLog, 0, len(rows))
	for _, row := range rows {
		var entry rl.LogEntry
		var state supplychain.State
		var action supplychain.Action
		if err := json.Unmarshal([]byte(row.State), &state); err != nil {
			return nil, fmt.Errorf("tick %d state: %w", row.Tick, err)
		}
		if err := json.Unmarshal([]byte(row.Action), &action); err != nil {
			return nil, fmt.Errorf("tick %d action: %w", row.Tick, err)
		}
		if err := json.Unmarshal([]byte(row.Inventory), &entry.Inventory); err != nil {
			return nil, fmt.Errorf("tick %d inventory: %w", row.Tick, err)
		}
		if err := json.Unmarshal([]byte(row.Backlog), &entry.Backlog); err != nil {
			return nil, fmt.Errorf("tick %d backlog: %w", row.Tick, err)
		}
		entry.State = state
		entry.Action = action
		entry.Reward = row.Reward
		entry.Demand = row.Demand
		log = append(log, entry)
	}
	return log, nil
}

// marshalLogColumns encodes state, action, inventory and backlog for the simulation_log row
func marshalLogColumns(entry rl.LogEntry) ([4]string, error) {
	var cols [4]string
	fields := []struct {
		name  string
		value interface{}
	}{
		{"state", entry.State},
		{"action", entry.Action},
		{"inventory", entry.Inventory},
		{"backlog", entry.Backlog},
	}
	for i, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return cols, fmt.Errorf("%s: %w", f.name, err)
		}
		cols[i] = string(data)
	}
	return cols, nil
}

func (r *Run) parseCreatedAt() error {
	t, err := time.Parse(createdAtLayout, r.CreatedAtRaw)
	if err != nil {
		return fmt.Errorf("run %s created_at: %w", r.ID, err)
	}
	r.CreatedAt = t
	return nil
}
