package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/TristanKruse/Beer-Game-RL/internal/rl"
)

const (
	simulationSheet = "Simulation"
	rewardsSheet    = "Rewards"
)

// ExportXLSX writes the simulation log, the per-episode rewards and the last n
// training episodes to a workbook at path.
func ExportXLSX(path string, result *rl.TrainingResult, lastEpisodes int) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(simulationSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(rewardsSheet); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := writeLogSheet(f, simulationSheet, result.Simulation); err != nil {
		return err
	}

	header := []interface{}{"Episode", "Total Reward", "Epsilon"}
	if err := f.SetSheetRow(rewardsSheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range rl.CalculateRewards(result.Episodes) {
		row := []interface{}{i + 1, r, nil}
		if i < len(result.EpisodeEpsilon) {
			row[2] = result.EpisodeEpsilon[i]
		}
		if err := f.SetSheetRow(rewardsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	recent := rl.LastEpisodes(result.Episodes, lastEpisodes)
	first := len(result.Episodes) - len(recent)
	for i, episodeLog := range recent {
		sheet := fmt.Sprintf("Episode %d", first+i+1)
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeLogSheet(f, sheet, episodeLog); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeLogSheet(f *excelize.File, sheet string, log rl.EpisodeLog) error {
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for tick, entry := range log {
		row := []interface{}{
			tick,
			entry.State.String(),
			FormatInts(entry.Action),
			entry.Reward,
			entry.Demand,
			FormatInts(entry.Inventory),
			FormatInts(entry.Backlog),
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", tick+2), &row); err != nil {
			return err
		}
	}
	return nil
}
