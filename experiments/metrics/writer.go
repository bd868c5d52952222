package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RunConfig is one solver configuration under test.
type RunConfig struct {
	ID                     int
	BudgetIterations       int64
	BudgetMs               int64
	ExplorationCoefficient float64
}

// RunRecord ties a finished episode to its config.
type RunRecord struct {
	ID     int
	Config int // RunConfig.ID
	RunMetric
}

// StepRecord ties one step's metrics to its run.
type StepRecord struct {
	Run int // RunRecord.ID
	StepMetric
}

type Writer struct {
	baseDir string
}

func NewWriter(name string) (*Writer, error) {
	// Create a subfolder named by current timestamp
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseDir := filepath.Join("experiments", name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) WriteRunConfigs(configs []RunConfig) error {
	f, err := os.Create(filepath.Join(w.baseDir, "run_configs.csv"))
	if err != nil {
		return fmt.Errorf("failed to create run configs file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"id", "budget_iterations", "budget_ms", "exploration_coefficient"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write run configs header: %w", err)
	}

	for _, config := range configs {
		row := []string{
			strconv.Itoa(config.ID),
			strconv.FormatInt(config.BudgetIterations, 10),
			strconv.FormatInt(config.BudgetMs, 10),
			strconv.FormatFloat(config.ExplorationCoefficient, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write run config row: %w", err)
		}
	}

	return nil
}

func (w *Writer) WriteRunRecords(records []RunRecord) error {
	f, err := os.Create(filepath.Join(w.baseDir, "run_records.csv"))
	if err != nil {
		return fmt.Errorf("failed to create run records file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"id", "config", "steps", "discounted_return", "terminal",
		"start_time", "end_time", "duration"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write run records header: %w", err)
	}

	for _, record := range records {
		row := []string{
			strconv.Itoa(record.ID),
			strconv.Itoa(record.Config),
			strconv.Itoa(record.Steps),
			strconv.FormatFloat(record.DiscountedReturn, 'g', -1, 64),
			strconv.FormatBool(record.Terminal),
			record.StartTime.Format(time.RFC3339),
			record.EndTime.Format(time.RFC3339),
			record.Duration.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write run record row: %w", err)
		}
	}

	return nil
}

func (w *Writer) WriteStepRecords(records []StepRecord) error {
	f, err := os.Create(filepath.Join(w.baseDir, "step_records.csv"))
	if err != nil {
		return fmt.Errorf("failed to create step records file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	header := []string{"run", "step", "action", "reward", "simulations", "duration", "tree_reused"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write step records header: %w", err)
	}

	for _, record := range records {
		row := []string{
			strconv.Itoa(record.Run),
			strconv.Itoa(record.Step),
			record.Action,
			strconv.FormatFloat(record.Reward, 'g', -1, 64),
			strconv.FormatInt(record.Simulations, 10),
			record.Duration.String(),
			strconv.FormatBool(record.TreeReused),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write step record row: %w", err)
		}
	}

	return nil
}
