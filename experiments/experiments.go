package experiments

import (
	"time"

	"github.com/rs/zerolog/log"

	"abt/config"
	"abt/engine"
	"abt/experiments/metrics"
	"abt/problems/rocksample"
	"abt/solver"
)

const (
	NumRuns  = 20 // Per configuration
	MaxSteps = 50
)

// benchmarkMap is the 3x3 RockSample instance used throughout the test
// suite: start top-left, goal top-right, two rocks.
const benchmarkMap = "3 3\n" +
	"S.G\n" +
	".o.\n" +
	"..o\n"

var budgetConfigs = []metrics.RunConfig{
	{ID: 1, BudgetIterations: 200, ExplorationCoefficient: 1},
	{ID: 2, BudgetIterations: 500, ExplorationCoefficient: 1},
	{ID: 3, BudgetIterations: 1000, ExplorationCoefficient: 1},
	{ID: 4, BudgetIterations: 1000, ExplorationCoefficient: 0.5},
	{ID: 5, BudgetIterations: 1000, ExplorationCoefficient: 2},
}

// RunBudgetExperiment plays RockSample episodes across a grid of search
// budgets and exploration coefficients and writes the records to CSV.
func RunBudgetExperiment() error {
	return runExperiment("budget", budgetConfigs)
}

func runExperiment(name string, configs []metrics.RunConfig) error {
	runRecords := []metrics.RunRecord{}
	stepRecords := []metrics.StepRecord{}
	count := 0

	for _, cfg := range configs {
		log.Info().Msgf("config %d: %d iterations, c=%g", cfg.ID, cfg.BudgetIterations, cfg.ExplorationCoefficient)
		for i := 0; i < NumRuns; i++ {
			count++
			record, steps, err := runOnce(count, cfg)
			if err != nil {
				return err
			}
			runRecords = append(runRecords, record)
			stepRecords = append(stepRecords, steps...)
			log.Info().Msgf("run %d finished: %d steps, return %.3f",
				count, record.Steps, record.DiscountedReturn)
		}
	}

	writer, err := metrics.NewWriter(name)
	if err != nil {
		return err
	}
	if err := writer.WriteRunConfigs(configs); err != nil {
		return err
	}
	if err := writer.WriteRunRecords(runRecords); err != nil {
		return err
	}
	return writer.WriteStepRecords(stepRecords)
}

func runOnce(id int, cfg metrics.RunConfig) (metrics.RunRecord, []metrics.StepRecord, error) {
	opts := config.Default()
	opts.MinParticleCount = 200
	opts.MaxParticleCount = 400
	opts.SearchBudgetMs = cfg.BudgetMs
	opts.SearchBudgetIterations = cfg.BudgetIterations
	opts.ExplorationCoefficient = cfg.ExplorationCoefficient
	opts.RngSeed = uint64(id)

	grid, err := rocksample.ParseMap(benchmarkMap)
	if err != nil {
		return metrics.RunRecord{}, nil, err
	}
	model := rocksample.NewModel(grid, rocksample.DefaultParams(), opts.DiscountFactor)
	s, err := solver.New(model, opts, solver.WithDepletionFallback())
	if err != nil {
		return metrics.RunRecord{}, nil, err
	}

	e := engine.New(model, s, MaxSteps)
	e.Collector = metrics.NewCollector()

	start := time.Now()
	result, err := e.Run()
	if err != nil {
		return metrics.RunRecord{}, nil, err
	}
	end := time.Now()

	record := metrics.RunRecord{
		ID:     id,
		Config: cfg.ID,
		RunMetric: metrics.RunMetric{
			Steps:            result.Steps,
			DiscountedReturn: result.DiscountedReturn,
			Terminal:         result.Terminal,
			StartTime:        start,
			EndTime:          end,
			Duration:         end.Sub(start),
		},
	}
	steps := make([]metrics.StepRecord, 0, len(result.StepMetrics))
	for _, sm := range result.StepMetrics {
		steps = append(steps, metrics.StepRecord{Run: id, StepMetric: sm})
	}
	return record, steps, nil
}

// BenchmarkMap exposes the canonical 3x3 instance for reuse in tests and
// the driver.
func BenchmarkMap() string { return benchmarkMap }
