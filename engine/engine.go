package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"abt/experiments/metrics"
	"abt/pomdp"
	"abt/solver"
)

// Engine runs the outer loop of an episode: improve the tree, execute the
// recommended action against the true (simulated) world state, observe,
// and advance the solver to the matching child belief.
type Engine struct {
	Model     pomdp.Model
	Solver    *solver.Solver
	MaxSteps  int
	Collector metrics.Collector
}

// Result is what one episode produced.
type Result struct {
	Steps            int
	DiscountedReturn float64
	Terminal         bool
	StepMetrics      []metrics.StepMetric
}

func New(model pomdp.Model, s *solver.Solver, maxSteps int) *Engine {
	return &Engine{
		Model:     model,
		Solver:    s,
		MaxSteps:  maxSteps,
		Collector: metrics.NewDummyCollector(),
	}
}

// Run executes one episode to termination or MaxSteps.
func (e *Engine) Run() (*Result, error) {
	state := e.Model.SampleAnInitState()
	result := &Result{}
	gamma := e.Model.DiscountFactor()
	discount := 1.0

	for step := 1; e.MaxSteps <= 0 || step <= e.MaxSteps; step++ {
		e.Collector.Start()
		start := time.Now()
		sims, err := e.Solver.Improve(solver.Budget{})
		if err != nil {
			return result, err
		}
		e.Collector.AddSimulations(sims)

		action, ok := e.Solver.RecommendedAction()
		if !ok {
			// nothing visited within budget; fall back to the first legal action
			log.Warn().Msg("no recommended action; search budget may be too small")
			action = e.Model.AllActions()[0]
		}

		res := e.Model.GenerateStep(state, action)
		log.Info().Msgf("step %d: %v -> %v (reward %.2f, %d simulations in %s)",
			step, action, res.Observation, res.Reward, sims, time.Since(start).Round(time.Millisecond))

		result.Steps = step
		result.DiscountedReturn += discount * res.Reward
		discount *= gamma

		// every step after the first searches a re-rooted subtree
		e.Collector.SetTreeReused(step > 1)
		metric := e.Collector.Complete()
		result.StepMetrics = append(result.StepMetrics, metrics.StepMetric{
			Step:         step,
			Action:       action.String(),
			Reward:       res.Reward,
			SearchMetric: metric,
		})

		if res.IsTerminal {
			result.Terminal = true
			log.Info().Msgf("reached a terminal state after %d steps (return %.3f)",
				step, result.DiscountedReturn)
			return result, nil
		}

		if err := e.Solver.Advance(action, res.Observation); err != nil {
			return result, err
		}
		state = res.NextState
	}

	log.Info().Msgf("stopped after %d steps without termination (return %.3f)",
		result.Steps, result.DiscountedReturn)
	return result, nil
}
