package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"abt/config"
	"abt/engine"
	"abt/experiments"
	"abt/pomdp"
	"abt/problems/nav2d"
	"abt/problems/rocksample"
	"abt/solver"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	root := &cobra.Command{
		Use:           "abt",
		Short:         "Online POMDP solving by adaptive belief-tree search",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(solveCmd(), experimentCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(exitCode(err))
	}
}

// Exit codes: 1 configuration, 2 model / search, 3 serialization I/O.
func exitCode(err error) int {
	var depletion *solver.ParticleDepletionError
	var contract *solver.ModelContractError
	var invariant *solver.InvariantError
	switch {
	case errors.Is(err, config.ErrConfiguration):
		return 1
	case errors.Is(err, solver.ErrSerialization):
		return 3
	case errors.As(err, &depletion), errors.As(err, &contract), errors.As(err, &invariant):
		return 2
	}
	return 1
}

func solveCmd() *cobra.Command {
	var (
		cfgPath         string
		problem         string
		mapPath         string
		paramsPath      string
		steps           int
		savePath        string
		fallbackUniform bool
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run the online solver on a problem instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Default()
			if cfgPath != "" {
				var err error
				if opts, err = config.Load(cfgPath); err != nil {
					return err
				}
			}

			model, err := buildModel(problem, mapPath, paramsPath, opts)
			if err != nil {
				return err
			}

			var solverOpts []solver.Option
			if fallbackUniform {
				solverOpts = append(solverOpts, solver.WithDepletionFallback())
			}
			s, err := solver.New(model, opts, solverOpts...)
			if err != nil {
				return err
			}

			result, runErr := engine.New(model, s, steps).Run()
			if result != nil {
				log.Info().Msgf("episode finished: %d steps, discounted return %.3f, terminal=%t",
					result.Steps, result.DiscountedReturn, result.Terminal)
			}

			if savePath == "" {
				savePath = opts.SerializerPath
			}
			if savePath != "" {
				if err := saveTree(model, opts, s, savePath); err != nil {
					return err
				}
				log.Info().Msgf("saved the belief tree to %s", savePath)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "solver options YAML file")
	cmd.Flags().StringVar(&problem, "problem", "rocksample", "problem to solve (rocksample or nav2d)")
	cmd.Flags().StringVar(&mapPath, "map", "", "map file for rocksample")
	cmd.Flags().StringVar(&paramsPath, "params", "", "problem parameter YAML file")
	cmd.Flags().IntVar(&steps, "steps", 100, "maximum number of world steps")
	cmd.Flags().StringVar(&savePath, "save", "", "write the final belief tree to this file")
	cmd.Flags().BoolVar(&fallbackUniform, "fallback-uniform", false,
		"on particle depletion, refill from the uniform state prior instead of failing")
	return cmd
}

func buildModel(problem, mapPath, paramsPath string, opts config.Options) (pomdp.Model, error) {
	switch problem {
	case "rocksample":
		params := rocksample.DefaultParams()
		if paramsPath != "" {
			var err error
			if params, err = rocksample.LoadParams(paramsPath); err != nil {
				return nil, err
			}
		}
		if mapPath == "" {
			mapPath = params.MapPath
		}
		var grid *rocksample.Grid
		var err error
		if mapPath != "" {
			grid, err = rocksample.LoadMap(mapPath)
		} else {
			grid, err = rocksample.ParseMap(experiments.BenchmarkMap())
		}
		if err != nil {
			return nil, err
		}
		return rocksample.NewModel(grid, params, opts.DiscountFactor), nil
	case "nav2d":
		params := nav2d.DefaultParams()
		if paramsPath != "" {
			var err error
			if params, err = nav2d.LoadParams(paramsPath); err != nil {
				return nil, err
			}
		}
		return nav2d.NewModel(params, opts.DiscountFactor), nil
	}
	return nil, fmt.Errorf("%w: unknown problem %q", config.ErrConfiguration, problem)
}

func saveTree(model pomdp.Model, opts config.Options, s *solver.Solver, path string) error {
	ts, err := solver.NewTextSerializer(model, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", solver.ErrSerialization, err)
	}
	defer f.Close()
	if err := ts.Save(s, f); err != nil {
		return fmt.Errorf("%w: %v", solver.ErrSerialization, err)
	}
	return nil
}

func experimentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "experiment",
		Short: "Run the search-budget benchmark and write CSV records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return experiments.RunBudgetExperiment()
		},
	}
}
