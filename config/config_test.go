package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solver.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad(t *testing.T) {
	t.Run("partial file keeps defaults for the rest", func(t *testing.T) {
		path := writeConfig(t, "discountFactor: 0.9\nrngSeed: 7\n")

		opts, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 0.9, opts.DiscountFactor)
		require.Equal(t, uint64(7), opts.RngSeed)
		require.Equal(t, Default().MinParticleCount, opts.MinParticleCount)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		path := writeConfig(t, "discountFactor: 0.9\nnotAKnownOption: 3\n")

		_, err := Load(path)
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("out of range values are rejected", func(t *testing.T) {
		for name, content := range map[string]string{
			"discount above one":      "discountFactor: 1.5\n",
			"zero particles":          "minParticleCount: 0\n",
			"max below min":           "minParticleCount: 100\nmaxParticleCount: 50\n",
			"negative horizon":        "horizon: -1\n",
			"bad heuristic type":      "heuristicType: fancy\n",
			"negative exploration":    "explorationCoefficient: -0.5\n",
			"negative search budget":  "searchBudgetMs: -10\n",
			"both budgets zero":       "searchBudgetMs: 0\nsearchBudgetIterations: 0\n",
		} {
			t.Run(name, func(t *testing.T) {
				path := writeConfig(t, content)
				_, err := Load(path)
				require.ErrorIs(t, err, ErrConfiguration)
			})
		}
	})

	t.Run("missing file is a configuration error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
		require.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestReplenishAttempts(t *testing.T) {
	opts := Default()
	require.Equal(t, 10*opts.MaxParticleCount, opts.ReplenishAttempts())

	opts.MaxReplenishAttempts = 500
	require.Equal(t, int64(500), opts.ReplenishAttempts())
}
