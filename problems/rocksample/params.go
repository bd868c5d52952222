package rocksample

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"abt/config"
)

// LoadParams reads problem parameters from YAML, starting from the
// defaults. Unknown fields are rejected, like the solver options.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	f, err := os.Open(path)
	if err != nil {
		return params, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return params, fmt.Errorf("%w: %s: %v", config.ErrConfiguration, path, err)
	}
	if params.HalfEfficiencyDistance <= 0 {
		return params, fmt.Errorf("%w: halfEfficiencyDistance must be positive", config.ErrConfiguration)
	}
	return params, nil
}
