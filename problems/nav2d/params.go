package nav2d

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"abt/config"
)

// LoadParams reads problem parameters from YAML, starting from the
// defaults. Unknown fields are rejected.
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
	if params.Width <= 0 || params.Height <= 0 {
		return params, fmt.Errorf("%w: world dimensions must be positive", config.ErrConfiguration)
	}
	if len(params.Speeds) == 0 || len(params.RotationalSpeeds) == 0 {
		return params, fmt.Errorf("%w: control discretization must not be empty", config.ErrConfiguration)
	}
	return params, nil
}
