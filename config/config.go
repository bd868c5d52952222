package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration wraps every option problem reported at startup.
var ErrConfiguration = errors.New("configuration error")

// Options is the solver's configuration record. Unknown fields in the YAML
// document are rejected.
type Options struct {
	DiscountFactor         float64 `yaml:"discountFactor" validate:"gt=0,lte=1"`
	MinParticleCount       int64   `yaml:"minParticleCount" validate:"gt=0"`
	MaxParticleCount       int64   `yaml:"maxParticleCount" validate:"gtefield=MinParticleCount"`
	Horizon                int64   `yaml:"horizon" validate:"gte=0"`
	ExplorationCoefficient float64 `yaml:"explorationCoefficient" validate:"gte=0"`
	HeuristicType          string  `yaml:"heuristicType" validate:"oneof=default zero"`
	SearchBudgetMs         int64   `yaml:"searchBudgetMs" validate:"gte=0"`
	SearchBudgetIterations int64   `yaml:"searchBudgetIterations" validate:"gte=0"`
	RngSeed                uint64  `yaml:"rngSeed"`
	SerializerPath         string  `yaml:"serializerPath"`
	// MaxReplenishAttempts bounds rejection sampling during particle
	// replenishment; 0 means 10x maxParticleCount.
	MaxReplenishAttempts int64 `yaml:"maxReplenishAttempts" validate:"gte=0"`
}

// HeuristicType values.
const (
	HeuristicDefault = "default"
	HeuristicZero    = "zero"
)

func Default() Options {
	return Options{
		DiscountFactor:         0.95,
		MinParticleCount:       1000,
		MaxParticleCount:       2000,
		Horizon:                90,
		ExplorationCoefficient: 1.0,
		HeuristicType:          HeuristicDefault,
		SearchBudgetMs:         1000,
		SearchBudgetIterations: 0,
		RngSeed:                42,
	}
}

// Load reads options from a YAML file, starting from the defaults. Any
// unknown field or out-of-range value is a configuration error.
func Load(path string) (Options, error) {
	opts := Default()

	f, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("%w: %s: %v", ErrConfiguration, path, err)
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate checks field ranges and the cross-field constraints the struct
// tags cannot express.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msg := ""
			for i, fe := range verrs {
				if i > 0 {
					msg += "; "
				}
				msg += fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrConfiguration, msg)
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if o.SearchBudgetMs == 0 && o.SearchBudgetIterations == 0 {
		return fmt.Errorf("%w: one of searchBudgetMs and searchBudgetIterations must be positive",
			ErrConfiguration)
	}
	return nil
}

// ReplenishAttempts resolves the rejection-sampling bound.
func (o Options) ReplenishAttempts() int64 {
	if o.MaxReplenishAttempts > 0 {
		return o.MaxReplenishAttempts
	}
	return 10 * o.MaxParticleCount
}

var validate = validator.New()
