package de

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

// Config holds the parameters of a differential evolution run
type Config struct {
	// PopSize is the number of individuals
	PopSize int `yaml:"PopSize" koanf:"PopSize"`

	// CrossPB is the probability that a coordinate is taken from the donor
	CrossPB float64 `yaml:"CrossPB" koanf:"CrossPB"`

	// Mut is the mutation factor
	Mut float64 `yaml:"Mut" koanf:"Mut"`

	// Strategy is the mutation strategy, "rand/1" or "best/1"
	Strategy string `yaml:"Strategy" koanf:"Strategy"`

	// Threshold is the fitness at which a stalled run is considered converged
	Threshold float64 `yaml:"Threshold" koanf:"Threshold"`

	// MaxIter bounds the run to MaxIter+1 generations
	MaxIter int `yaml:"MaxIter" koanf:"MaxIter"`

	// Seed seeds every random draw of the run
	Seed int64 `yaml:"Seed" koanf:"Seed"`
}

// DefaultConfig returns the configuration used on the test stand
func DefaultConfig() Config {
	return Config{
		PopSize:   5,
		CrossPB:   0.8,
		Mut:       0.1,
		Strategy:  "rand/1",
		Threshold: 4.5,
		MaxIter:   100,
		Seed:      1}
}

// Validate returns a configuration error if the run can not be performed
func (c Config) Validate() error {
	strat, err := StrategyByName(c.Strategy)
	if err != nil {
		return err
	}
	if c.PopSize < strat.MinPopulation() {
		return fmt.Errorf("%w: strategy %s needs a population of at least %d, got %d",
			fault.ErrConfiguration, strat.Name(), strat.MinPopulation(), c.PopSize)
	}
	if c.CrossPB < 0 || c.CrossPB > 1 {
		return fmt.Errorf("%w: crossover probability %g outside [0, 1]", fault.ErrConfiguration, c.CrossPB)
	}
	if c.MaxIter < 0 {
		return fmt.Errorf("%w: negative iteration limit %d", fault.ErrConfiguration, c.MaxIter)
	}
	return nil
}
