package de

import (
	"fmt"
	"math/rand"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/population"
)

// Strategy builds the donor vector of one individual
type Strategy interface {
	// Name returns the conventional name of the strategy, e.g. rand/1
	Name() string

	// MinPopulation is the smallest population the strategy can draw from
	MinPopulation() int

	// Donor returns the donor for individual i.  It must not modify pop.
	Donor(i int, pop []population.Individual, fit []float64, mut float64, l population.Layout, rng *rand.Rand) population.Individual
}

// StrategyByName returns the strategy called name
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "rand/1":
		return Rand1{}, nil
	case "best/1":
		return Best1{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mutation strategy %q", fault.ErrConfiguration, name)
	}
}

// others draws k distinct indices of [0, n) other than i, uniformly and
// without replacement
func others(i, n, k int, rng *rand.Rand) []int {
	perm := rng.Perm(n - 1)[:k]
	for j, p := range perm {
		if p >= i {
			perm[j] = p + 1
		}
	}
	return perm
}

// Rand1 is the rand/1 strategy as run on the test stand, with donors
// x1 + mut*(x3 - x3).  The difference term is always zero, so the donor is a
// random other individual.
type Rand1 struct{}

// Name returns rand/1
func (Rand1) Name() string { return "rand/1" }

// MinPopulation returns 4, the individual and three others
func (Rand1) MinPopulation() int { return 4 }

// Donor draws three other individuals and combines them
func (Rand1) Donor(i int, pop []population.Individual, fit []float64, mut float64, l population.Layout, rng *rand.Rand) population.Individual {
	idx := others(i, len(pop), 3, rng)
	x1 := pop[idx[0]].Vector(l)
	x3 := pop[idx[2]].Vector(l)
	v := make([]float64, len(l))
	for j := range v {
		v[j] = x1[j] + mut*(x3[j]-x3[j])
	}
	return population.FromVector(l, v)
}

// Best1 is the best/1 strategy, x_best + mut*(x_r1 - x_r2)
type Best1 struct{}

// Name returns best/1
func (Best1) Name() string { return "best/1" }

// MinPopulation returns 3, the individual and two others
func (Best1) MinPopulation() int { return 3 }

// Donor perturbs the fittest individual by the difference of two others
func (Best1) Donor(i int, pop []population.Individual, fit []float64, mut float64, l population.Layout, rng *rand.Rand) population.Individual {
	idx := others(i, len(pop), 2, rng)
	xb := pop[argmax(fit)].Vector(l)
	x1 := pop[idx[0]].Vector(l)
	x2 := pop[idx[1]].Vector(l)
	v := make([]float64, len(l))
	for j := range v {
		v[j] = xb[j] + mut*(x1[j]-x2[j])
	}
	return population.FromVector(l, v)
}

// Mutate returns one donor per individual, clamped into bounds
func Mutate(pop []population.Individual, fit []float64, s Strategy, mut float64, b population.Bounds, rng *rand.Rand) []population.Individual {
	l := b.Layout()
	donors := make([]population.Individual, len(pop))
	for i := range pop {
		donors[i] = population.EnsureBounds(s.Donor(i, pop, fit, mut, l, rng), b)
	}
	return donors
}

// Crossover mixes each individual with its donor: every coordinate, in
// layout order, comes from the donor with probability crosspb
func Crossover(pop, donors []population.Individual, crosspb float64, l population.Layout, rng *rand.Rand) []population.Individual {
	trial := make([]population.Individual, len(pop))
	for i := range pop {
		t := population.Individual{}
		for _, k := range l {
			v, _ := pop[i].Get(k)
			if rng.Float64() < crosspb {
				v, _ = donors[i].Get(k)
			}
			t.Set(k, v)
		}
		trial[i] = t
	}
	return trial
}

// Select replaces pop[i] and fit[i] in place wherever the trial is strictly
// fitter
func Select(pop []population.Individual, fit []float64, trial []population.Individual, trialFit []float64) {
	for i := range pop {
		if trialFit[i] > fit[i] {
			pop[i] = trial[i]
			fit[i] = trialFit[i]
		}
	}
}

// argmax returns the index of the first maximum of s
func argmax(s []float64) int {
	idx := 0
	for i, v := range s {
		if v > s[idx] {
			idx = i
		}
	}
	return idx
}

// argmin returns the index of the first minimum of s
func argmin(s []float64) int {
	idx := 0
	for i, v := range s {
		if v < s[idx] {
			idx = i
		}
	}
	return idx
}
