// Package de is a differential evolution optimizer whose fitness evaluations
// are fly scans.
//
// Each generation mutates every individual into a donor, crosses it with the
// individual, flies the trial vectors and keeps whichever of trial and
// current is fitter.  When the best fitness stops improving for five
// generations below the threshold, the worst individual is replaced by a
// random one.  The run ends after MaxIter+1 generations, or once it has
// stalled for five generations at or above the threshold, and the axes are
// then moved to the best individual.
package de

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/mathx"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

const (
	// stallLimit is the number of generations without improvement that
	// counts as a stall
	stallLimit = 5

	// fitnessDigits is the number of decimals compared to detect improvement
	fitnessDigits = 6
)

// Evaluator flies populations and reports the best of each trajectory
type Evaluator interface {
	// Current returns the present position of the axes
	Current() (population.Individual, error)

	// Evaluate flies pop in order and returns one individual and fitness per
	// member
	Evaluate(ctx context.Context, pop []population.Individual) ([]population.Individual, []float64, error)

	// MoveTo moves the axes to ind and waits for them
	MoveTo(ctx context.Context, ind population.Individual) error
}

// TravelLimiter is an Evaluator that knows the travel limits of its axes
type TravelLimiter interface {
	TravelLimits() map[string]util.Limiter
}

// State is the state of one run.  It belongs to the Optimize call that
// created it.
type State struct {
	Generation  int
	Pop         []population.Individual
	Fit         []float64
	Best        population.Individual
	BestFitness float64
	Stall       int
}

// Result is the outcome of a run
type Result struct {
	Best         population.Individual
	BestFitness  float64
	Generations  int
	History      []float64
	Immigrations int
}

// Optimizer runs differential evolution against an Evaluator
type Optimizer struct {
	cfg      Config
	strategy Strategy
	bounds   population.Bounds
	layout   population.Layout
	eval     Evaluator
	rng      *rand.Rand

	// Logger receives one line per generation; nil uses the standard logger
	Logger *log.Logger

	// Metrics, if not nil, are updated every generation
	Metrics *Metrics
}

// New returns an optimizer.  Configuration errors, including bounds outside
// the travel limits of the evaluator's axes, are returned here, before
// anything moves.
func New(cfg Config, bounds population.Bounds, eval Evaluator) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, fmt.Errorf("%w: no evaluator", fault.ErrConfiguration)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if tl, ok := eval.(TravelLimiter); ok {
		if err := bounds.Within(tl.TravelLimits()); err != nil {
			return nil, err
		}
	}
	strat, _ := StrategyByName(cfg.Strategy)
	return &Optimizer{
		cfg:      cfg,
		strategy: strat,
		bounds:   bounds,
		layout:   bounds.Layout(),
		eval:     eval,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// SetStrategy replaces the mutation strategy
func (o *Optimizer) SetStrategy(s Strategy) {
	o.strategy = s
}

func (o *Optimizer) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (o *Optimizer) evaluate(ctx context.Context, pop []population.Individual) ([]population.Individual, []float64, error) {
	inds, fit, err := o.eval.Evaluate(ctx, pop)
	if err != nil {
		return nil, nil, err
	}
	o.Metrics.episodes(len(pop))
	return inds, fit, nil
}

// done returns true when the run is over
func (o *Optimizer) done(st *State) bool {
	return st.Generation > o.cfg.MaxIter ||
		(st.Stall >= stallLimit && st.BestFitness >= o.cfg.Threshold)
}

// Optimize runs until termination, moves the axes to the best individual
// and returns it.  Cancelling ctx interrupts the flight in progress.
func (o *Optimizer) Optimize(ctx context.Context) (Result, error) {
	st, err := o.initialize(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{}
	for !o.done(st) {
		start := time.Now()
		immigrated, err := o.step(ctx, st)
		if err != nil {
			return res, fmt.Errorf("generation %d: %w", st.Generation, err)
		}
		if immigrated {
			res.Immigrations++
		}
		res.History = append(res.History, st.BestFitness)
		o.Metrics.generation(st.Generation, st.BestFitness, time.Since(start).Seconds())
		o.logf("generation %d best=%.6f stall=%d positions=%v",
			st.Generation, st.BestFitness, st.Stall, st.Best.Vector(o.layout))
		st.Generation++
	}
	res.Best = st.Best
	res.BestFitness = st.BestFitness
	res.Generations = st.Generation
	o.logf("converged after %d generations, best=%.6f at %v, moving there",
		res.Generations, res.BestFitness, res.Best.Vector(o.layout))
	if err = o.eval.MoveTo(ctx, res.Best); err != nil {
		return res, fmt.Errorf("moving to the best positions: %w", err)
	}
	return res, nil
}

// initialize flies the current position followed by PopSize-1 random
// individuals
func (o *Optimizer) initialize(ctx context.Context) (*State, error) {
	cur, err := o.eval.Current()
	if err != nil {
		return nil, err
	}
	pop := make([]population.Individual, 0, o.cfg.PopSize)
	pop = append(pop, cur)
	for len(pop) < o.cfg.PopSize {
		pop = append(pop, population.Random(o.bounds, o.layout, o.rng))
	}
	inds, fit, err := o.evaluate(ctx, pop)
	if err != nil {
		return nil, fmt.Errorf("initial population: %w", err)
	}
	return &State{Pop: inds, Fit: fit}, nil
}

// step runs one generation on st and reports whether an immigration
// happened
func (o *Optimizer) step(ctx context.Context, st *State) (bool, error) {
	donors := Mutate(st.Pop, st.Fit, o.strategy, o.cfg.Mut, o.bounds, o.rng)
	trial := Crossover(st.Pop, donors, o.cfg.CrossPB, o.layout, o.rng)

	cur, err := o.eval.Current()
	if err != nil {
		return false, err
	}
	inds, fit, err := o.evaluate(ctx, append([]population.Individual{cur}, trial...))
	if err != nil {
		return false, err
	}
	// the first episode only brings the axes to where they already are
	Select(st.Pop, st.Fit, inds[1:], fit[1:])

	best := argmax(st.Fit)
	if mathx.EqualN(st.Fit[best], st.BestFitness, fitnessDigits) {
		st.Stall++
	} else {
		st.Stall = 0
	}
	st.Best = st.Pop[best].Clone()
	st.BestFitness = st.Fit[best]

	if st.Stall >= stallLimit && st.BestFitness < o.cfg.Threshold {
		return true, o.immigrate(ctx, st)
	}
	return false, nil
}

// immigrate replaces the least fit individual with a random one
func (o *Optimizer) immigrate(ctx context.Context, st *State) error {
	worst := argmin(st.Fit)
	cur, err := o.eval.Current()
	if err != nil {
		return err
	}
	immigrant := population.Random(o.bounds, o.layout, o.rng)
	inds, fit, err := o.evaluate(ctx, []population.Individual{cur, immigrant})
	if err != nil {
		return fmt.Errorf("immigration: %w", err)
	}
	old := st.Fit[worst]
	st.Pop[worst] = inds[len(inds)-1]
	st.Fit[worst] = fit[len(fit)-1]
	o.Metrics.immigration()
	o.logf("generation %d stalled for %d generations below %g, replaced individual %d (%.6f) with %.6f",
		st.Generation, st.Stall, o.cfg.Threshold, worst, old, st.Fit[worst])
	return nil
}
