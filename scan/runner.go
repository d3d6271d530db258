// Package scan flies populations of candidate positions and turns the
// recorded episodes into fitness.
//
// Two evaluators share one contract: Hardware flies real (or served) axes
// with a Flyer per individual, and Simulated samples a model signal along
// straight paths.  Both record every episode and extract fitness from the
// recording the same way.
package scan

import (
	"context"
	"fmt"
	"math"

	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/flyer"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// Runner flies one episode per individual of a population, in order
type Runner struct {
	// Name is the flyer name, which prefixes the recorded columns
	Name string

	// Caps are the global velocity caps
	Caps motion.Caps

	layout   population.Layout
	axes     []motion.Axis
	names    []string
	vlims    []util.Limiter
	det      detector.Detector
	recorder recorder.Recorder
}

// NewRunner returns a runner over axes, one per key of layout.  Every key
// must be the position of an axis present in axes.
func NewRunner(axes []motion.Axis, layout population.Layout, det detector.Detector, rec recorder.Recorder, caps motion.Caps) (*Runner, error) {
	if det == nil {
		return nil, fmt.Errorf("%w: hardware mode needs a detector", fault.ErrConfiguration)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: hardware mode needs a recorder", fault.ErrConfiguration)
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: hardware mode needs at least one axis", fault.ErrConfiguration)
	}
	byName := make(map[string]motion.Axis, len(axes))
	for _, a := range axes {
		byName[a.Name()] = a
	}
	r := &Runner{Name: flyer.DefaultName, Caps: caps, layout: layout, det: det, recorder: rec}
	for _, k := range layout {
		if k.Param != population.Position {
			return nil, fmt.Errorf("%w: axes only expose %q, not %q", fault.ErrConfiguration, population.Position, k.Param)
		}
		a, ok := byName[k.Axis]
		if !ok {
			return nil, fmt.Errorf("%w: no axis %s", fault.ErrConfiguration, k.Axis)
		}
		r.axes = append(r.axes, a)
		r.names = append(r.names, k.Axis)
		r.vlims = append(r.vlims, a.Limits().Velocity)
	}
	return r, nil
}

// Layout returns the keys flown, in axis order
func (r *Runner) Layout() population.Layout {
	return r.layout
}

// Axes returns the axes flown, in layout order
func (r *Runner) Axes() []motion.Axis {
	return r.axes
}

// plan computes the flyers for pop.  Each individual is reached from the
// previous one; the first is reached from itself.
func (r *Runner) plan(pop []population.Individual) ([]*flyer.Flyer, error) {
	flyers := make([]*flyer.Flyer, 0, len(pop))
	for i, ind := range pop {
		prev := pop[0]
		if i > 0 {
			prev = pop[i-1]
		}
		targets := ind.Vector(r.layout)
		from := prev.Vector(r.layout)
		dists := make([]float64, len(targets))
		for j := range targets {
			dists[j] = math.Abs(targets[j] - from[j])
		}
		vels, err := motion.SyncVelocities(r.names, dists, r.vlims, r.Caps)
		if err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
		f, err := flyer.New(r.axes, r.det, targets, vels, motion.TravelTimes(dists, vels))
		if err != nil {
			return nil, err
		}
		f.Name = r.Name
		flyers = append(flyers, f)
	}
	return flyers, nil
}

// Fly flies every individual of pop in turn and returns the ids of the
// recorded episodes.  All velocities are computed before anything moves, so
// an infeasible population fails without motion.
func (r *Runner) Fly(ctx context.Context, pop []population.Individual) ([]string, error) {
	flyers, err := r.plan(pop)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(flyers))
	for i, f := range flyers {
		id, err := r.fly(ctx, f)
		if err != nil {
			return ids, fmt.Errorf("episode %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *Runner) fly(ctx context.Context, f *flyer.Flyer) (string, error) {
	if err := f.Kickoff(); err != nil {
		return "", err
	}
	if err := f.Complete(ctx); err != nil {
		return "", err
	}
	recs, err := f.Collect()
	if err != nil {
		return "", err
	}
	return r.recorder.Record(Drain(recs))
}

// Drain exhausts recs into an episode
func Drain(recs *flyer.Records) recorder.Episode {
	ep := recorder.Episode{Columns: recs.Columns()}
	for recs.Next() {
		ep.Times = append(ep.Times, recs.Time())
		ep.Rows = append(ep.Rows, recs.Row())
	}
	return ep
}
