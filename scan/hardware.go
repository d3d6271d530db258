package scan

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// Hardware evaluates populations by flying axes
type Hardware struct {
	*Runner
}

// NewHardware returns an evaluator flying with r
func NewHardware(r *Runner) (*Hardware, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: hardware mode needs axes and a detector", fault.ErrConfiguration)
	}
	return &Hardware{Runner: r}, nil
}

// TravelLimits returns the travel limits of every axis
func (h *Hardware) TravelLimits() map[string]util.Limiter {
	out := make(map[string]util.Limiter, len(h.axes))
	for _, a := range h.axes {
		out[a.Name()] = a.Limits().Travel
	}
	return out
}

// Current reads the position of every axis
func (h *Hardware) Current() (population.Individual, error) {
	ind := population.Individual{}
	for i, a := range h.axes {
		p, err := a.GetPos()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", a.Name(), err)
		}
		ind.Set(h.layout[i], p)
	}
	return ind, nil
}

// Evaluate flies pop and extracts the best of each trajectory
func (h *Hardware) Evaluate(ctx context.Context, pop []population.Individual) ([]population.Individual, []float64, error) {
	ids, err := h.Fly(ctx, pop)
	if err != nil {
		return nil, nil, err
	}
	return Extract(h.recorder, ids, h.layout, h.Name)
}

// MoveTo moves every axis to ind together and waits for all of them
func (h *Hardware) MoveTo(ctx context.Context, ind population.Individual) error {
	cur, err := h.Current()
	if err != nil {
		return err
	}
	targets := ind.Vector(h.layout)
	from := cur.Vector(h.layout)
	dists := make([]float64, len(targets))
	for i := range targets {
		dists[i] = math.Abs(targets[i] - from[i])
	}
	vels, err := motion.SyncVelocities(h.names, dists, h.vlims, h.Caps)
	if err != nil {
		return err
	}
	var statuses []*motion.Status
	for i, a := range h.axes {
		if dists[i] == 0 || vels[i] == 0 {
			continue
		}
		if err = a.SetVelocity(vels[i]); err != nil {
			return err
		}
		st, err := a.MoveAbs(targets[i])
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
	}
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first error
	)
	for _, st := range statuses {
		wg.Add(1)
		go func(st *motion.Status) {
			defer wg.Done()
			if err := st.Wait(ctx); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(st)
	}
	wg.Wait()
	return first
}
