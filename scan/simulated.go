package scan

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/flyer"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
)

// Simulated evaluates populations against a model signal.  Each individual
// is "flown" by sampling the signal at Intermediate+1 evenly spaced points
// on the straight path from the previous individual, both ends included.
type Simulated struct {
	// Name is the flyer name, which prefixes the recorded columns
	Name string

	layout       population.Layout
	signal       func([]float64) float64
	intermediate int
	recorder     recorder.Recorder
	pos          population.Individual
}

// NewSimulated returns a simulated evaluator resting at start.  signal is
// evaluated on positions in layout order.
func NewSimulated(start population.Individual, layout population.Layout, signal func([]float64) float64, intermediate int, rec recorder.Recorder) (*Simulated, error) {
	switch {
	case signal == nil:
		return nil, fmt.Errorf("%w: simulated mode needs a signal", fault.ErrConfiguration)
	case intermediate < 1:
		return nil, fmt.Errorf("%w: simulated mode needs at least one intermediate point, got %d", fault.ErrConfiguration, intermediate)
	case rec == nil:
		return nil, fmt.Errorf("%w: simulated mode needs a recorder", fault.ErrConfiguration)
	case len(layout) == 0:
		return nil, fmt.Errorf("%w: simulated mode needs at least one axis", fault.ErrConfiguration)
	}
	for _, k := range layout {
		if k.Param != population.Position {
			return nil, fmt.Errorf("%w: axes only expose %q, not %q", fault.ErrConfiguration, population.Position, k.Param)
		}
		if _, ok := start.Get(k); !ok {
			return nil, fmt.Errorf("%w: no starting value for %s", fault.ErrConfiguration, k)
		}
	}
	return &Simulated{
		Name:         flyer.DefaultName,
		layout:       layout,
		signal:       signal,
		intermediate: intermediate,
		recorder:     rec,
		pos:          start.Clone(),
	}, nil
}

// Current returns the virtual position
func (s *Simulated) Current() (population.Individual, error) {
	return s.pos.Clone(), nil
}

// MoveTo sets the virtual position
func (s *Simulated) MoveTo(ctx context.Context, ind population.Individual) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.pos = ind.Clone()
	return nil
}

// Evaluate records one sampled path per individual and extracts the best of
// each
func (s *Simulated) Evaluate(ctx context.Context, pop []population.Individual) ([]population.Individual, []float64, error) {
	ids := make([]string, 0, len(pop))
	for i, ind := range pop {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		prev := pop[0]
		if i > 0 {
			prev = pop[i-1]
		}
		id, err := s.recorder.Record(s.path(prev, ind))
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
	}
	if len(pop) > 0 {
		s.pos = pop[len(pop)-1].Clone()
	}
	return Extract(s.recorder, ids, s.layout, s.Name)
}

// path samples the signal from a to b.  The path is covered in unit time,
// so each axis' velocity column holds its distance.
func (s *Simulated) path(a, b population.Individual) recorder.Episode {
	from, to := a.Vector(s.layout), b.Vector(s.layout)
	axes := make([]string, len(s.layout))
	for i, k := range s.layout {
		axes[i] = k.Axis
	}
	ep := recorder.Episode{Columns: flyer.Columns(s.Name, axes)}
	t0 := time.Now()
	pos := make([]float64, len(from))
	for k := 0; k <= s.intermediate; k++ {
		frac := float64(k) / float64(s.intermediate)
		for j := range from {
			pos[j] = from[j] + (to[j]-from[j])*frac
			if k == s.intermediate {
				pos[j] = to[j]
			}
		}
		row := []float64{s.signal(pos)}
		for j := range pos {
			row = append(row, math.Abs(to[j]-from[j]), pos[j])
		}
		ep.Times = append(ep.Times, t0.Add(time.Duration(k)*time.Millisecond))
		ep.Rows = append(ep.Rows, row)
	}
	return ep
}
