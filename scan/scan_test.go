package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/flyer"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

var xLayout = population.Layout{{Axis: "x", Param: population.Position}}

func oneAxisEpisode(inten, pos []float64) recorder.Episode {
	ep := recorder.Episode{Columns: flyer.Columns(flyer.DefaultName, []string{"x"})}
	t0 := time.Now()
	for i := range inten {
		ep.Times = append(ep.Times, t0.Add(time.Duration(i)*time.Millisecond))
		ep.Rows = append(ep.Rows, []float64{inten[i], 1, pos[i]})
	}
	return ep
}

func TestExtractCreditsBestOfTrajectory(t *testing.T) {
	rec := recorder.NewMemory()
	id, err := rec.Record(oneAxisEpisode([]float64{1, 9, 5}, []float64{75, 76, 77}))
	if err != nil {
		t.Fatal(err)
	}
	inds, fits, err := Extract(rec, []string{id}, xLayout, flyer.DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	if fits[0] != 9 {
		t.Errorf("expected fitness 9 from the second sample, got %f", fits[0])
	}
	if x, _ := inds[0].Get(xLayout[0]); x != 76 {
		t.Errorf("expected x=76 from the second sample, got %f", x)
	}
}

func TestExtractKeepsRestingSampleOnTies(t *testing.T) {
	rec := recorder.NewMemory()
	a, _ := rec.Record(oneAxisEpisode([]float64{1, 5, 5}, []float64{75, 76, 77}))
	b, _ := rec.Record(oneAxisEpisode([]float64{1, 2, 3}, []float64{75, 76, 77}))
	inds, fits, err := Extract(rec, []string{a, b}, xLayout, flyer.DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	for i := range inds {
		if x, _ := inds[i].Get(xLayout[0]); x != 77 {
			t.Errorf("episode %d: expected the resting x=77, got %f", i, x)
		}
	}
	if fits[0] != 5 || fits[1] != 3 {
		t.Errorf("expected fitness [5 3], got %v", fits)
	}
}

func TestExtractUnknownEpisode(t *testing.T) {
	_, _, err := Extract(recorder.NewMemory(), []string{"nope"}, xLayout, flyer.DefaultName)
	if !errors.Is(err, fault.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestNewSimulatedRequiresParameters(t *testing.T) {
	start := population.Individual{"x": {population.Position: 75}}
	sig := func([]float64) float64 { return 0 }
	rec := recorder.NewMemory()
	cases := map[string]func() error{
		"no signal": func() error {
			_, err := NewSimulated(start, xLayout, nil, 3, rec)
			return err
		},
		"no intermediate": func() error {
			_, err := NewSimulated(start, xLayout, sig, 0, rec)
			return err
		},
		"no recorder": func() error {
			_, err := NewSimulated(start, xLayout, sig, 3, nil)
			return err
		},
		"no start": func() error {
			_, err := NewSimulated(population.Individual{}, xLayout, sig, 3, rec)
			return err
		},
	}
	for name, fn := range cases {
		if err := fn(); !errors.Is(err, fault.ErrConfiguration) {
			t.Errorf("%s: expected a configuration error, got %v", name, err)
		}
	}
}

func TestSimulatedEvaluate(t *testing.T) {
	start := population.Individual{"x": {population.Position: 0}}
	// peak at 5
	sig := func(p []float64) float64 { return 10 - (p[0]-5)*(p[0]-5) }
	sim, err := NewSimulated(start, xLayout, sig, 4, recorder.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	pop := []population.Individual{
		{"x": {population.Position: 0}},
		{"x": {population.Position: 8}},
		{"x": {population.Position: 9}},
	}
	inds, fits, err := sim.Evaluate(context.Background(), pop)
	if err != nil {
		t.Fatal(err)
	}
	// the zero-length first path rests at 0
	if fits[0] != -15 {
		t.Errorf("expected fitness -15 at rest, got %f", fits[0])
	}
	// 0 -> 8 in 4 steps passes 4 and 6, both 9
	if x, _ := inds[1].Get(xLayout[0]); x != 4 || fits[1] != 9 {
		t.Errorf("expected the first maximum x=4 with 9, got x=%f with %f", x, fits[1])
	}
	// 8 -> 9 only gets worse, so the start of the path is credited
	if x, _ := inds[2].Get(xLayout[0]); x != 8 || fits[2] != 1 {
		t.Errorf("expected x=8 with 1, got x=%f with %f", x, fits[2])
	}
	cur, _ := sim.Current()
	if x, _ := cur.Get(xLayout[0]); x != 9 {
		t.Errorf("expected the virtual position at 9, got %f", x)
	}
	if err = sim.MoveTo(context.Background(), pop[1]); err != nil {
		t.Fatal(err)
	}
	cur, _ = sim.Current()
	if x, _ := cur.Get(xLayout[0]); x != 8 {
		t.Errorf("expected the virtual position at 8 after MoveTo, got %f", x)
	}
}

func stage(t *testing.T) ([]motion.Axis, population.Layout, *detector.Model) {
	t.Helper()
	lim := motion.Limits{
		Travel:   util.Limiter{Min: -1000, Max: 1000},
		Velocity: util.Limiter{Min: 0, Max: 5}}
	starts := map[string]float64{"x": 75, "y": 37, "z": 19}
	var axes []motion.Axis
	for _, name := range []string{"x", "y", "z"} {
		m := motion.NewMock(name, lim, starts[name])
		m.Period = 100 * time.Microsecond
		m.Speedup = 200
		axes = append(axes, m)
	}
	layout := population.Bounds{
		"x": {population.Position: {Min: 75, Max: 79}},
		"y": {population.Position: {Min: 37, Max: 41}},
		"z": {population.Position: {Min: 19, Max: 21}},
	}.Layout()
	det := detector.NewModel(detector.DefaultGaussian(3), func() ([]float64, error) {
		out := make([]float64, len(axes))
		for i, a := range axes {
			out[i], _ = a.GetPos()
		}
		return out, nil
	})
	return axes, layout, det
}

func TestNewRunnerRequiresParameters(t *testing.T) {
	axes, layout, det := stage(t)
	rec := recorder.NewMemory()
	if _, err := NewRunner(axes, layout, nil, rec, motion.Caps{}); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error without a detector, got %v", err)
	}
	if _, err := NewRunner(axes[:2], layout, det, rec, motion.Caps{}); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error for a missing axis, got %v", err)
	}
	if _, err := NewHardware(nil); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error without a runner, got %v", err)
	}
}

func TestHardwareEvaluateAndMoveTo(t *testing.T) {
	axes, layout, det := stage(t)
	rec := recorder.NewMemory()
	r, err := NewRunner(axes, layout, det, rec, motion.Caps{})
	if err != nil {
		t.Fatal(err)
	}
	hw, err := NewHardware(r)
	if err != nil {
		t.Fatal(err)
	}
	cur, err := hw.Current()
	if err != nil {
		t.Fatal(err)
	}
	pop := []population.Individual{
		cur,
		population.FromVector(layout, []float64{77, 39, 20}),
		population.FromVector(layout, []float64{79, 41, 21}),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	inds, fits, err := hw.Evaluate(ctx, pop)
	if err != nil {
		t.Fatal(err)
	}
	if len(inds) != 3 || len(fits) != 3 || rec.Len() != 3 {
		t.Fatalf("expected 3 episodes, got %d individuals %d fitness %d recorded", len(inds), len(fits), rec.Len())
	}
	// the signal rises monotonically toward 79, 41, 21, so every flown
	// episode ends at its best sample
	if x, _ := inds[2].Get(layout[0]); x != 79 {
		t.Errorf("expected the last episode to end at x=79, got %f", x)
	}
	if fits[2] <= fits[0] {
		t.Errorf("expected fitness to rise toward the center, got %v", fits)
	}

	target := population.FromVector(layout, []float64{76, 38, 19.5})
	if err = hw.MoveTo(ctx, target); err != nil {
		t.Fatal(err)
	}
	for i, a := range axes {
		p, _ := a.GetPos()
		if exp := target.Vector(layout)[i]; p != exp {
			t.Errorf("axis %s: expected %f, got %f", a.Name(), exp, p)
		}
	}
	travel := hw.TravelLimits()
	if travel["x"].Max != 1000 {
		t.Errorf("expected travel limits from the axes, got %v", travel)
	}
}

func TestInfeasiblePopulationDoesNotMove(t *testing.T) {
	axes, layout, det := stage(t)
	r, err := NewRunner(axes, layout, det, recorder.NewMemory(), motion.Caps{Min: 6})
	if err != nil {
		t.Fatal(err)
	}
	pop := []population.Individual{
		population.FromVector(layout, []float64{75, 37, 19}),
		population.FromVector(layout, []float64{79, 38, 19}),
	}
	if _, err = r.Fly(context.Background(), pop); !errors.Is(err, fault.ErrVelocityInfeasible) {
		t.Fatalf("expected ErrVelocityInfeasible, got %v", err)
	}
	if p, _ := axes[0].GetPos(); p != 75 {
		t.Errorf("expected x to stay at 75, got %f", p)
	}
}
