package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/comm"
	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
	"github.jpl.nasa.gov/bdube/flyopt/scan"
)

func TestNewStageConfigurationErrors(t *testing.T) {
	cases := map[string]func(*Config){
		"axes":     func(c *Config) { c.Axes = nil },
		"weights":  func(c *Config) { c.Axes = c.Axes[:2] },
		"start":    func(c *Config) { c.Axes[0].Start = 200 },
		"names":    func(c *Config) { c.Axes[1].Name = "x" },
		"gaussian": func(c *Config) { c.Gaussian.Width = 0 },
	}
	for name, mod := range cases {
		c := DefaultConfig()
		mod(&c)
		if _, err := NewStage(c); !errors.Is(err, fault.ErrConfiguration) {
			t.Errorf("%s: expected a configuration error, got %v", name, err)
		}
	}
}

func TestFlyOverHTTP(t *testing.T) {
	c := DefaultConfig()
	c.Speedup = 200
	c.Log = false
	s, err := NewStage(c)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(BuildMux(c, s))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	client := comm.NewClient(srv.URL + c.Endpoint)
	if err = client.Dial(ctx, "/intensity"); err != nil {
		t.Fatal(err)
	}
	var axes []motion.Axis
	for _, name := range []string{"x", "y", "z"} {
		lim, err := motion.FetchLimits(ctx, client, name)
		if err != nil {
			t.Fatal(err)
		}
		axes = append(axes, motion.NewRemote(client, name, lim))
	}
	det := detector.NewRemote(client, "/intensity")
	det.RunPath = "/intensity/run"
	b := population.Bounds{
		"x": {population.Position: {Min: 75, Max: 79}},
		"y": {population.Position: {Min: 37, Max: 41}},
		"z": {population.Position: {Min: 19, Max: 21}},
	}
	l := b.Layout()
	rec := recorder.NewMemory()
	r, err := scan.NewRunner(axes, l, det, rec, motion.Caps{})
	if err != nil {
		t.Fatal(err)
	}
	hw, err := scan.NewHardware(r)
	if err != nil {
		t.Fatal(err)
	}
	if err = b.Within(hw.TravelLimits()); err != nil {
		t.Fatal(err)
	}
	cur, err := hw.Current()
	if err != nil {
		t.Fatal(err)
	}
	pop := []population.Individual{cur, population.FromVector(l, []float64{78, 40, 20})}
	inds, fits, err := hw.Evaluate(ctx, pop)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Len() != 2 || len(fits) != 2 {
		t.Fatalf("expected 2 episodes, got %d", rec.Len())
	}
	if x, _ := inds[1].Get(l[0]); x != 78 {
		t.Errorf("expected the best of the rising path at its end, x=78, got %f", x)
	}
	if s.Detector.Running() {
		t.Error("expected the detector to be stopped after the episode")
	}
	if p, _ := s.Axes[0].GetPos(); p != 78 {
		t.Errorf("expected x to rest at 78, got %f", p)
	}
}
