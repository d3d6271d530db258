package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.jpl.nasa.gov/bdube/flyopt/comm"
	"github.jpl.nasa.gov/bdube/flyopt/de"
	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
	"github.jpl.nasa.gov/bdube/flyopt/scan"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// RecorderSetup selects where episodes are kept
type RecorderSetup struct {
	// Kind is one of memory, fits, sqlite
	Kind string `yaml:"Kind" koanf:"Kind"`

	// Root is the folder FITS files are written under, in day folders
	Root string `yaml:"Root" koanf:"Root"`

	// Prefix is prepended to FITS file names
	Prefix string `yaml:"Prefix" koanf:"Prefix"`

	// Path is the sqlite database file
	Path string `yaml:"Path" koanf:"Path"`
}

// Config holds the parameters of an optimization run
type Config struct {
	// Mode is simulated or hardware
	Mode string `yaml:"Mode" koanf:"Mode"`

	// DE holds the optimizer parameters
	DE de.Config `yaml:"DE" koanf:"DE"`

	// Bounds holds the position search range of each axis
	Bounds map[string]util.Limiter `yaml:"Bounds" koanf:"Bounds"`

	// Start is where the axes rest at in simulated mode
	Start map[string]float64 `yaml:"Start" koanf:"Start"`

	// Intermediate is the number of path segments sampled per episode in
	// simulated mode
	Intermediate int `yaml:"Intermediate" koanf:"Intermediate"`

	// Gaussian is the model signal of simulated mode, with weights in
	// alphabetical order of the axes
	Gaussian detector.Gaussian `yaml:"Gaussian" koanf:"Gaussian"`

	// Server is the base URL of the hardware server, e.g.
	// http://localhost:8000/stage
	Server string `yaml:"Server" koanf:"Server"`

	// Detector is the route of the intensity on the server
	Detector string `yaml:"Detector" koanf:"Detector"`

	// DetectorRun is the route that starts and stops acquisition, if any
	DetectorRun string `yaml:"DetectorRun" koanf:"DetectorRun"`

	// Caps are the global velocity caps
	Caps motion.Caps `yaml:"Caps" koanf:"Caps"`

	// Recorder selects the episode store
	Recorder RecorderSetup `yaml:"Recorder" koanf:"Recorder"`

	// MetricsAddr is the address prometheus metrics are served at; empty
	// disables them
	MetricsAddr string `yaml:"MetricsAddr" koanf:"MetricsAddr"`
}

// DefaultConfig returns the test stand configuration, simulated
func DefaultConfig() Config {
	return Config{
		Mode: "simulated",
		DE:   de.DefaultConfig(),
		Bounds: map[string]util.Limiter{
			"x": {Min: 75, Max: 79},
			"y": {Min: 37, Max: 41},
			"z": {Min: 19, Max: 21}},
		Start:        map[string]float64{"x": 75, "y": 37, "z": 19},
		Intermediate: 10,
		Gaussian:     detector.DefaultGaussian(3),
		Server:       "http://localhost:8000/stage",
		Detector:     "/intensity",
		Recorder:     RecorderSetup{Kind: "memory", Root: ".", Prefix: "flyscan-", Path: "flyopt.db"},
		MetricsAddr:  ""}
}

// bounds converts the configured ranges to position bounds
func (c Config) bounds() population.Bounds {
	b := population.Bounds{}
	for axis, lim := range c.Bounds {
		b[axis] = map[string]util.Limiter{population.Position: lim}
	}
	return b
}

// Run holds what one run needs, and what has to be released after it
type Run struct {
	Optimizer *de.Optimizer
	Recorder  recorder.Recorder
	closers   []io.Closer
}

// Close releases the recorder
func (r *Run) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// buildRecorder opens the configured episode store
func buildRecorder(ctx context.Context, s RecorderSetup) (recorder.Recorder, io.Closer, error) {
	switch strings.ToLower(s.Kind) {
	case "", "memory":
		return recorder.NewMemory(), nil, nil
	case "fits":
		return recorder.NewFITS(s.Root, s.Prefix), nil, nil
	case "sqlite":
		db, err := recorder.OpenSQLite(ctx, s.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown recorder %q", fault.ErrConfiguration, s.Kind)
	}
}

// buildEvaluator returns the evaluator for the configured mode
func buildEvaluator(ctx context.Context, c Config, l population.Layout, rec recorder.Recorder) (de.Evaluator, error) {
	switch strings.ToLower(c.Mode) {
	case "simulated":
		if err := c.Gaussian.Validate(len(l)); err != nil {
			return nil, err
		}
		start := population.Individual{}
		for _, k := range l {
			if v, ok := c.Start[k.Axis]; ok {
				start.Set(k, v)
			}
		}
		return scan.NewSimulated(start, l, c.Gaussian.Signal, c.Intermediate, rec)
	case "hardware":
		if c.Server == "" || c.Detector == "" {
			return nil, fmt.Errorf("%w: hardware mode needs a server and a detector route", fault.ErrConfiguration)
		}
		client := comm.NewClient(c.Server)
		if err := client.Dial(ctx, c.Detector); err != nil {
			return nil, err
		}
		var axes []motion.Axis
		for _, name := range l.Axes() {
			lim, err := motion.FetchLimits(ctx, client, name)
			if err != nil {
				return nil, fmt.Errorf("axis %s: %w", name, err)
			}
			axes = append(axes, motion.NewRemote(client, name, lim))
		}
		det := detector.NewRemote(client, c.Detector)
		det.RunPath = c.DetectorRun
		r, err := scan.NewRunner(axes, l, det, rec, c.Caps)
		if err != nil {
			return nil, err
		}
		return scan.NewHardware(r)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q, expected simulated or hardware", fault.ErrConfiguration, c.Mode)
	}
}

// Build assembles an optimizer from c.  Every configuration error is
// returned here, before anything moves.
func Build(ctx context.Context, c Config, logger *log.Logger) (*Run, error) {
	b := c.bounds()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	rec, closer, err := buildRecorder(ctx, c.Recorder)
	if err != nil {
		return nil, err
	}
	run := &Run{Recorder: rec}
	if closer != nil {
		run.closers = append(run.closers, closer)
	}
	eval, err := buildEvaluator(ctx, c, b.Layout(), rec)
	if err != nil {
		run.Close()
		return nil, err
	}
	o, err := de.New(c.DE, b, eval)
	if err != nil {
		run.Close()
		return nil, err
	}
	o.Logger = logger
	run.Optimizer = o
	return run, nil
}
