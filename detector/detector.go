// Package detector describes scalar signal sources read during a fly scan,
// a model detector whose signal is a Gaussian of the axis positions, and a
// detector served over HTTP.
package detector

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.jpl.nasa.gov/bdube/flyopt/comm"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

// Detector is a scalar signal source
type Detector interface {
	// Start prepares the detector for reads
	Start() error

	// Stop ends a series of reads
	Stop() error

	// Read returns one intensity value
	Read() (float64, error)
}

// Gaussian is the model signal amp*exp(-(s-Center)^2/(2*Width^2)), where s
// is the weighted sum of the positions
type Gaussian struct {
	Weights []float64 `yaml:"Weights" koanf:"Weights"`
	Center  float64   `yaml:"Center" koanf:"Center"`
	Width   float64   `yaml:"Width" koanf:"Width"`
	Amp     float64   `yaml:"Amp" koanf:"Amp"`
}

// DefaultGaussian returns the model used on the test stand, with n weights
// of 0.2
func DefaultGaussian(n int) Gaussian {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.2
	}
	return Gaussian{Weights: w, Center: 48.2, Width: 10, Amp: 10}
}

// Signal evaluates the model at pos, which must hold one position per weight
func (g Gaussian) Signal(pos []float64) float64 {
	s := 0.
	for i, p := range pos {
		s += g.Weights[i] * p
	}
	d := s - g.Center
	return math.Exp(-(d*d)/(2*g.Width*g.Width)) * g.Amp
}

// Validate returns a configuration error if the model can not be evaluated
// for n positions
func (g Gaussian) Validate(n int) error {
	if len(g.Weights) != n {
		return fmt.Errorf("%w: gaussian has %d weights for %d axes", fault.ErrConfiguration, len(g.Weights), n)
	}
	if g.Width == 0 {
		return fmt.Errorf("%w: gaussian width must be nonzero", fault.ErrConfiguration)
	}
	return nil
}

// Model is a Detector whose reading is a Gaussian of the live positions of
// some axes
type Model struct {
	sync.Mutex
	Gaussian

	positions func() ([]float64, error)
	running   bool
}

// NewModel returns a model detector.  positions reads the positions the
// signal is computed from, in the order of the weights.
func NewModel(g Gaussian, positions func() ([]float64, error)) *Model {
	return &Model{Gaussian: g, positions: positions}
}

// Start starts the detector
func (m *Model) Start() error {
	m.Lock()
	defer m.Unlock()
	m.running = true
	return nil
}

// Stop stops the detector
func (m *Model) Stop() error {
	m.Lock()
	defer m.Unlock()
	m.running = false
	return nil
}

// Running returns true between Start and Stop
func (m *Model) Running() bool {
	m.Lock()
	defer m.Unlock()
	return m.running
}

// Read evaluates the model at the current positions.  Reads are allowed
// while stopped, like a free-running diode.
func (m *Model) Read() (float64, error) {
	pos, err := m.positions()
	if err != nil {
		return 0, err
	}
	if len(pos) != len(m.Weights) {
		return 0, fmt.Errorf("%w: %d positions for %d weights", fault.ErrConfiguration, len(pos), len(m.Weights))
	}
	return m.Signal(pos), nil
}

// Remote is a detector served over HTTP.  Read is a GET of ReadPath
// returning {"f64": value}; Start and Stop POST {"bool": true|false} to
// RunPath when it is set.
type Remote struct {
	c *comm.Client

	// ReadPath is the route of the reading, e.g. /intensity
	ReadPath string

	// RunPath is the route controlling acquisition; empty if the detector
	// is free-running
	RunPath string
}

// NewRemote returns a detector read from path on the server behind c
func NewRemote(c *comm.Client, path string) *Remote {
	return &Remote{c: c, ReadPath: path}
}

func (r *Remote) run(b bool) error {
	if r.RunPath == "" {
		return nil
	}
	body := struct {
		Bool bool `json:"bool"`
	}{b}
	return r.c.PostJSON(context.Background(), r.RunPath, body)
}

// Start starts acquisition
func (r *Remote) Start() error {
	return r.run(true)
}

// Stop stops acquisition
func (r *Remote) Stop() error {
	return r.run(false)
}

// Read reads the intensity
func (r *Remote) Read() (float64, error) {
	return r.c.GetFloat(context.Background(), r.ReadPath)
}
