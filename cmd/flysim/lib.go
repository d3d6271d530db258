package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/generichttp"
	httpmotion "github.jpl.nasa.gov/bdube/flyopt/generichttp/motion"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// AxisSetup describes one simulated axis
type AxisSetup struct {
	Name     string       `yaml:"Name" koanf:"Name"`
	Start    float64      `yaml:"Start" koanf:"Start"`
	Travel   util.Limiter `yaml:"Travel" koanf:"Travel"`
	Velocity util.Limiter `yaml:"Velocity" koanf:"Velocity"`
}

// Config holds the parameters of the simulated stage
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Endpoint is the URL stem every route is served under, e.g. /stage
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`

	// Speedup scales simulated time, 10 runs moves ten times faster
	Speedup float64 `yaml:"Speedup" koanf:"Speedup"`

	// Axes are the simulated axes.  The detector weights follow their order.
	Axes []AxisSetup `yaml:"Axes" koanf:"Axes"`

	// Gaussian is the model signal read at /intensity
	Gaussian detector.Gaussian `yaml:"Gaussian" koanf:"Gaussian"`

	// Log enables request logging
	Log bool `yaml:"Log" koanf:"Log"`
}

// DefaultConfig returns a three axis stage around the test stand bounds
func DefaultConfig() Config {
	vel := util.Limiter{Min: 0, Max: 5}
	return Config{
		Addr:     ":8000",
		Endpoint: "/stage",
		Speedup:  1,
		Axes: []AxisSetup{
			{Name: "x", Start: 75, Travel: util.Limiter{Min: 0, Max: 100}, Velocity: vel},
			{Name: "y", Start: 37, Travel: util.Limiter{Min: 0, Max: 100}, Velocity: vel},
			{Name: "z", Start: 19, Travel: util.Limiter{Min: 0, Max: 100}, Velocity: vel}},
		Gaussian: detector.DefaultGaussian(3),
		Log:      true}
}

// Stage is the simulated hardware behind the server
type Stage struct {
	Axes     []*motion.Mock
	Detector *detector.Model
}

// positions reads the axes in configured order
func (s *Stage) positions() ([]float64, error) {
	out := make([]float64, len(s.Axes))
	for i, a := range s.Axes {
		p, err := a.GetPos()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// NewStage builds the axes and the detector described by c
func NewStage(c Config) (*Stage, error) {
	if len(c.Axes) == 0 {
		return nil, fmt.Errorf("%w: no axes", fault.ErrConfiguration)
	}
	if err := c.Gaussian.Validate(len(c.Axes)); err != nil {
		return nil, err
	}
	names := make([]string, len(c.Axes))
	s := &Stage{}
	for i, a := range c.Axes {
		names[i] = a.Name
		if !a.Travel.Valid() || !a.Travel.Check(a.Start) {
			return nil, fmt.Errorf("%w: axis %s starts at %g outside travel %v", fault.ErrConfiguration, a.Name, a.Start, a.Travel)
		}
		m := motion.NewMock(a.Name, motion.Limits{Travel: a.Travel, Velocity: a.Velocity}, a.Start)
		if c.Speedup > 0 {
			m.Speedup = c.Speedup
		}
		s.Axes = append(s.Axes, m)
	}
	if len(util.UniqueString(names)) != len(names) {
		return nil, fmt.Errorf("%w: axis names %v are not unique", fault.ErrConfiguration, names)
	}
	s.Detector = detector.NewModel(c.Gaussian, s.positions)
	return s, nil
}

// BuildMux serves the stage under c.Endpoint:
//
//	/axis/{axis}/...    the motion routes
//	GET  /intensity     -> {"f64": signal}
//	GET  /intensity/run -> {"bool": running}
//	POST /intensity/run <- {"bool": run}
func BuildMux(c Config, s *Stage) chi.Router {
	axes := make([]motion.Axis, len(s.Axes))
	for i, a := range s.Axes {
		axes[i] = a
	}
	bank := httpmotion.NewBank(axes...)
	ctl := httpmotion.NewHTTPMotionController(bank)
	lm := &httpmotion.LimitMiddleware{Limits: bank.Limits()}
	lm.Inject(ctl)
	rt := ctl.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/intensity"}] = generichttp.GetFloat(s.Detector.Read)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/intensity/run"}] = generichttp.GetBool(func() (bool, error) {
		return s.Detector.Running(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/intensity/run"}] = generichttp.SetBool(func(b bool) error {
		if b {
			return s.Detector.Start()
		}
		return s.Detector.Stop()
	})

	root := chi.NewRouter()
	if c.Log {
		root.Use(middleware.Logger)
	}
	sub := chi.NewRouter()
	sub.Use(lm.Check)
	rt.Bind(sub)
	root.Mount(generichttp.SubMuxSanitize(c.Endpoint), sub)
	return root
}
