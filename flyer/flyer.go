// Package flyer coordinates one fly scan: a synchronized multi-axis move
// during which the detector is sampled every time the pacing axis reports a
// new position.
//
// A Flyer is used once, in the order
//
//	f.Kickoff()       // Idle -> Armed -> Moving
//	f.Complete(ctx)   // Moving -> Complete
//	f.Collect()       // Complete -> Collected
package flyer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/detector"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/motion"
)

// DefaultName is the name given to flyers, which prefixes their columns
const DefaultName = "tes_hardware_flyer"

// State is the lifecycle stage of a Flyer
type State int

const (
	// Idle flyers have not been kicked off
	Idle State = iota

	// Armed flyers have started the detector and taken the initial sample
	Armed

	// Moving flyers have commanded every axis and are sampling
	Moving

	// Complete flyers have seen the pacing axis finish and stopped the
	// detector
	Complete

	// Collected flyers have handed off their samples
	Collected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Moving:
		return "moving"
	case Complete:
		return "complete"
	case Collected:
		return "collected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrState is generated when a lifecycle method is called out of order
var ErrState = errors.New("flyer operation not allowed in this state")

// Sample is one reading taken during a fly scan
type Sample struct {
	Time time.Time

	// Positions holds the readback of every axis, in axis order
	Positions []float64

	Intensity float64
}

// Flyer is a stateful coordinator for one motion + sampling episode
type Flyer struct {
	// Name prefixes the column names of the collected records
	Name string

	axes    []motion.Axis
	det     detector.Detector
	targets []float64
	vels    []float64
	times   []float64

	mu        sync.Mutex
	state     State
	pace      int
	status    *motion.Status
	sub       *motion.Subscription
	samples   []Sample
	sampleErr error
	failed    error
}

// New returns an idle Flyer that will move each axis to targets[i] at
// vels[i].  times are the planned travel times; the axis with the longest
// one paces the episode.
func New(axes []motion.Axis, det detector.Detector, targets, vels, times []float64) (*Flyer, error) {
	n := len(axes)
	if n == 0 || len(targets) != n || len(vels) != n || len(times) != n {
		return nil, fmt.Errorf("%w: flyer needs one target, velocity and time per axis: %d axes, %d targets, %d velocities, %d times",
			fault.ErrConfiguration, n, len(targets), len(vels), len(times))
	}
	if det == nil {
		return nil, fmt.Errorf("%w: flyer needs a detector", fault.ErrConfiguration)
	}
	return &Flyer{
		Name:    DefaultName,
		axes:    axes,
		det:     det,
		targets: targets,
		vels:    vels,
		times:   times,
		pace:    motion.Pacing(times),
	}, nil
}

// State returns the current lifecycle stage
func (f *Flyer) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pacing returns the index of the pacing axis
func (f *Flyer) Pacing() int {
	return f.pace
}

// Kickoff starts the detector, takes one sample before anything moves, sets
// every velocity, then commands every axis.  Axes given a zero velocity are
// not commanded.  It does not wait for motion.
// A failure after the first move was issued leaves the episode invalid; the
// flyer can not be completed.
func (f *Flyer) Kickoff() error {
	f.mu.Lock()
	if f.state != Idle {
		s := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: kickoff while %s", ErrState, s)
	}
	f.mu.Unlock()

	if err := f.det.Start(); err != nil {
		return fmt.Errorf("starting detector: %w", err)
	}
	s, err := f.read()
	if err != nil {
		f.det.Stop()
		return err
	}
	f.mu.Lock()
	f.samples = append(f.samples, s)
	f.state = Armed
	f.mu.Unlock()

	for i, ax := range f.axes {
		if err := ax.SetVelocity(f.vels[i]); err != nil {
			return f.fail(asMotion(err, ax.Name()))
		}
	}

	f.mu.Lock()
	f.state = Moving
	f.mu.Unlock()
	for i, ax := range f.axes {
		if f.vels[i] == 0 {
			// nothing to cover; a previous move may still be settling here
			if i == f.pace {
				f.mu.Lock()
				f.status = motion.Completed(nil)
				f.sub = f.status.Watch(f.onUpdate)
				f.mu.Unlock()
			}
			continue
		}
		st, err := ax.MoveAbs(f.targets[i])
		if err != nil {
			return f.fail(asMotion(err, ax.Name()))
		}
		if i == f.pace {
			f.mu.Lock()
			f.status = st
			f.sub = st.Watch(f.onUpdate)
			f.mu.Unlock()
		}
	}
	return nil
}

// fail marks the episode invalid and stops the detector
func (f *Flyer) fail(err error) error {
	f.mu.Lock()
	f.failed = err
	if f.sub != nil {
		f.sub.Cancel()
	}
	f.mu.Unlock()
	f.det.Stop()
	return err
}

func asMotion(err error, axis string) error {
	if errors.Is(err, fault.ErrMotion) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", fault.ErrMotion, axis, err)
}

// read takes one sample of every axis and the detector
func (f *Flyer) read() (Sample, error) {
	s := Sample{Time: time.Now(), Positions: make([]float64, len(f.axes))}
	for i, ax := range f.axes {
		p, err := ax.GetPos()
		if err != nil {
			return s, fmt.Errorf("reading %s: %w", ax.Name(), err)
		}
		s.Positions[i] = p
	}
	v, err := f.det.Read()
	if err != nil {
		return s, fmt.Errorf("reading detector: %w", err)
	}
	s.Intensity = v
	return s, nil
}

// onUpdate is the pacing axis' position callback
func (f *Flyer) onUpdate(motion.Update) {
	f.mu.Lock()
	moving := f.state == Moving && f.failed == nil
	f.mu.Unlock()
	if !moving {
		return
	}
	s, err := f.read()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Moving {
		return
	}
	if err != nil {
		if f.sampleErr == nil {
			f.sampleErr = err
		}
		return
	}
	f.samples = append(f.samples, s)
}

// Complete blocks until the pacing axis finishes or ctx ends, then stops the
// detector.  Other axes may still be settling when it returns.
func (f *Flyer) Complete(ctx context.Context) error {
	f.mu.Lock()
	if f.state != Moving || f.failed != nil {
		s, failed := f.state, f.failed
		f.mu.Unlock()
		if failed != nil {
			return fmt.Errorf("%w: complete after a failed kickoff: %v", ErrState, failed)
		}
		return fmt.Errorf("%w: complete while %s", ErrState, s)
	}
	st, sub := f.status, f.sub
	f.mu.Unlock()

	err := st.Wait(ctx)
	sub.Cancel()
	stopErr := f.det.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case ctx.Err() != nil && err == ctx.Err():
		f.failed = err
		return err
	case err != nil:
		f.failed = asMotion(err, f.axes[f.pace].Name())
		return f.failed
	case f.sampleErr != nil:
		f.failed = f.sampleErr
		return f.sampleErr
	}
	f.state = Complete
	if stopErr != nil {
		return fmt.Errorf("stopping detector: %w", stopErr)
	}
	return nil
}

// Collect hands off the samples as a single-pass sequence of records.  The
// flyer keeps no copy.
func (f *Flyer) Collect() (*Records, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Complete {
		return nil, fmt.Errorf("%w: collect while %s", ErrState, f.state)
	}
	f.state = Collected
	names := make([]string, len(f.axes))
	for i, ax := range f.axes {
		names[i] = ax.Name()
	}
	r := &Records{
		columns: Columns(f.Name, names),
		vels:    f.vels,
		samples: f.samples,
		idx:     -1,
	}
	f.samples = nil
	return r, nil
}

// Describe returns the column names of the collected records
func (f *Flyer) Describe() []string {
	names := make([]string, len(f.axes))
	for i, ax := range f.axes {
		names[i] = ax.Name()
	}
	return Columns(f.Name, names)
}
