package motion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

const (
	mockServoPeriod = 250 * time.Microsecond // 4kHz servo rate, like an XPS
)

var (
	// ErrSuperseded finishes a move that was replaced by a newer command
	ErrSuperseded = errors.New("move superseded by a new command")

	// ErrSoftLimit is generated when a commanded position is outside the
	// travel limits of the axis
	ErrSoftLimit = errors.New("requested position violates software limits, aborted")
)

// Mock is a simulated axis.  A servo goroutine advances the position by
// velocity*Period*Speedup every Period until the target is reached,
// publishing each step to the move's Status.
type Mock struct {
	sync.Mutex

	name   string
	limits Limits
	pos    float64
	vel    float64
	moving bool
	stop   chan struct{}

	// Period is the servo period
	Period time.Duration

	// Speedup scales simulated time relative to wall time, so that a move
	// which would take one second with Speedup=100 takes 10ms
	Speedup float64
}

// NewMock returns a new simulated axis resting at start, with its velocity
// set to the upper velocity limit (or 1 if that is unset)
func NewMock(name string, limits Limits, start float64) *Mock {
	vel := limits.Velocity.Max
	if vel == 0 {
		vel = 1
	}
	return &Mock{
		name:    name,
		limits:  limits,
		pos:     start,
		vel:     vel,
		Period:  mockServoPeriod,
		Speedup: 1}
}

// Name returns the name of the axis
func (m *Mock) Name() string {
	return m.name
}

// Limits returns the limits of the axis
func (m *Mock) Limits() Limits {
	return m.limits
}

// GetPos gets the current position
func (m *Mock) GetPos() (float64, error) {
	m.Lock()
	defer m.Unlock()
	return m.pos, nil
}

// GetVelocity gets the velocity setpoint
func (m *Mock) GetVelocity() (float64, error) {
	m.Lock()
	defer m.Unlock()
	return m.vel, nil
}

// SetVelocity sets the velocity setpoint, which applies to the next move.
// It is refused when v is outside the velocity limits.
func (m *Mock) SetVelocity(v float64) error {
	m.Lock()
	defer m.Unlock()
	lim := m.limits.Velocity
	if v < 0 || v < lim.Min || (lim.Max != 0 && v > lim.Max) {
		return fmt.Errorf("%w: %s: velocity %g outside %v", fault.ErrMotion, m.name, v, lim)
	}
	m.vel = v
	return nil
}

// GetInPosition returns true if the axis is not moving
func (m *Mock) GetInPosition() (bool, error) {
	m.Lock()
	defer m.Unlock()
	return !m.moving, nil
}

// MoveAbs starts a move to pos.  A move already in progress is superseded
// and its Status finishes with ErrSuperseded.
func (m *Mock) MoveAbs(pos float64) (*Status, error) {
	m.Lock()
	defer m.Unlock()
	if !m.limits.Travel.Check(pos) {
		return nil, fmt.Errorf("%w: %s to %g: %v", fault.ErrMotion, m.name, pos, ErrSoftLimit)
	}
	if m.vel <= 0 && pos != m.pos {
		return nil, fmt.Errorf("%w: %s: velocity is zero", fault.ErrMotion, m.name)
	}
	if m.stop != nil {
		close(m.stop)
	}
	stop := make(chan struct{})
	m.stop = stop
	m.moving = true
	st := NewStatus()
	go m.moveTo(pos, m.vel, st, stop)
	return st, nil
}

func (m *Mock) moveTo(target, vel float64, st *Status, stop chan struct{}) {
	tick := time.NewTicker(m.Period)
	defer tick.Stop()
	step := vel * m.Period.Seconds() * m.Speedup
	superseded := fmt.Errorf("%w: %s: %v", fault.ErrMotion, m.name, ErrSuperseded)
	for {
		select {
		case <-stop:
			st.Finish(superseded)
			return
		case <-tick.C:
		}
		m.Lock()
		select {
		case <-stop:
			m.Unlock()
			st.Finish(superseded)
			return
		default:
		}
		last := m.pos
		next := last + step
		if target < last {
			next = last - step
		}
		arrived := last == target ||
			(last < target && next >= target) ||
			(last > target && next <= target)
		if arrived {
			next = target
			m.moving = false
			m.stop = nil
		}
		m.pos = next
		m.Unlock()

		// the lock is released so watchers may read this axis
		st.Publish(next)
		if arrived {
			st.Finish(nil)
			return
		}
	}
}
