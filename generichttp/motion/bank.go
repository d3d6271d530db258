package motion

import (
	"fmt"
	"sort"

	flymotion "github.jpl.nasa.gov/bdube/flyopt/motion"
)

// Bank is a set of independent axes addressed by name.  It satisfies
// Controller, Speeder and InPositionQueryer.
type Bank map[string]flymotion.Axis

// NewBank returns a Bank keyed by each axis' name
func NewBank(axes ...flymotion.Axis) Bank {
	b := Bank{}
	for _, a := range axes {
		b[a.Name()] = a
	}
	return b
}

// Names returns the sorted axis names
func (b Bank) Names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Limits returns the static limits of every axis, for a LimitMiddleware
func (b Bank) Limits() map[string]flymotion.Limits {
	out := make(map[string]flymotion.Limits, len(b))
	for k, a := range b {
		out[k] = a.Limits()
	}
	return out
}

func (b Bank) get(axis string) (flymotion.Axis, error) {
	a, ok := b[axis]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, axis)
	}
	return a, nil
}

// GetPos gets the position of an axis
func (b Bank) GetPos(axis string) (float64, error) {
	a, err := b.get(axis)
	if err != nil {
		return 0, err
	}
	return a.GetPos()
}

// MoveAbs starts a move of an axis.  Completion is observed by polling
// GetInPosition.
func (b Bank) MoveAbs(axis string, pos float64) error {
	a, err := b.get(axis)
	if err != nil {
		return err
	}
	_, err = a.MoveAbs(pos)
	return err
}

// GetVelocity gets the velocity setpoint of an axis
func (b Bank) GetVelocity(axis string) (float64, error) {
	a, err := b.get(axis)
	if err != nil {
		return 0, err
	}
	return a.GetVelocity()
}

// SetVelocity sets the velocity setpoint of an axis
func (b Bank) SetVelocity(axis string, v float64) error {
	a, err := b.get(axis)
	if err != nil {
		return err
	}
	return a.SetVelocity(v)
}

// GetInPosition returns true if the axis is not moving.  Axes which can not
// report it return an error.
func (b Bank) GetInPosition(axis string) (bool, error) {
	a, err := b.get(axis)
	if err != nil {
		return false, err
	}
	q, ok := a.(interface{ GetInPosition() (bool, error) })
	if !ok {
		return false, fmt.Errorf("axis %q can not report whether it is in position", axis)
	}
	return q.GetInPosition()
}
