// Package motion describes positioning axes, the completion handle returned
// by a move, and how to pace several axes so that they arrive together.
package motion

import (
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// Axis describes a single controllable positioning degree of freedom
type Axis interface {
	// Name returns the name of the axis
	Name() string

	// GetPos gets the current readback position of the axis
	GetPos() (float64, error)

	// MoveAbs commands a move to an absolute position.  It does not wait for
	// the move to finish; the returned Status reports progress and completion
	MoveAbs(float64) (*Status, error)

	// GetVelocity gets the velocity setpoint of the axis
	GetVelocity() (float64, error)

	// SetVelocity sets the velocity setpoint of the axis
	SetVelocity(float64) error

	// Limits returns the static travel and velocity limits of the axis
	Limits() Limits
}

// Limits holds the static limits of an axis.
// A Velocity.Max of zero means the axis has no upper velocity limit.
type Limits struct {
	Travel   util.Limiter `yaml:"Travel" koanf:"Travel"`
	Velocity util.Limiter `yaml:"Velocity" koanf:"Velocity"`
}
