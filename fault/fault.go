// Package fault holds the error categories shared by the fly-scan optimizer.
//
// Producers wrap one of the sentinels with detail, e.g.
//
//	fmt.Errorf("%w: bounds for x are inverted", fault.ErrConfiguration)
//
// and callers test the category with errors.Is.  Nothing in this module
// retries on any of them; recovery policy belongs to the caller.
package fault

import "errors"

var (
	// ErrConfiguration is generated for invalid bounds, missing parameters
	// for the chosen evaluation mode, or an unset velocity ceiling.  It is
	// always raised before any axis is commanded to move.
	ErrConfiguration = errors.New("configuration error")

	// ErrVelocityInfeasible is generated when no velocity assignment
	// satisfies every axis' limits, even with the fallback pacing axis
	ErrVelocityInfeasible = errors.New("velocity assignment infeasible")

	// ErrMotion is generated when an axis rejects a command or faults
	// during a move.  The episode it happened in is invalid.
	ErrMotion = errors.New("motion failure")

	// ErrDataUnavailable is generated when a recorded episode can not be
	// retrieved or is malformed
	ErrDataUnavailable = errors.New("data unavailable")
)
