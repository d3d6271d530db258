package motion

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/mathx"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// velocityDigits is the number of decimals derived velocities are rounded to
const velocityDigits = 5

// ErrNegativeDistance is generated when a distance to travel is below zero
var ErrNegativeDistance = fmt.Errorf("%w: distances must be non-negative", fault.ErrConfiguration)

// Caps are global velocity caps applied on top of each axis' own limits.
// Zero means unset.
type Caps struct {
	Max float64 `yaml:"Max" koanf:"Max"`
	Min float64 `yaml:"Min" koanf:"Min"`
}

// SyncVelocities computes one velocity per axis so that axes departing
// together, each traveling dists[i], arrive together.
//
// The axis with the farthest to go runs at its upper velocity limit (capped
// by caps.Max) and sets the travel time; every other axis gets
// dist/time rounded to five decimals, raised to caps.Min and its own lower
// limit if needed.  If that pushes some limited axis past its upper limit,
// the moving axis with the lowest upper limit paces instead.  If that fails
// too, the error wraps fault.ErrVelocityInfeasible.
//
// When nothing moves, every axis gets its lower velocity limit.
func SyncVelocities(names []string, dists []float64, lims []util.Limiter, caps Caps) ([]float64, error) {
	if len(dists) != len(names) || len(lims) != len(names) {
		return nil, fmt.Errorf("%w: %d axes, %d distances and %d velocity limits",
			fault.ErrConfiguration, len(names), len(dists), len(lims))
	}
	var unset []string
	for i, l := range lims {
		if l.Max == 0 {
			unset = append(unset, names[i])
		}
	}
	if len(unset) > 0 && caps.Max <= 0 {
		return nil, fmt.Errorf("%w: axes %v have unset max velocity limits, a global max velocity must be set",
			fault.ErrConfiguration, unset)
	}

	moving := false
	for _, d := range dists {
		if d != 0 {
			moving = true
			break
		}
	}
	if !moving {
		vels := make([]float64, len(lims))
		for i, l := range lims {
			vels[i] = l.Min
		}
		return vels, nil
	}
	for i, d := range dists {
		if d < 0 {
			return nil, fmt.Errorf("axis %s distance %g: %w", names[i], d, ErrNegativeDistance)
		}
	}

	if vels, ok := paceBy(farthest(dists), dists, lims, caps); ok {
		return vels, nil
	}
	pace := slowest(dists, lims, caps)
	if vels, ok := paceBy(pace, dists, lims, caps); ok {
		return vels, nil
	}
	return nil, fmt.Errorf("%w: distances %v can not be covered together within limits %v (pacing on %s)",
		fault.ErrVelocityInfeasible, dists, lims, names[pace])
}

// upper is the velocity a pacing axis runs at
func upper(l util.Limiter, caps Caps) float64 {
	v := l.Max
	if caps.Max > 0 && (v > caps.Max || v == 0) {
		v = caps.Max
	}
	return v
}

// farthest returns the index of the largest distance, the first on ties
func farthest(dists []float64) int {
	idx := 0
	for i, d := range dists {
		if d > dists[idx] {
			idx = i
		}
	}
	return idx
}

// slowest returns the index of the moving axis with the lowest upper
// velocity, the one with the greater distance on ties, then the first
func slowest(dists []float64, lims []util.Limiter, caps Caps) int {
	idx := -1
	for i, d := range dists {
		if d == 0 {
			continue
		}
		if idx < 0 {
			idx = i
			continue
		}
		vi, vidx := upper(lims[i], caps), upper(lims[idx], caps)
		if vi < vidx || (vi == vidx && d > dists[idx]) {
			idx = i
		}
	}
	return idx
}

// paceBy derives all velocities from the travel time of axis pace.
// ok is false if a limited axis would exceed its upper limit.
func paceBy(pace int, dists []float64, lims []util.Limiter, caps Caps) ([]float64, bool) {
	vels := make([]float64, len(dists))
	vp := upper(lims[pace], caps)
	t := dists[pace] / vp
	for i, d := range dists {
		if i == pace {
			vels[i] = vp
			continue
		}
		v := mathx.RoundN(d/t, velocityDigits)
		if v < caps.Min {
			v = caps.Min
		}
		if v < lims[i].Min {
			v = lims[i].Min
		} else if v > lims[i].Max && lims[i].Max != 0 {
			return nil, false
		}
		vels[i] = v
	}
	return vels, true
}

// TravelTimes returns dists[i]/vels[i], or zero where the velocity is zero
func TravelTimes(dists, vels []float64) []float64 {
	times := make([]float64, len(dists))
	for i := range dists {
		if vels[i] != 0 {
			times[i] = dists[i] / vels[i]
		}
	}
	return times
}

// Pacing returns the index of the longest travel time, the first on ties
func Pacing(times []float64) int {
	return farthest(times)
}
