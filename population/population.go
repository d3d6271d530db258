// Package population holds the candidate vectors of the optimizer: an
// Individual maps axis -> parameter -> value, and every Individual of a run
// shares one Layout, the sorted list of (axis, parameter) keys.
package population

import (
	"fmt"
	"math/rand"
	"sort"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

// Position is the parameter name of an axis' position
const Position = "position"

// Individual is one candidate multi-axis configuration
type Individual map[string]map[string]float64

// Key addresses one coordinate of an Individual
type Key struct {
	Axis, Param string
}

func (k Key) String() string {
	return k.Axis + "." + k.Param
}

// Layout is the ordered set of keys shared by every Individual of a run
type Layout []Key

// Get returns the value at k, and false if it is absent
func (ind Individual) Get(k Key) (float64, bool) {
	p, ok := ind[k.Axis]
	if !ok {
		return 0, false
	}
	v, ok := p[k.Param]
	return v, ok
}

// Set sets the value at k
func (ind Individual) Set(k Key, v float64) {
	p, ok := ind[k.Axis]
	if !ok {
		p = map[string]float64{}
		ind[k.Axis] = p
	}
	p[k.Param] = v
}

// Clone returns a deep copy of ind
func (ind Individual) Clone() Individual {
	out := make(Individual, len(ind))
	for a, p := range ind {
		cp := make(map[string]float64, len(p))
		for k, v := range p {
			cp[k] = v
		}
		out[a] = cp
	}
	return out
}

// Layout returns the sorted keys of ind
func (ind Individual) Layout() Layout {
	var l Layout
	for a, p := range ind {
		for k := range p {
			l = append(l, Key{Axis: a, Param: k})
		}
	}
	l.sort()
	return l
}

// Vector returns the values of ind in layout order
func (ind Individual) Vector(l Layout) []float64 {
	out := make([]float64, len(l))
	for i, k := range l {
		out[i], _ = ind.Get(k)
	}
	return out
}

// FromVector builds an Individual from values in layout order
func FromVector(l Layout, v []float64) Individual {
	ind := Individual{}
	for i, k := range l {
		ind.Set(k, v[i])
	}
	return ind
}

func (l Layout) sort() {
	sort.Slice(l, func(i, j int) bool {
		if l[i].Axis != l[j].Axis {
			return l[i].Axis < l[j].Axis
		}
		return l[i].Param < l[j].Param
	})
}

// Axes returns the distinct axis names of the layout, in order
func (l Layout) Axes() []string {
	var out []string
	for _, k := range l {
		if len(out) == 0 || out[len(out)-1] != k.Axis {
			out = append(out, k.Axis)
		}
	}
	return out
}

// Bounds holds the search range of every coordinate
type Bounds map[string]map[string]util.Limiter

// Layout returns the sorted keys of b
func (b Bounds) Layout() Layout {
	var l Layout
	for a, p := range b {
		for k := range p {
			l = append(l, Key{Axis: a, Param: k})
		}
	}
	l.sort()
	return l
}

// Get returns the range of k, and false if it is absent
func (b Bounds) Get(k Key) (util.Limiter, bool) {
	p, ok := b[k.Axis]
	if !ok {
		return util.Limiter{}, false
	}
	lim, ok := p[k.Param]
	return lim, ok
}

// Validate returns a configuration error if any range is inverted or b is
// empty
func (b Bounds) Validate() error {
	l := b.Layout()
	if len(l) == 0 {
		return fmt.Errorf("%w: no bounds given", fault.ErrConfiguration)
	}
	for _, k := range l {
		lim, _ := b.Get(k)
		if !lim.Valid() {
			return fmt.Errorf("%w: invalid bounds for %s, lower bound %g is greater than upper bound %g",
				fault.ErrConfiguration, k, lim.Min, lim.Max)
		}
	}
	return nil
}

// Within returns a configuration error if the position range of any axis
// exceeds its travel limits.  Axes absent from travel are an error too.
func (b Bounds) Within(travel map[string]util.Limiter) error {
	for _, k := range b.Layout() {
		if k.Param != Position {
			continue
		}
		lim, _ := b.Get(k)
		t, ok := travel[k.Axis]
		if !ok {
			return fmt.Errorf("%w: no axis %s for bounds", fault.ErrConfiguration, k.Axis)
		}
		if !t.Contains(lim) {
			return fmt.Errorf("%w: invalid bounds for %s, bounds are %v but the axis has limits of %v",
				fault.ErrConfiguration, k.Axis, lim, t)
		}
	}
	return nil
}

// EnsureBounds clamps every coordinate of ind into b, in place, and returns it
func EnsureBounds(ind Individual, b Bounds) Individual {
	for a, p := range ind {
		for k, v := range p {
			if lim, ok := b.Get(Key{Axis: a, Param: k}); ok {
				p[k] = lim.Clamp(v)
			}
		}
	}
	return ind
}

// Random draws an Individual uniformly within b
func Random(b Bounds, l Layout, rng *rand.Rand) Individual {
	ind := Individual{}
	for _, k := range l {
		lim, _ := b.Get(k)
		ind.Set(k, lim.Min+rng.Float64()*(lim.Max-lim.Min))
	}
	return ind
}
