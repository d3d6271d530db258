package population

import (
	"errors"
	"math/rand"
	"testing"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/util"
)

func stageBounds() Bounds {
	return Bounds{
		"x": {Position: {Min: 75, Max: 79}},
		"y": {Position: {Min: 37, Max: 41}},
		"z": {Position: {Min: 19, Max: 21}},
	}
}

func TestLayoutIsSorted(t *testing.T) {
	l := stageBounds().Layout()
	if len(l) != 3 || l[0].Axis != "x" || l[1].Axis != "y" || l[2].Axis != "z" {
		t.Errorf("expected x y z, got %v", l)
	}
	if axes := l.Axes(); len(axes) != 3 {
		t.Errorf("expected 3 axes, got %v", axes)
	}
}

func TestEnsureBoundsIdempotent(t *testing.T) {
	b := stageBounds()
	ind := Individual{
		"x": {Position: 80},
		"y": {Position: 30},
		"z": {Position: 20},
	}
	once := EnsureBounds(ind.Clone(), b)
	twice := EnsureBounds(once.Clone(), b)
	for _, k := range b.Layout() {
		v1, _ := once.Get(k)
		v2, _ := twice.Get(k)
		if v1 != v2 {
			t.Errorf("%s: %f after one pass, %f after two", k, v1, v2)
		}
		lim, _ := b.Get(k)
		if !lim.Check(v1) {
			t.Errorf("%s: %f outside %v", k, v1, lim)
		}
	}
	if v, _ := once.Get(Key{"x", Position}); v != 79 {
		t.Errorf("expected x clamped to 79, got %f", v)
	}
	if v, _ := once.Get(Key{"y", Position}); v != 37 {
		t.Errorf("expected y clamped to 37, got %f", v)
	}
	if v, _ := once.Get(Key{"z", Position}); v != 20 {
		t.Errorf("expected z unchanged at 20, got %f", v)
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	b := stageBounds()
	b["y"][Position] = util.Limiter{Min: 41, Max: 37}
	if err := b.Validate(); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error, got %v", err)
	}
	if err := (Bounds{}).Validate(); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error for empty bounds, got %v", err)
	}
}

func TestWithinTravelLimits(t *testing.T) {
	b := stageBounds()
	travel := map[string]util.Limiter{
		"x": {Min: -1000, Max: 1000},
		"y": {Min: -1000, Max: 1000},
		"z": {Min: -1000, Max: 1000},
	}
	if err := b.Within(travel); err != nil {
		t.Fatal(err)
	}
	travel["x"] = util.Limiter{Min: 76, Max: 1000}
	if err := b.Within(travel); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error, got %v", err)
	}
	delete(travel, "x")
	if err := b.Within(travel); !errors.Is(err, fault.ErrConfiguration) {
		t.Errorf("expected a configuration error for a missing axis, got %v", err)
	}
}

func TestRandomStaysInBoundsAndIsSeeded(t *testing.T) {
	b := stageBounds()
	l := b.Layout()
	r1 := rand.New(rand.NewSource(7))
	r2 := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		a, c := Random(b, l, r1), Random(b, l, r2)
		for _, k := range l {
			va, _ := a.Get(k)
			vc, _ := c.Get(k)
			lim, _ := b.Get(k)
			if !lim.Check(va) {
				t.Fatalf("%s: %f outside %v", k, va, lim)
			}
			if va != vc {
				t.Fatalf("expected equal draws with equal seeds, got %f and %f", va, vc)
			}
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	l := stageBounds().Layout()
	ind := FromVector(l, []float64{1, 2, 3})
	v := ind.Vector(l)
	if v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", v)
	}
	cp := ind.Clone()
	cp.Set(l[0], 9)
	if w, _ := ind.Get(l[0]); w != 1 {
		t.Error("expected Clone to be deep")
	}
}
