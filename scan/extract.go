package scan

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
	"github.jpl.nasa.gov/bdube/flyopt/flyer"
	"github.jpl.nasa.gov/bdube/flyopt/population"
	"github.jpl.nasa.gov/bdube/flyopt/recorder"
)

// Extract reads the episodes ids and returns one individual and fitness per
// episode, in order.  The resting sample at the end of the episode stands for
// the individual unless some sample along the way saw a strictly greater
// intensity, in which case the first such maximum is credited instead.
func Extract(rec recorder.Recorder, ids []string, layout population.Layout, flyerName string) ([]population.Individual, []float64, error) {
	inds := make([]population.Individual, len(ids))
	fits := make([]float64, len(ids))
	for i, id := range ids {
		tbl, err := rec.Retrieve(id)
		if err != nil {
			return nil, nil, err
		}
		if tbl.Len() == 0 {
			return nil, nil, fmt.Errorf("%w: episode %s has no samples", fault.ErrDataUnavailable, id)
		}
		inten, err := tbl.Column(flyer.IntensityColumn(flyerName))
		if err != nil {
			return nil, nil, err
		}
		best := argmax(inten)
		idx := len(inten) - 1
		if inten[best] > inten[idx] {
			idx = best
		}
		ind := population.Individual{}
		for _, k := range layout {
			col, err := tbl.Column(flyer.ParamColumn(flyerName, k.Axis, k.Param))
			if err != nil {
				return nil, nil, err
			}
			ind.Set(k, col[idx])
		}
		inds[i] = ind
		fits[i] = inten[idx]
	}
	return inds, fits, nil
}

// argmax returns the index of the first maximum of s
func argmax(s []float64) int {
	idx := 0
	for i, v := range s {
		if v > s[idx] {
			idx = i
		}
	}
	return idx
}
