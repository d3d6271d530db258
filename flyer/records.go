package flyer

import "time"

// the parameter of an axis recorded during a fly scan
const positionParam = "position"

// IntensityColumn is the column of the detector reading
func IntensityColumn(flyer string) string {
	return flyer + "_intensity"
}

// VelocityColumn is the column of an axis' velocity setpoint
func VelocityColumn(flyer, axis string) string {
	return flyer + "_" + axis + "_velocity"
}

// ParamColumn is the column of one parameter of an axis
func ParamColumn(flyer, axis, param string) string {
	return flyer + "_" + axis + "_" + param
}

// Columns returns the intensity column followed by the velocity and position
// columns of every axis
func Columns(flyer string, axes []string) []string {
	out := []string{IntensityColumn(flyer)}
	for _, a := range axes {
		out = append(out, VelocityColumn(flyer, a), ParamColumn(flyer, a, positionParam))
	}
	return out
}

// Record is one row of a fly scan, keyed by column name
type Record struct {
	Time time.Time
	Data map[string]float64
}

// Records is a finite, single-pass sequence of fly scan rows in collection
// order.  It is not restartable; the rows are released as the sequence is
// exhausted.
//
//	for recs.Next() {
//		r := recs.Record()
//	}
type Records struct {
	columns []string
	vels    []float64
	samples []Sample
	idx     int
}

// Columns returns the column names of every record
func (r *Records) Columns() []string {
	return r.columns
}

// Next advances to the next record and returns false once the sequence is
// exhausted
func (r *Records) Next() bool {
	if r.idx+1 >= len(r.samples) {
		r.samples = nil
		r.idx = 0
		return false
	}
	r.idx++
	return true
}

// Record returns the current record
func (r *Records) Record() Record {
	s := r.samples[r.idx]
	data := make(map[string]float64, len(r.columns))
	data[r.columns[0]] = s.Intensity
	for i := range s.Positions {
		data[r.columns[1+2*i]] = r.vels[i]
		data[r.columns[2+2*i]] = s.Positions[i]
	}
	return Record{Time: s.Time, Data: data}
}

// Row returns the current record as values in column order
func (r *Records) Row() []float64 {
	s := r.samples[r.idx]
	row := make([]float64, 0, len(r.columns))
	row = append(row, s.Intensity)
	for i, p := range s.Positions {
		row = append(row, r.vels[i], p)
	}
	return row
}

// Time returns the time of the current record
func (r *Records) Time() time.Time {
	return r.samples[r.idx].Time
}
