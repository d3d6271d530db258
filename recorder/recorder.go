// Package recorder persists fly scan episodes and retrieves them as tables
// of named columns.  Every backend assigns a random UUID to each episode.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

// Recorder stores episodes under a lookup key
type Recorder interface {
	// Record stores an episode and returns its id
	Record(Episode) (string, error)

	// Retrieve returns the episode recorded under id.  Errors wrap
	// fault.ErrDataUnavailable.
	Retrieve(id string) (*Table, error)
}

// Episode is the time series of one fly scan, one row per sample with a
// value for every column
type Episode struct {
	Columns []string
	Times   []time.Time
	Rows    [][]float64
}

// Validate returns an error if the shape of the episode is inconsistent
func (e Episode) Validate() error {
	if len(e.Columns) == 0 {
		return fmt.Errorf("episode has no columns")
	}
	if len(e.Times) != len(e.Rows) {
		return fmt.Errorf("episode has %d times for %d rows", len(e.Times), len(e.Rows))
	}
	for i, r := range e.Rows {
		if len(r) != len(e.Columns) {
			return fmt.Errorf("episode row %d has %d values for %d columns", i, len(r), len(e.Columns))
		}
	}
	return nil
}

// Table is a retrieved episode
type Table struct {
	ID string
	Episode

	index map[string]int
}

// NewTable returns a table for the episode recorded under id
func NewTable(id string, e Episode) *Table {
	idx := make(map[string]int, len(e.Columns))
	for i, c := range e.Columns {
		idx[c] = i
	}
	return &Table{ID: id, Episode: e, index: idx}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns a copy of the named column
func (t *Table) Column(name string) ([]float64, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: episode %s has no column %q", fault.ErrDataUnavailable, t.ID, name)
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out, nil
}

func newID() string {
	return uuid.New().String()
}

func clone(e Episode) Episode {
	out := Episode{
		Columns: append([]string(nil), e.Columns...),
		Times:   append([]time.Time(nil), e.Times...),
		Rows:    make([][]float64, len(e.Rows)),
	}
	for i, r := range e.Rows {
		out.Rows[i] = append([]float64(nil), r...)
	}
	return out
}

// Memory keeps episodes in memory.  It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	episodes map[string]Episode
}

// NewMemory returns an empty in-memory recorder
func NewMemory() *Memory {
	return &Memory{episodes: map[string]Episode{}}
}

// Record stores a copy of e
func (m *Memory) Record(e Episode) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id := newID()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[id] = clone(e)
	return id, nil
}

// Retrieve returns a copy of the episode recorded under id
func (m *Memory) Retrieve(id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.episodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: no episode %s", fault.ErrDataUnavailable, id)
	}
	return NewTable(id, clone(e)), nil
}

// Len returns the number of recorded episodes
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.episodes)
}
