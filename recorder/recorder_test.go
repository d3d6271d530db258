package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/fault"
)

func sampleEpisode() Episode {
	t0 := time.Unix(1700000000, 123456789)
	return Episode{
		Columns: []string{"f_intensity", "f_x_velocity", "f_x_position"},
		Times:   []time.Time{t0, t0.Add(time.Millisecond), t0.Add(2 * time.Millisecond)},
		Rows: [][]float64{
			{1, 5, 75},
			{9, 5, 76.5},
			{5, 5, 78},
		},
	}
}

func backends(t *testing.T) map[string]Recorder {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "episodes.db"))
	if err != nil {
		t.Fatalf("open sqlite recorder: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return map[string]Recorder{
		"memory": NewMemory(),
		"fits":   NewFITS(t.TempDir(), "fly_"),
		"sqlite": db,
	}
}

func TestRecordRetrieve(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ep := sampleEpisode()
			id, err := rec.Record(ep)
			if err != nil {
				t.Fatal(err)
			}
			if id == "" {
				t.Fatal("expected a nonempty episode id")
			}
			tbl, err := rec.Retrieve(id)
			if err != nil {
				t.Fatal(err)
			}
			if tbl.Len() != 3 {
				t.Fatalf("expected 3 rows, got %d", tbl.Len())
			}
			inten, err := tbl.Column("f_intensity")
			if err != nil {
				t.Fatal(err)
			}
			if inten[0] != 1 || inten[1] != 9 || inten[2] != 5 {
				t.Errorf("expected intensities [1 9 5], got %v", inten)
			}
			pos, _ := tbl.Column("f_x_position")
			if pos[1] != 76.5 {
				t.Errorf("expected x=76.5 in row 1, got %f", pos[1])
			}
			for i := range ep.Times {
				if !tbl.Times[i].Equal(ep.Times[i]) {
					t.Errorf("row %d: expected time %v, got %v", i, ep.Times[i], tbl.Times[i])
				}
			}
			if _, err = tbl.Column("nope"); !errors.Is(err, fault.ErrDataUnavailable) {
				t.Errorf("expected a missing column to be unavailable data, got %v", err)
			}
		})
	}
}

func TestRetrieveUnknownID(t *testing.T) {
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := rec.Retrieve("does-not-exist")
			if !errors.Is(err, fault.ErrDataUnavailable) {
				t.Errorf("expected ErrDataUnavailable, got %v", err)
			}
		})
	}
}

func TestRecordRejectsRaggedEpisode(t *testing.T) {
	ep := sampleEpisode()
	ep.Rows[1] = ep.Rows[1][:2]
	for name, rec := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := rec.Record(ep); err == nil {
				t.Error("expected an error for a ragged episode")
			}
		})
	}
}

func TestMemoryIsolatesCopies(t *testing.T) {
	m := NewMemory()
	ep := sampleEpisode()
	id, err := m.Record(ep)
	if err != nil {
		t.Fatal(err)
	}
	ep.Rows[0][0] = 100
	tbl, _ := m.Retrieve(id)
	if tbl.Rows[0][0] != 1 {
		t.Error("expected the recorder to keep its own copy")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 episode, got %d", m.Len())
	}
}

func TestFITSDetectsCorruption(t *testing.T) {
	root := t.TempDir()
	rec := NewFITS(root, "fly_")
	id, err := rec.Record(sampleEpisode())
	if err != nil {
		t.Fatal(err)
	}
	fn, err := rec.path(id)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(filepath.Dir(fn)) != root {
		t.Errorf("expected the file in a day folder of %s, got %s", root, fn)
	}

	// a fresh recorder finds the file by searching the day folders
	tbl, err := NewFITS(root, "fly_").Retrieve(id)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.ID != id {
		t.Errorf("expected id %s, got %s", id, tbl.ID)
	}

	if err = os.WriteFile(fn, []byte("SIMPLE  =                    T"), 0666); err != nil {
		t.Fatal(err)
	}
	if _, err = rec.Retrieve(id); !errors.Is(err, fault.ErrDataUnavailable) {
		t.Errorf("expected a damaged file to be unavailable data, got %v", err)
	}
}

func TestChecksumCoversValues(t *testing.T) {
	a := sampleEpisode()
	b := sampleEpisode()
	b.Rows[2][1] = 5.000001
	if checksum(a) == checksum(b) {
		t.Error("expected different checksums for different values")
	}
	if checksum(a) != checksum(sampleEpisode()) {
		t.Error("expected equal checksums for equal episodes")
	}
}
