package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/flyopt/fault"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id      TEXT PRIMARY KEY,
	columns TEXT NOT NULL,
	created INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	episode TEXT NOT NULL REFERENCES episodes(id),
	idx     INTEGER NOT NULL,
	time    INTEGER NOT NULL,
	vals    TEXT NOT NULL,
	PRIMARY KEY (episode, idx)
);
`

// SQLite records episodes in a SQLite database, one row per sample
type SQLite struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", fault.ErrConfiguration)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection, so :memory: is a single database
	db.SetMaxOpenConns(1)
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{path: path, db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Record stores e in a single transaction
func (s *SQLite) Record(e Episode) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	cols, err := json.Marshal(e.Columns)
	if err != nil {
		return "", err
	}
	id := newID()
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO episodes (id, columns, created) VALUES (?, ?, ?)`,
		id, string(cols), time.Now().UnixNano())
	if err != nil {
		return "", err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (episode, idx, time, vals) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, row := range e.Rows {
		vals, err := json.Marshal(row)
		if err != nil {
			return "", err
		}
		if _, err = stmt.ExecContext(ctx, id, i, e.Times[i].UnixNano(), string(vals)); err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

// Retrieve reads the episode recorded under id
func (s *SQLite) Retrieve(id string) (*Table, error) {
	ctx := context.Background()
	s.mu.Lock()
	defer s.mu.Unlock()
	var cols string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM episodes WHERE id = ?`, id).Scan(&cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no episode %s", fault.ErrDataUnavailable, id)
		}
		return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
	}
	var e Episode
	if err = json.Unmarshal([]byte(cols), &e.Columns); err != nil {
		return nil, fmt.Errorf("%w: episode %s columns: %v", fault.ErrDataUnavailable, id, err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT time, vals FROM samples WHERE episode = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ns   int64
			vals string
			row  []float64
		)
		if err = rows.Scan(&ns, &vals); err != nil {
			return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
		}
		if err = json.Unmarshal([]byte(vals), &row); err != nil {
			return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
		}
		e.Times = append(e.Times, time.Unix(0, ns))
		e.Rows = append(e.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
	}
	if err = e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: episode %s: %v", fault.ErrDataUnavailable, id, err)
	}
	return NewTable(id, e), nil
}
