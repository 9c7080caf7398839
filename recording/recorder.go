// Package recording stores simulation runs and their accesses in an SQLite
// database.
package recording

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/sim"
)

// DefaultBatchSize is the number of accesses buffered before they are written.
const DefaultBatchSize = 100000

// Recorder writes simulation data into an SQLite database. Accesses are
// buffered and written in batches; Flush writes whatever is buffered.
type Recorder struct {
	*sql.DB

	path      string
	runID     string
	batchSize int
	pending   []sim.AccessEvent
	err       error
}

// New creates a database at path + ".sqlite3". An empty path picks a unique
// name. It is an error for the file to exist already.
func New(path string) (*Recorder, error) {
	runID := xid.New().String()
	if path == "" {
		path = "csim_" + runID
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r := &Recorder{
		DB:        db,
		path:      filename,
		runID:     runID,
		batchSize: DefaultBatchSize,
	}

	if err := r.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// SetBatchSize sets how many accesses are buffered before a write.
func (r *Recorder) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	r.batchSize = n
}

// Path returns the database file name.
func (r *Recorder) Path() string {
	return r.path
}

// RunID returns the identifier stored with every row of this recorder.
func (r *Recorder) RunID() string {
	return r.runID
}

func (r *Recorder) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			s INTEGER,
			e INTEGER,
			b INTEGER,
			trace TEXT,
			hits INTEGER,
			misses INTEGER,
			evictions INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS accesses (
			run_id TEXT,
			clock INTEGER,
			kind TEXT,
			address TEXT,
			size INTEGER,
			pass INTEGER,
			set_index INTEGER,
			tag TEXT,
			outcome TEXT
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// RecordAccess buffers one access.
func (r *Recorder) RecordAccess(event sim.AccessEvent) {
	r.pending = append(r.pending, event)
	if len(r.pending) >= r.batchSize {
		if err := r.Flush(); err != nil && r.err == nil {
			r.err = err
		}
	}
}

// RecordRun stores the totals of a run.
func (r *Recorder) RecordRun(g cache.Geometry, tracePath string, result sim.Result) error {
	_, err := r.Exec(
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, g.S, g.E, g.B, tracePath,
		int64(result.Hits), int64(result.Misses), int64(result.Evictions),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// Flush writes all buffered accesses. It also reports any error met by an
// earlier automatic flush.
func (r *Recorder) Flush() error {
	if r.err != nil {
		return r.err
	}

	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO accesses VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range r.pending {
		_, err := stmt.Exec(
			r.runID,
			int64(e.Clock),
			e.Record.Kind.String(),
			fmt.Sprintf("%x", e.Record.Address),
			e.Record.Size,
			e.Pass,
			int64(e.SetIndex),
			fmt.Sprintf("%x", e.Tag),
			e.Outcome.String(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record access: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	r.pending = r.pending[:0]

	return nil
}

// Close flushes and closes the database.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	if err := r.DB.Close(); err != nil {
		return err
	}
	return flushErr
}
