// Package progress keeps a per-file completion ledger so an interrupted
// build can be resumed without reprocessing finished files.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gaiacat/gaiacat/internal/enrich"
)

// Status is the processing state of one source file.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Entry is one row of the ledger.
type Entry struct {
	FileName   string
	FileIndex  int
	RunID      string
	Status     Status
	Counters   enrich.Counters
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
}

// Ledger records file progress in a SQLite database. It is safe for
// concurrent use by all workers of a run.
type Ledger struct {
	db *sql.DB
	mu sync.Mutex // single writer
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("progress: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(CreateFilesTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("progress: failed to create files table: %w", err)
	}
	for _, stmt := range CreateFilesIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("progress: failed to create index: %w", err)
		}
	}
	return &Ledger{db: db}, nil
}

// Start marks a file as running for runID, replacing any earlier entry.
func (l *Ledger) Start(ctx context.Context, runID string, index int, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO files (file_name, file_index, run_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_name) DO UPDATE SET
			file_index = excluded.file_index,
			run_id = excluded.run_id,
			status = excluded.status,
			emitted = 0, skipped = 0, hip = 0, tyc = 0,
			started_at = excluded.started_at,
			finished_at = NULL,
			error = NULL`,
		name, index, runID, string(StatusRunning), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("progress: failed to start %s: %w", name, err)
	}
	return nil
}

// Finish marks a file as done with its counters.
func (l *Ledger) Finish(ctx context.Context, name string, c enrich.Counters) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		UPDATE files SET status = ?, emitted = ?, skipped = ?, hip = ?, tyc = ?, finished_at = ?, error = NULL
		WHERE file_name = ?`,
		string(StatusDone), c.Emitted, c.SkippedNoMag, c.CrossmatchHip, c.CrossmatchTyc,
		time.Now().UnixMilli(), name)
	if err != nil {
		return fmt.Errorf("progress: failed to finish %s: %w", name, err)
	}
	return nil
}

// Fail marks a file as failed.
func (l *Ledger) Fail(ctx context.Context, name string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE files SET status = ?, finished_at = ?, error = ? WHERE file_name = ?`,
		string(StatusFailed), time.Now().UnixMilli(), msg, name)
	if err != nil {
		return fmt.Errorf("progress: failed to mark %s failed: %w", name, err)
	}
	return nil
}

// Completed returns the names of files recorded as done.
func (l *Ledger) Completed(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT file_name FROM files WHERE status = ?`, string(StatusDone))
	if err != nil {
		return nil, fmt.Errorf("progress: failed to query completed files: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("progress: failed to scan file name: %w", err)
		}
		done[name] = true
	}
	return done, rows.Err()
}

// Incomplete returns entries left running or failed, ordered by file index.
// Running entries not owned by excludeRun belong to a run that stopped early.
func (l *Ledger) Incomplete(ctx context.Context, excludeRun string) ([]Entry, error) {
	return l.query(ctx, `
		SELECT file_name, file_index, run_id, status, emitted, skipped, hip, tyc, started_at, finished_at, error
		FROM files WHERE status != ? AND run_id != ? ORDER BY file_index`,
		string(StatusDone), excludeRun)
}

// Get returns the entry for a file, or nil when it was never started.
func (l *Ledger) Get(ctx context.Context, name string) (*Entry, error) {
	entries, err := l.query(ctx, `
		SELECT file_name, file_index, run_id, status, emitted, skipped, hip, tyc, started_at, finished_at, error
		FROM files WHERE file_name = ?`, name)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (l *Ledger) query(ctx context.Context, q string, args ...interface{}) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("progress: query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			status   string
			started  int64
			finished sql.NullInt64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&e.FileName, &e.FileIndex, &e.RunID, &status,
			&e.Counters.Emitted, &e.Counters.SkippedNoMag, &e.Counters.CrossmatchHip, &e.Counters.CrossmatchTyc,
			&started, &finished, &errMsg); err != nil {
			return nil, fmt.Errorf("progress: failed to scan entry: %w", err)
		}
		e.Status = Status(status)
		e.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			t := time.UnixMilli(finished.Int64)
			e.FinishedAt = &t
		}
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
