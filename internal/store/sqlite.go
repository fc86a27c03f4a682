package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmaddaus/jiramigrate/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// migrations. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" on a single shared connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

func (s *SQLiteStore) StartRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("start run: empty id")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, repository, start_offset, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.Repository, run.StartOffset, run.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("run %s already exists", run.ID)
		}
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`, at.UTC().Format(time.RFC3339), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, repository, start_offset, started_at, finished_at
		 FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		var (
			r          model.Run
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Project, &r.Repository, &r.StartOffset, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
				r.FinishedAt = &t
			}
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------------------------
// Ledger entries
// ---------------------------------------------------------------------------

func (s *SQLiteStore) AppendEntry(ctx context.Context, runID string, entry model.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (run_id, source_key, target_id, error, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		runID, entry.SourceKey, entry.TargetID, entry.Error, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("append ledger entry %s: %w", entry.SourceKey, err)
	}
	return nil
}

func (s *SQLiteStore) ListEntries(ctx context.Context, runID string) ([]model.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_key, target_id, error FROM ledger_entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CompletedKeys returns source key -> target issue number for every
// successful import into repository, across all runs. Later runs win.
func (s *SQLiteStore) CompletedKeys(ctx context.Context, repository string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.source_key, e.target_id
		 FROM ledger_entries e JOIN runs r ON r.id = e.run_id
		 WHERE r.repository = ? AND e.target_id IS NOT NULL
		 ORDER BY e.id`, repository)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var id int
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		out[key] = id
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.LedgerEntry, error) {
	var (
		e        model.LedgerEntry
		targetID sql.NullInt64
	)
	if err := row.Scan(&e.SourceKey, &targetID, &e.Error); err != nil {
		return e, err
	}
	if targetID.Valid {
		id := int(targetID.Int64)
		e.TargetID = &id
	}
	return e, nil
}
