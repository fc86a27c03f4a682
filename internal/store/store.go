package store

import (
	"context"
	"time"

	"github.com/jmaddaus/jiramigrate/internal/model"
)

// Store persists migration runs and their ledger entries. It mirrors the
// text ledger so runs can be audited and queried.
type Store interface {
	// Runs
	StartRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, runID string, at time.Time) error
	ListRuns(ctx context.Context) ([]*model.Run, error)

	// Ledger entries
	AppendEntry(ctx context.Context, runID string, entry model.LedgerEntry) error
	ListEntries(ctx context.Context, runID string) ([]model.LedgerEntry, error)
	CompletedKeys(ctx context.Context, repository string) (map[string]int, error)

	Close() error
}
