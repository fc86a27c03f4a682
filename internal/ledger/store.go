package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmaddaus/jiramigrate/internal/model"
	"github.com/jmaddaus/jiramigrate/internal/store"
)

// StoreWriter mirrors ledger entries into a store under one run.
type StoreWriter struct {
	ctx     context.Context
	store   store.Store
	run     *model.Run
	now     func() time.Time
	started bool
}

// NewStoreWriter returns a writer that records into s. run.ID is filled
// with a fresh uuid on Begin when empty.
func NewStoreWriter(ctx context.Context, s store.Store, run *model.Run) *StoreWriter {
	return &StoreWriter{ctx: ctx, store: s, run: run, now: time.Now}
}

// RunID returns the id of the run being recorded.
func (w *StoreWriter) RunID() string { return w.run.ID }

func (w *StoreWriter) Begin(at time.Time) error {
	if w.run.ID == "" {
		w.run.ID = uuid.NewString()
	}
	w.run.StartedAt = at
	if err := w.store.StartRun(w.ctx, w.run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	w.started = true
	return nil
}

func (w *StoreWriter) Append(entry model.LedgerEntry) error {
	return w.store.AppendEntry(w.ctx, w.run.ID, entry)
}

// Close stamps the run as finished. The store itself stays open.
func (w *StoreWriter) Close() error {
	if !w.started {
		return nil
	}
	// Stamp the finish even when the run was cancelled.
	return w.store.FinishRun(context.WithoutCancel(w.ctx), w.run.ID, w.now())
}
