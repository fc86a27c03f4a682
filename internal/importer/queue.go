package importer

import (
	"context"

	"github.com/jmaddaus/jiramigrate/internal/model"
)

// PendingImport is a submitted issue awaiting its outcome. Exactly one of
// StatusURL and Err is set.
type PendingImport struct {
	SourceKey string
	Title     string
	StatusURL string
	Err       error
}

// Outcome is the settled result of one pending import.
type Outcome struct {
	SourceKey string
	TargetID  int
	Err       error
}

// Imported reports whether the outcome created a target issue.
func (o Outcome) Imported() bool { return o.Err == nil }

// Entry converts the outcome into a ledger entry.
func (o Outcome) Entry() model.LedgerEntry {
	if o.Err != nil {
		return model.LedgerEntry{SourceKey: o.SourceKey, Error: o.Err.Error()}
	}
	id := o.TargetID
	return model.LedgerEntry{SourceKey: o.SourceKey, TargetID: &id}
}

// PendingQueue holds submitted imports in submission order until drained.
type PendingQueue struct {
	size  int
	items []PendingImport
}

// NewPendingQueue returns a queue that reports Full at size entries.
func NewPendingQueue(size int) *PendingQueue {
	if size < 1 {
		size = 1
	}
	return &PendingQueue{size: size, items: make([]PendingImport, 0, size)}
}

// Push appends p.
func (q *PendingQueue) Push(p PendingImport) {
	q.items = append(q.items, p)
}

// Full reports whether the queue reached its size.
func (q *PendingQueue) Full() bool { return len(q.items) >= q.size }

// Len returns the number of queued imports.
func (q *PendingQueue) Len() int { return len(q.items) }

// Drain resolves every queued import in submission order and empties the
// queue. If resolve fails, the entries not yet resolved stay queued.
func (q *PendingQueue) Drain(ctx context.Context, resolve func(context.Context, PendingImport) (Outcome, error)) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(q.items))
	for len(q.items) > 0 {
		o, err := resolve(ctx, q.items[0])
		if err != nil {
			return outcomes, err
		}
		q.items = q.items[1:]
		outcomes = append(outcomes, o)
	}
	q.items = q.items[:0]
	return outcomes, nil
}
