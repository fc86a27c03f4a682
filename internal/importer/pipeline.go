// Package importer submits normalized issues to the asynchronous import API
// in bounded batches and records every outcome in the ledger.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/ledger"
	"github.com/jmaddaus/jiramigrate/internal/model"
)

const (
	// DefaultBatchSize caps the import jobs outstanding at once.
	DefaultBatchSize = 20
	// DefaultRateLimitThreshold is the remaining request budget below which
	// submissions pause until the limit resets.
	DefaultRateLimitThreshold = 100
)

// Options configures a Pipeline.
type Options struct {
	Owner      string
	Repo       string
	BatchSize  int
	Milestones map[string]int

	// Poller settles queued jobs. Defaults to a poller with no initial wait.
	Poller             *Poller
	RateLimitThreshold int
}

// Summary counts what a run did.
type Summary struct {
	Submitted int
	Imported  int
	Failed    int
	Skipped   int
}

// Pipeline runs the import of one project's issues into one repository.
type Pipeline struct {
	client  github.Client
	ledger  ledger.Writer
	opts    Options
	queue   *PendingQueue
	poller  *Poller
	summary Summary
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// New returns a pipeline that writes outcomes to w.
func New(client github.Client, w ledger.Writer, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RateLimitThreshold <= 0 {
		opts.RateLimitThreshold = DefaultRateLimitThreshold
	}
	poller := opts.Poller
	if poller == nil {
		poller = NewPoller(client)
		poller.InitialWait = 0
	}
	return &Pipeline{
		client: client,
		ledger: w,
		opts:   opts,
		queue:  NewPendingQueue(opts.BatchSize),
		poller: poller,
		sleep:  sleepCtx,
		now:    time.Now,
	}
}

// Run imports issues, skipping the first startFrom of them. A full batch is
// drained before the next submission and the remainder is drained at the end.
func (p *Pipeline) Run(ctx context.Context, issues []model.NormalizedIssue, startFrom int) (Summary, error) {
	p.summary = Summary{}
	if err := p.ledger.Begin(p.now()); err != nil {
		return p.summary, fmt.Errorf("begin ledger: %w", err)
	}

	for i := range issues {
		if i < startFrom {
			p.summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.summary, err
		}

		slog.Info("submitting issue", "index", i, "key", issues[i].SourceKey, "labels", issues[i].Labels, "assignee", issues[i].Assignee)
		if err := p.checkRateLimit(ctx); err != nil {
			return p.summary, err
		}
		if err := p.submit(ctx, &issues[i]); err != nil {
			return p.summary, err
		}

		if p.queue.Full() {
			if err := p.drain(ctx); err != nil {
				return p.summary, err
			}
		}
	}

	if err := p.drain(ctx); err != nil {
		return p.summary, err
	}
	return p.summary, nil
}

// submit posts issue and queues the pending import. An interrupted
// submission is not queued, so the issue stays unrecorded.
func (p *Pipeline) submit(ctx context.Context, issue *model.NormalizedIssue) error {
	pending := PendingImport{SourceKey: issue.SourceKey, Title: issue.Title}

	job, err := p.client.StartImport(ctx, p.opts.Owner, p.opts.Repo, BuildRequest(issue, p.opts.Milestones))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	p.summary.Submitted++
	if err != nil {
		pending.Err = submitError(issue.Title, err)
		slog.Warn("issue submission rejected", "key", issue.SourceKey, "error", pending.Err)
	} else {
		pending.StatusURL = job.URL
	}
	p.queue.Push(pending)
	return nil
}

func (p *Pipeline) drain(ctx context.Context) error {
	if p.queue.Len() == 0 {
		return nil
	}
	slog.Debug("draining batch", "pending", p.queue.Len())
	_, err := p.queue.Drain(ctx, p.resolve)
	return err
}

// resolve settles one pending import and records it in the ledger.
func (p *Pipeline) resolve(ctx context.Context, pending PendingImport) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{SourceKey: pending.SourceKey}, err
	}
	o := Outcome{SourceKey: pending.SourceKey, Err: pending.Err}
	if o.Err == nil {
		o.TargetID, o.Err = p.poller.Poll(ctx, pending.StatusURL)
		if o.Err != nil && ctx.Err() != nil {
			return o, ctx.Err()
		}
	}

	if err := p.ledger.Append(o.Entry()); err != nil {
		return o, fmt.Errorf("record %s: %w", o.SourceKey, err)
	}
	if o.Imported() {
		p.summary.Imported++
		slog.Info("imported issue", "key", o.SourceKey, "number", o.TargetID)
	} else {
		p.summary.Failed++
		slog.Error("issue import failed", "key", o.SourceKey, "error", o.Err)
	}
	return o, nil
}

// checkRateLimit sleeps until the rate limit resets when the remaining
// budget is low.
func (p *Pipeline) checkRateLimit(ctx context.Context) error {
	rl := p.client.GetRateLimit()
	if rl.Remaining > 0 && rl.Remaining < p.opts.RateLimitThreshold {
		if d := rl.Reset.Sub(p.now()); d > 0 {
			slog.Info("rate limit low, sleeping until reset", "remaining", rl.Remaining, "reset", rl.Reset)
			return p.sleep(ctx, d)
		}
	}
	return nil
}
