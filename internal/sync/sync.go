package sync

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/lookup"
	"github.com/jmaddaus/jiramigrate/internal/project"
)

// Options configures Run.
type Options struct {
	Owner           string
	Repo            string
	Tables          *lookup.Tables
	ComponentLabels bool
}

// Result is the outcome of Run.
type Result struct {
	Milestones map[string]int
	Labels     LabelReport
}

// Run synchronizes milestones and labels concurrently. The aggregate is
// only read.
func Run(ctx context.Context, client github.Client, agg *project.Aggregate, opts Options) (Result, error) {
	var res Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("importing milestones", "count", agg.Milestones.Len())
		m, err := NewMilestoneSyncer(client, opts.Owner, opts.Repo).Sync(gctx, agg.Milestones)
		res.Milestones = m
		return err
	})

	g.Go(func() error {
		slog.Info("importing labels")
		r, err := NewLabelSyncer(client, opts.Owner, opts.Repo, opts.Tables, opts.ComponentLabels).Sync(gctx, agg)
		res.Labels = r
		return err
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
