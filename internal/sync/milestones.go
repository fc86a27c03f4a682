// Package sync reconciles the milestones and labels a project needs with
// what already exists in the target repository.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/project"
)

// MilestoneSyncer creates the milestones of a project that the target lacks.
type MilestoneSyncer struct {
	client github.Client
	owner  string
	repo   string
}

// NewMilestoneSyncer returns a syncer for owner/repo.
func NewMilestoneSyncer(client github.Client, owner, repo string) *MilestoneSyncer {
	return &MilestoneSyncer{client: client, owner: owner, repo: repo}
}

// Sync maps every name in h to a target milestone number. Existing milestones
// are reused; missing ones are created. A failed creation is logged and the
// name stays unmapped.
func (s *MilestoneSyncer) Sync(ctx context.Context, h *project.Histogram) (map[string]int, error) {
	existing, err := s.client.ListMilestones(ctx, s.owner, s.repo)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}

	numbers := make(map[string]int, h.Len())
	for _, m := range existing {
		if h.Has(m.Title) {
			numbers[m.Title] = m.Number
			slog.Info("milestone found", "title", m.Title, "number", m.Number)
		}
	}

	for _, name := range h.Keys() {
		if _, ok := numbers[name]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return numbers, err
		}

		m, err := s.client.CreateMilestone(ctx, s.owner, s.repo, name)
		if err != nil {
			slog.Warn("create milestone failed", "title", name, "error", err)
			continue
		}
		numbers[name] = m.Number
		slog.Info("milestone created", "title", name, "number", m.Number)
	}

	return numbers, nil
}
