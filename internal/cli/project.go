package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmaddaus/jiramigrate/internal/config"
	"github.com/jmaddaus/jiramigrate/internal/jira"
	"github.com/jmaddaus/jiramigrate/internal/lookup"
	"github.com/jmaddaus/jiramigrate/internal/normalize"
	"github.com/jmaddaus/jiramigrate/internal/project"
)

// loadProject reads the configured exports and folds them into one
// aggregate. media may be nil.
func loadProject(ctx context.Context, cfg *config.Config, media *normalize.MediaCache) (*project.Aggregate, *lookup.Tables, error) {
	if cfg.Jira.Files == "" {
		return nil, nil, fmt.Errorf("jira.files must be set")
	}

	tables, err := lookup.Load(cfg.Lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("load lookup tables: %w", err)
	}

	exports, err := jira.ReadFiles(cfg.Jira.Files)
	if err != nil {
		return nil, nil, err
	}

	name := cfg.Jira.Project
	if name == "" {
		name = firstProject(exports)
		if name == "" {
			return nil, nil, fmt.Errorf("no issues found in %s", cfg.Jira.Files)
		}
	}

	n := normalize.New(normalize.Options{
		BaseURL:                  cfg.Jira.BaseURL,
		DoneStatusCategoryID:     cfg.Jira.DoneStatusCategoryID,
		MilestonePrefix:          cfg.Jira.MilestonePrefix,
		IncludeComponentInLabels: cfg.Import.IncludeComponentInLabels,
		Tables:                   tables,
		Media:                    media,
	})

	slog.Info("reading exports", "files", cfg.Jira.Files, "exports", len(exports), "project", name)
	agg, err := project.FoldAll(ctx, project.New(name), n, exports)
	if err != nil {
		return nil, nil, err
	}
	return agg, tables, nil
}

func firstProject(exports []*jira.Export) string {
	for _, exp := range exports {
		for i := range exp.Channel.Items {
			if p := normalize.ProjectOf(&exp.Channel.Items[i]); p != "" {
				return p
			}
		}
	}
	return ""
}
