package sync

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/lookup"
	"github.com/jmaddaus/jiramigrate/internal/normalize"
	"github.com/jmaddaus/jiramigrate/internal/project"
)

var palette = []string{
	"b60205", "d93f0b", "fbca04", "0e8a16", "006b75", "1d76db", "0052cc", "5319e7",
	"e99695", "f9d0c4", "fef2c0", "c2e0c6", "bfdadc", "c5def5", "bfd4f2", "d4c5f9",
}

// LabelColor returns a stable colour for a label name.
func LabelColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}

// LabelReport counts what a label sync did.
type LabelReport struct {
	Created  int
	Existing int
	Filtered int
	Failed   int
}

// LabelSyncer creates the labels of a project in the target repository.
type LabelSyncer struct {
	client          github.Client
	owner           string
	repo            string
	tables          *lookup.Tables
	componentLabels bool
}

// NewLabelSyncer returns a syncer for owner/repo. When componentLabels is set,
// component names are created with the component prefix.
func NewLabelSyncer(client github.Client, owner, repo string, tables *lookup.Tables, componentLabels bool) *LabelSyncer {
	if tables == nil {
		tables = lookup.Empty()
	}
	return &LabelSyncer{
		client:          client,
		owner:           owner,
		repo:            repo,
		tables:          tables,
		componentLabels: componentLabels,
	}
}

// TargetName maps a raw label to the name created on the target. The second
// result is false when the lookup tables filter it out.
func (s *LabelSyncer) TargetName(agg *project.Aggregate, raw string) (string, bool) {
	name := strings.ToLower(raw)
	if s.componentLabels && agg.IsComponent(raw) {
		name = normalize.ComponentLabelPrefix + name
	}
	return s.tables.ConvertLabel(name)
}

// Sync creates every label of agg. Creation failures are logged and counted.
func (s *LabelSyncer) Sync(ctx context.Context, agg *project.Aggregate) (LabelReport, error) {
	var report LabelReport
	for _, raw := range agg.AllLabels() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name, ok := s.TargetName(agg, raw)
		if !ok {
			report.Filtered++
			continue
		}

		err := s.client.CreateLabel(ctx, s.owner, s.repo, name, LabelColor(raw))
		var se *github.StatusError
		switch {
		case err == nil:
			report.Created++
			slog.Info("label created", "source", raw, "label", name)
		case errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity:
			report.Existing++
			slog.Debug("label exists", "label", name)
		default:
			report.Failed++
			slog.Warn("create label failed", "label", name, "error", err)
		}
	}
	return report, nil
}
