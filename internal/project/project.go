// Package project folds normalized issues into a per-project aggregate.
package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmaddaus/jiramigrate/internal/jira"
	"github.com/jmaddaus/jiramigrate/internal/model"
	"github.com/jmaddaus/jiramigrate/internal/normalize"
	"github.com/jmaddaus/jiramigrate/internal/ui"
)

// Aggregate is everything collected for one project before the import starts.
type Aggregate struct {
	Name       string
	Milestones *Histogram
	Components *Histogram
	Labels     *Histogram
	Types      *Histogram
	Issues     []model.NormalizedIssue
	Skipped    int
}

// New returns an empty aggregate for the named project.
func New(name string) *Aggregate {
	return &Aggregate{
		Name:       name,
		Milestones: NewHistogram(),
		Components: NewHistogram(),
		Labels:     NewHistogram(),
		Types:      NewHistogram(),
	}
}

// Fold normalizes it and adds it to agg. Items from other projects are
// skipped and counted. A normalization error aborts the fold.
func Fold(ctx context.Context, agg *Aggregate, n *normalize.Normalizer, it *jira.Item) (*Aggregate, error) {
	if p := normalize.ProjectOf(it); p != agg.Name {
		key, _ := it.Key.Get()
		slog.Info("skipping item", "key", key, "project", p, "current", agg.Name)
		agg.Skipped++
		return agg, nil
	}

	res, err := n.Normalize(ctx, it)
	if err != nil {
		return agg, fmt.Errorf("normalize: %w", err)
	}

	agg.Issues = append(agg.Issues, res.Issue)
	for _, m := range res.Facets.Milestones {
		agg.Milestones.Add(m)
	}
	for _, c := range res.Facets.Components {
		agg.Components.Add(c)
	}
	for _, l := range res.Facets.Labels {
		agg.Labels.Add(l)
	}
	for _, t := range res.Facets.Types {
		agg.Types.Add(t)
	}
	return agg, nil
}

// FoldAll folds every item of every export in order.
func FoldAll(ctx context.Context, agg *Aggregate, n *normalize.Normalizer, exports []*jira.Export) (*Aggregate, error) {
	for _, exp := range exports {
		for i := range exp.Channel.Items {
			var err error
			if agg, err = Fold(ctx, agg, n, &exp.Channel.Items[i]); err != nil {
				return agg, err
			}
		}
	}
	return agg, nil
}

// AllLabels returns components, labels and types followed by the marker
// label, deduplicated in that order.
func (a *Aggregate) AllLabels() []string {
	var all []string
	all = append(all, a.Components.Keys()...)
	all = append(all, a.Labels.Keys()...)
	all = append(all, a.Types.Keys()...)
	all = append(all, normalize.MarkerLabel)
	return model.UniqueLabels(all)
}

// IsComponent reports whether name was seen as a component.
func (a *Aggregate) IsComponent(name string) bool {
	return a.Components.Has(name)
}

// Keys returns the source keys of all aggregated issues in order.
func (a *Aggregate) Keys() []string {
	keys := make([]string, len(a.Issues))
	for i := range a.Issues {
		keys[i] = a.Issues[i].SourceKey
	}
	return keys
}

// Prettify writes the histograms and the issue total to w.
func (a *Aggregate) Prettify(w io.Writer) error {
	var b strings.Builder
	b.WriteString(ui.HeaderStyle.Render(a.Name+":") + "\n")

	sections := []struct {
		title string
		h     *Histogram
	}{
		{"Milestones", a.Milestones},
		{"Types", a.Types},
		{"Components", a.Components},
		{"Labels", a.Labels},
	}
	for _, s := range sections {
		b.WriteString("  " + ui.HeaderStyle.Render(s.title+":") + "\n")
		for _, k := range s.h.Keys() {
			count := s.h.Count(k)
			row := lipgloss.JoinHorizontal(lipgloss.Top,
				ui.KeyNameStyle.Render(k),
				fmt.Sprintf(" (%5d): ", count),
				ui.BarStyle.Render(strings.Repeat("#", count)),
			)
			b.WriteString(row + "\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total Issues to Import: %d\n", len(a.Issues))
	if a.Skipped > 0 {
		b.WriteString(ui.MutedStyle.Render(fmt.Sprintf("Skipped from other projects: %d", a.Skipped)) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
