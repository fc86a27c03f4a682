// Package normalize converts exported jira items into the flat issue model
// submitted to the import API.
package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmaddaus/jiramigrate/internal/jira"
	"github.com/jmaddaus/jiramigrate/internal/lookup"
	"github.com/jmaddaus/jiramigrate/internal/model"
)

const (
	// DefaultMilestonePrefix marks explicit labels that name a milestone.
	DefaultMilestonePrefix = "facetalk-"
	// DefaultDoneStatusCategoryID is the status category id of closed issues.
	DefaultDoneStatusCategoryID = "3"

	// MarkerLabel is attached to every imported issue.
	MarkerLabel = "jira"
	// MiscellaneousComponent replaces a missing component.
	MiscellaneousComponent = "miscellaneous"
	// ComponentLabelPrefix prefixes component labels.
	ComponentLabelPrefix = "jira-component:"

	unassigned    = "Unassigned"
	noDescription = "No Description"
	flagFieldID   = "customfield_10932"
)

// commentFields are appended as comments in this order, whatever the export order.
var commentFields = []string{
	"customfield_10940", // Implementation Strategy
	"customfield_10504", // Acceptance Criteria
	"customfield_10933", // Test Results
}

// FieldError reports a missing or malformed required field. It aborts the run.
type FieldError struct {
	Key   string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	key := e.Key
	if key == "" {
		key = "<unknown>"
	}
	if e.Err != nil {
		return fmt.Sprintf("item %s: field %s: %v", key, e.Field, e.Err)
	}
	return fmt.Sprintf("item %s: missing required field %s", key, e.Field)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Facets are the histogram keys one issue contributes to its project.
type Facets struct {
	Milestones []string
	Components []string
	Labels     []string
	Types      []string
}

// Result is the outcome of normalizing one item.
type Result struct {
	Issue   model.NormalizedIssue
	Facets  Facets
	Project string
}

// Options configures a Normalizer.
type Options struct {
	BaseURL                  string
	DoneStatusCategoryID     string
	MilestonePrefix          string
	IncludeComponentInLabels bool
	Tables                   *lookup.Tables
	Media                    *MediaCache
	Now                      func() time.Time
}

// Normalizer turns items into normalized issues. It holds no per-item state.
type Normalizer struct {
	baseURL         string
	doneCategory    string
	milestonePrefix string
	componentLabels bool
	tables          *lookup.Tables
	renderer        *Renderer
	now             func() time.Time
}

// New creates a Normalizer, filling unset options with defaults.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		doneCategory:    opts.DoneStatusCategoryID,
		milestonePrefix: opts.MilestonePrefix,
		componentLabels: opts.IncludeComponentInLabels,
		tables:          opts.Tables,
		now:             opts.Now,
	}
	if n.doneCategory == "" {
		n.doneCategory = DefaultDoneStatusCategoryID
	}
	if n.milestonePrefix == "" {
		n.milestonePrefix = DefaultMilestonePrefix
	}
	if n.tables == nil {
		n.tables = lookup.Empty()
	}
	if n.now == nil {
		n.now = time.Now
	}
	n.renderer = NewRenderer(n.baseURL, opts.Media)
	return n
}

// ProjectOf returns the project key of an item: the project element's key
// attribute, or the part of the issue key before the first '-'.
func ProjectOf(it *jira.Item) string {
	if it.Project != nil && it.Project.Key != "" {
		return it.Project.Key
	}
	key, _ := it.Key.Get()
	prefix, _, _ := strings.Cut(key, "-")
	return prefix
}

// Normalize converts one item. Absent optional fields are skipped; a missing
// key, title or created date yields a *FieldError.
func (n *Normalizer) Normalize(ctx context.Context, it *jira.Item) (Result, error) {
	key, ok := it.Key.Get()
	if !ok {
		return Result{}, &FieldError{Field: "key"}
	}
	title, ok := it.Title.Get()
	if !ok {
		return Result{}, &FieldError{Key: key, Field: "title"}
	}
	createdRaw, ok := it.Created.Get()
	if !ok {
		return Result{}, &FieldError{Key: key, Field: "created"}
	}
	created, err := jira.ParseTime(createdRaw)
	if err != nil {
		return Result{}, &FieldError{Key: key, Field: "created", Err: err}
	}

	updated := created
	if raw, ok := it.Updated.Get(); ok {
		if t, err := jira.ParseTime(raw); err == nil {
			updated = t
		}
	}

	var resolved *time.Time
	if raw, ok := it.Resolved.Get(); ok {
		if t, err := jira.ParseTime(raw); err == nil {
			resolved = &t
		}
	}

	res := Result{Project: ProjectOf(it)}
	issue := &res.Issue
	issue.SourceKey = key
	issue.Title = title
	issue.CreatedAt = created
	issue.UpdatedAt = updated

	if it.StatusCategory != nil && it.StatusCategory.ID == n.doneCategory {
		issue.Closed = true
		issue.ClosedAt = resolved
	}

	epic := n.epic(it)
	issue.Body = n.body(ctx, it, key, title, resolved, epic)

	if name, ok := it.Assignee.Get(); ok && name != unassigned {
		if login, ok := n.tables.TargetUser(name); ok {
			issue.Assignee = login
		}
	}

	n.labels(it, epic, &res)
	n.milestone(it, &res)
	n.comments(ctx, it, created, issue)
	relationships(it, issue)

	return res, nil
}

func (n *Normalizer) epic(it *jira.Item) string {
	raw, ok := it.CustomFieldByKey(epicLinkKey).Value()
	if !ok {
		return ""
	}
	return SanitizeEpic(raw)
}

func (n *Normalizer) profileLink(name, accountID string) string {
	return `<a title="` + name + `" href="` + n.baseURL + `/secure/ViewProfile.jspa?accountid=` + accountID + `">` + name + `</a>`
}

func (n *Normalizer) body(ctx context.Context, it *jira.Item, key, title string, resolved *time.Time, epic string) string {
	var b strings.Builder

	if _, ok := it.Description.Get(); ok {
		b.WriteString(n.renderer.Render(ctx, it.Description.Raw()))
	} else {
		b.WriteString(noDescription)
	}

	summary := title
	if strings.HasPrefix(title, "[") {
		if i := strings.Index(title, "] "); i >= 0 {
			summary = title[i+2:]
		}
	}

	reporter, _ := it.Reporter.Get()
	b.WriteString("\n\n---\n<details><summary><i>Originally reported by ")
	b.WriteString(n.profileLink(reporter, it.Reporter.Account("?")))
	b.WriteString(`, imported from: <a href="` + n.baseURL + `/browse/` + key + `" target="_blank">` + summary + `</a></i></summary>`)

	b.WriteString("\n<i><ul>")
	if name, ok := it.Assignee.Get(); ok && name != unassigned {
		b.WriteString("\n<li><b>assignee</b>: " + n.profileLink(name, it.Assignee.Account("?")))
	}
	if v, ok := it.Status.Get(); ok {
		b.WriteString("\n<li><b>status</b>: " + v)
	}
	if v, ok := it.Priority.Get(); ok {
		b.WriteString("\n<li><b>priority</b>: " + v)
	}
	if v, ok := it.Resolution.Get(); ok {
		b.WriteString("\n<li><b>resolution</b>: " + v)
	}
	if resolved != nil {
		b.WriteString("\n<li><b>resolved</b>: " + resolved.Format(time.RFC3339))
	}
	if epic != "" {
		b.WriteString("\n<li><b>epic</b>: <a href=\"" + SearchURL(epic, "comment") + "\">" + epic + "</a>")
	}
	b.WriteString("\n<li><b>imported</b>: " + n.now().Format("2006-01-02"))
	b.WriteString("\n</ul></i>\n</details>")

	return b.String()
}

func (n *Normalizer) labels(it *jira.Item, epic string, res *Result) {
	issue := &res.Issue

	if status, ok := it.Status.Get(); ok {
		switch strings.ToLower(status) {
		case "duplicate":
			issue.AddLabel("duplicate")
		case "not a bug", "not doing":
			issue.AddLabel("wontfix")
		}
	}

	var components []string
	for i := range it.Components {
		if c, ok := it.Components[i].Get(); ok {
			components = append(components, c)
		}
	}
	if len(components) == 0 {
		issue.AddLabel(MiscellaneousComponent)
		res.Facets.Labels = append(res.Facets.Labels, MiscellaneousComponent)
	}
	for _, c := range components {
		lower := strings.ToLower(c)
		if n.componentLabels {
			issue.AddLabel(ComponentLabelPrefix + lower)
		}
		issue.AddLabel(lower)
		res.Facets.Components = append(res.Facets.Components, c)
	}

	if typ, ok := it.Type.Get(); ok {
		issue.AddLabel(strings.ToLower(typ))
		res.Facets.Types = append(res.Facets.Types, typ)
	}

	issue.AddLabel(MarkerLabel)

	if epic != "" {
		issue.AddLabel(strings.ToLower(epic))
		res.Facets.Labels = append(res.Facets.Labels, epic)
	}

	if it.Labels != nil {
		for i := range it.Labels.Label {
			raw, ok := it.Labels.Label[i].Get()
			if !ok {
				continue
			}
			lower := strings.ToLower(raw)
			if strings.HasPrefix(lower, n.milestonePrefix) {
				continue
			}
			issue.AddLabel(lower)
			res.Facets.Labels = append(res.Facets.Labels, raw)
		}
	}

	if flag, ok := it.CustomFieldByID(flagFieldID).Value(); ok {
		lower := strings.ToLower(flag)
		issue.AddLabel(lower)
		res.Facets.Labels = append(res.Facets.Labels, lower)
	}
}

// milestone applies the fix version first and then lets the last prefixed
// label overwrite it.
func (n *Normalizer) milestone(it *jira.Item, res *Result) {
	if len(it.FixVersions) > 0 {
		if v, ok := it.FixVersions[0].Get(); ok {
			res.Issue.MilestoneName = v
			res.Facets.Milestones = append(res.Facets.Milestones, v)
		}
	}

	if it.Labels == nil {
		return
	}
	fromLabel := ""
	for i := range it.Labels.Label {
		raw, ok := it.Labels.Label[i].Get()
		if !ok {
			continue
		}
		if lower := strings.ToLower(raw); strings.HasPrefix(lower, n.milestonePrefix) {
			fromLabel = lower
		}
	}
	if fromLabel != "" {
		res.Issue.MilestoneName = fromLabel
		res.Facets.Milestones = append(res.Facets.Milestones, fromLabel)
	}
}

func (n *Normalizer) comments(ctx context.Context, it *jira.Item, created time.Time, issue *model.NormalizedIssue) {
	if it.Subtasks != nil {
		var list strings.Builder
		for i := range it.Subtasks.Subtask {
			if k, ok := it.Subtasks.Subtask[i].Get(); ok {
				list.WriteString("- " + k + "\n")
			}
		}
		if list.Len() > 0 {
			at := created
			issue.Comments = append(issue.Comments, model.Comment{CreatedAt: &at, Body: "Subtasks:\n\n" + list.String()})
		}
	}

	if parent, ok := it.Parent.Get(); ok {
		at := created
		issue.Comments = append(issue.Comments, model.Comment{CreatedAt: &at, Body: "Subtask of parent task " + parent})
	}

	if it.Comments != nil {
		for _, c := range it.Comments.Comment {
			var at *time.Time
			if t, err := jira.ParseTime(c.Created); err == nil {
				at = &t
			}
			body := `<i><a href="` + n.baseURL + `/secure/ViewProfile.jspa?accountid=` + c.Author + `">` +
				n.tables.JiraUserName(c.Author) + "</a>:</i>\n" + n.renderer.Render(ctx, c.Body)
			issue.Comments = append(issue.Comments, model.Comment{CreatedAt: at, Body: body})
		}
	}

	for _, id := range commentFields {
		f := it.CustomFieldByID(id)
		value, ok := f.Value()
		if !ok {
			continue
		}
		name := strings.TrimSpace(f.Name)
		body := "<b>" + name + ":</b>\n\n<div>" + n.renderer.Render(ctx, value) + "</div>"
		issue.Comments = append(issue.Comments, model.Comment{Body: body})
	}
}

func relationships(it *jira.Item, issue *model.NormalizedIssue) {
	if it.IssueLinks == nil {
		return
	}
	collect := func(groups []jira.LinkGroup) {
		for _, g := range groups {
			kind := strings.ReplaceAll(strings.TrimSpace(g.Description), " ", "-")
			if kind == "" {
				continue
			}
			for _, link := range g.Links {
				for i := range link.Keys {
					if k, ok := link.Keys[i].Get(); ok {
						issue.AddRelationship(kind, k)
					}
				}
			}
		}
	}
	for _, t := range it.IssueLinks.Types {
		collect(t.Outwards)
	}
	for _, t := range it.IssueLinks.Types {
		collect(t.Inwards)
	}
}
