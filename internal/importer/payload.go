package importer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/model"
	"github.com/jmaddaus/jiramigrate/internal/normalize"
)

// relationshipNames lists the known link kinds in comment order with the
// wording used in the generated comment.
var relationshipNames = []struct {
	kind string
	name string
}{
	{"relates-to", "relates to"},
	{"duplicates", "duplicates"},
	{"is-duplicated-by", "is duplicated by"},
	{"depends-on", "depends-on"},
	{"is-depended-on-by", "is depended on by"},
	{"blocks", "blocks"},
	{"is-blocked-by", "is blocked by"},
	{"clones", "clones"},
	{"is-cloned-by", "is cloned by"},
	{"causes", "causes"},
	{"is-caused-by", "is caused by"},
}

// RelationshipComments renders one comment per relationship kind. Known
// kinds come first in fixed order, unknown kinds follow sorted.
func RelationshipComments(issue *model.NormalizedIssue) []model.Comment {
	var comments []model.Comment
	add := func(name string, keys []string) {
		if len(keys) == 0 {
			return
		}
		links := make([]string, len(keys))
		for i, k := range keys {
			links[i] = fmt.Sprintf(`<a href="%s">%s</a>`, normalize.SearchURL(k, "title"), k)
		}
		comments = append(comments, model.Comment{
			Body: fmt.Sprintf("<i>[Originally %s: %s]</i>", name, strings.Join(links, " ")),
		})
	}

	known := make(map[string]bool, len(relationshipNames))
	for _, r := range relationshipNames {
		known[r.kind] = true
		add(r.name, issue.Relationships[r.kind])
	}

	for _, kind := range issue.RelationshipKinds() {
		if !known[kind] {
			add(strings.ReplaceAll(kind, "-", " "), issue.Relationships[kind])
		}
	}
	return comments
}

// BuildRequest converts issue into an import payload. The milestone name is
// resolved through milestones and dropped when unknown.
func BuildRequest(issue *model.NormalizedIssue, milestones map[string]int) github.ImportRequest {
	req := github.ImportRequest{
		Issue: github.ImportIssue{
			Title:     issue.Title,
			Body:      issue.Body,
			CreatedAt: issue.CreatedAt,
			UpdatedAt: issue.UpdatedAt,
			ClosedAt:  issue.ClosedAt,
			Closed:    issue.Closed,
			Assignee:  issue.Assignee,
			Labels:    model.UniqueLabels(issue.Labels),
		},
	}
	if issue.MilestoneName != "" {
		if n, ok := milestones[issue.MilestoneName]; ok {
			req.Issue.Milestone = &n
		}
	}

	all := append(append([]model.Comment(nil), issue.Comments...), RelationshipComments(issue)...)
	req.Comments = make([]github.ImportComment, len(all))
	for i, c := range all {
		req.Comments[i] = github.ImportComment{CreatedAt: c.CreatedAt, Body: c.Body}
	}
	return req
}

// submitError describes a rejected submission.
func submitError(title string, err error) error {
	var se *github.StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusUnprocessableEntity {
			return fmt.Errorf("initial import validation failed for issue %q due to the following errors: %s", title, se.Body)
		}
		return fmt.Errorf("failed to POST issue %q due to unexpected HTTP status code %d: %s", title, se.Code, se.Body)
	}
	return fmt.Errorf("failed to POST issue %q: %w", title, err)
}
