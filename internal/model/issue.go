package model

import (
	"sort"
	"time"
)

// Comment is a single comment carried along with an issue into the import payload.
type Comment struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Body      string     `json:"body"`
}

// NormalizedIssue is a source issue flattened into the target platform's model.
type NormalizedIssue struct {
	SourceKey     string     `json:"source_key"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Labels        []string   `json:"labels"`
	MilestoneName string     `json:"milestone_name,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	Closed        bool       `json:"closed"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Comments      []Comment  `json:"comments"`

	// Relationships maps a link kind ("relates-to", "blocks", ...) to the
	// referenced source keys in document order. Converted to comments before upload.
	Relationships map[string][]string `json:"relationships,omitempty"`
}

// AddLabel appends label unless it is empty or already present.
func (i *NormalizedIssue) AddLabel(label string) {
	if label == "" {
		return
	}
	for _, l := range i.Labels {
		if l == label {
			return
		}
	}
	i.Labels = append(i.Labels, label)
}

// AddRelationship records a link of the given kind to key.
func (i *NormalizedIssue) AddRelationship(kind, key string) {
	if i.Relationships == nil {
		i.Relationships = make(map[string][]string)
	}
	i.Relationships[kind] = append(i.Relationships[kind], key)
}

// RelationshipKinds returns the recorded relationship kinds in sorted order.
func (i *NormalizedIssue) RelationshipKinds() []string {
	kinds := make([]string, 0, len(i.Relationships))
	for k := range i.Relationships {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// UniqueLabels returns labels with duplicates removed, first occurrence wins.
func UniqueLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
