// Package jira models the XML issue export produced by Jira's issue navigator.
//
// Every element of an item is optional. Absent elements are nil pointers or
// empty slices, and callers check presence explicitly with Get.
package jira

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Export is the root of an XML export file.
type Export struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel holds the exported items.
type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

// Text is an element with character data and an optional id attribute.
type Text struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

// Get returns the trimmed value and whether the element is present and non-empty.
func (t *Text) Get() (string, bool) {
	if t == nil {
		return "", false
	}
	v := strings.TrimSpace(t.Value)
	return v, v != ""
}

// Raw returns the untrimmed value, or "" for an absent element.
func (t *Text) Raw() string {
	if t == nil {
		return ""
	}
	return t.Value
}

// User is an identity block such as reporter or assignee.
type User struct {
	AccountID string `xml:"accountid,attr"`
	Username  string `xml:"username,attr"`
	Name      string `xml:",chardata"`
}

// Get returns the display name and whether the user element is present.
func (u *User) Get() (string, bool) {
	if u == nil {
		return "", false
	}
	name := strings.TrimSpace(u.Name)
	return name, name != ""
}

// Account returns the account id, or fallback when missing.
func (u *User) Account(fallback string) string {
	if u == nil || u.AccountID == "" {
		return fallback
	}
	return u.AccountID
}

// ProjectRef is the project an item belongs to.
type ProjectRef struct {
	ID   string `xml:"id,attr"`
	Key  string `xml:"key,attr"`
	Name string `xml:",chardata"`
}

// StatusCategory groups statuses into new / in progress / done.
type StatusCategory struct {
	ID  string `xml:"id,attr"`
	Key string `xml:"key,attr"`
}

// Labels wraps the label list.
type Labels struct {
	Label []Text `xml:"label"`
}

// Comments wraps the comment list.
type Comments struct {
	Comment []Comment `xml:"comment"`
}

// Comment is a single source comment.
type Comment struct {
	ID      string `xml:"id,attr"`
	Author  string `xml:"author,attr"`
	Created string `xml:"created,attr"`
	Body    string `xml:",chardata"`
}

// Subtasks wraps the subtask list.
type Subtasks struct {
	Subtask []Text `xml:"subtask"`
}

// IssueLinks wraps the typed link groups.
type IssueLinks struct {
	Types []IssueLinkType `xml:"issuelinktype"`
}

// IssueLinkType holds both directions of one link type.
type IssueLinkType struct {
	ID       string      `xml:"id,attr"`
	Name     string      `xml:"name"`
	Outwards []LinkGroup `xml:"outwardlinks"`
	Inwards  []LinkGroup `xml:"inwardlinks"`
}

// LinkGroup is one direction of a link type, e.g. "blocks" or "is blocked by".
type LinkGroup struct {
	Description string      `xml:"description,attr"`
	Links       []IssueLink `xml:"issuelink"`
}

// IssueLink references other issues by key.
type IssueLink struct {
	Keys []Text `xml:"issuekey"`
}

// CustomFields wraps the custom field list.
type CustomFields struct {
	Fields []CustomField `xml:"customfield"`
}

// CustomField is one custom field with its values.
type CustomField struct {
	ID     string             `xml:"id,attr"`
	Key    string             `xml:"key,attr"`
	Name   string             `xml:"customfieldname"`
	Values *CustomFieldValues `xml:"customfieldvalues"`
}

// CustomFieldValues wraps the values of a custom field.
type CustomFieldValues struct {
	Values []Text `xml:"customfieldvalue"`
}

// Value returns the first value of the field and whether it is present.
func (f *CustomField) Value() (string, bool) {
	if f == nil || f.Values == nil || len(f.Values.Values) == 0 {
		return "", false
	}
	return f.Values.Values[0].Get()
}

// Item is one exported issue.
type Item struct {
	Title          *Text           `xml:"title"`
	Link           *Text           `xml:"link"`
	Project        *ProjectRef     `xml:"project"`
	Description    *Text           `xml:"description"`
	Key            *Text           `xml:"key"`
	Summary        *Text           `xml:"summary"`
	Type           *Text           `xml:"type"`
	Priority       *Text           `xml:"priority"`
	Status         *Text           `xml:"status"`
	StatusCategory *StatusCategory `xml:"statusCategory"`
	Resolution     *Text           `xml:"resolution"`
	Assignee       *User           `xml:"assignee"`
	Reporter       *User           `xml:"reporter"`
	Labels         *Labels         `xml:"labels"`
	Created        *Text           `xml:"created"`
	Updated        *Text           `xml:"updated"`
	Resolved       *Text           `xml:"resolved"`
	FixVersions    []Text          `xml:"fixVersion"`
	Components     []Text          `xml:"component"`
	Parent         *Text           `xml:"parent"`
	Subtasks       *Subtasks       `xml:"subtasks"`
	IssueLinks     *IssueLinks     `xml:"issuelinks"`
	CustomFields   *CustomFields   `xml:"customfields"`
	Comments       *Comments       `xml:"comments"`
}

// CustomFieldByID finds a custom field by its id attribute.
func (it *Item) CustomFieldByID(id string) *CustomField {
	if it.CustomFields == nil {
		return nil
	}
	for i := range it.CustomFields.Fields {
		if it.CustomFields.Fields[i].ID == id {
			return &it.CustomFields.Fields[i]
		}
	}
	return nil
}

// CustomFieldByKey finds a custom field by its key attribute.
func (it *Item) CustomFieldByKey(key string) *CustomField {
	if it.CustomFields == nil {
		return nil
	}
	for i := range it.CustomFields.Fields {
		if it.CustomFields.Fields[i].Key == key {
			return &it.CustomFields.Fields[i]
		}
	}
	return nil
}

// Decode parses one export document.
func Decode(r io.Reader) (*Export, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var exp Export
	if err := dec.Decode(&exp); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	return &exp, nil
}

// ReadFile parses the export at path.
func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	exp, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}

// ReadFiles parses a ';'-separated list of files or directories. A directory
// contributes every *.xml file directly inside it, in name order.
func ReadFiles(list string) ([]*Export, error) {
	var exports []*Export
	for _, name := range strings.Split(list, ";") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		info, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("stat export %s: %w", name, err)
		}

		paths := []string{name}
		if info.IsDir() {
			paths, err = filepath.Glob(filepath.Join(name, "*.xml"))
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", name, err)
			}
			sort.Strings(paths)
		}

		for _, p := range paths {
			exp, err := ReadFile(p)
			if err != nil {
				return nil, err
			}
			exports = append(exports, exp)
		}
	}
	return exports, nil
}

var timeLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	time.RFC3339,
	"2006-01-02 15:04:05.0",
	"2006-01-02",
}

// ParseTime parses a timestamp in any of the formats Jira exports use.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
