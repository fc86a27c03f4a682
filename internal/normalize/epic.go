package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	epicLinkKey    = "com.pyxis.greenhopper.jira:gh-epic-link"
	epicShortLimit = 50
	epicWordLimit  = 40
	epicSeparator  = " - "
)

var epicJunkRe = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// SanitizeEpic reduces a raw epic value to a short label-safe name.
// Names under 50 characters are kept; longer names are cut at the first
// " - " or, failing that, shortened word by word to at most 40 characters.
// A first word longer than that leaves nothing, which means no epic.
func SanitizeEpic(raw string) string {
	name := strings.TrimSpace(epicJunkRe.ReplaceAllString(raw, " "))
	if utf8.RuneCountInString(name) < epicShortLimit {
		return name
	}

	if i := strings.Index(name, epicSeparator); i > 0 {
		return name[:i]
	}

	words := strings.Split(name, " ")
	for utf8.RuneCountInString(name) > epicWordLimit {
		words = words[:len(words)-1]
		name = strings.Join(words, " ")
	}
	return name
}
