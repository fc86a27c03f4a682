package normalize

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	indentRe     = regexp.MustCompile(` {8}`)
	dimensionRe  = regexp.MustCompile(`(width|height)=".+?"`)
	embedRe      = regexp.MustCompile(`<object.+?<embed (.+?)/></object>`)
	attachmentRe = regexp.MustCompile(`/rest/api/3/attachment/content/(\d+[^"]*)`)
)

// SearchURL returns a relative link to the target repository's issue search
// for term within field ("title", "comment", ...).
func SearchURL(term, field string) string {
	return "../issues?" + url.Values{"q": {"in:" + field + ` "` + term + `"`}}.Encode()
}

// Renderer turns source description and comment markup into target-friendly HTML.
type Renderer struct {
	baseURL  string
	browseRe *regexp.Regexp
	media    *MediaCache
}

// NewRenderer creates a renderer for the jira instance at baseURL.
// media may be nil when no media cache is configured.
func NewRenderer(baseURL string, media *MediaCache) *Renderer {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Renderer{
		baseURL:  baseURL,
		browseRe: regexp.MustCompile(`"` + regexp.QuoteMeta(baseURL) + `/browse/(.+?)"`),
		media:    media,
	}
}

// Render rewrites s. The steps run in a fixed order: indentation artifacts,
// explicit dimensions, embedded video, attachment links, jira cross-links,
// then HTML entity decoding.
func (r *Renderer) Render(ctx context.Context, s string) string {
	if s == "" {
		return ""
	}
	s = indentRe.ReplaceAllString(s, "")
	s = dimensionRe.ReplaceAllString(s, "")
	s = replaceSubmatch(embedRe, s, func(m []string) string {
		return strings.ReplaceAll("<a "+m[1]+">video</a>", " src=", " href=")
	})
	if r.media != nil {
		s = replaceSubmatch(attachmentRe, s, func(m []string) string {
			return r.media.Link(ctx, m[0], m[1])
		})
	}
	s = replaceSubmatch(r.browseRe, s, func(m []string) string {
		return `"` + SearchURL(m[1], "title") + `"`
	})
	return html.UnescapeString(s)
}

// replaceSubmatch is ReplaceAllStringFunc with access to capture groups.
func replaceSubmatch(re *regexp.Regexp, s string, fn func([]string) string) string {
	idx := re.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return s
	}

	var b strings.Builder
	last := 0
	for _, loc := range idx {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for g := range groups {
			if loc[2*g] >= 0 {
				groups[g] = s[loc[2*g]:loc[2*g+1]]
			}
		}
		b.WriteString(fn(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
