package normalize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const primedCacheSize = 4096

// MediaCache rewrites jira attachment references to an external media cache
// and optionally asks the cache to fetch each file ahead of time.
type MediaCache struct {
	base       string
	prime      bool
	httpClient *http.Client
	primed     *lru.Cache[string, int]
}

// NewMediaCache returns a cache rooted at base. When prime is true each
// distinct URL is requested once with check=true so the cache fetches it.
func NewMediaCache(base string, prime bool, httpClient *http.Client) (*MediaCache, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	primed, err := lru.New[string, int](primedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create primed cache: %w", err)
	}
	return &MediaCache{
		base:       base,
		prime:      prime,
		httpClient: httpClient,
		primed:     primed,
	}, nil
}

// Link returns the cache URL for an attachment path. original is returned
// unchanged when the cache has no base configured.
func (m *MediaCache) Link(ctx context.Context, original, attachment string) string {
	if m == nil || m.base == "" {
		return original
	}
	link := m.base + attachment
	if m.prime {
		m.primeURL(ctx, link, attachment)
	}
	return link
}

func (m *MediaCache) primeURL(ctx context.Context, link, attachment string) {
	if m.primed.Contains(link) {
		return
	}

	sep := "?"
	if strings.Contains(attachment, "?") {
		sep = "&"
	}
	checkURL := link + sep + "check=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		slog.Warn("media cache request", "url", checkURL, "error", err)
		return
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		slog.Warn("media cache prime failed", "url", checkURL, "error", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	m.primed.Add(link, resp.StatusCode)
	slog.Info("cache media", "url", link, "status", resp.StatusCode)
}

// Primed reports the status observed when link was primed.
func (m *MediaCache) Primed(link string) (int, bool) {
	return m.primed.Get(link)
}
