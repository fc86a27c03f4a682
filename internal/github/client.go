package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://api.github.com"
	userAgent      = "jiramigrate/1.0"
	importAccept   = "application/vnd.github.golden-comet-preview+json"

	// DefaultTimeout is the ceiling applied to every single HTTP call.
	DefaultTimeout = 120 * time.Second
	// DefaultPageDelay paces consecutive page fetches.
	DefaultPageDelay = time.Second
)

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Milestone is a repository milestone.
type Milestone struct {
	Number int
	Title  string
}

// RateLimit holds the current rate limit status from GitHub API.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}

// ImportIssue is the issue part of an import request.
type ImportIssue struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Closed    bool       `json:"closed"`
	Assignee  string     `json:"assignee,omitempty"`
	Milestone *int       `json:"milestone,omitempty"`
	Labels    []string   `json:"labels"`
}

// ImportComment is one comment of an import request.
type ImportComment struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Body      string     `json:"body"`
}

// ImportRequest is the payload of POST /repos/{owner}/{repo}/import/issues.
type ImportRequest struct {
	Issue    ImportIssue     `json:"issue"`
	Comments []ImportComment `json:"comments"`
}

// ImportJob is the accepted response of an import request.
type ImportJob struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url"`
}

// Import job states.
const (
	ImportPending  = "pending"
	ImportImported = "imported"
	ImportFailed   = "failed"
)

// ImportStatus is the state of an import job.
type ImportStatus struct {
	ID       int             `json:"id"`
	Status   string          `json:"status"`
	URL      string          `json:"url"`
	IssueURL string          `json:"issue_url"`
	Errors   json.RawMessage `json:"errors,omitempty"`
}

// IssueNumber parses the created issue number from the last path segment of IssueURL.
func (s *ImportStatus) IssueNumber() (int, error) {
	u := strings.TrimRight(s.IssueURL, "/")
	i := strings.LastIndex(u, "/")
	if u == "" || i == len(u)-1 {
		return 0, fmt.Errorf("no issue url in import status")
	}
	n, err := strconv.Atoi(u[i+1:])
	if err != nil {
		return 0, fmt.Errorf("parse issue number from %q: %w", s.IssueURL, err)
	}
	return n, nil
}

// Client defines the subset of the GitHub API used by a migration.
type Client interface {
	ListMilestones(ctx context.Context, owner, repo string) ([]Milestone, error)
	CreateMilestone(ctx context.Context, owner, repo, title string) (Milestone, error)
	CreateLabel(ctx context.Context, owner, repo, name, color string) error
	StartImport(ctx context.Context, owner, repo string, req ImportRequest) (*ImportJob, error)
	ImportStatus(ctx context.Context, statusURL string) (*ImportStatus, error)
	CurrentUser(ctx context.Context) (string, error)
	GetRateLimit() RateLimit
}

// Options configures NewClient.
type Options struct {
	Token     string
	BaseURL   string
	Timeout   time.Duration
	PageDelay time.Duration

	// HTTPClient supplies the base transport. The bearer credential is layered on top.
	HTTPClient *http.Client
}

// clientImpl is the concrete implementation of Client.
type clientImpl struct {
	httpClient *http.Client
	gh         *gogithub.Client
	baseURL    string
	pageDelay  time.Duration

	mu        sync.RWMutex
	rateLimit RateLimit
}

// NewClient creates a GitHub API client authenticating with opts.Token.
func NewClient(opts Options) (Client, error) {
	return newClient(opts)
}

func newClient(opts Options) (*clientImpl, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}

	var base http.RoundTripper
	if opts.HTTPClient != nil {
		base = opts.HTTPClient.Transport
	}
	hc := &http.Client{Timeout: opts.Timeout, Transport: base}
	if opts.Token != "" {
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   base,
		}
	}

	apiURL, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	gh := gogithub.NewClient(hc)
	gh.BaseURL = apiURL
	gh.UserAgent = userAgent

	return &clientImpl{
		httpClient: hc,
		gh:         gh,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pageDelay:  opts.PageDelay,
	}, nil
}

func (c *clientImpl) newRequest(ctx context.Context, method, target string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", importAccept)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *clientImpl) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	c.updateRateLimit(resp)
	return resp, nil
}

func (c *clientImpl) updateRateLimit(resp *http.Response) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			c.rateLimit.Remaining = remaining
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.rateLimit.Reset = time.Unix(ts, 0)
		}
	}
}

// GetRateLimit returns the most recently observed rate limit status.
func (c *clientImpl) GetRateLimit() RateLimit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateLimit
}

// observe records rate limit headers and turns go-github failures into *StatusError.
func (c *clientImpl) observe(op string, resp *gogithub.Response, err error) error {
	if resp != nil {
		c.updateRateLimit(resp.Response)
	}
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil && resp.StatusCode >= 300 {
		msg := err.Error()
		if er, ok := err.(*gogithub.ErrorResponse); ok {
			msg = er.Message
		}
		return fmt.Errorf("%s: %w", op, &StatusError{Code: resp.StatusCode, Body: msg})
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListMilestones returns every milestone in any state, following pagination.
func (c *clientImpl) ListMilestones(ctx context.Context, owner, repo string) ([]Milestone, error) {
	opts := &gogithub.MilestoneListOptions{
		State:       "all",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var all []Milestone
	for {
		page, resp, err := c.gh.Issues.ListMilestones(ctx, owner, repo, opts)
		if err := c.observe("list milestones", resp, err); err != nil {
			return nil, err
		}
		for _, m := range page {
			all = append(all, Milestone{Number: m.GetNumber(), Title: m.GetTitle()})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		if err := sleepCtx(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// CreateMilestone creates an open milestone with the given title.
func (c *clientImpl) CreateMilestone(ctx context.Context, owner, repo, title string) (Milestone, error) {
	m, resp, err := c.gh.Issues.CreateMilestone(ctx, owner, repo, &gogithub.Milestone{Title: gogithub.String(title)})
	if err := c.observe("create milestone", resp, err); err != nil {
		return Milestone{}, err
	}
	return Milestone{Number: m.GetNumber(), Title: m.GetTitle()}, nil
}

// CreateLabel creates a label in the specified repository.
func (c *clientImpl) CreateLabel(ctx context.Context, owner, repo, name, color string) error {
	color = strings.TrimPrefix(color, "#")
	_, resp, err := c.gh.Issues.CreateLabel(ctx, owner, repo, &gogithub.Label{
		Name:  gogithub.String(name),
		Color: gogithub.String(color),
	})
	return c.observe("create label", resp, err)
}

// StartImport submits one issue with its comments to the asynchronous import API.
func (c *clientImpl) StartImport(ctx context.Context, owner, repo string, payload ImportRequest) (*ImportJob, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/import/issues", c.baseURL, owner, repo)

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("start import: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var job ImportJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("start import: decode response: %w", err)
	}
	if job.URL == "" {
		return nil, fmt.Errorf("start import: response carries no status url")
	}
	return &job, nil
}

// ImportStatus fetches the state of an import job. A 404 means the job is
// not visible yet and is reported as a *StatusError like any other status.
func (c *clientImpl) ImportStatus(ctx context.Context, statusURL string) (*ImportStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("import status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var status ImportStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("import status: decode response: %w", err)
	}
	return &status, nil
}

// CurrentUser returns the login the credential belongs to.
func (c *clientImpl) CurrentUser(ctx context.Context) (string, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err := c.observe("get user", resp, err); err != nil {
		return "", err
	}
	if user.GetLogin() == "" {
		return "", fmt.Errorf("GitHub API returned empty username")
	}
	return user.GetLogin(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
