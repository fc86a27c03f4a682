package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jmaddaus/jiramigrate/internal/github"
)

const (
	// DefaultInitialWait is slept before the first status check.
	DefaultInitialWait = 3 * time.Second
	// DefaultPollInterval separates status checks of one job.
	DefaultPollInterval = time.Second
)

var errNotReady = errors.New("import not settled")

// PollError is a terminal status-check failure for one import job.
type PollError struct {
	URL     string
	Code    int    // unexpected HTTP status, 0 if a status was read
	Status  string // job status when Code is 0
	Payload string // response body of a failed job
}

func (e *PollError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("failed to check GitHub issue import status url %s due to unexpected HTTP status code %d", e.URL, e.Code)
	case e.Status == github.ImportFailed:
		return fmt.Sprintf("failed to import GitHub issue due to the following errors: %s", e.Payload)
	default:
		return fmt.Sprintf("status check for GitHub issue import returned unexpected status %q", e.Status)
	}
}

// Poller waits for asynchronous import jobs to settle.
type Poller struct {
	client      github.Client
	InitialWait time.Duration
	Interval    time.Duration
	// MaxPolls caps status checks per job. Zero polls until the job settles.
	MaxPolls int
}

// NewPoller returns a poller with the default waits and no poll cap.
func NewPoller(client github.Client) *Poller {
	return &Poller{
		client:      client,
		InitialWait: DefaultInitialWait,
		Interval:    DefaultPollInterval,
	}
}

// Poll checks statusURL until the job is imported or failed and returns
// the created issue number. A 404 or a pending job is retried.
func (p *Poller) Poll(ctx context.Context, statusURL string) (int, error) {
	if err := sleepCtx(ctx, p.InitialWait); err != nil {
		return 0, err
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	if p.MaxPolls > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxPolls-1))
	}
	b = backoff.WithContext(b, ctx)

	polls := 0
	var number int
	op := func() error {
		polls++
		status, err := p.client.ImportStatus(ctx, statusURL)
		if err != nil {
			var se *github.StatusError
			if errors.As(err, &se) {
				if se.Code == http.StatusNotFound {
					return errNotReady
				}
				return backoff.Permanent(&PollError{URL: statusURL, Code: se.Code})
			}
			return backoff.Permanent(err)
		}

		switch status.Status {
		case github.ImportPending:
			return errNotReady
		case github.ImportImported:
			n, err := status.IssueNumber()
			if err != nil {
				return backoff.Permanent(err)
			}
			number = n
			return nil
		case github.ImportFailed:
			payload, _ := json.Marshal(status)
			return backoff.Permanent(&PollError{URL: statusURL, Status: status.Status, Payload: string(payload)})
		default:
			return backoff.Permanent(&PollError{URL: statusURL, Status: status.Status})
		}
	}
	notify := func(err error, d time.Duration) {
		slog.Debug("import not ready", "url", statusURL, "poll", polls, "retry_in", d)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if errors.Is(err, errNotReady) {
			return 0, fmt.Errorf("import status url %s not settled after %d polls", statusURL, polls)
		}
		return 0, err
	}
	return number, nil
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
