// Package ledger records the outcome of every import attempt, one line per
// source issue, so a later run can resume where an earlier one stopped.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmaddaus/jiramigrate/internal/model"
)

// DefaultPath is the ledger file used when none is configured.
const DefaultPath = "jira-keys-to-github-id.txt"

const markerPrefix = "### "

// Writer receives ledger entries as they are decided.
type Writer interface {
	// Begin marks the start of a run.
	Begin(at time.Time) error
	Append(entry model.LedgerEntry) error
	Close() error
}

// FileLedger is an append-only text ledger. Every Append reaches the file
// before it returns.
type FileLedger struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*FileLedger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return &FileLedger{f: f}, nil
}

// Begin writes the run marker line.
func (l *FileLedger) Begin(at time.Time) error {
	return l.writeLine(markerPrefix + at.Format(time.ANSIC))
}

// Append writes one key:value line.
func (l *FileLedger) Append(entry model.LedgerEntry) error {
	return l.writeLine(entry.Line())
}

func (l *FileLedger) writeLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.f, line+"\n"); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

type tee []Writer

// Tee returns a Writer that forwards to every w in order. The first error
// stops the fan-out and is returned; Close always reaches every writer.
func Tee(writers ...Writer) Writer {
	return tee(writers)
}

func (t tee) Begin(at time.Time) error {
	for _, w := range t {
		if err := w.Begin(at); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Append(entry model.LedgerEntry) error {
	for _, w := range t {
		if err := w.Append(entry); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) Close() error {
	var errs []error
	for _, w := range t {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type mirror struct {
	w        Writer
	disabled bool
}

// Mirror wraps a secondary writer whose failures must not stop an import.
// Errors are logged and swallowed; a failed Begin disables the writer for
// the rest of the run.
func Mirror(w Writer) Writer {
	return &mirror{w: w}
}

func (m *mirror) Begin(at time.Time) error {
	if err := m.w.Begin(at); err != nil {
		slog.Warn("ledger mirror disabled", "error", err)
		m.disabled = true
	}
	return nil
}

func (m *mirror) Append(entry model.LedgerEntry) error {
	if m.disabled {
		return nil
	}
	if err := m.w.Append(entry); err != nil {
		slog.Warn("ledger mirror append failed", "key", entry.SourceKey, "error", err)
	}
	return nil
}

func (m *mirror) Close() error {
	if err := m.w.Close(); err != nil {
		slog.Warn("ledger mirror close failed", "error", err)
	}
	return nil
}

// Parse reads ledger lines from r. Run markers and blank lines are skipped.
// A value that is an integer is a target id; anything else is an error text.
func Parse(r io.Reader) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, markerPrefix) {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" {
			return entries, fmt.Errorf("malformed ledger line %d: %q", lineNo, line)
		}
		entry := model.LedgerEntry{SourceKey: key}
		if id, err := strconv.Atoi(value); err == nil {
			entry.TargetID = &id
		} else {
			entry.Error = value
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// ReadFile parses the ledger at path. A missing file is an empty ledger.
func ReadFile(path string) ([]model.LedgerEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// ResumeOffset returns how many leading keys already have a ledger entry,
// whether it recorded a success or a failure.
func ResumeOffset(keys []string, entries []model.LedgerEntry) int {
	recorded := make(map[string]bool, len(entries))
	for _, e := range entries {
		recorded[e.SourceKey] = true
	}
	n := 0
	for _, k := range keys {
		if !recorded[k] {
			break
		}
		n++
	}
	return n
}
