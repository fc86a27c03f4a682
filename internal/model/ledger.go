package model

import (
	"strconv"
	"strings"
	"time"
)

// LedgerEntry is the recorded outcome of one import attempt.
// Exactly one of TargetID and Error is set.
type LedgerEntry struct {
	SourceKey string `json:"source_key"`
	TargetID  *int   `json:"target_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Imported reports whether the entry records a created target issue.
func (e LedgerEntry) Imported() bool {
	return e.TargetID != nil
}

// Line renders the entry as a single ledger line without the trailing newline.
func (e LedgerEntry) Line() string {
	if e.TargetID != nil {
		return e.SourceKey + ":" + strconv.Itoa(*e.TargetID)
	}
	msg := strings.ReplaceAll(e.Error, "\r", "")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return e.SourceKey + ":" + msg
}

// Run describes one migration run recorded in the store.
type Run struct {
	ID          string     `json:"id"`
	Project     string     `json:"project"`
	Repository  string     `json:"repository"`
	StartOffset int        `json:"start_offset"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
