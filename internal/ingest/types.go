// Package ingest normalizes and stores label events fetched either
// from a single central labeling service (queryLabels against a list
// of configured sources) or from every discovered, reachable labeler
// directly (one cursor per labeler DID).
//
// Ported from original_source/src/labelwatch/ingest.py, supplemented
// with the per-labeler mode and observed-only labeler lifecycle
// documented only in original_source/tests/test_multi_ingest.py — the
// ingest.py snapshot on disk predates that behavior.
package ingest

// LabelEvent is a normalized label event, ready to hash and store.
type LabelEvent struct {
	LabelerDID string
	Src        string
	URI        string
	CID        string
	Val        string
	Neg        bool
	Exp        string
	Sig        string
	TS         string
	EventHash  string
}

// Outcome is one labeler's ingest result for a single pass.
type Outcome struct {
	LabelerDID string
	Count      int
	Status     string // success | partial | empty | error
	Err        error
}

const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusEmpty   = "empty"
	StatusError   = "error"
)
