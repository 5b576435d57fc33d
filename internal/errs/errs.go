// Package errs provides the closed error-kind taxonomy used across
// Labelwatch's components, so callers can branch on failure category
// without string-matching error messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure the way the design separates propagation
// policy: some kinds are fatal and propagate to the caller, others are
// recorded as outcome rows and swallowed at a per-unit boundary.
type Kind int

const (
	// Configuration errors are fatal: missing labeler set, unknown
	// schema newer than the compiled version.
	Configuration Kind = iota
	// Transport errors are non-fatal per unit: timeout, DNS, TLS,
	// connection refused, 5xx.
	Transport
	// Auth is not actually an error condition; classified distinctly
	// from Transport so callers can special-case 401/403 at a probe.
	Auth
	// Integrity covers malformed inputs that are dropped from side
	// effects without failing the containing operation.
	Integrity
	// Duplicate marks a content-hash collision on insert; ignored, not
	// counted as an error.
	Duplicate
	// Store covers constraint violations and disk errors; aborts the
	// current pass, logs, and the scheduler continues at the next tick.
	Store
	// Migration is a hard failure at startup: code older than the
	// stored schema version.
	Migration
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Transport:
		return "transport"
	case Auth:
		return "auth"
	case Integrity:
		return "integrity"
	case Duplicate:
		return "duplicate"
	case Store:
		return "store"
	case Migration:
		return "migration"
	default:
		return "unknown"
	}
}

// kindError wraps an inner error with its Kind.
type kindError struct {
	kind Kind
	op   string
	err  error
}

func (e *kindError) Error() string {
	if e.op == "" {
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return fmt.Sprintf("%s: %s: %v", e.kind, e.op, e.err)
}

func (e *kindError) Unwrap() error { return e.err }

// New wraps err with kind and an operation label, the way every
// store/ingest/discover boundary reports failures.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, op: op, err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err was never
// wrapped through New.
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return 0, false
}
