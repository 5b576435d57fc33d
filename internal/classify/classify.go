// Package classify fuses structured evidence about a labeler into a
// visibility/reachability/auditability/confidence classification. It is
// a pure function: no I/O, no package-level state, deterministic given
// its inputs.
package classify

import (
	"regexp"
	"strings"
)

// Version is the frozen classifier version string recorded alongside
// every Result so that a schema/logic change is visible in stored data.
const Version = "v1"

// ProbeOutcome is the result of a single endpoint probe, or the zero
// value when no probe has run.
type ProbeOutcome string

const (
	ProbeNone         ProbeOutcome = ""
	ProbeAccessible   ProbeOutcome = "accessible"
	ProbeAuthRequired ProbeOutcome = "auth_required"
	ProbeDown         ProbeOutcome = "down"
)

// Signals is the full set of structured evidence the classifier
// considers for one labeler.
type Signals struct {
	DeclaredRecordPresent     bool
	DIDDocLabelerServicePresent bool
	DIDDocLabelKeyPresent     bool
	ObservedLabelSrc          bool
	Probe                     ProbeOutcome
}

// Visibility classes, in decision-tree priority order.
const (
	VisibilityDeclared       = "declared"
	VisibilityProtocolPublic = "protocol_public"
	VisibilityObservedOnly   = "observed_only"
	VisibilityUnresolved     = "unresolved"
)

// Reachability states, mirroring ProbeOutcome plus "unknown".
const (
	ReachabilityAccessible   = "accessible"
	ReachabilityAuthRequired = "auth_required"
	ReachabilityDown         = "down"
	ReachabilityUnknown      = "unknown"
)

// Auditability bands.
const (
	AuditabilityHigh   = "high"
	AuditabilityMedium = "medium"
	AuditabilityLow    = "low"
)

// Confidence bands.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Result is the classifier's deterministic output.
type Result struct {
	VisibilityClass          string
	ReachabilityState         string
	Auditability              string
	ClassificationConfidence  string
	Reason                    string
	Version                   string
}

// Classify fuses evidence into a Result following the decision tree in
// priority order: declared, then protocol_public, then observed_only,
// then unresolved.
func Classify(s Signals) Result {
	reachability := reachabilityOf(s.Probe)

	var visibility, auditability string
	var reasons []string

	switch {
	case s.DeclaredRecordPresent:
		visibility = VisibilityDeclared
		reasons = append(reasons, "declared")
		if s.DIDDocLabelerServicePresent {
			reasons = append(reasons, "did_service")
		}
		if s.DIDDocLabelKeyPresent {
			reasons = append(reasons, "did_label_key")
		}

		switch reachability {
		case ReachabilityAccessible:
			auditability = AuditabilityHigh
			reasons = append(reasons, "probe_accessible")
		case ReachabilityAuthRequired:
			auditability = AuditabilityMedium
			reasons = append(reasons, "probe_auth_required")
		case ReachabilityDown:
			auditability = AuditabilityMedium
			reasons = append(reasons, "probe_down")
		default:
			auditability = AuditabilityMedium
			reasons = append(reasons, "not_probed")
		}

	case s.DIDDocLabelerServicePresent:
		visibility = VisibilityProtocolPublic
		reasons = append(reasons, "protocol_public")
		if s.DIDDocLabelKeyPresent {
			reasons = append(reasons, "did_label_key")
		}

		switch reachability {
		case ReachabilityAccessible:
			auditability = AuditabilityMedium
			reasons = append(reasons, "probe_accessible")
		case ReachabilityAuthRequired:
			auditability = AuditabilityMedium
			reasons = append(reasons, "probe_auth_required")
		case ReachabilityDown:
			auditability = AuditabilityMedium
			reasons = append(reasons, "probe_down")
		default:
			auditability = AuditabilityMedium
		}

	case s.ObservedLabelSrc:
		visibility = VisibilityObservedOnly
		reasons = append(reasons, "observed_only_no_declaration")
		auditability = AuditabilityLow

	default:
		visibility = VisibilityUnresolved
		reasons = append(reasons, "unresolved")
		auditability = AuditabilityLow
	}

	if s.ObservedLabelSrc && visibility != VisibilityObservedOnly {
		reasons = append(reasons, "observed_src")
	}

	return Result{
		VisibilityClass:         visibility,
		ReachabilityState:        reachability,
		Auditability:             auditability,
		ClassificationConfidence: computeConfidence(s),
		Reason:                   strings.Join(reasons, "+"),
		Version:                  Version,
	}
}

func reachabilityOf(p ProbeOutcome) string {
	switch p {
	case ProbeAccessible:
		return ReachabilityAccessible
	case ProbeAuthRequired:
		return ReachabilityAuthRequired
	case ProbeDown:
		return ReachabilityDown
	default:
		return ReachabilityUnknown
	}
}

// computeConfidence counts strong (independent-observation) and medium
// (protocol/registry-declaration) signals: >=2 strong, or >=1 strong with
// >=2 medium, is high; >=1 strong with >=1 medium, or >=2 medium, is
// medium; otherwise low.
func computeConfidence(s Signals) string {
	strong := 0
	medium := 0

	switch s.Probe {
	case ProbeAccessible, ProbeAuthRequired, ProbeDown:
		strong++
	}
	if s.ObservedLabelSrc {
		strong++
	}
	if s.DeclaredRecordPresent {
		medium++
	}
	if s.DIDDocLabelerServicePresent {
		medium++
	}
	if s.DIDDocLabelKeyPresent {
		medium++
	}

	switch {
	case strong >= 2 || (strong >= 1 && medium >= 2):
		return ConfidenceHigh
	case (strong >= 1 && medium >= 1) || medium >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// testDevPatterns is the fixed heuristic ruleset for flagging likely
// test/dev labelers; ported token-for-token. Treat as authoritative.
var testDevPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btest\b`),
	regexp.MustCompile(`(?i)\bdev\b`),
	regexp.MustCompile(`(?i)\bdemo\b`),
	regexp.MustCompile(`(?i)\bexample\b`),
	regexp.MustCompile(`(?i)\bsandbox\b`),
	regexp.MustCompile(`(?i)\btmp\b`),
	regexp.MustCompile(`(?i)\bfoo\b`),
	regexp.MustCompile(`(?i)\bbar\b`),
	regexp.MustCompile(`(?i)^test[-.]`),
	regexp.MustCompile(`(?i)[-.]test$`),
	regexp.MustCompile(`(?i)^dev[-.]`),
	regexp.MustCompile(`(?i)[-.]dev$`),
}

// DetectTestDev flags a labeler as likely test/dev infrastructure based
// on its handle and display name.
func DetectTestDev(handle, displayName string) bool {
	for _, text := range []string{handle, displayName} {
		if text == "" {
			continue
		}
		for _, pat := range testDevPatterns {
			if pat.MatchString(text) {
				return true
			}
		}
	}
	return false
}
