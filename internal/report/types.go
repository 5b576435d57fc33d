// Package report assembles the read-only HTML/JSON site that surfaces
// the current labeler census, anomaly history, and per-labeler detail
// pages. Ported from original_source/src/labelwatch/report.py's
// generate_report: every page is written to a staging directory first
// and the whole directory is swapped into place atomically, so a
// reader never sees a half-written report.
package report

// Overview is the top-level JSON payload written as overview.json —
// the machine-readable counterpart of index.html.
type Overview struct {
	APIVersion            string            `json:"api_version"`
	GeneratedAt           string            `json:"generated_at"`
	LastIngest            string            `json:"last_ingest,omitempty"`
	LastScan              string            `json:"last_scan,omitempty"`
	LastDiscovery         string            `json:"last_discovery,omitempty"`
	Heartbeats            map[string]string `json:"heartbeats"`
	SchemaVersion         int               `json:"schema_version"`
	AlertsByRule24h       map[string]int    `json:"alerts_by_rule_24h"`
	AlertsByRule7d        map[string]int    `json:"alerts_by_rule_7d"`
	TopLabelers7d         []LabelerCount    `json:"top_labelers_7d"`
	LabelerCount          int               `json:"labeler_count"`
	AlertCount            int               `json:"alert_count"`
	NowClampedToRealTime  bool              `json:"now_clamped_to_real_time"`
	MaxRawTimestampSeen   string            `json:"max_raw_timestamp_seen,omitempty"`
	MaxSkewSeconds        int               `json:"max_skew_seconds"`
	BuildSignature        BuildSignature    `json:"build_signature"`
	Census                Census            `json:"census"`
	TestDevCount          int               `json:"test_dev_count"`
	WarmupCount           int               `json:"warmup_count"`
}

// LabelerCount is a (labeler, count) pair used by the top-labelers-by-
// alerts ranking.
type LabelerCount struct {
	LabelerDID string `json:"labeler_did"`
	Count      int    `json:"count"`
}

// BuildSignature identifies exactly which code and config produced a
// report, so two reports can be compared for reproducibility.
type BuildSignature struct {
	SchemaVersion int    `json:"schema_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	ConfigHash    string `json:"config_hash"`
}

// Census buckets every known labeler by its four classification axes —
// the discovery census page's grid of counts.
type Census struct {
	VisibilityClass          map[string]int `json:"visibility_class"`
	ReachabilityState        map[string]int `json:"reachability_state"`
	ClassificationConfidence map[string]int `json:"classification_confidence"`
	Auditability             map[string]int `json:"auditability"`
}

// LabelerSummary is one row of labelers.json / the overview table.
type LabelerSummary struct {
	LabelerDID               string `json:"labeler_did"`
	Handle                    string `json:"handle,omitempty"`
	DisplayName               string `json:"display_name,omitempty"`
	LabelerClass              string `json:"labeler_class"`
	IsReference               bool   `json:"is_reference"`
	EndpointStatus            string `json:"endpoint_status"`
	VisibilityClass           string `json:"visibility_class"`
	ReachabilityState         string `json:"reachability_state"`
	Auditability              string `json:"auditability"`
	ClassificationConfidence  string `json:"classification_confidence"`
	FirstSeen                 string `json:"first_seen"`
	LastSeen                  string `json:"last_seen"`
	Href                       string `json:"href"`
}

// AlertSummary is one row of alerts.json.
type AlertSummary struct {
	ID         int64  `json:"id"`
	RuleID     string `json:"rule_id"`
	LabelerDID string `json:"labeler_did"`
	TS         string `json:"ts"`
	Href       string `json:"href"`
}

// TargetCount is a (uri, count) pair used by the per-labeler top-
// targets table.
type TargetCount struct {
	URI   string `json:"uri"`
	Count int    `json:"count"`
}
