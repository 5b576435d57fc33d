// Package config loads Labelwatch's tunables from a YAML file, with
// environment-variable overrides for the handful of deployment knobs,
// following the teacher's two-tier configuration convention: a plain
// env-var loader for process-level settings, and a YAML struct-tagged
// loader for the larger domain configuration surface.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the rule engine, derivation
// engine, discovery, ingest, and scheduler components.
type Config struct {
	DBPath      string   `yaml:"db_path" json:"db_path"`
	ServiceURL  string   `yaml:"service_url" json:"service_url"`
	LabelerDIDs []string `yaml:"labeler_dids" json:"labeler_dids"`

	WindowMinutes     int     `yaml:"window_minutes" json:"window_minutes"`
	BaselineHours     int     `yaml:"baseline_hours" json:"baseline_hours"`
	SpikeK            float64 `yaml:"spike_k" json:"spike_k"`
	MinCurrentCount   int     `yaml:"min_current_count" json:"min_current_count"`
	FlipFlopWindowHrs int     `yaml:"flip_flop_window_hours" json:"flip_flop_window_hours"`
	MaxEventsPerScan  int     `yaml:"max_events_per_scan" json:"max_events_per_scan"`
	MaxEvidence       int     `yaml:"max_evidence" json:"max_evidence"`

	ConcentrationWindowHrs int     `yaml:"concentration_window_hours" json:"concentration_window_hours"`
	ConcentrationThreshold float64 `yaml:"concentration_threshold" json:"concentration_threshold"`
	ConcentrationMinLabels int     `yaml:"concentration_min_labels" json:"concentration_min_labels"`

	ChurnWindowHrs  int     `yaml:"churn_window_hours" json:"churn_window_hours"`
	ChurnThreshold  float64 `yaml:"churn_threshold" json:"churn_threshold"`
	ChurnMinTargets int     `yaml:"churn_min_targets" json:"churn_min_targets"`

	DiscoveryEnabled       bool     `yaml:"discovery_enabled" json:"discovery_enabled"`
	DiscoveryIntervalHours int      `yaml:"discovery_interval_hours" json:"discovery_interval_hours"`
	ReferenceDIDs          []string `yaml:"reference_dids" json:"reference_dids"`

	MultiIngestTimeoutSeconds int `yaml:"multi_ingest_timeout" json:"multi_ingest_timeout"`
	MultiIngestBudgetSeconds  int `yaml:"multi_ingest_budget" json:"multi_ingest_budget"`
	MultiIngestMaxPages       int `yaml:"multi_ingest_max_pages" json:"multi_ingest_max_pages"`

	SpikeMinCountReference int `yaml:"spike_min_count_reference" json:"spike_min_count_reference"`
	SpikeMinCountDefault   int `yaml:"spike_min_count_default" json:"spike_min_count_default"`
	ConfidenceMinEvents    int `yaml:"confidence_min_events" json:"confidence_min_events"`
	ConfidenceMinAgeHours  int `yaml:"confidence_min_age_hours" json:"confidence_min_age_hours"`

	NoisePolicyEnabled bool `yaml:"noise_policy_enabled" json:"noise_policy_enabled"`

	WarmupEnabled         bool `yaml:"warmup_enabled" json:"warmup_enabled"`
	WarmupMinAgeHours     int  `yaml:"warmup_min_age_hours" json:"warmup_min_age_hours"`
	WarmupMinEvents       int  `yaml:"warmup_min_events" json:"warmup_min_events"`
	WarmupMinScans        int  `yaml:"warmup_min_scans" json:"warmup_min_scans"`
	WarmupSuppressAlerts  bool `yaml:"warmup_suppress_alerts" json:"warmup_suppress_alerts"`

	DeriveIntervalMinutes int `yaml:"derive_interval_minutes" json:"derive_interval_minutes"`
	RegimeHysteresisScans int `yaml:"regime_hysteresis_scans" json:"regime_hysteresis_scans"`

	CoverageWindowMinutes int     `yaml:"coverage_window_minutes" json:"coverage_window_minutes"`
	CoverageThreshold     float64 `yaml:"coverage_threshold" json:"coverage_threshold"`

	// ReversalCapPerLabeler bounds the supplemented reversal-stats
	// counter (SPEC_FULL.md §9 item 3); Truncated is surfaced when hit.
	ReversalCapPerLabeler int `yaml:"reversal_cap_per_labeler" json:"reversal_cap_per_labeler"`

	// StrictSchema gates optional jsonschema validation of raw fetched
	// label payloads before normalization, rejecting malformed shapes
	// that NormalizeLabel would otherwise just skip with a generic error.
	StrictSchema bool `yaml:"strict_schema" json:"strict_schema"`

	// ReportOutDir, when non-empty, enables the scheduler's report
	// pass; empty disables it.
	ReportOutDir string `yaml:"report_out_dir" json:"report_out_dir"`

	// LogLevel and ProbeHostLimiter are environment-overridable
	// deployment knobs (see Load).
	LogLevel         string `yaml:"log_level" json:"log_level"`
	ProbeHostLimiter string `yaml:"probe_host_limiter" json:"probe_host_limiter"` // "counter" | "token_bucket"
}

// Default returns the configuration's zero-config defaults, mirrored
// field-for-field from the original implementation.
func Default() *Config {
	return &Config{
		DBPath:     "labelwatch.db",
		ServiceURL: "https://bsky.social",

		WindowMinutes:     15,
		BaselineHours:     24,
		SpikeK:            10.0,
		MinCurrentCount:   50,
		FlipFlopWindowHrs: 24,
		MaxEventsPerScan:  200000,
		MaxEvidence:       50,

		ConcentrationWindowHrs: 24,
		ConcentrationThreshold: 0.25,
		ConcentrationMinLabels: 20,

		ChurnWindowHrs:  24,
		ChurnThreshold:  0.8,
		ChurnMinTargets: 10,

		DiscoveryEnabled:       false,
		DiscoveryIntervalHours: 24,
		ReferenceDIDs: []string{
			"did:plc:ar7c4by46qjdydhdevvrndac", // Bluesky Moderation
			"did:plc:e4elbtctnfqocyfcml6h2lf7", // Skywatch Blue
		},

		MultiIngestTimeoutSeconds: 15,
		MultiIngestBudgetSeconds:  300,
		MultiIngestMaxPages:       5,

		SpikeMinCountReference: 50,
		SpikeMinCountDefault:   5,
		ConfidenceMinEvents:    100,
		ConfidenceMinAgeHours:  168,

		NoisePolicyEnabled: true,

		WarmupEnabled:        true,
		WarmupMinAgeHours:    48,
		WarmupMinEvents:      20,
		WarmupMinScans:       3,
		WarmupSuppressAlerts: true,

		DeriveIntervalMinutes: 30,
		RegimeHysteresisScans: 2,

		CoverageWindowMinutes: 30,
		CoverageThreshold:     0.5,

		ReversalCapPerLabeler: 50000,

		ProbeHostLimiter: "counter",
		LogLevel:         "info",
	}
}

// Load reads a YAML config file at path (if non-empty) over the
// defaults, then applies environment-variable overrides for the
// deployment knobs that operators commonly set per-environment rather
// than per-deployment (db path, log level, limiter strategy).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if v := os.Getenv("LABELWATCH_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LABELWATCH_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LABELWATCH_PROBE_HOST_LIMITER"); v != "" {
		cfg.ProbeHostLimiter = v
	}

	return cfg, nil
}

// ReceiptSubset is the canonical subset of configuration hashed into
// every alert's config_hash, matching the original's to_receipt_dict.
type ReceiptSubset struct {
	WindowMinutes          int     `json:"window_minutes"`
	BaselineHours          int     `json:"baseline_hours"`
	SpikeK                 float64 `json:"spike_k"`
	MinCurrentCount        int     `json:"min_current_count"`
	FlipFlopWindowHours    int     `json:"flip_flop_window_hours"`
	MaxEventsPerScan       int     `json:"max_events_per_scan"`
	MaxEvidence            int     `json:"max_evidence"`
	ConcentrationWindowHrs int     `json:"concentration_window_hours"`
	ConcentrationThreshold float64 `json:"concentration_threshold"`
	ConcentrationMinLabels int     `json:"concentration_min_labels"`
	ChurnWindowHrs         int     `json:"churn_window_hours"`
	ChurnThreshold         float64 `json:"churn_threshold"`
	ChurnMinTargets        int     `json:"churn_min_targets"`
	SpikeMinCountReference int     `json:"spike_min_count_reference"`
	SpikeMinCountDefault   int     `json:"spike_min_count_default"`
	ConfidenceMinEvents    int     `json:"confidence_min_events"`
	ConfidenceMinAgeHours  int     `json:"confidence_min_age_hours"`
}

// ToReceiptDict extracts the canonical subset hashed for config_hash.
func (c *Config) ToReceiptDict() ReceiptSubset {
	return ReceiptSubset{
		WindowMinutes:          c.WindowMinutes,
		BaselineHours:          c.BaselineHours,
		SpikeK:                 c.SpikeK,
		MinCurrentCount:        c.MinCurrentCount,
		FlipFlopWindowHours:    c.FlipFlopWindowHrs,
		MaxEventsPerScan:       c.MaxEventsPerScan,
		MaxEvidence:            c.MaxEvidence,
		ConcentrationWindowHrs: c.ConcentrationWindowHrs,
		ConcentrationThreshold: c.ConcentrationThreshold,
		ConcentrationMinLabels: c.ConcentrationMinLabels,
		ChurnWindowHrs:         c.ChurnWindowHrs,
		ChurnThreshold:         c.ChurnThreshold,
		ChurnMinTargets:        c.ChurnMinTargets,
		SpikeMinCountReference: c.SpikeMinCountReference,
		SpikeMinCountDefault:   c.SpikeMinCountDefault,
		ConfidenceMinEvents:    c.ConfidenceMinEvents,
		ConfidenceMinAgeHours:  c.ConfidenceMinAgeHours,
	}
}
