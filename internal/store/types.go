package store

// Event is a single ingested label event, deduplicated by EventHash.
type Event struct {
	ID         int64
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

// Labeler is the per-labeler aggregate row: classification, regime,
// scores, and coverage bookkeeping all live here as a single sticky
// record that only ever moves forward via MAX-merge upserts.
type Labeler struct {
	LabelerDID string
	Handle     string
	Description string
	FirstSeen  string
	LastSeen   string

	DisplayName     string
	ServiceEndpoint string
	LabelerClass    string
	IsReference     bool
	EndpointStatus  string
	LastProbed      string

	VisibilityClass          string
	ReachabilityState        string
	ClassificationConfidence string
	ClassificationReason     string
	ClassificationVersion    string
	ClassifiedAt             string
	Auditability             string
	ObservedAsSrc            bool
	HasLabelerService        bool
	HasLabelKey              bool
	DeclaredRecord           bool
	LikelyTestDev            bool
	ScanCount                int

	RegimeState        string
	RegimePending       string
	RegimePendingCount  int
	RegimeReasons       string
	RegimeChangedAt     string

	AuditabilityRisk        *int
	AuditabilityRiskBand    string
	AuditabilityRiskReasons string
	AuditabilityRiskPrev    *int

	InferenceRisk        *int
	InferenceRiskBand    string
	InferenceRiskReasons string
	InferenceRiskPrev    *int

	TemporalCoherence        *int
	TemporalCoherenceBand    string
	TemporalCoherenceReasons string
	TemporalCoherencePrev    *int

	CoverageRatio          *float64
	CoverageAttempts30d    int
	CoverageSuccesses30d   int
	LastIngestSuccessTS    string
	LastIngestAttemptTS    string
}

// Evidence is one observed classification signal for a labeler,
// retained for audit trails even after the labeler's sticky flags have
// already absorbed it.
type Evidence struct {
	ID             int64
	LabelerDID     string
	EvidenceType   string
	EvidenceValue  string
	EvidenceSource string
	TS             string
}

// ProbeEntry is a single endpoint reachability probe result.
type ProbeEntry struct {
	ID                int64
	LabelerDID        string
	TS                string
	Endpoint          string
	HTTPStatus        *int
	NormalizedStatus  string
	LatencyMS         *int
	FailureType       string
	ErrorText         string
}

// Alert is a fired rule receipt: the append-only audit record of every
// anomaly the rule engine has ever raised.
type Alert struct {
	ID                 int64
	RuleID             string
	LabelerDID         string
	TS                 string
	InputsJSON         string
	EvidenceHashesJSON string
	ConfigHash         string
	ReceiptHash        string
	WarmupAlert        bool
}

// DerivedReceipt records one derivation-engine state transition
// (regime change, score recompute) with enough context to reconstruct
// why it fired.
type DerivedReceipt struct {
	ID                 int64
	LabelerDID         string
	ReceiptType        string
	DerivationVersion  string
	Trigger            string
	TS                 string
	InputHash          string
	PreviousJSON       string
	NewJSON            string
	ReasonCodesJSON    string
}

// IngestOutcome is one ingest attempt's result, used to compute
// coverage ratios and surface ingest health in the report.
type IngestOutcome struct {
	ID            int64
	LabelerDID    string
	TS            string
	AttemptID     string
	Outcome       string
	EventsFetched int
	HTTPStatus    *int
	LatencyMS     *int
	ErrorType     string
	ErrorSummary  string
	Source        string
}

// ReversalStats is the supplemented sidecar-independent reversal
// counter (SPEC_FULL.md §9 item 3): a capped count of label reversals
// observed for a labeler within the tracked window, with Truncated set
// once the cap is hit so consumers know the count is a floor, not an
// exact value.
type ReversalStats struct {
	LabelerDID     string
	WindowStart    string
	WindowEnd      string
	ReversalCount  int
	Truncated      bool
	UpdatedAt      string
}
