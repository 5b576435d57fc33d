package discover

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unpingable/atproto-labelwatch/internal/classify"
	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// Options tunes RunDiscovery's concurrency and timeouts, mirroring
// run_discovery's keyword defaults.
type Options struct {
	MaxPages     int
	DIDWorkers   int
	ProbeWorkers int
	ProbeTimeout time.Duration
	MaxPerHost   int
}

// DefaultOptions returns the original implementation's defaults.
func DefaultOptions() Options {
	return Options{
		MaxPages:     50,
		DIDWorkers:   10,
		ProbeWorkers: 5,
		ProbeTimeout: 8 * time.Second,
		MaxPerHost:   2,
	}
}

func evidenceKey(did, evidenceType, value string) [3]string {
	return [3]string{did, evidenceType, value}
}

// RunDiscovery executes the full five-phase pipeline: enumerate every
// labeler DID, resolve DID documents in parallel, hydrate display
// names, probe endpoints in parallel with a per-host concurrency
// limit, then classify and upsert on the calling goroutine — the
// single-writer invariant the rest of the store keeps everywhere else.
func RunDiscovery(ctx context.Context, st *store.Store, cfg *config.Config, opts Options) (Summary, error) {
	t0 := time.Now()

	enumClient := httpfetch.New(30 * time.Second)
	dids := ListLabelerDIDs(ctx, enumClient, opts.MaxPages)
	if len(dids) == 0 {
		return Summary{}, nil
	}

	// Phase 2: resolve DID docs in parallel.
	didDocs := make(map[string]*DIDDocument, len(dids))
	endpoints := make(map[string]string, len(dids))
	handles := make(map[string]string, len(dids))
	labelKeys := make(map[string]bool, len(dids))
	var resolveMu sync.Mutex

	resolveClient := httpfetch.New(didFetchTimeout)
	{
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.DIDWorkers)
		for _, did := range dids {
			did := did
			g.Go(func() error {
				info := fetchDIDInfo(gctx, resolveClient, did)
				resolveMu.Lock()
				if info.doc != nil {
					didDocs[did] = info.doc
				}
				if info.handle != "" {
					handles[did] = info.handle
				}
				if info.endpoint != "" {
					endpoints[did] = info.endpoint
				}
				labelKeys[did] = info.hasLabelKey
				resolveMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	// Phase 3: hydrate display names, already batched, kept serial.
	hydrateClient := httpfetch.New(15 * time.Second)
	hydration := HydrateLabelers(ctx, hydrateClient, dids)

	// Phase 4: probe endpoints in parallel, per-host limited.
	probeResults := make(map[string]ProbeResult, len(endpoints))
	var probeMu sync.Mutex

	var limiter HostLimiter
	if cfg.ProbeHostLimiter == "token_bucket" {
		limiter = NewTokenBucketLimiter(rate.Limit(opts.MaxPerHost), opts.MaxPerHost)
	} else {
		limiter = NewCounterLimiter(opts.MaxPerHost)
	}

	probeClient := httpfetch.New(opts.ProbeTimeout)
	{
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.ProbeWorkers)
		for did, ep := range endpoints {
			did, ep := did, ep
			g.Go(func() error {
				host := hostOf(ep)
				limiter.Acquire(gctx, host)
				defer limiter.Release(host)
				result := ProbeEndpoint(gctx, probeClient, ep, did)
				probeMu.Lock()
				probeResults[did] = result
				probeMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	// Phase 5: classify and upsert, single goroutine.
	seenTS := formatTS(time.Now())
	summary := Summary{Discovered: len(dids)}
	evidenceSeen := make(map[[3]string]bool)

	for _, did := range dids {
		labelerClass, isReference := classifyLabeler(did, cfg)
		displayName := hydration[did]
		handle := handles[did]
		endpoint, hasEndpoint := endpoints[did]
		probe, hasProbe := probeResults[did]
		hasLK := labelKeys[did]

		status := "unknown"
		if hasProbe {
			status = probe.NormalizedStatus
		}
		switch {
		case !hasEndpoint:
			status = "unknown"
			summary.NoEndpoint++
		case status == "accessible":
			summary.Accessible++
		case status == "auth_required":
			summary.AuthRequired++
		default:
			summary.Down++
		}

		existing, err := st.GetLabeler(ctx, did)
		if err != nil && err != store.ErrNotFound {
			return summary, err
		}
		var existingObservedSrc, existingHasService, existingHasLK bool
		if existing != nil {
			existingObservedSrc = existing.ObservedAsSrc
			existingHasService = existing.HasLabelerService
			existingHasLK = existing.HasLabelKey
		}

		signals := classify.Signals{
			DeclaredRecordPresent:       true,
			DIDDocLabelerServicePresent: hasEndpoint || existingHasService,
			DIDDocLabelKeyPresent:       hasLK || existingHasLK,
			ObservedLabelSrc:            existingObservedSrc,
			Probe:                       probeOutcome(status),
		}
		result := classify.Classify(signals)
		testDev := false
		if cfg.NoisePolicyEnabled {
			testDev = classify.DetectTestDev(handle, displayName)
		}

		insertEvidenceOnce(ctx, st, evidenceSeen, did, "declared_record", "true", seenTS)
		if hasEndpoint {
			insertEvidenceOnce(ctx, st, evidenceSeen, did, "did_doc_labeler_service", endpoint, seenTS)
		}
		if hasLK {
			insertEvidenceOnce(ctx, st, evidenceSeen, did, "did_doc_label_key", "true", seenTS)
		}
		if hasProbe {
			insertEvidenceOnce(ctx, st, evidenceSeen, did, "probe_result", probe.NormalizedStatus, seenTS)
			_ = st.InsertProbeHistory(ctx, store.ProbeEntry{
				LabelerDID:       did,
				TS:               seenTS,
				Endpoint:         endpoint,
				HTTPStatus:       probe.HTTPStatus,
				NormalizedStatus: probe.NormalizedStatus,
				LatencyMS:        probe.LatencyMS,
				FailureType:      probe.FailureType,
				ErrorText:        probe.Error,
			})
		}

		l := store.Labeler{
			LabelerDID:               did,
			Handle:                   handle,
			DisplayName:              displayName,
			ServiceEndpoint:          endpoint,
			LabelerClass:             labelerClass,
			IsReference:              isReference,
			EndpointStatus:           status,
			LastProbed:               seenTS,
			VisibilityClass:          result.VisibilityClass,
			ReachabilityState:        result.ReachabilityState,
			ClassificationConfidence: result.ClassificationConfidence,
			ClassificationReason:     result.Reason,
			ClassificationVersion:    result.Version,
			Auditability:             result.Auditability,
			ObservedAsSrc:            existingObservedSrc,
			HasLabelerService:        hasEndpoint,
			HasLabelKey:              hasLK,
			DeclaredRecord:           true,
			LikelyTestDev:            testDev,
		}
		if err := st.UpsertDiscoveredLabeler(ctx, l, seenTS); err != nil {
			return summary, err
		}
	}

	for _, refDID := range cfg.ReferenceDIDs {
		if err := st.MarkReferenceDID(ctx, refDID); err != nil {
			return summary, err
		}
	}

	summary.ElapsedSeconds = time.Since(t0).Seconds()
	return summary, nil
}

func insertEvidenceOnce(ctx context.Context, st *store.Store, seen map[[3]string]bool, did, evidenceType, value, ts string) {
	key := evidenceKey(did, evidenceType, value)
	if seen[key] {
		return
	}
	seen[key] = true
	_ = st.InsertEvidence(ctx, store.Evidence{
		LabelerDID:     did,
		EvidenceType:   evidenceType,
		EvidenceValue:  value,
		EvidenceSource: "discovery",
		TS:             ts,
	})
}

func classifyLabeler(did string, cfg *config.Config) (string, bool) {
	for _, ref := range cfg.ReferenceDIDs {
		if ref == did {
			return "official_platform", true
		}
	}
	return "third_party", false
}

func probeOutcome(status string) classify.ProbeOutcome {
	switch status {
	case "accessible":
		return classify.ProbeAccessible
	case "auth_required":
		return classify.ProbeAuthRequired
	case "down":
		return classify.ProbeDown
	default:
		return classify.ProbeNone
	}
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
