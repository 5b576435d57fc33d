package ingest

import (
	"context"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

const labelerCursorSource = "labeler"

// FromLabelers ingests directly from every discovered labeler whose
// last probe came back accessible, each keyed by its own DID-scoped
// cursor so one labeler's pagination never collides with another's —
// ingest_multi's per-DID cursor and failure-isolation contract. A
// labeler whose fetch fails is recorded with a zero count rather than
// aborting the run; budget bounds the total wall-clock time spent
// across all labelers, not any single one.
func FromLabelers(ctx context.Context, st *store.Store, cfg *config.Config, budget time.Duration) ([]Outcome, error) {
	labelers, err := st.ListLabelers(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(budget)
	client := httpfetch.New(time.Duration(cfg.MultiIngestTimeoutSeconds) * time.Second)

	var outcomes []Outcome
	for _, l := range labelers {
		if l.EndpointStatus != "accessible" {
			continue
		}
		if time.Now().After(deadline) {
			break
		}

		outcome := ingestOneLabeler(ctx, client, st, cfg, l)
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func ingestOneLabeler(ctx context.Context, client *httpfetch.Client, st *store.Store, cfg *config.Config, l store.Labeler) Outcome {
	cursor, _, err := st.GetSourceCursor(ctx, l.LabelerDID, labelerCursorSource)
	if err != nil {
		return Outcome{LabelerDID: l.LabelerDID, Status: StatusError, Err: err}
	}

	total := 0
	maxPages := cfg.MultiIngestMaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	for page := 0; page < maxPages; page++ {
		labels, nextCursor, err := FetchLabels(ctx, client, l.ServiceEndpoint, []string{l.LabelerDID}, cursor, 100)
		if err != nil {
			return Outcome{LabelerDID: l.LabelerDID, Count: 0, Status: StatusError, Err: err}
		}
		if len(labels) == 0 {
			break
		}

		n, err := FromIter(ctx, st, cfg, labels)
		if err != nil {
			return Outcome{LabelerDID: l.LabelerDID, Count: 0, Status: StatusError, Err: err}
		}
		total += n

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
		if err := st.SetSourceCursor(ctx, l.LabelerDID, labelerCursorSource, cursor); err != nil {
			return Outcome{LabelerDID: l.LabelerDID, Count: total, Status: StatusPartial, Err: err}
		}
	}

	status := StatusSuccess
	if total == 0 {
		status = StatusEmpty
	}
	return Outcome{LabelerDID: l.LabelerDID, Count: total, Status: status}
}
