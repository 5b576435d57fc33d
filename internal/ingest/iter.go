package ingest

import (
	"context"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// FromIter normalizes and stores each raw item, registering every
// event's labeler_did as a plain "seen" labeler and, when the event's
// src field is itself a syntactically valid DID, additionally
// registering it as observed-as-src — the two-tier registration
// behavior test_multi_ingest.py exercises through normalize_label plus
// db.upsert_labeler / a dedicated observed-label-src evidence write.
// It returns the number of events newly inserted (re-delivered events
// with an already-seen event_hash do not count). When cfg.StrictSchema
// is set, a raw item failing the label payload schema is skipped the
// same way a NormalizeLabel error skips it.
func FromIter(ctx context.Context, st *store.Store, cfg *config.Config, items []map[string]interface{}) (int, error) {
	seenSrc := make(map[string]bool)
	inserted := 0
	strict := cfg != nil && cfg.StrictSchema

	for _, raw := range items {
		if strict {
			if err := validateLabelPayload(raw); err != nil {
				continue
			}
		}

		event, err := NormalizeLabel(raw)
		if err != nil {
			continue
		}

		ok, err := st.InsertEvent(ctx, store.Event{
			LabelerDID: event.LabelerDID,
			Src:        event.Src,
			URI:        event.URI,
			CID:        event.CID,
			Val:        event.Val,
			Neg:        event.Neg,
			Exp:        event.Exp,
			Sig:        event.Sig,
			TS:         event.TS,
			EventHash:  event.EventHash,
		})
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}

		if err := st.TouchLabelerSeen(ctx, event.LabelerDID, event.TS); err != nil {
			return inserted, err
		}

		if event.Src != "" && isValidDID(event.Src) {
			if err := st.TouchObservedLabeler(ctx, event.Src, event.TS); err != nil {
				return inserted, err
			}
			if !seenSrc[event.Src] {
				seenSrc[event.Src] = true
				if err := st.InsertEvidence(ctx, store.Evidence{
					LabelerDID:     event.Src,
					EvidenceType:   "observed_label_src",
					EvidenceValue:  event.LabelerDID,
					EvidenceSource: "ingest",
					TS:             event.TS,
				}); err != nil {
					return inserted, err
				}
			}
		}
	}

	return inserted, nil
}
