package ingest

import (
	"fmt"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/canonicalize"
)

// NormalizeLabel commits one dynamically-shaped raw label payload to a
// single LabelEvent representation before it is hashed, the boundary
// where the ingest pipeline stops trusting the wire shape of whatever
// service it fetched from.
func NormalizeLabel(raw map[string]interface{}) (LabelEvent, error) {
	labelerDID := stringField(raw, "labeler_did")
	if labelerDID == "" {
		labelerDID = stringField(raw, "src")
	}
	if labelerDID == "" {
		return LabelEvent{}, fmt.Errorf("ingest: labeler_did or src required")
	}

	uri := stringField(raw, "uri")
	val := stringField(raw, "val")
	if uri == "" || val == "" {
		return LabelEvent{}, fmt.Errorf("ingest: uri and val required")
	}

	src := stringField(raw, "src")
	cid := stringField(raw, "cid")
	exp := stringField(raw, "exp")
	sig := stringField(raw, "sig")

	neg := false
	if v, ok := raw["neg"]; ok {
		switch t := v.(type) {
		case bool:
			neg = t
		case float64:
			neg = t != 0
		}
	}

	ts := stringField(raw, "ts")
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	canonical := map[string]interface{}{
		"labeler_did": labelerDID,
		"src":         optionalString(src),
		"uri":         uri,
		"cid":         optionalString(cid),
		"val":         val,
		"neg":         boolToInt(neg),
		"exp":         optionalString(exp),
		"sig":         optionalString(sig),
		"ts":          ts,
	}
	eventHash, err := canonicalize.Hash(canonical)
	if err != nil {
		return LabelEvent{}, fmt.Errorf("ingest: hash event: %w", err)
	}

	return LabelEvent{
		LabelerDID: labelerDID,
		Src:        src,
		URI:        uri,
		CID:        cid,
		Val:        val,
		Neg:        neg,
		Exp:        exp,
		Sig:        sig,
		TS:         ts,
		EventHash:  eventHash,
	}, nil
}

func stringField(raw map[string]interface{}, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func optionalString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
