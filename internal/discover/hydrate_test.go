package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

func TestHydrateLabelersPopulatesDisplayNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"views":[
			{"creator":{"did":"did:plc:a","displayName":"Alice Labels"}},
			{"creator":{"did":"did:plc:b","displayName":"Bob Labels"}}
		]}`))
	}))
	defer srv.Close()

	orig := labelerServicesURLOverride
	labelerServicesURLOverride = srv.URL
	defer func() { labelerServicesURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	got := HydrateLabelers(context.Background(), client, []string{"did:plc:a", "did:plc:b"})
	if got["did:plc:a"] != "Alice Labels" || got["did:plc:b"] != "Bob Labels" {
		t.Fatalf("HydrateLabelers() = %v", got)
	}
}

func TestHydrateLabelersUnmatchedDIDGetsEmptyEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"views":[{"creator":{"did":"did:plc:a","displayName":"Alice Labels"}}]}`))
	}))
	defer srv.Close()

	orig := labelerServicesURLOverride
	labelerServicesURLOverride = srv.URL
	defer func() { labelerServicesURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	got := HydrateLabelers(context.Background(), client, []string{"did:plc:a", "did:plc:missing"})
	if got["did:plc:a"] != "Alice Labels" {
		t.Fatalf("got[did:plc:a] = %q", got["did:plc:a"])
	}
	if v, ok := got["did:plc:missing"]; !ok || v != "" {
		t.Fatalf("got[did:plc:missing] = %q, ok=%v; want empty entry", v, ok)
	}
}

func TestHydrateLabelersBatchesByTwentyFive(t *testing.T) {
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batchSizes = append(batchSizes, len(r.URL.Query()["dids"]))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"views":[]}`))
	}))
	defer srv.Close()

	orig := labelerServicesURLOverride
	labelerServicesURLOverride = srv.URL
	defer func() { labelerServicesURLOverride = orig }()

	dids := make([]string, 30)
	for i := range dids {
		dids[i] = "did:plc:x"
	}
	client := httpfetch.New(2 * time.Second)
	HydrateLabelers(context.Background(), client, dids)

	if len(batchSizes) != 2 || batchSizes[0] != 25 || batchSizes[1] != 5 {
		t.Fatalf("batchSizes = %v, want [25 5]", batchSizes)
	}
}

func TestHydrateLabelersFailedBatchGetsEmptyEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	orig := labelerServicesURLOverride
	labelerServicesURLOverride = srv.URL
	defer func() { labelerServicesURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	got := HydrateLabelers(context.Background(), client, []string{"did:plc:a"})
	if v, ok := got["did:plc:a"]; !ok || v != "" {
		t.Fatalf("got[did:plc:a] = %q, ok=%v; want empty entry", v, ok)
	}
}
