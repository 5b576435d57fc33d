package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

func TestListLabelerDIDsSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repos":[{"did":"did:plc:a"},{"did":"did:plc:b"}],"cursor":""}`))
	}))
	defer srv.Close()

	orig := repoListURLOverride
	repoListURLOverride = srv.URL
	defer func() { repoListURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	dids := ListLabelerDIDs(context.Background(), client, 1)
	if len(dids) != 2 || dids[0] != "did:plc:a" || dids[1] != "did:plc:b" {
		t.Fatalf("ListLabelerDIDs() = %v", dids)
	}
}

func TestListLabelerDIDsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			_, _ = w.Write([]byte(`{"repos":[{"did":"did:plc:a"}],"cursor":"c1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"repos":[{"did":"did:plc:b"}],"cursor":""}`))
	}))
	defer srv.Close()

	orig := repoListURLOverride
	repoListURLOverride = srv.URL
	defer func() { repoListURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	dids := ListLabelerDIDs(context.Background(), client, 5)
	if len(dids) != 2 || dids[0] != "did:plc:a" || dids[1] != "did:plc:b" {
		t.Fatalf("ListLabelerDIDs() = %v", dids)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestListLabelerDIDsStopsOnFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	orig := repoListURLOverride
	repoListURLOverride = srv.URL
	defer func() { repoListURLOverride = orig }()

	client := httpfetch.New(2 * time.Second)
	dids := ListLabelerDIDs(context.Background(), client, 5)
	if len(dids) != 0 {
		t.Fatalf("ListLabelerDIDs() = %v, want empty", dids)
	}
}
