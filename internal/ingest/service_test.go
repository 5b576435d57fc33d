package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unpingable/atproto-labelwatch/internal/config"
)

func TestFromServicePaginatesUntilCursorEmpty(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		page++
		switch page {
		case 1:
			_, _ = w.Write([]byte(`{"cursor":"page2","labels":[{"labeler_did":"did:plc:x","src":"did:plc:x","uri":"at://1","val":"spam"}]}`))
		default:
			_, _ = w.Write([]byte(`{"cursor":"","labels":[{"labeler_did":"did:plc:x","src":"did:plc:x","uri":"at://2","val":"spam"}]}`))
		}
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.ServiceURL = srv.URL
	cfg.LabelerDIDs = []string{"did:plc:x"}
	cfg.MultiIngestMaxPages = 5

	outcome, err := FromService(ctx, st, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 2, outcome.Count)
	require.Equal(t, 2, page)
}

func TestFromServiceEmptyResultsInEmptyStatus(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cursor":"","labels":[]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.ServiceURL = srv.URL

	outcome, err := FromService(ctx, st, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusEmpty, outcome.Status)
	require.Equal(t, 0, outcome.Count)
}

func TestFromServicePersistsCursorAcrossRuns(t *testing.T) {
	st := openTempStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		w.Header().Set("Content-Type", "application/json")
		if cursor == "" {
			_, _ = w.Write([]byte(`{"cursor":"resumehere","labels":[{"labeler_did":"did:plc:x","src":"did:plc:x","uri":"at://1","val":"spam"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"cursor":"","labels":[]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.ServiceURL = srv.URL
	cfg.MultiIngestMaxPages = 1

	_, err := FromService(ctx, st, cfg)
	require.NoError(t, err)

	cursor, ok, err := st.GetSourceCursor(ctx, serviceCursorKey(srv.URL), serviceCursorSource)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "resumehere", cursor)
}
