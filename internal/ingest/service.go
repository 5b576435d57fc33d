package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

const serviceCursorSource = "service"

// queryLabelsResponse is com.atproto.label.queryLabels's response
// shape, trimmed to the fields ingest consumes.
type queryLabelsResponse struct {
	Cursor string                   `json:"cursor"`
	Labels []map[string]interface{} `json:"labels"`
}

// FetchLabels issues one queryLabels page against serviceURL, scoped to
// sources and resumed from cursor.
func FetchLabels(ctx context.Context, client *httpfetch.Client, serviceURL string, sources []string, cursor string, limit int) ([]map[string]interface{}, string, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	for _, src := range sources {
		q.Add("sources", src)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	fetchURL := strings.TrimRight(serviceURL, "/") + "/xrpc/com.atproto.label.queryLabels?" + q.Encode()

	var resp queryLabelsResponse
	if _, err := client.GetJSON(ctx, fetchURL, &resp); err != nil {
		return nil, "", err
	}
	return resp.Labels, resp.Cursor, nil
}

func serviceCursorKey(serviceURL string) string {
	return strings.TrimRight(serviceURL, "/")
}

// FromService pages through a single central labeling service's
// queryLabels endpoint, resuming from the persisted cursor keyed by the
// service URL, storing each event and advancing the cursor only after
// each page is committed — ingest_from_service's loop, ported with its
// max-pages guard and empty/no-cursor termination conditions.
func FromService(ctx context.Context, st *store.Store, cfg *config.Config) (Outcome, error) {
	client := httpfetch.New(time.Duration(cfg.MultiIngestTimeoutSeconds) * time.Second)
	cursorKey := serviceCursorKey(cfg.ServiceURL)

	cursor, _, err := st.GetSourceCursor(ctx, cursorKey, serviceCursorSource)
	if err != nil {
		return Outcome{LabelerDID: cfg.ServiceURL, Status: StatusError, Err: err}, err
	}

	total := 0
	maxPages := cfg.MultiIngestMaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	for page := 0; page < maxPages; page++ {
		labels, nextCursor, err := FetchLabels(ctx, client, cfg.ServiceURL, cfg.LabelerDIDs, cursor, 100)
		if err != nil {
			return Outcome{LabelerDID: cfg.ServiceURL, Count: total, Status: StatusPartial, Err: err}, nil
		}
		if len(labels) == 0 {
			break
		}

		n, err := FromIter(ctx, st, cfg, labels)
		if err != nil {
			return Outcome{LabelerDID: cfg.ServiceURL, Count: total, Status: StatusPartial, Err: err}, nil
		}
		total += n

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
		if err := st.SetSourceCursor(ctx, cursorKey, serviceCursorSource, cursor); err != nil {
			return Outcome{LabelerDID: cfg.ServiceURL, Count: total, Status: StatusPartial, Err: err}, err
		}
	}

	status := StatusSuccess
	if total == 0 {
		status = StatusEmpty
	}
	return Outcome{LabelerDID: cfg.ServiceURL, Count: total, Status: status}, nil
}
