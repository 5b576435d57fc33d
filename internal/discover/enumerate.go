package discover

import (
	"context"
	"net/url"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

const repoListURL = "https://bsky.network/xrpc/com.atproto.sync.listReposByCollection"

// repoListURLOverride lets tests point enumeration at a local server;
// production code never reassigns it.
var repoListURLOverride = repoListURL

type repoListResponse struct {
	Repos  []struct {
		DID string `json:"did"`
	} `json:"repos"`
	Cursor string `json:"cursor"`
}

// ListLabelerDIDs enumerates every labeler DID by paginating
// com.atproto.sync.listReposByCollection for the
// app.bsky.labeler.service collection, serially (this is a single bulk
// call up front, not something worth parallelizing) and stops early
// once a page returns no cursor or no repos.
func ListLabelerDIDs(ctx context.Context, client *httpfetch.Client, maxPages int) []string {
	var dids []string
	cursor := ""

	for i := 0; i < maxPages; i++ {
		q := url.Values{}
		q.Set("collection", "app.bsky.labeler.service")
		q.Set("limit", "500")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp repoListResponse
		if _, err := client.GetJSON(ctx, repoListURLOverride+"?"+q.Encode(), &resp); err != nil {
			break
		}

		for _, repo := range resp.Repos {
			if repo.DID != "" {
				dids = append(dids, repo.DID)
			}
		}

		cursor = resp.Cursor
		if cursor == "" || len(resp.Repos) == 0 {
			break
		}
	}
	return dids
}
