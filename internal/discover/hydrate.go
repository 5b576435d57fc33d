package discover

import (
	"context"
	"net/url"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

const labelerServicesURL = "https://public.api.bsky.app/xrpc/app.bsky.labeler.getServices"

// labelerServicesURLOverride lets tests point hydration at a local
// server; production code never reassigns it.
var labelerServicesURLOverride = labelerServicesURL

const hydrateBatchSize = 25

type labelerServicesResponse struct {
	Views []struct {
		Creator struct {
			DID         string `json:"did"`
			DisplayName string `json:"displayName"`
		} `json:"creator"`
	} `json:"views"`
}

// HydrateLabelers batch-fetches display names via
// app.bsky.labeler.getServices, 25 DIDs per request (the endpoint's own
// batch limit), serially — already batched, so parallelizing it buys
// nothing. Every requested DID gets an entry in the result, empty
// string when the service has no view for it.
func HydrateLabelers(ctx context.Context, client *httpfetch.Client, dids []string) map[string]string {
	out := make(map[string]string, len(dids))

	for i := 0; i < len(dids); i += hydrateBatchSize {
		end := i + hydrateBatchSize
		if end > len(dids) {
			end = len(dids)
		}
		batch := dids[i:end]

		q := url.Values{}
		q.Set("detailed", "true")
		for _, did := range batch {
			q.Add("dids", did)
		}

		var resp labelerServicesResponse
		if _, err := client.GetJSON(ctx, labelerServicesURLOverride+"?"+q.Encode(), &resp); err != nil {
			for _, did := range batch {
				if _, ok := out[did]; !ok {
					out[did] = ""
				}
			}
			continue
		}

		seen := make(map[string]bool, len(resp.Views))
		for _, v := range resp.Views {
			if v.Creator.DID == "" {
				continue
			}
			seen[v.Creator.DID] = true
			out[v.Creator.DID] = v.Creator.DisplayName
		}
		for _, did := range batch {
			if !seen[did] {
				if _, ok := out[did]; !ok {
					out[did] = ""
				}
			}
		}
	}
	return out
}
