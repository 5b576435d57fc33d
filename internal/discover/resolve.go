package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

const plcDirectory = "https://plc.directory"

// plcDirectoryOverride lets tests point DID resolution at a local
// server; production code never reassigns it.
var plcDirectoryOverride = plcDirectory

// FetchDIDDoc resolves a DID document from the PLC directory. A nil
// document and nil error both signal "could not resolve" — discovery
// treats a missing doc as absence of evidence, not a fatal condition.
func FetchDIDDoc(ctx context.Context, client *httpfetch.Client, did string) (*DIDDocument, error) {
	var doc DIDDocument
	_, err := client.GetJSON(ctx, fmt.Sprintf("%s/%s", plcDirectoryOverride, did), &doc)
	if err != nil {
		return nil, nil
	}
	return &doc, nil
}

// ResolveHandle extracts the at:// handle alias from a DID document's
// alsoKnownAs list, if present.
func ResolveHandle(doc *DIDDocument) string {
	if doc == nil {
		return ""
	}
	for _, aka := range doc.AlsoKnownAs {
		if strings.HasPrefix(aka, "at://") {
			return strings.TrimPrefix(aka, "at://")
		}
	}
	return ""
}

// ResolveServiceEndpoint returns the labeler service endpoint declared
// in a DID document's service array, if any.
func ResolveServiceEndpoint(doc *DIDDocument) string {
	if doc == nil {
		return ""
	}
	for _, svc := range doc.Service {
		if svc.Type == "AtprotoLabeler" || strings.HasSuffix(svc.ID, "#atproto_labeler") {
			return svc.ServiceEndpoint
		}
	}
	return ""
}

// ResolveLabelKey reports whether a DID document declares an
// atproto_label-capable verification method, the cryptographic
// evidence that a DID can actually sign labels rather than merely
// declaring a labeler service.
func ResolveLabelKey(doc *DIDDocument) bool {
	if doc == nil {
		return false
	}
	for _, vm := range doc.VerificationMethod {
		if strings.Contains(vm.ID, "atproto_label") {
			return true
		}
	}
	return false
}

// didInfo is the per-DID resolution result fed back from the parallel
// DID-document resolution phase.
type didInfo struct {
	did          string
	doc          *DIDDocument
	handle       string
	endpoint     string
	hasLabelKey  bool
}

func fetchDIDInfo(ctx context.Context, client *httpfetch.Client, did string) didInfo {
	doc, _ := FetchDIDDoc(ctx, client, did)
	if doc == nil {
		return didInfo{did: did}
	}
	return didInfo{
		did:         did,
		doc:         doc,
		handle:      ResolveHandle(doc),
		endpoint:    ResolveServiceEndpoint(doc),
		hasLabelKey: ResolveLabelKey(doc),
	}
}

// didFetchTimeout bounds a single DID document resolution.
const didFetchTimeout = 10 * time.Second
