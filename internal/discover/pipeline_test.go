package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

func openTempStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labelwatch.db")
	s, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestRunDiscoveryEndToEnd wires every phase against local httptest
// servers, matching run_discovery's own reference-labeler fixture.
func TestRunDiscoveryEndToEnd(t *testing.T) {
	const referenceDID = "did:plc:reference1"
	const thirdPartyDID = "did:plc:thirdparty1"

	labelerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer labelerSrv.Close()

	plcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		did := strings.TrimPrefix(r.URL.Path, "/")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "` + did + `",
			"alsoKnownAs": ["at://` + did + `.example.bsky.social"],
			"service": [{"id": "#atproto_labeler", "type": "AtprotoLabeler", "serviceEndpoint": "` + labelerSrv.URL + `"}],
			"verificationMethod": [{"id": "#atproto_label", "type": "Multikey", "publicKeyMultibase": "zDna"}]
		}`))
	}))
	defer plcSrv.Close()

	enumSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repos":[{"did":"` + referenceDID + `"},{"did":"` + thirdPartyDID + `"}],"cursor":""}`))
	}))
	defer enumSrv.Close()

	hydrateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"views":[
			{"creator":{"did":"` + referenceDID + `","displayName":"Reference Labeler"}},
			{"creator":{"did":"` + thirdPartyDID + `","displayName":"Third Party Labeler"}}
		]}`))
	}))
	defer hydrateSrv.Close()

	origRepo, origPLC, origHydrate := repoListURLOverride, plcDirectoryOverride, labelerServicesURLOverride
	repoListURLOverride = enumSrv.URL
	plcDirectoryOverride = plcSrv.URL
	labelerServicesURLOverride = hydrateSrv.URL
	defer func() {
		repoListURLOverride = origRepo
		plcDirectoryOverride = origPLC
		labelerServicesURLOverride = origHydrate
	}()

	st := openTempStore(t)
	cfg := config.Default()
	cfg.ReferenceDIDs = []string{referenceDID}

	opts := DefaultOptions()
	opts.ProbeTimeout = 2 * time.Second

	summary, err := RunDiscovery(context.Background(), st, cfg, opts)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Discovered)
	require.Equal(t, 2, summary.Accessible)

	ref, err := st.GetLabeler(context.Background(), referenceDID)
	require.NoError(t, err)
	require.Equal(t, "official_platform", ref.LabelerClass)
	require.True(t, ref.IsReference)
	require.Equal(t, "accessible", ref.EndpointStatus)
	require.Equal(t, "Reference Labeler", ref.DisplayName)

	thirdParty, err := st.GetLabeler(context.Background(), thirdPartyDID)
	require.NoError(t, err)
	require.Equal(t, "third_party", thirdParty.LabelerClass)
	require.False(t, thirdParty.IsReference)

	evidence, err := st.GetEvidence(context.Background(), referenceDID)
	require.NoError(t, err)
	require.NotEmpty(t, evidence)
}

func TestRunDiscoveryBackfillsReferenceDIDNotEnumerated(t *testing.T) {
	const enumeratedThirdParty = "did:plc:someother"
	const neverEnumeratedRef = "did:plc:ghostref"

	enumSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repos":[{"did":"` + enumeratedThirdParty + `"}],"cursor":""}`))
	}))
	defer enumSrv.Close()
	plcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer plcSrv.Close()
	hydrateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"views":[]}`))
	}))
	defer hydrateSrv.Close()

	origRepo, origPLC, origHydrate := repoListURLOverride, plcDirectoryOverride, labelerServicesURLOverride
	repoListURLOverride = enumSrv.URL
	plcDirectoryOverride = plcSrv.URL
	labelerServicesURLOverride = hydrateSrv.URL
	defer func() {
		repoListURLOverride = origRepo
		plcDirectoryOverride = origPLC
		labelerServicesURLOverride = origHydrate
	}()

	st := openTempStore(t)
	require.NoError(t, st.UpsertDiscoveredLabeler(context.Background(), store.Labeler{
		LabelerDID:        neverEnumeratedRef,
		LabelerClass:      "third_party",
		VisibilityClass:   "observed_only",
		ReachabilityState: "unknown",
		Auditability:      "low",
	}, "2025-01-01T00:00:00.000000+00:00"))

	cfg := config.Default()
	cfg.ReferenceDIDs = []string{neverEnumeratedRef}

	// neverEnumeratedRef never comes back from enumeration or DID-doc
	// resolution, yet the unconditional backfill pass still flags it as
	// official_platform — matching run_discovery's final UPDATE loop
	// over config.reference_dids.
	_, err := RunDiscovery(context.Background(), st, cfg, DefaultOptions())
	require.NoError(t, err)

	ref, err := st.GetLabeler(context.Background(), neverEnumeratedRef)
	require.NoError(t, err)
	require.True(t, ref.IsReference)
	require.Equal(t, "official_platform", ref.LabelerClass)
}
