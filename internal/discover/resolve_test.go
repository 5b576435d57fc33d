package discover

import "testing"

func TestResolveHandleExtractsATProtoAlias(t *testing.T) {
	doc := &DIDDocument{AlsoKnownAs: []string{"https://example.com", "at://alice.bsky.social"}}
	if got := ResolveHandle(doc); got != "alice.bsky.social" {
		t.Fatalf("ResolveHandle() = %q, want alice.bsky.social", got)
	}
}

func TestResolveHandleNilDoc(t *testing.T) {
	if got := ResolveHandle(nil); got != "" {
		t.Fatalf("ResolveHandle(nil) = %q, want empty", got)
	}
}

func TestResolveHandleNoATProtoAlias(t *testing.T) {
	doc := &DIDDocument{AlsoKnownAs: []string{"https://example.com"}}
	if got := ResolveHandle(doc); got != "" {
		t.Fatalf("ResolveHandle() = %q, want empty", got)
	}
}

func TestResolveServiceEndpointFindsLabelerEntry(t *testing.T) {
	doc := &DIDDocument{
		Service: []DIDService{
			{ID: "#atproto_pds", Type: "AtprotoPds", ServiceEndpoint: "https://pds.example.com"},
			{ID: "#atproto_labeler", Type: "AtprotoLabeler", ServiceEndpoint: "https://labeler.example.com"},
		},
	}
	if got := ResolveServiceEndpoint(doc); got != "https://labeler.example.com" {
		t.Fatalf("ResolveServiceEndpoint() = %q, want https://labeler.example.com", got)
	}
}

func TestResolveServiceEndpointMissing(t *testing.T) {
	doc := &DIDDocument{Service: []DIDService{
		{ID: "#atproto_pds", Type: "AtprotoPds", ServiceEndpoint: "https://pds.example.com"},
	}}
	if got := ResolveServiceEndpoint(doc); got != "" {
		t.Fatalf("ResolveServiceEndpoint() = %q, want empty", got)
	}
	if got := ResolveServiceEndpoint(&DIDDocument{}); got != "" {
		t.Fatalf("ResolveServiceEndpoint(empty) = %q, want empty", got)
	}
	if got := ResolveServiceEndpoint(nil); got != "" {
		t.Fatalf("ResolveServiceEndpoint(nil) = %q, want empty", got)
	}
}

func TestResolveLabelKeyPresent(t *testing.T) {
	doc := &DIDDocument{VerificationMethod: []VerificationMethod{
		{ID: "#atproto_label", Type: "Multikey", PublicKeyMultibase: "zDna..."},
	}}
	if !ResolveLabelKey(doc) {
		t.Fatal("ResolveLabelKey() = false, want true")
	}
}

func TestResolveLabelKeyAbsent(t *testing.T) {
	doc := &DIDDocument{VerificationMethod: []VerificationMethod{
		{ID: "#atproto", Type: "Multikey", PublicKeyMultibase: "zDna..."},
	}}
	if ResolveLabelKey(doc) {
		t.Fatal("ResolveLabelKey() = true, want false")
	}
}

func TestResolveLabelKeyEmptyDoc(t *testing.T) {
	if ResolveLabelKey(&DIDDocument{}) {
		t.Fatal("ResolveLabelKey(empty) = true, want false")
	}
	if ResolveLabelKey(nil) {
		t.Fatal("ResolveLabelKey(nil) = true, want false")
	}
}

func TestResolveLabelKeyNoVerificationMethods(t *testing.T) {
	doc := &DIDDocument{Service: []DIDService{{ID: "#atproto_labeler"}}}
	if ResolveLabelKey(doc) {
		t.Fatal("ResolveLabelKey() = true, want false")
	}
}
