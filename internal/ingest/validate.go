package ingest

import "regexp"

// didPattern matches the generic DID syntax (did:method:method-specific-id)
// defined by the W3C DID Core spec. No equivalent check exists in the
// source this package is ported from; it is needed to keep a
// syntactically bogus src value (e.g. a plain handle or empty string)
// from creating a labeler row.
var didPattern = regexp.MustCompile(`^did:[a-z0-9]+:[A-Za-z0-9._:%-]+$`)

// isValidDID reports whether s has the generic did:method:id shape.
func isValidDID(s string) bool {
	return didPattern.MatchString(s)
}
