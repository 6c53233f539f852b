package http

import "strings"

// Uri is a request target split into a path and an optional query. No
// percent-decoding is performed anywhere in this package, both halves stay
// exactly as they arrived.
type Uri struct {
	Path string
	// Query keeps the leading '?' when one was present, so that an empty query
	// ("/path?") stays distinguishable from no query at all ("/path").
	Query string
}

// SplitUri splits at the first '?'. Everything from the '?' (inclusive)
// belongs to the query.
func SplitUri(uri string) Uri {
	q := strings.IndexByte(uri, '?')
	if q == -1 {
		return Uri{Path: uri}
	}

	return Uri{Path: uri[:q], Query: uri[q:]}
}
