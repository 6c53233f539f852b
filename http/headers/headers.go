// Package headers implements RFC 7230 validity checks for header fields of
// outgoing responses, plus hop-by-hop classification.
package headers

import (
	"github.com/indigo-web/wasgi/internal/strutil"
)

// validNameChar reports the RFC 7230/2616 token charset: any visible US-ASCII
// octet except separators. Bytes >= 0x80 are excluded.
var validNameChar = func() (v [256]bool) {
	for c := 0x21; c <= 0x7E; c++ {
		v[c] = true
	}

	for _, c := range []byte("()<>@,;:\\\"/[]?={} \t") {
		v[c] = false
	}

	return v
}()

// validValueChar covers field-value bytes: HTAB / SP / VCHAR / obs-text.
// Line folding is excluded, as CR and LF are not in the set.
var validValueChar = func() (v [256]bool) {
	for c := 0x21; c <= 0x7E; c++ {
		v[c] = true
	}
	for c := 0x80; c <= 0xFF; c++ {
		v[c] = true
	}
	v[' '], v['\t'] = true, true

	return v
}()

// ValidName reports whether name is a valid field-name token. Empty names are
// invalid.
func ValidName(name string) bool {
	if len(name) == 0 {
		return false
	}

	for i := 0; i < len(name); i++ {
		if !validNameChar[name[i]] {
			return false
		}
	}

	return true
}

// ValidValue reports whether value is a valid field-value.
func ValidValue(value string) bool {
	for i := 0; i < len(value); i++ {
		if !validValueChar[value[i]] {
			return false
		}
	}

	return true
}

var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// IsHopByHop reports whether name belongs to the fixed RFC 7230 6.1 set of
// headers that are meaningful for a single transport hop only. Content-Length
// is not classified hop-by-hop, it receives special treatment by the gateway
// instead.
func IsHopByHop(name string) bool {
	for _, hop := range hopByHop {
		if Match(name, hop) {
			return true
		}
	}

	return false
}

// Match reports whether a and b are equal header names under ASCII-only
// case folding. Empty names never match anything.
func Match(a, b string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}

	return strutil.CmpFold(a, b)
}
