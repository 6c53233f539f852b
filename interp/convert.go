package interp

import (
	"github.com/indigo-web/utils/uf"
)

// UnicodeFromLatin1 decodes every byte as one codepoint. Any byte sequence is
// representable, so this cannot fail. This is the conversion behind native
// strings: a Latin-1 round-trip preserves arbitrary bytes.
func (rt *Runtime) UnicodeFromLatin1(data []byte) Object {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}

	v := newValue(KindStr)
	v.runes = runes
	return Object{v}
}

// NativeString is a shorthand for UnicodeFromLatin1 over a string.
func (rt *Runtime) NativeString(s string) Object {
	return rt.UnicodeFromLatin1(uf.S2B(s))
}

// UnicodeFromUTF8 decodes UTF-8 input, for the few places where the source
// encoding genuinely is UTF-8 (filesystem paths).
func (rt *Runtime) UnicodeFromUTF8(data []byte) Object {
	v := newValue(KindStr)
	v.runes = []rune(uf.B2S(data))
	return Object{v}
}

// ToBytesView returns the raw bytes of a Bytes object, or a Str encoded as
// UTF-8. The slice must not be retained past the object's lifetime.
func (rt *Runtime) ToBytesView(o Object) []byte {
	if o.v == nil {
		return nil
	}

	switch o.v.kind {
	case KindBytes:
		return o.v.bytes
	case KindStr:
		return uf.S2B(string(o.v.runes))
	}

	return nil
}

// StrValue renders the object's text: Str codepoints as UTF-8, Bytes
// verbatim.
func (o Object) StrValue() string {
	if o.v == nil {
		return ""
	}

	switch o.v.kind {
	case KindStr, KindExcInstance:
		return string(o.v.runes)
	case KindBytes:
		return uf.B2S(o.v.bytes)
	}

	return ""
}

// FromNativeString packs a unicode string back into raw bytes, verifying the
// Latin-1 range. A codepoint above 0xFF raises a ValueError describing the
// offender.
func (rt *Runtime) FromNativeString(o Object) ([]byte, bool) {
	if o.v == nil || o.v.kind != KindStr {
		rt.SetError(TypeError, "expected str, got %s", o.TypeName())
		return nil, false
	}

	result := make([]byte, len(o.v.runes))
	for i, r := range o.v.runes {
		if r > 0xFF {
			rt.SetError(ValueError,
				"String '%s' cannot be encoded as Latin-1. Code point U+%04X is out of range.",
				string(o.v.runes), r)
			return nil, false
		}
		result[i] = byte(r)
	}

	return result, true
}
