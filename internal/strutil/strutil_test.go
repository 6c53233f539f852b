package strutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCmpFold(t *testing.T) {
	require.True(t, CmpFold("Content-Length", "content-length"))
	require.True(t, CmpFold("", ""))
	require.False(t, CmpFold("abc", "abcd"))
	// the fold is ASCII-only: '@' (0x40) and '`' (0x60) differ, even though
	// they are 0x20 apart
	require.False(t, CmpFold("@", "`"))
	require.False(t, CmpFold("\x80", "\xa0"))
	require.True(t, CmpFold("\xff", "\xff"))
}
