package http

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullInputStream(t *testing.T) {
	var stream NullInputStream

	n, err := stream.Read(make([]byte, 16))
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)

	length, known := stream.ContentLength()
	require.True(t, known)
	require.Zero(t, length)
}

func TestBytesInputStream(t *testing.T) {
	stream := NewBytesInputStream([]byte("hello world"))

	length, known := stream.ContentLength()
	require.True(t, known)
	require.EqualValues(t, 11, length)

	buff := make([]byte, 5)
	n, err := stream.Read(buff)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buff[:n]))

	rest, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, " world", string(rest))

	n, err = stream.Read(buff)
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
}
