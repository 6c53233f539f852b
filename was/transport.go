// Package was adapts the Web Application Socket transport to the bridge's
// request/response model. The transport framing itself is external; this
// package only relies on the contract below.
package was

import (
	"iter"

	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/http/status"
)

// Read result codes, the transport's signed return convention.
const (
	ReadErrSystem   = -1
	ReadErrProtocol = -2
)

// Transport is a single WAS channel pair towards the front-end proxy. Only one
// request uses it at a time; the state order status -> headers -> length ->
// body -> end/abort is enforced by the Responder on top of it.
//
// Boolean results follow the underlying protocol convention: false means the
// control channel failed and the request cannot be completed.
type Transport interface {
	// Accept blocks until the proxy submits the next request and returns its
	// URI. ok is false when the command channel is closed and the accept loop
	// should terminate.
	Accept() (uri string, ok bool)
	// Method returns method.Unknown for requests the proxy passed through
	// with a method we do not recognize.
	Method() method.Method
	ScriptName() (string, bool)
	PathInfo() (string, bool)
	QueryString() (string, bool)
	RemoteHost() (string, bool)
	// Headers iterates the request header pairs in arrival order.
	Headers() iter.Seq2[string, string]
	HasBody() bool
	// InputRemaining returns the declared body length, negative if unknown.
	InputRemaining() int64
	// Read blocks for body bytes. Returns the number of bytes read, 0 at EOF,
	// ReadErrSystem on a system error and ReadErrProtocol on a protocol
	// violation.
	Read(p []byte) int
	Status(code status.Code) bool
	SetHeader(name, value string) bool
	SetLength(n uint64) bool
	Write(p []byte) bool
	// End completes the response, flushing the control channel.
	End() bool
	// Abort clears the current request. A no-op if the channel is already in
	// an error state.
	Abort() bool
}
