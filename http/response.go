package http

import (
	"github.com/indigo-web/wasgi/http/status"
	"github.com/indigo-web/wasgi/kv"
)

// Response accumulates what start_response supplies: a status, the header
// pairs that survived filtering, and the Content-Length extracted from the
// application's header list.
type Response struct {
	// Status stays 0 until start_response has been called.
	Status status.Code
	// Headers are forwarded to the transport in this exact order.
	// Content-Length is never among them.
	Headers []kv.Pair
	// ContentLength holds the value of the extracted Content-Length header.
	ContentLength    uint64
	HasContentLength bool
}

func (r *Response) AddHeader(name, value string) {
	r.Headers = append(r.Headers, kv.Pair{Key: name, Value: value})
}

// SetContentLength records the extracted Content-Length response header.
func (r *Response) SetContentLength(n uint64) {
	r.ContentLength = n
	r.HasContentLength = true
}

// Reset drops accumulated headers, keeping the status. Used when
// start_response is re-invoked with exc_info before headers went out.
func (r *Response) Reset() {
	r.Headers = r.Headers[:0]
	r.ContentLength = 0
	r.HasContentLength = false
}
