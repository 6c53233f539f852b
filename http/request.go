package http

import (
	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/kv"
)

type (
	Headers = *kv.Storage
	Header  = kv.Pair
)

// Request is a canonical record of a single request as decoded from the
// transport. It lives for exactly one request.
type Request struct {
	// RemoteAddr is the peer address as reported by the proxy, without the
	// port. May be empty.
	RemoteAddr string
	ScriptName string
	ServerName string
	ServerPort string
	// Protocol is fixed, the proxy always speaks HTTP/1.1 towards us.
	Protocol string
	// Scheme is "http" or "https" as seen by the proxy.
	Scheme string
	Method method.Method
	Uri    Uri
	// Headers holds non-normalized header pairs in arrival order, duplicates
	// included. Lookup is ASCII case-insensitive.
	Headers Headers
	// Body is nil when the request carries none.
	Body InputStream
}

func NewRequest() *Request {
	return &Request{
		Protocol: "HTTP/1.1",
		Scheme:   "http",
		Headers:  kv.New(),
	}
}

// FindHeader returns the first header value matching the name.
func (r *Request) FindHeader(name string) (value string, found bool) {
	return r.Headers.Get(name)
}
