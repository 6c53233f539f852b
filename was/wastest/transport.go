// Package wastest provides a scripted in-memory Transport, making it a
// universal mock suitable for most of the adapter and gateway tests.
package wastest

import (
	"iter"

	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/http/status"
	"github.com/indigo-web/wasgi/kv"
)

// Request scripts a single request as the proxy would deliver it. Optional
// transport attributes stay absent unless explicitly set.
type Request struct {
	uri        string
	method     method.Method
	scriptName *string
	pathInfo   *string
	query      *string
	remoteHost *string
	headers    []kv.Pair

	hasBody   bool
	remaining int64
	body      []byte
	// readFailure is returned by Read once the first failAfter body bytes
	// were served. Zero means no injected failure.
	readFailure int
	failAfter   int
}

func NewRequest(m method.Method, uri string) *Request {
	return &Request{uri: uri, method: m}
}

func (r *Request) ScriptName(s string) *Request  { r.scriptName = &s; return r }
func (r *Request) PathInfo(s string) *Request    { r.pathInfo = &s; return r }
func (r *Request) QueryString(s string) *Request { r.query = &s; return r }
func (r *Request) RemoteHost(s string) *Request  { r.remoteHost = &s; return r }

func (r *Request) Header(name, value string) *Request {
	r.headers = append(r.headers, kv.Pair{Key: name, Value: value})
	return r
}

// Body attaches a request body with a declared length matching the data.
func (r *Request) Body(data []byte) *Request {
	r.hasBody = true
	r.body = data
	r.remaining = int64(len(data))
	return r
}

// UnknownLengthBody attaches a body whose length the transport cannot tell.
func (r *Request) UnknownLengthBody() *Request {
	r.hasBody = true
	r.remaining = -1
	return r
}

// FailRead injects a read failure (was.ReadErrSystem or was.ReadErrProtocol)
// once after bytes of the body were served.
func (r *Request) FailRead(code, after int) *Request {
	r.readFailure = code
	r.failAfter = after
	return r
}

// Response records everything the bridge emitted for one request.
type Response struct {
	Status      status.Code
	StatusSet   bool
	Headers     []kv.Pair
	Length      uint64
	LengthSet   bool
	Body        []byte
	Ended     bool
	Aborted   bool
	EndCalls  int
}

// Transport replays scripted requests and records responses. It implements
// was.Transport.
type Transport struct {
	requests  []*Request
	responses []*Response
	current   int
	cursor    int

	failStatus    bool
	failSetHeader bool
	failWrite     bool
	failEnd       bool
}

func New(requests ...*Request) *Transport {
	return &Transport{requests: requests, current: -1}
}

// FailStatus makes every Status call report a dead channel. Analogous
// switches exist for SetHeader, Write and End; SetLength and Abort always
// succeed.
func (t *Transport) FailStatus() *Transport    { t.failStatus = true; return t }
func (t *Transport) FailSetHeader() *Transport { t.failSetHeader = true; return t }
func (t *Transport) FailWrite() *Transport     { t.failWrite = true; return t }
func (t *Transport) FailEnd() *Transport       { t.failEnd = true; return t }

// Responses exposes the per-request records, in request order.
func (t *Transport) Responses() []*Response {
	return t.responses
}

func (t *Transport) req() *Request {
	return t.requests[t.current]
}

func (t *Transport) resp() *Response {
	return t.responses[t.current]
}

func (t *Transport) Accept() (string, bool) {
	if t.current+1 >= len(t.requests) {
		return "", false
	}

	t.current++
	t.cursor = 0
	t.responses = append(t.responses, new(Response))

	return t.req().uri, true
}

func (t *Transport) Method() method.Method {
	return t.req().method
}

func optional(s *string) (string, bool) {
	if s == nil {
		return "", false
	}

	return *s, true
}

func (t *Transport) ScriptName() (string, bool)  { return optional(t.req().scriptName) }
func (t *Transport) PathInfo() (string, bool)    { return optional(t.req().pathInfo) }
func (t *Transport) QueryString() (string, bool) { return optional(t.req().query) }
func (t *Transport) RemoteHost() (string, bool)  { return optional(t.req().remoteHost) }

func (t *Transport) Headers() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range t.req().headers {
			if !yield(pair.Key, pair.Value) {
				break
			}
		}
	}
}

func (t *Transport) HasBody() bool {
	return t.req().hasBody
}

func (t *Transport) InputRemaining() int64 {
	return t.req().remaining
}

func (t *Transport) Read(p []byte) int {
	req := t.req()
	if req.readFailure != 0 && t.cursor >= req.failAfter {
		return req.readFailure
	}

	if t.cursor >= len(req.body) {
		return 0
	}

	n := copy(p, req.body[t.cursor:])
	t.cursor += n

	return n
}

func (t *Transport) Status(code status.Code) bool {
	if t.failStatus {
		return false
	}

	resp := t.resp()
	resp.Status = code
	resp.StatusSet = true

	return true
}

func (t *Transport) SetHeader(name, value string) bool {
	if t.failSetHeader {
		return false
	}

	resp := t.resp()
	resp.Headers = append(resp.Headers, kv.Pair{Key: name, Value: value})

	return true
}

func (t *Transport) SetLength(n uint64) bool {
	resp := t.resp()
	resp.Length = n
	resp.LengthSet = true

	return true
}

func (t *Transport) Write(p []byte) bool {
	if t.failWrite {
		return false
	}

	resp := t.resp()
	resp.Body = append(resp.Body, p...)

	return true
}

func (t *Transport) End() bool {
	resp := t.resp()
	resp.EndCalls++
	if t.failEnd {
		return false
	}

	resp.Ended = true
	return true
}

func (t *Transport) Abort() bool {
	t.resp().Aborted = true
	return true
}
