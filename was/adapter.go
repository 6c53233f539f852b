package was

import (
	"log/slog"
	"strings"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/headers"
	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/http/status"
)

// Handler processes one decoded request and drives the responder. An error
// return aborts the request on the transport; the accept loop keeps going.
type Handler interface {
	Process(request *http.Request, responder *Responder) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(request *http.Request, responder *Responder) error

func (f HandlerFunc) Process(request *http.Request, responder *Responder) error {
	return f(request, responder)
}

const requestIDLen = 8

// Serve runs the accept loop until the transport's command channel closes.
// Requests are processed strictly one at a time.
func Serve(t Transport, handler Handler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		uri, ok := t.Accept()
		if !ok {
			return
		}

		processRequest(t, handler, uri, logger.With("request", uniuri.NewLen(requestIDLen)))
	}
}

func processRequest(t Transport, handler Handler, uri string, logger *slog.Logger) {
	m := t.Method()
	if m == method.Unknown {
		logger.Error("invalid request method")
		if !t.Status(status.MethodNotAllowed) {
			logger.Error("failed to send 405 status")
		}
		if !t.End() {
			logger.Error("failed to end the 405 response")
		}
		return
	}

	request, ok := buildRequest(t, m, uri, logger)
	if !ok {
		return
	}

	responder := NewResponder(t, logger)
	if err := handler.Process(request, responder); err != nil {
		// The failure was likely an IO on the command channel, in which case
		// nothing else can be done and the loop will terminate on the next
		// accept. Otherwise abort clears the request for the next one.
		logger.Error("request failed", "error", err)
		responder.abort()
		return
	}

	responder.finish()
}

func buildRequest(t Transport, m method.Method, acceptedUri string, logger *slog.Logger) (*http.Request, bool) {
	request := http.NewRequest()
	request.Method = m

	if scriptName, ok := t.ScriptName(); ok {
		request.ScriptName = scriptName
	}

	if remote, ok := t.RemoteHost(); ok {
		// the proxy supplies ip:port
		request.RemoteAddr, _, _ = strings.Cut(remote, ":")
	}

	parsed := http.SplitUri(acceptedUri)
	request.Uri = parsed
	if path, ok := t.PathInfo(); ok {
		request.Uri.Path = path
	}
	if query, ok := t.QueryString(); ok {
		request.Uri.Query = query
	}

	for name, value := range t.Headers() {
		request.Headers.Add(name, value)

		// The proxy describes the outer connection in-band. Snoop while
		// iterating instead of paying two extra lookups afterwards.
		switch {
		case headers.Match(name, "X-CM4all-HTTPS") && value == "on":
			request.Scheme = "https"
		case headers.Match(name, "Host"):
			host, port, found := strings.Cut(value, ":")
			request.ServerName = host
			if found {
				request.ServerPort = port
			}
		}
	}

	if request.ServerPort == "" {
		if request.Scheme == "https" {
			request.ServerPort = "443"
		} else {
			request.ServerPort = "80"
		}
	}

	if t.HasBody() {
		remaining := t.InputRemaining()
		if remaining < 0 {
			logger.Error("request body length unknown, aborting")
			if !t.Abort() {
				logger.Error("failed to abort the request")
			}
			return nil, false
		}

		request.Body = NewInputStream(t, uint64(remaining))
	}

	return request, true
}
