package was

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/headers"
	"github.com/indigo-web/wasgi/http/status"
)

var (
	ErrInvalidStatus = errors.New("was: invalid HTTP response status")
	ErrBodyOverflow  = errors.New("was: response body exceeds the declared Content-Length")
	ErrTransport     = errors.New("was: transport failure")
	ErrBadState      = errors.New("was: operation not allowed in the current responder state")
)

type responderState uint8

const (
	statePending responderState = iota
	stateHeadersSent
	stateClosed
	stateAborted
)

// Responder drives one response through the transport, enforcing the
// status -> headers -> body order. A separate instance must be created for
// each request.
type Responder struct {
	t      Transport
	logger *slog.Logger

	state responderState
	// lengthLeft counts down the bytes still allowed by the extracted
	// Content-Length. Meaningless unless lengthKnown.
	lengthLeft  uint64
	lengthKnown bool
}

func NewResponder(t Transport, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}

	return &Responder{t: t, logger: logger}
}

func (r *Responder) HeadersSent() bool {
	return r.state != statePending
}

// SendHeaders forwards the status line and the header pairs in their exact
// order. A known Content-Length of zero completes the response immediately, a
// non-zero one is announced via SetLength. With no Content-Length at all the
// body streams with unknown length.
func (r *Responder) SendHeaders(response *http.Response) error {
	if r.state != statePending {
		return fmt.Errorf("%w: headers were already sent", ErrBadState)
	}

	if !status.IsValid(response.Status) {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, response.Status)
	}

	if !r.t.Status(response.Status) {
		return fmt.Errorf("%w: status", ErrTransport)
	}

	for _, header := range response.Headers {
		if headers.Match(header.Key, "Content-Length") {
			// its value already lives in response.ContentLength
			continue
		}
		if !r.t.SetHeader(header.Key, header.Value) {
			return fmt.Errorf("%w: set header %q", ErrTransport, header.Key)
		}
	}

	r.lengthLeft, r.lengthKnown = response.ContentLength, response.HasContentLength

	if r.lengthKnown && r.lengthLeft == 0 {
		// no body will follow
		if !r.t.End() {
			return fmt.Errorf("%w: end", ErrTransport)
		}
		r.state = stateClosed
		return nil
	}

	if r.lengthKnown {
		// the transport state won't allow announcing the length any earlier
		// than right after the headers
		if !r.t.SetLength(r.lengthLeft) {
			return fmt.Errorf("%w: set length", ErrTransport)
		}
	}

	r.state = stateHeadersSent
	return nil
}

// SendBody writes a body chunk. Chunks beyond the declared Content-Length are
// capped at the remaining allowance and reported via ErrBodyOverflow, so the
// caller aborts the request.
func (r *Responder) SendBody(body []byte) error {
	if r.state == stateClosed {
		// the declared length is already exhausted; anything else is overflow
		if len(body) == 0 {
			return nil
		}

		r.logger.Error("response body after the declared Content-Length", "have", len(body))
		return ErrBodyOverflow
	}

	if r.state != stateHeadersSent {
		return fmt.Errorf("%w: body before headers", ErrBadState)
	}

	overflow := false
	if r.lengthKnown && uint64(len(body)) > r.lengthLeft {
		r.logger.Error("response body overflows Content-Length",
			"have", len(body), "left", r.lengthLeft)
		body = body[:r.lengthLeft]
		overflow = true
	}

	if len(body) > 0 && !r.t.Write(body) {
		r.state = stateAborted
		return fmt.Errorf("%w: write", ErrTransport)
	}

	if r.lengthKnown {
		r.lengthLeft -= uint64(len(body))
		if r.lengthLeft == 0 && !overflow {
			if !r.t.End() {
				r.state = stateAborted
				return fmt.Errorf("%w: end", ErrTransport)
			}
			r.state = stateClosed
			return nil
		}
	}

	if overflow {
		r.state = stateAborted
		return ErrBodyOverflow
	}

	return nil
}

// finish closes out the response after the handler returned successfully. A
// short body is logged; the proxy will see PREMATURE on the next accept turn.
func (r *Responder) finish() {
	switch r.state {
	case stateClosed, stateAborted:
		return
	case statePending:
		// the handler produced nothing at all
		r.logger.Error("handler returned without sending a response")
		r.abort()
		return
	}

	if r.lengthKnown && r.lengthLeft > 0 {
		r.logger.Error("response body truncated", "missing", r.lengthLeft)
	}

	if !r.t.End() {
		r.logger.Error("failed to complete the response")
	}
	r.state = stateClosed
}

func (r *Responder) abort() {
	if !r.t.Abort() {
		r.logger.Error("failed to abort the request")
	}
	r.state = stateAborted
}
