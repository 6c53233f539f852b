// Package wsgi implements the PEP 3333 server side: environ construction, the
// start_response contract, and consumption of the application's response
// iterable.
package wsgi

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/headers"
	"github.com/indigo-web/wasgi/http/status"
	"github.com/indigo-web/wasgi/interp"
	"github.com/indigo-web/wasgi/was"
)

const serverSoftware = "wasgi/0.1"

// capsule names for the start_response context. The name flips to the revoked
// form before the handler returns, so a start_response callable retained by
// the application past its request fails cleanly instead of touching stale
// state.
const (
	capsuleName        = "StartResponseContext"
	capsuleNameRevoked = "StartResponseContext (expired)"
)

type startResponseContext struct {
	response  *http.Response
	responder *was.Responder
	// transportErr records a responder failure raised inside start_response,
	// so the gateway can distinguish it from an application error.
	transportErr error
}

// Handler bridges decoded requests to the hosted WSGI application. It is
// bound to the process-wide runtime and a single application callable.
type Handler struct {
	rt        *interp.Runtime
	app       interp.Object
	logger    *slog.Logger
	translate *translator
}

func NewHandler(rt *interp.Runtime, app interp.Object, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		rt:        rt,
		app:       app,
		logger:    logger,
		translate: newTranslator(),
	}
}

// Process implements was.Handler.
func (h *Handler) Process(request *http.Request, responder *was.Responder) error {
	rt := h.rt

	environ := h.buildEnviron(request)
	defer environ.Release()

	response := new(http.Response)
	ctx := &startResponseContext{response: response, responder: responder}

	capsule := rt.Capsule(capsuleName, ctx)
	startResponse := rt.Func("start_response", startResponseImpl, capsule)
	capsule.Release()
	defer startResponse.Release()
	// Whatever happens below, a retained start_response must not outlive the
	// request.
	defer capsule.CapsuleSetName(capsuleNameRevoked)

	result := rt.Call(h.app, environ, startResponse)
	if !result.Valid() {
		return rt.Rethrow()
	}
	defer result.Release()

	err := h.consume(result, response, responder, ctx)

	// close() runs regardless of how consumption went
	if rt.HasAttr(result, "close") {
		closed := rt.CallMethod(result, "close")
		if !closed.Valid() {
			closeErr := rt.Rethrow()
			if err == nil {
				err = closeErr
			} else {
				h.logger.Error("close() failed after an earlier error", "error", closeErr)
			}
		} else {
			closed.Release()
		}
	}

	return err
}

// consume iterates the application's result, deferring headers until the
// first body chunk per PEP 3333.
func (h *Handler) consume(result interp.Object, response *http.Response, responder *was.Responder, ctx *startResponseContext) error {
	rt := h.rt

	iterator := rt.GetIter(result)
	if !iterator.Valid() {
		return rt.Rethrow()
	}
	defer iterator.Release()

	for {
		item, ok := rt.IterNext(iterator)
		if !ok {
			break
		}

		if err := h.ensureHeadersSent(response, responder); err != nil {
			item.Release()
			return err
		}

		err := responder.SendBody(rt.ToBytesView(item))
		item.Release()
		if err != nil {
			return err
		}
	}

	if rt.ErrOccurred() {
		err := rt.Rethrow()
		if ctx.transportErr != nil {
			// the application saw a RuntimeError because the channel died;
			// report the original cause
			return ctx.transportErr
		}
		return err
	}

	// the iterable may have been empty
	return h.ensureHeadersSent(response, responder)
}

func (h *Handler) ensureHeadersSent(response *http.Response, responder *was.Responder) error {
	if responder.HeadersSent() {
		return nil
	}

	if response.Status == 0 {
		return ErrStartResponseNotCalled
	}

	return responder.SendHeaders(response)
}

// environ construction. Every key and value is a native string unless stated
// otherwise; body bytes stay binary.
func (h *Handler) buildEnviron(request *http.Request) interp.Object {
	rt := h.rt

	environ := rt.Dict()

	contentType, _ := request.FindHeader("Content-Type")

	var stream http.InputStream = http.NullInputStream{}
	contentLength := ""
	if request.Body != nil {
		stream = request.Body
		// PEP 3333 is vague here, but the mainstream frameworks pass
		// Content-Length through as a string
		if n, known := request.Body.ContentLength(); known {
			contentLength = strconv.FormatUint(n, 10)
		}
	}

	https := ""
	if request.Scheme == "https" {
		https = "on"
	}

	setString := func(key, value string) {
		obj := rt.NativeString(value)
		rt.SetItemString(environ, key, obj)
		obj.Release()
	}

	setObject := func(key string, obj interp.Object) {
		rt.SetItemString(environ, key, obj)
		obj.Release()
	}

	setString("REMOTE_ADDR", request.RemoteAddr)
	setString("REQUEST_METHOD", request.Method.String())
	setString("SCRIPT_NAME", request.ScriptName)
	setString("PATH_INFO", request.Uri.Path)
	setString("QUERY_STRING", request.Uri.Query)
	setString("CONTENT_TYPE", contentType)
	setString("CONTENT_LENGTH", contentLength)
	setString("SERVER_NAME", request.ServerName)
	setString("SERVER_PORT", request.ServerPort)
	setString("SERVER_PROTOCOL", request.Protocol)
	setString("SERVER_SOFTWARE", serverSoftware)
	setString("HTTPS", https)

	one, zero := rt.Int(1), rt.Int(0)
	setObject("wsgi.version", rt.Tuple(one, zero))
	one.Release()
	zero.Release()

	setString("wsgi.url_scheme", request.Scheme)
	setObject("wsgi.input", newInput(rt, stream))
	setObject("wsgi.errors", rt.SysStderr())
	setObject("wsgi.multithread", rt.Bool(false))
	setObject("wsgi.multiprocess", rt.Bool(true))
	setObject("wsgi.run_once", rt.Bool(false))
	// wsgi.input signals EOF at the end of the body instead of being mapped
	// to a socket. Announcing that lets the frameworks skip their own
	// CONTENT_LENGTH guards and permits chunked request bodies.
	setObject("wsgi.input_terminated", rt.Bool(true))

	for name, value := range request.Headers.Iter() {
		if headers.Match(name, "Content-Type") || headers.Match(name, "Content-Length") {
			continue
		}
		setString(h.translate.Translate(name), value)
	}

	return environ
}

// startResponseImpl is the start_response callable handed to the application.
// self is the context capsule.
func startResponseImpl(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
	payload, ok := self.CapsuleGet(capsuleName)
	if !ok {
		rt.SetError(interp.RuntimeError, "Cannot call start_response after WSGI application has returned")
		return interp.Object{}
	}
	ctx := payload.(*startResponseContext)

	if len(args) < 2 || len(args) > 3 {
		rt.SetError(interp.TypeError, "start_response() takes 2 or 3 arguments (%d given)", len(args))
		return interp.Object{}
	}

	statusArg, headersArg := args[0], args[1]
	var excInfo interp.Object
	if len(args) == 3 && args[2].Kind() != interp.KindNone {
		excInfo = args[2]
	}

	if excInfo.Valid() {
		if !validExcInfo(rt, excInfo) {
			rt.SetError(interp.TypeError, "Invalid exc_info argument")
			return interp.Object{}
		}

		if ctx.responder.HeadersSent() {
			// headers are out, nothing can be rewritten: re-raise, as
			// PEP 3333 demands
			rt.Raise(excInfo.Item(1))
			return interp.Object{}
		}

		// not sent yet: the previous response is discarded and replaced
		ctx.response.Reset()
	} else if ctx.response.Status != 0 {
		rt.SetError(interp.AssertionError,
			"start_response must not be called more than once without exc_info")
		return interp.Object{}
	}

	if statusArg.Kind() != interp.KindStr {
		rt.SetError(interp.TypeError, "status must be str, not %s", statusArg.TypeName())
		return interp.Object{}
	}

	// only the digits and the space matter, so the encoding can be ignored
	statusText := statusArg.StrValue()
	code, err := parseStatus(statusText)
	if err != nil {
		rt.SetError(interp.ValueError, "Could not parse status code '%s'", statusText)
		return interp.Object{}
	}
	if !status.IsValid(code) {
		rt.SetError(interp.ValueError, "Invalid HTTP Status '%d'", code)
		return interp.Object{}
	}
	ctx.response.Status = code

	// PEP 3333: errors in the headers should surface while the application
	// is still running, so everything is validated here
	if headersArg.Kind() != interp.KindList {
		rt.SetError(interp.TypeError, "headers must be list of tuples (str, str)")
		return interp.Object{}
	}

	for i := 0; i < headersArg.Len(); i++ {
		item := headersArg.Item(i)
		if item.Kind() != interp.KindTuple || item.Len() != 2 {
			rt.SetError(interp.TypeError, "headers must be list of tuples (str, str)")
			return interp.Object{}
		}

		nameObj, valueObj := item.Item(0), item.Item(1)
		if nameObj.Kind() != interp.KindStr || valueObj.Kind() != interp.KindStr {
			rt.SetError(interp.TypeError, "headers must be list of tuples (str, str)")
			return interp.Object{}
		}

		name, ok := rt.FromNativeString(nameObj)
		if !ok {
			return interp.Object{}
		}
		if !checkHeaderName(rt, string(name)) {
			return interp.Object{}
		}

		value, ok := rt.FromNativeString(valueObj)
		if !ok {
			return interp.Object{}
		}
		if !headers.ValidValue(string(value)) {
			rt.SetError(interp.ValueError, "Invalid header value '%s'", value)
			return interp.Object{}
		}

		if headers.Match(string(name), "Content-Length") {
			length, err := strconv.ParseUint(string(value), 10, 64)
			if err != nil {
				rt.SetError(interp.ValueError, "Could not parse Content-Length header: '%s'", value)
				return interp.Object{}
			}
			// not included in the forwarded response
			ctx.response.SetContentLength(length)
			continue
		}

		ctx.response.AddHeader(string(name), string(value))
	}

	// "response headers must not be sent until there is actual body data
	// available [...] The only possible exception to this rule is if the
	// response headers explicitly include a Content-Length of zero."
	if ctx.response.HasContentLength && ctx.response.ContentLength == 0 {
		if err := ctx.responder.SendHeaders(ctx.response); err != nil {
			ctx.transportErr = err
			rt.SetError(interp.RuntimeError, "sending headers: %s", err)
			return interp.Object{}
		}
	}

	return rt.None()
}

func checkHeaderName(rt *interp.Runtime, name string) bool {
	if !headers.ValidName(name) {
		rt.SetError(interp.ValueError, "Invalid header name '%s'", name)
		return false
	}

	if !headers.Match(name, "Content-Length") && headers.IsHopByHop(name) {
		rt.SetError(interp.ValueError, "Hop-by-hop header '%s' is not allowed", name)
		return false
	}

	return true
}

// validExcInfo checks the (type, value, traceback) triple: type must be an
// exception class and value an instance of it.
func validExcInfo(rt *interp.Runtime, excInfo interp.Object) bool {
	if excInfo.Kind() != interp.KindTuple || excInfo.Len() != 3 {
		return false
	}

	excType, excValue := excInfo.Item(0), excInfo.Item(1)
	return excType.IsExcClass() && rt.IsInstance(excValue, excType)
}

func parseStatus(text string) (status.Code, error) {
	digits, _, _ := strings.Cut(text, " ")
	code, err := strconv.ParseUint(digits, 10, 16)
	if err != nil {
		return 0, err
	}

	return status.Code(code), nil
}
