package wsgi_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/interp"
	"github.com/indigo-web/wasgi/kv"
	"github.com/indigo-web/wasgi/was"
	"github.com/indigo-web/wasgi/was/wastest"
	"github.com/indigo-web/wasgi/wsgi"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type appFunc func(rt *interp.Runtime, environ, startResponse interp.Object) interp.Object

func makeApp(rt *interp.Runtime, fn appFunc) interp.Object {
	return rt.Func("app", func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
		return fn(rt, args[0], args[1])
	}, interp.Object{})
}

// startResponse invokes the callable with plain Go values, returning false if
// the call raised.
func startResponse(rt *interp.Runtime, sr interp.Object, statusLine string, headers [][2]string) bool {
	statusObj := rt.Str(statusLine)
	defer statusObj.Release()

	items := make([]interp.Object, 0, len(headers))
	for _, pair := range headers {
		name, value := rt.Str(pair[0]), rt.Str(pair[1])
		items = append(items, rt.Tuple(name, value))
		name.Release()
		value.Release()
	}
	list := rt.List(items...)
	for _, item := range items {
		item.Release()
	}
	defer list.Release()

	result := rt.Call(sr, statusObj, list)
	if !result.Valid() {
		return false
	}
	result.Release()

	return true
}

func bytesList(rt *interp.Runtime, chunks ...string) interp.Object {
	items := make([]interp.Object, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, rt.Bytes([]byte(chunk)))
	}
	list := rt.List(items...)
	for _, item := range items {
		item.Release()
	}

	return list
}

// runRequest pushes one scripted request through the full adapter + gateway
// stack and returns what the transport recorded.
func runRequest(t *testing.T, rt *interp.Runtime, app interp.Object, request *wastest.Request) *wastest.Response {
	t.Helper()

	transport := wastest.New(request)
	was.Serve(transport, wsgi.NewHandler(rt, app, quietLogger()), quietLogger())
	responses := transport.Responses()
	require.Len(t, responses, 1)

	return responses[0]
}

func TestGetHello(t *testing.T) {
	rt := interp.NewRuntime()
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{
			{"Content-Type", "text/plain"},
			{"Content-Length", "5"},
		}) {
			return interp.Object{}
		}

		return bytesList(rt, "hello")
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.True(t, recorded.StatusSet)
	require.EqualValues(t, 200, recorded.Status)
	require.Equal(t, []kv.Pair{{Key: "Content-Type", Value: "text/plain"}}, recorded.Headers)
	require.True(t, recorded.LengthSet)
	require.EqualValues(t, 5, recorded.Length)
	require.Equal(t, "hello", string(recorded.Body))
	require.True(t, recorded.Ended)
}

func TestPutJSONEnviron(t *testing.T) {
	rt := interp.NewRuntime()

	var captured map[string]string
	var bodyRead []byte

	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		captured = make(map[string]string)
		for _, key := range environ.Keys() {
			if environ.GetItemString(key).Kind() == interp.KindStr {
				captured[key] = environ.GetItemString(key).StrValue()
			}
		}

		input := environ.GetItemString("wsgi.input")
		data := rt.CallMethod(input, "read")
		if !data.Valid() {
			return interp.Object{}
		}
		bodyRead = append(bodyRead, rt.ToBytesView(data)...)
		data.Release()

		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "0"}}) {
			return interp.Object{}
		}

		return bytesList(rt)
	})
	defer app.Release()

	body := `{"key":"value"}`
	recorded := runRequest(t, rt, app, wastest.NewRequest(method.PUT, "/").
		Header("Content-Type", "application/json").
		Header("Content-Length", "15").
		Body([]byte(body)))

	require.Equal(t, "PUT", captured["REQUEST_METHOD"])
	require.Equal(t, "application/json", captured["CONTENT_TYPE"])
	require.Equal(t, "15", captured["CONTENT_LENGTH"])
	require.Equal(t, body, string(bodyRead))
	require.True(t, recorded.Ended)
}

func TestEnvironContents(t *testing.T) {
	rt := interp.NewRuntime()

	var environSeen map[string]interp.Object
	var keys []string

	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		environSeen = make(map[string]interp.Object)
		keys = append([]string(nil), environ.Keys()...)
		for _, key := range keys {
			environSeen[key] = environ.GetItemString(key).Retain()
		}

		if !startResponse(rt, sr, "204 No Content", [][2]string{{"Content-Length", "0"}}) {
			return interp.Object{}
		}
		return bytesList(rt)
	})
	defer app.Release()

	runRequest(t, rt, app, wastest.NewRequest(method.GET, "/index?a=1").
		ScriptName("/app").
		PathInfo("/index").
		QueryString("a=1").
		RemoteHost("203.0.113.5:40000").
		Header("Host", "example.com:8443").
		Header("X-CM4all-HTTPS", "on").
		Header("User-Agent", "curl/8").
		Header("X-Dup", "one").
		Header("X-Dup", "two"))

	str := func(key string) string { return environSeen[key].StrValue() }

	require.Equal(t, "203.0.113.5", str("REMOTE_ADDR"))
	require.Equal(t, "GET", str("REQUEST_METHOD"))
	require.Equal(t, "/app", str("SCRIPT_NAME"))
	require.Equal(t, "/index", str("PATH_INFO"))
	require.Equal(t, "a=1", str("QUERY_STRING"))
	require.Equal(t, "", str("CONTENT_TYPE"))
	require.Equal(t, "", str("CONTENT_LENGTH"))
	require.Equal(t, "example.com", str("SERVER_NAME"))
	require.Equal(t, "8443", str("SERVER_PORT"))
	require.Equal(t, "HTTP/1.1", str("SERVER_PROTOCOL"))
	require.Equal(t, "wasgi/0.1", str("SERVER_SOFTWARE"))
	require.Equal(t, "on", str("HTTPS"))
	require.Equal(t, "https", str("wsgi.url_scheme"))
	require.Equal(t, "curl/8", str("HTTP_USER_AGENT"))
	// duplicates pass through in order; dict semantics keep the last one
	require.Equal(t, "two", str("HTTP_X_DUP"))

	version := environSeen["wsgi.version"]
	require.Equal(t, interp.KindTuple, version.Kind())
	require.EqualValues(t, 1, version.Item(0).IntValue())
	require.EqualValues(t, 0, version.Item(1).IntValue())

	require.False(t, environSeen["wsgi.multithread"].BoolValue())
	require.True(t, environSeen["wsgi.multiprocess"].BoolValue())
	require.False(t, environSeen["wsgi.run_once"].BoolValue())
	require.True(t, environSeen["wsgi.input_terminated"].BoolValue())
	require.Equal(t, "wasgi.InputStream", environSeen["wsgi.input"].TypeName())

	for _, obj := range environSeen {
		obj.Release()
	}
}

func TestAppRaisesBeforeStartResponse(t *testing.T) {
	rt := interp.NewRuntime()
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		rt.SetError(interp.RuntimeError, "kaboom")
		return interp.Object{}
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.True(t, recorded.Aborted)
	require.False(t, recorded.StatusSet)
	require.Empty(t, recorded.Headers)
	require.False(t, rt.ErrOccurred())
}

func TestBodyWithoutStartResponse(t *testing.T) {
	rt := interp.NewRuntime()
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		return bytesList(rt, "body without headers")
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.True(t, recorded.Aborted)
	require.False(t, recorded.StatusSet)
	require.Empty(t, recorded.Body)
}

func TestMultipleStartResponse(t *testing.T) {
	rt := interp.NewRuntime()

	var secondFailed bool
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "5"}}) {
			return interp.Object{}
		}

		// second call without exc_info must raise AssertionError
		secondFailed = !startResponse(rt, sr, "500 Internal Server Error", nil)
		if secondFailed {
			// the application observes the exception and propagates it
			return interp.Object{}
		}

		return bytesList(rt, "hello")
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.True(t, secondFailed)
	require.True(t, recorded.Aborted)
	require.Empty(t, recorded.Body)
}

func TestStartResponseLastCallWinsBeforeHeaders(t *testing.T) {
	rt := interp.NewRuntime()

	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{
			{"X-Discarded", "yes"},
			{"Content-Length", "5"},
		}) {
			return interp.Object{}
		}

		// rewriting is legal with exc_info as long as nothing was sent
		excType := rt.ExcClass(interp.RuntimeError)
		excValue := rt.Exception(excType, "replaced")
		none := rt.None()
		excInfo := rt.Tuple(excType, excValue, none)
		excType.Release()
		excValue.Release()
		none.Release()
		defer excInfo.Release()

		statusObj := rt.Str("500 Internal Server Error")
		defer statusObj.Release()

		name, value := rt.Str("Content-Length"), rt.Str("6")
		pair := rt.Tuple(name, value)
		name.Release()
		value.Release()
		list := rt.List(pair)
		pair.Release()
		defer list.Release()

		result := rt.Call(sr, statusObj, list, excInfo)
		if !result.Valid() {
			return interp.Object{}
		}
		result.Release()

		return bytesList(rt, "failed")
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.EqualValues(t, 500, recorded.Status)
	// the discarded response's headers are gone
	require.Empty(t, recorded.Headers)
	require.Equal(t, "failed", string(recorded.Body))
	require.True(t, recorded.Ended)
}

func TestExcInfoAfterFirstBodyByte(t *testing.T) {
	rt := interp.NewRuntime()

	state := 0
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "10"}}) {
			return interp.Object{}
		}

		// a lazy iterable: the failure happens mid-iteration, after the first
		// chunk already went out
		return rt.NativeObject("lazybody", map[string]interp.NativeFunc{
			"__iter__": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
				return self.Retain()
			},
			"__next__": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
				state++
				if state == 1 {
					return rt.Bytes([]byte("first"))
				}

				excType := rt.ExcClass(interp.ValueError)
				excValue := rt.Exception(excType, "mid-body failure")
				none := rt.None()
				excInfo := rt.Tuple(excType, excValue, none)
				excType.Release()
				excValue.Release()
				none.Release()
				defer excInfo.Release()

				statusObj := rt.Str("500 Oops")
				defer statusObj.Release()
				list := rt.List()
				defer list.Release()

				// headers are sent: this re-raises the supplied exception
				result := rt.Call(sr, statusObj, list, excInfo)
				if !result.Valid() {
					return interp.Object{}
				}
				result.Release()

				rt.SetError(interp.RuntimeError, "re-raise did not happen")
				return interp.Object{}
			},
		}, nil, nil)
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.Equal(t, "first", string(recorded.Body))
	require.True(t, recorded.Aborted)
	require.False(t, recorded.Ended)
	require.False(t, rt.ErrOccurred())
}

func TestContentLengthZeroSendsImmediately(t *testing.T) {
	rt := interp.NewRuntime()

	var sentDuringApp bool
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "204 No Content", [][2]string{{"Content-Length", "0"}}) {
			return interp.Object{}
		}

		return bytesList(rt)
	})
	defer app.Release()

	transport := wastest.New(wastest.NewRequest(method.GET, "/"))
	handler := wsgi.NewHandler(rt, app, quietLogger())
	was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
		err := handler.Process(request, responder)
		sentDuringApp = responder.HeadersSent()
		return err
	}), quietLogger())

	recorded := transport.Responses()[0]
	require.True(t, sentDuringApp)
	require.EqualValues(t, 204, recorded.Status)
	require.True(t, recorded.Ended)
	require.Empty(t, recorded.Body)
}

func TestZeroContentLengthRejectsBody(t *testing.T) {
	rt := interp.NewRuntime()
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "0"}}) {
			return interp.Object{}
		}

		return bytesList(rt, "sneaky body")
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.Empty(t, recorded.Body)
	require.True(t, recorded.Aborted)
}

func TestCloseCalledAfterIteration(t *testing.T) {
	rt := interp.NewRuntime()

	closed := false
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "2"}}) {
			return interp.Object{}
		}

		items := 0
		return rt.NativeObject("closingbody", map[string]interp.NativeFunc{
			"__iter__": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
				return self.Retain()
			},
			"__next__": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
				if items > 0 {
					rt.SetError(interp.StopIteration, "")
					return interp.Object{}
				}
				items++
				return rt.Bytes([]byte("ok"))
			},
			"close": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
				closed = true
				return rt.None()
			},
		}, nil, nil)
	})
	defer app.Release()

	recorded := runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	require.True(t, closed)
	require.Equal(t, "ok", string(recorded.Body))
	require.True(t, recorded.Ended)
}

func TestStartResponseAfterReturn(t *testing.T) {
	rt := interp.NewRuntime()

	var retained interp.Object
	app := makeApp(rt, func(rt *interp.Runtime, environ, sr interp.Object) interp.Object {
		retained = sr.Retain()
		if !startResponse(rt, sr, "200 OK", [][2]string{{"Content-Length", "0"}}) {
			return interp.Object{}
		}
		return bytesList(rt)
	})
	defer app.Release()

	runRequest(t, rt, app, wastest.NewRequest(method.GET, "/"))

	// the context is revoked: a late call must fail cleanly
	require.False(t, startResponse(rt, retained, "200 OK", nil))
	err := rt.Rethrow()
	require.ErrorContains(t, err, "after WSGI application has returned")
	retained.Release()
}
