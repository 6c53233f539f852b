package was_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/was"
	"github.com/indigo-web/wasgi/was/wastest"
)

// respondOK is a minimal handler echoing a fixed body.
func respondOK(body string) was.Handler {
	return was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
		response := &http.Response{Status: 200}
		response.AddHeader("Content-Type", "text/plain")
		response.SetContentLength(uint64(len(body)))

		if err := responder.SendHeaders(response); err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		return responder.SendBody([]byte(body))
	})
}

func TestServe(t *testing.T) {
	t.Run("requests processed in order", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.GET, "/first"),
			wastest.NewRequest(method.GET, "/second"),
		)

		var uris []string
		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			uris = append(uris, request.Uri.Path)
			return respondOK("ok").Process(request, responder)
		}), nil)

		require.Equal(t, []string{"/first", "/second"}, uris)
		for _, response := range transport.Responses() {
			require.True(t, response.Ended)
			require.Equal(t, "ok", string(response.Body))
		}
	})

	t.Run("invalid method rejected with 405", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.Unknown, "/"),
			wastest.NewRequest(method.GET, "/"),
		)

		invoked := 0
		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			invoked++
			return respondOK("ok").Process(request, responder)
		}), nil)

		require.Equal(t, 1, invoked)

		rejected := transport.Responses()[0]
		require.EqualValues(t, 405, rejected.Status)
		require.True(t, rejected.Ended)
		require.Empty(t, rejected.Headers)
	})

	t.Run("handler error aborts and loop continues", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.GET, "/broken"),
			wastest.NewRequest(method.GET, "/fine"),
		)

		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			if request.Uri.Path == "/broken" {
				return io.ErrUnexpectedEOF
			}
			return respondOK("ok").Process(request, responder)
		}), nil)

		responses := transport.Responses()
		require.True(t, responses[0].Aborted)
		require.False(t, responses[0].Ended)
		require.True(t, responses[1].Ended)
	})

	t.Run("truncated response still completed", func(t *testing.T) {
		transport := wastest.New(wastest.NewRequest(method.GET, "/"))

		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			response := &http.Response{Status: 200}
			response.SetContentLength(10)
			if err := responder.SendHeaders(response); err != nil {
				return err
			}
			return responder.SendBody([]byte("short"))
		}), nil)

		recorded := transport.Responses()[0]
		require.Equal(t, "short", string(recorded.Body))
		require.True(t, recorded.Ended)
	})
}

func TestBuildRequest(t *testing.T) {
	capture := func(transport *wastest.Transport) (captured *http.Request) {
		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			captured = request
			return respondOK("").Process(request, responder)
		}), nil)
		return captured
	}

	t.Run("transport attributes win over the accepted uri", func(t *testing.T) {
		request := capture(wastest.New(
			wastest.NewRequest(method.GET, "/fallback?fb=1").
				ScriptName("/app").
				PathInfo("/real").
				QueryString("?q=1").
				RemoteHost("192.0.2.7:49152"),
		))

		require.Equal(t, "/app", request.ScriptName)
		require.Equal(t, "/real", request.Uri.Path)
		require.Equal(t, "?q=1", request.Uri.Query)
		require.Equal(t, "192.0.2.7", request.RemoteAddr)
		require.Equal(t, "HTTP/1.1", request.Protocol)
		require.Equal(t, method.GET, request.Method)
	})

	t.Run("uri fallback when transport has none", func(t *testing.T) {
		request := capture(wastest.New(wastest.NewRequest(method.GET, "/fallback?fb=1")))

		require.Equal(t, "/fallback", request.Uri.Path)
		require.Equal(t, "?fb=1", request.Uri.Query)
		require.Empty(t, request.RemoteAddr)
		require.Empty(t, request.ScriptName)
	})

	t.Run("https and host snooping", func(t *testing.T) {
		request := capture(wastest.New(
			wastest.NewRequest(method.GET, "/").
				Header("Host", "example.com:8443").
				Header("X-CM4all-HTTPS", "on"),
		))

		require.Equal(t, "https", request.Scheme)
		require.Equal(t, "example.com", request.ServerName)
		require.Equal(t, "8443", request.ServerPort)
		// headers stay available verbatim
		require.Equal(t, "example.com:8443", request.Headers.Value("host"))
	})

	t.Run("default ports", func(t *testing.T) {
		plain := capture(wastest.New(
			wastest.NewRequest(method.GET, "/").Header("Host", "example.com"),
		))
		require.Equal(t, "http", plain.Scheme)
		require.Equal(t, "80", plain.ServerPort)

		secure := capture(wastest.New(
			wastest.NewRequest(method.GET, "/").
				Header("Host", "example.com").
				Header("X-CM4all-HTTPS", "on"),
		))
		require.Equal(t, "https", secure.Scheme)
		require.Equal(t, "443", secure.ServerPort)
	})

	t.Run("body wrapped with declared length", func(t *testing.T) {
		request := capture(wastest.New(
			wastest.NewRequest(method.PUT, "/").Body([]byte("payload")),
		))

		require.NotNil(t, request.Body)
		length, known := request.Body.ContentLength()
		require.True(t, known)
		require.EqualValues(t, 7, length)

		data, err := io.ReadAll(request.Body)
		require.NoError(t, err)
		require.Equal(t, "payload", string(data))
	})

	t.Run("unknown body length aborts before the handler", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.PUT, "/").UnknownLengthBody(),
		)

		invoked := false
		was.Serve(transport, was.HandlerFunc(func(request *http.Request, responder *was.Responder) error {
			invoked = true
			return nil
		}), nil)

		require.False(t, invoked)
		require.True(t, transport.Responses()[0].Aborted)
	})
}

func TestInputStream(t *testing.T) {
	t.Run("error codes mapped", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.PUT, "/").
				Body([]byte("abc")).
				FailRead(was.ReadErrProtocol, 3),
		)
		_, ok := transport.Accept()
		require.True(t, ok)

		stream := was.NewInputStream(transport, 3)
		buff := make([]byte, 8)

		n, err := stream.Read(buff)
		require.NoError(t, err)
		require.Equal(t, "abc", string(buff[:n]))

		_, err = stream.Read(buff)
		require.ErrorIs(t, err, was.ErrReadProtocol)
	})

	t.Run("system error", func(t *testing.T) {
		transport := wastest.New(
			wastest.NewRequest(method.PUT, "/").
				Body([]byte("abc")).
				FailRead(was.ReadErrSystem, 0),
		)
		_, ok := transport.Accept()
		require.True(t, ok)

		stream := was.NewInputStream(transport, 3)
		_, err := stream.Read(make([]byte, 8))
		require.ErrorIs(t, err, was.ErrReadSystem)
	})

	t.Run("discard drains to eof", func(t *testing.T) {
		transport := wastest.New(wastest.NewRequest(method.PUT, "/").Body([]byte("leftover bytes")))
		_, ok := transport.Accept()
		require.True(t, ok)

		stream := was.NewInputStream(transport, 14)
		require.NoError(t, stream.Discard())

		_, err := stream.Read(make([]byte, 8))
		require.Equal(t, io.EOF, err)
	})

	t.Run("eof", func(t *testing.T) {
		transport := wastest.New(wastest.NewRequest(method.PUT, "/").Body(nil))
		_, ok := transport.Accept()
		require.True(t, ok)

		stream := was.NewInputStream(transport, 0)
		_, err := stream.Read(make([]byte, 8))
		require.Equal(t, io.EOF, err)
	})
}
