package wsgi

import (
	"io"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/interp"
)

// readChunk is the minimum buffer for read-until-EOF loops.
const readChunk = 4096

// StubTrap, when set, is invoked whenever an application calls one of the
// file-like methods that are not implemented. Tests install a trap to fail
// loudly; in production the stubs quietly return None, as the mainstream
// frameworks never call them.
var StubTrap func(method string)

func stub(name string) interp.NativeFunc {
	return func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
		if StubTrap != nil {
			StubTrap(name)
		}

		return rt.None()
	}
}

// newInput wraps the request body stream into the file-like object handed to
// the application as wsgi.input. The object owns the stream; ownership is
// released when the last share of the object goes away.
func newInput(rt *interp.Runtime, stream http.InputStream) interp.Object {
	return rt.NativeObject("wasgi.InputStream", map[string]interp.NativeFunc{
		"read": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
			size := int64(-1)
			switch len(args) {
			case 0:
			case 1:
				if args[0].Kind() == interp.KindNone {
					break
				}
				if args[0].Kind() != interp.KindInt {
					rt.SetError(interp.TypeError, "read() argument must be int, not %s", args[0].TypeName())
					return interp.Object{}
				}
				size = args[0].IntValue()
			default:
				rt.SetError(interp.TypeError, "read() takes at most one argument (%d given)", len(args))
				return interp.Object{}
			}

			data, err := readBody(self.NativeData().(http.InputStream), size)
			if err != nil {
				rt.SetError(interp.IOError, "Error reading body: %s", err)
				return interp.Object{}
			}

			return rt.Bytes(data)
		},
		"readline":  stub("readline"),
		"readlines": stub("readlines"),
		"__iter__": func(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
			return self.Retain()
		},
		"__next__": stub("__next__"),
	}, stream, nil)
}

func readBody(stream http.InputStream, size int64) ([]byte, error) {
	switch {
	case size == 0:
		// must not touch the underlying stream
		return nil, nil
	case size > 0:
		buff := make([]byte, size)
		n, err := stream.Read(buff)
		if err != nil && err != io.EOF {
			return nil, err
		}
		return buff[:n], nil
	}

	// size < 0: drain the stream
	var result []byte
	buff := make([]byte, readChunk)
	for {
		n, err := stream.Read(buff)
		result = append(result, buff[:n]...)
		switch {
		case err == io.EOF:
			return result, nil
		case err != nil:
			return nil, err
		}
	}
}
