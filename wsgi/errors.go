package wsgi

import "errors"

// ErrStartResponseNotCalled surfaces applications that yield body data before
// ever calling start_response.
var ErrStartResponseNotCalled = errors.New(
	"wsgi: start_response must be called before the WSGI application yields the first body string")
