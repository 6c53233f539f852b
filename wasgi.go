// Package wasgi assembles the bridge: one embedded runtime, one resolved WSGI
// application, and an accept loop over a WAS transport.
package wasgi

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/indigo-web/wasgi/http"
	"github.com/indigo-web/wasgi/http/method"
	"github.com/indigo-web/wasgi/http/status"
	"github.com/indigo-web/wasgi/interp"
	"github.com/indigo-web/wasgi/was"
	"github.com/indigo-web/wasgi/wsgi"
)

// App is the bridge configuration and lifecycle. The embedded runtime is
// process-wide: construct one App, run it, and let process exit finalize
// everything.
type App struct {
	module  string
	appName string
	sysPath []string
	logger  *slog.Logger
	rt      *interp.Runtime
}

func New() *App {
	return &App{
		rt:     interp.NewRuntime(),
		logger: slog.Default(),
	}
}

// Module selects the application module to import. Empty falls back to the
// conventional names.
func (a *App) Module(name string) *App {
	a.module = name
	return a
}

// AppName selects the attribute holding the WSGI callable within the module.
func (a *App) AppName(name string) *App {
	a.appName = name
	return a
}

// SysPath appends directories to the runtime's module search path.
func (a *App) SysPath(paths ...string) *App {
	a.sysPath = append(a.sysPath, paths...)
	return a
}

func (a *App) Logger(logger *slog.Logger) *App {
	a.logger = logger
	return a
}

// Runtime exposes the embedded runtime, so callers can register built-in
// modules before resolving the application.
func (a *App) Runtime() *interp.Runtime {
	return a.rt
}

// Close finalizes the embedded runtime. Call it once, at process exit.
func (a *App) Close() {
	a.rt.Finalize()
}

func (a *App) resolve() (*wsgi.Handler, error) {
	for _, path := range a.sysPath {
		a.rt.AddSysPath(path)
	}

	app, err := wsgi.FindApp(a.rt, a.module, a.appName)
	if err != nil {
		return nil, err
	}

	return wsgi.NewHandler(a.rt, app, a.logger), nil
}

// Serve resolves the application and runs the accept loop until the
// transport's command channel closes.
func (a *App) Serve(t was.Transport) error {
	handler, err := a.resolve()
	if err != nil {
		return err
	}

	a.logger.Info("starting in WAS mode")
	was.Serve(t, handler, a.logger)

	return nil
}

// ServeDefault runs Serve over the transport binding linked into the binary.
func (a *App) ServeDefault() error {
	if was.OpenTransport == nil {
		return errors.New("wasgi: no WAS transport binding linked into this binary")
	}

	t, err := was.OpenTransport()
	if err != nil {
		return fmt.Errorf("wasgi: opening WAS transport: %w", err)
	}

	return a.Serve(t)
}

// StdioTest resolves the application and feeds it two synthetic requests: a
// bare GET and a PUT carrying a JSON document. Status and headers go to
// stderr, the body to stdout. Intended for running the bridge interactively,
// outside any proxy.
func (a *App) StdioTest(jsonBody []byte) error {
	handler, err := a.resolve()
	if err != nil {
		return err
	}

	if err := a.stdioRequest(handler, method.GET, "/", "", nil); err != nil {
		return err
	}

	return a.stdioRequest(handler, method.PUT, "/", "application/json", jsonBody)
}

func (a *App) stdioRequest(handler *wsgi.Handler, m method.Method, uri, contentType string, body []byte) error {
	request := http.NewRequest()
	request.Method = m
	request.Uri = http.SplitUri(uri)

	if len(body) > 0 {
		request.Body = http.NewBytesInputStream(body)
		request.Headers.Add("Content-Type", contentType)
		request.Headers.Add("Content-Length", fmt.Sprint(len(body)))
	}

	responder := was.NewResponder(&printTransport{}, a.logger)
	if err := handler.Process(request, responder); err != nil {
		return err
	}
	fmt.Println()

	return nil
}

// printTransport renders a response for a human instead of a proxy. The
// request-side operations are never reached: stdio requests bypass the accept
// loop entirely.
type printTransport struct {
	was.Transport
}

func (*printTransport) Status(code status.Code) bool {
	fmt.Fprintf(os.Stderr, "STATUS %d\n", code)
	return true
}

func (*printTransport) SetHeader(name, value string) bool {
	fmt.Fprintf(os.Stderr, "%s: %s\n", name, value)
	return true
}

func (*printTransport) SetLength(n uint64) bool {
	return true
}

func (*printTransport) Write(p []byte) bool {
	os.Stdout.Write(p)
	return true
}

func (*printTransport) End() bool {
	return true
}

func (*printTransport) Abort() bool {
	return false
}
