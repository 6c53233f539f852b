// wasgi hosts a WSGI application behind a WAS front-end proxy. With a
// terminal on stdin it runs two synthetic smoke requests instead of entering
// the accept loop.
package main

import (
	"fmt"
	"log/slog"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/indigo-web/wasgi"
	"github.com/indigo-web/wasgi/wsgi/debugapp"
)

func main() {
	if err := run(); err != nil {
		if err != pflag.ErrHelp {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("wasgi", pflag.ContinueOnError)
	module := flagSet.String("module", "", "application module to import (default: app, wsgi)")
	appName := flagSet.String("app", "", "attribute holding the WSGI callable (default: app, application)")
	flagSet.String("host", "", "listen host (reserved)")
	flagSet.Uint16("port", 0, "listen port (reserved)")
	sysPath := flagSet.StringArray("sys-path", nil, "extra module search path (repeatable)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		// pflag already printed the problem and the usage
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := wasgi.New().
		Module(*module).
		AppName(*appName).
		SysPath(*sysPath...).
		Logger(logger)

	debugapp.Register(app.Runtime())
	defer app.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		body, err := json.ConfigDefault.Marshal(map[string]string{"key": "value"})
		if err != nil {
			return err
		}
		return app.StdioTest(body)
	}

	return app.ServeDefault()
}
