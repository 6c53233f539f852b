package wsgi

import (
	"errors"
	"fmt"

	"github.com/indigo-web/wasgi/interp"
)

var ErrASGIUnsupported = errors.New("wsgi: application is a coroutine, ASGI is not supported")

// Flask-alike application discovery behavior:
// with no arguments the names "app" and "wsgi" are tried as modules, and
// within the resolved module the attributes "app" and "application".
var (
	moduleFallback = []string{"app", "wsgi"}
	appFallback    = []string{"app", "application"}
)

// FindApp resolves the WSGI callable. An explicitly named module or attribute
// must exist; the fallback chains tolerate individual misses. All failures
// here are fatal for the process.
func FindApp(rt *interp.Runtime, moduleName, appName string) (interp.Object, error) {
	var mod interp.Object

	if moduleName != "" {
		mod = rt.Import(moduleName)
		if !mod.Valid() {
			return interp.Object{}, fmt.Errorf("wsgi: importing module %q: %w", moduleName, rt.Rethrow())
		}
	} else {
		for _, name := range moduleFallback {
			mod = rt.Import(name)
			if !mod.Valid() {
				rt.ClearError()
				continue
			}
			break
		}
		if !mod.Valid() {
			return interp.Object{}, errors.New("wsgi: could not import module 'app' or 'wsgi'")
		}
	}

	var app interp.Object

	if appName != "" {
		app = rt.GetAttr(mod, appName)
		if !app.Valid() {
			rt.ClearError()
			return interp.Object{}, fmt.Errorf("wsgi: could not find object %q in module", appName)
		}
	} else {
		for _, name := range appFallback {
			app = rt.GetAttr(mod, name)
			if !app.Valid() {
				rt.ClearError()
				continue
			}
			if !app.IsCallable() && !app.IsCoroutine() {
				app.Release()
				app = interp.Object{}
				continue
			}
			break
		}
		if !app.Valid() {
			return interp.Object{}, errors.New("wsgi: could not find object 'app' or 'application' in module")
		}
	}

	if app.IsCoroutine() {
		app.Release()
		return interp.Object{}, ErrASGIUnsupported
	}

	return app, nil
}
