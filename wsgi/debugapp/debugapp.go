// Package debugapp registers a built-in application that dumps its environ as
// JSON, handy for smoke-testing a bridge deployment without shipping any
// application code. A PUT request echoes its own body back instead.
package debugapp

import (
	"strconv"

	json "github.com/json-iterator/go"

	"github.com/indigo-web/wasgi/interp"
)

// ModuleName is the import name the application is registered under.
const ModuleName = "debug_environ"

// Register installs the module into the runtime. Resolve it with
// --module debug_environ.
func Register(rt *interp.Runtime) {
	rt.Register(ModuleName, func(rt *interp.Runtime, mod interp.Object) {
		app := rt.Func("app", application, interp.Object{})
		rt.SetAttr(mod, "app", app)
		app.Release()
	})
}

func application(rt *interp.Runtime, self interp.Object, args []interp.Object) interp.Object {
	if len(args) != 2 {
		rt.SetError(interp.TypeError, "app() takes 2 arguments (%d given)", len(args))
		return interp.Object{}
	}

	environ, startResponse := args[0], args[1]

	contentType := "application/json"
	var body []byte

	if environ.GetItemString("REQUEST_METHOD").StrValue() == "PUT" {
		// echo the request body
		if ct := environ.GetItemString("CONTENT_TYPE").StrValue(); ct != "" {
			contentType = ct
		}

		input := environ.GetItemString("wsgi.input")
		data := rt.CallMethod(input, "read")
		if !data.Valid() {
			return interp.Object{}
		}
		body = append(body, rt.ToBytesView(data)...)
		data.Release()
	} else {
		rendered, err := json.ConfigDefault.Marshal(snapshot(rt, environ))
		if err != nil {
			rt.SetError(interp.ValueError, "rendering environ: %s", err)
			return interp.Object{}
		}
		body = rendered
	}

	statusLine := rt.Str("200 OK")
	headerList := headerPairs(rt,
		"Content-Type", contentType,
		"Content-Length", strconv.Itoa(len(body)),
	)
	result := rt.Call(startResponse, statusLine, headerList)
	statusLine.Release()
	headerList.Release()
	if !result.Valid() {
		return interp.Object{}
	}
	result.Release()

	chunk := rt.Bytes(body)
	response := rt.List(chunk)
	chunk.Release()

	return response
}

// snapshot renders the environ into plain Go values for the JSON encoder.
func snapshot(rt *interp.Runtime, environ interp.Object) map[string]any {
	result := make(map[string]any, environ.Len())
	for _, key := range environ.Keys() {
		item := environ.GetItemString(key)
		switch item.Kind() {
		case interp.KindStr:
			result[key] = item.StrValue()
		case interp.KindBool:
			result[key] = item.BoolValue()
		case interp.KindInt:
			result[key] = item.IntValue()
		case interp.KindTuple:
			items := make([]any, item.Len())
			for i := range items {
				items[i] = item.Item(i).IntValue()
			}
			result[key] = items
		default:
			result[key] = "<" + item.TypeName() + ">"
		}
	}

	return result
}

func headerPairs(rt *interp.Runtime, pairs ...string) interp.Object {
	items := make([]interp.Object, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, value := rt.Str(pairs[i]), rt.Str(pairs[i+1])
		items = append(items, rt.Tuple(name, value))
		name.Release()
		value.Release()
	}

	list := rt.List(items...)
	for _, item := range items {
		item.Release()
	}

	return list
}
