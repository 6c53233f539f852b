// Package interp hosts the embedded application runtime: a dynamically-typed
// value system with reference-counted handles, an exception state, a module
// registry and the conversions the WSGI gateway needs. The contract mirrors
// what a bridge holds against a foreign interpreter: construction either takes
// ownership of a returned value or shares an existing reference explicitly,
// destruction releases exactly one share, and errors travel through a pending
// exception that must be fetched and cleared.
package interp

import (
	"io"
	"os"
)

// ModuleBuilder populates a module's attributes. It runs once, on the first
// import of the module.
type ModuleBuilder func(rt *Runtime, mod Object)

// Runtime is the process-wide interpreter instance. It is single-threaded:
// one request is fully processed before the next one touches it.
type Runtime struct {
	stderr   io.Writer
	sysPath  []string
	builders map[string]ModuleBuilder
	loaded   map[string]Object
	pending  *Error
}

func NewRuntime() *Runtime {
	return &Runtime{
		stderr:   os.Stderr,
		builders: make(map[string]ModuleBuilder),
		loaded:   make(map[string]Object),
	}
}

// SetStderr redirects the runtime's error stream, exposed to applications as
// wsgi.errors.
func (rt *Runtime) SetStderr(w io.Writer) {
	rt.stderr = w
}

func (rt *Runtime) Stderr() io.Writer {
	return rt.stderr
}

// AddSysPath appends a directory to the module search path.
func (rt *Runtime) AddSysPath(path string) {
	rt.sysPath = append(rt.sysPath, path)
}

func (rt *Runtime) SysPath() []string {
	return rt.sysPath
}

// Register installs a module builder under the given import name.
func (rt *Runtime) Register(name string, builder ModuleBuilder) {
	rt.builders[name] = builder
}

// Import resolves a module by name. The module is built on first import and
// cached afterwards. On failure an ImportError is set and an invalid Object
// returned. The returned handle is shared with the module cache; importing
// does not transfer ownership.
func (rt *Runtime) Import(name string) Object {
	if mod, ok := rt.loaded[name]; ok {
		return mod
	}

	builder, ok := rt.builders[name]
	if !ok {
		rt.SetError(ImportError, "no module named '%s'", name)
		return Object{}
	}

	mod := rt.newModule(name)
	builder(rt, mod)
	if rt.ErrOccurred() {
		mod.Release()
		return Object{}
	}

	rt.loaded[name] = mod
	return mod
}

// Finalize drops the module cache, releasing every loaded module.
func (rt *Runtime) Finalize() {
	for _, mod := range rt.loaded {
		mod.Release()
	}
	rt.loaded = make(map[string]Object)
	rt.pending = nil
}
