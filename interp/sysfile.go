package interp

// SysStderr builds a file-like object over the runtime's error stream. Writes
// go out unbuffered; the front-end captures the process's stderr and ships it
// to its logging sink.
func (rt *Runtime) SysStderr() Object {
	return rt.NativeObject("TextIOWrapper", map[string]NativeFunc{
		"write": func(rt *Runtime, self Object, args []Object) Object {
			if len(args) != 1 {
				rt.SetError(TypeError, "write() takes exactly one argument (%d given)", len(args))
				return Object{}
			}

			data := rt.ToBytesView(args[0])
			if _, err := rt.stderr.Write(data); err != nil {
				rt.SetError(IOError, "write failed: %s", err)
				return Object{}
			}

			return rt.Int(int64(len(data)))
		},
		"flush": func(rt *Runtime, self Object, args []Object) Object {
			return rt.None()
		},
	}, nil, nil)
}
