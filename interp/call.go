package interp

// Func exposes a native function into the runtime, bound to self. self may be
// an invalid Object for free functions; otherwise the function value holds one
// share of it.
func (rt *Runtime) Func(name string, fn NativeFunc, self Object) Object {
	v := newValue(KindFunc)
	v.fn = fn
	v.fnName = name
	if self.Valid() {
		v.self = self.Retain().v
	}
	return Object{v}
}

// NativeObject builds an opaque object with a method table and an optional
// finalizer over its payload. The finalizer runs when the last share is
// released.
func (rt *Runtime) NativeObject(typeName string, methods map[string]NativeFunc, data any, finalize func(any)) Object {
	v := newValue(KindNative)
	v.native = &nativeData{
		typeName: typeName,
		methods:  methods,
		data:     data,
		finalize: finalize,
	}
	return Object{v}
}

// NativeData returns the payload of a NativeObject.
func (o Object) NativeData() any {
	if o.v == nil || o.v.native == nil {
		return nil
	}

	return o.v.native.data
}

// TypeName returns the exposed type name of an object.
func (o Object) TypeName() string {
	if o.v == nil {
		return "invalid"
	}
	if o.v.kind == KindNative {
		return o.v.native.typeName
	}

	return o.v.kind.String()
}

// SetAttr installs an attribute on a module, taking one share.
func (rt *Runtime) SetAttr(mod Object, name string, item Object) bool {
	return rt.SetItemString(mod, name, item)
}

// GetAttr returns a new share of the named attribute. On a missing attribute
// an AttributeError is set and an invalid Object returned. Looking up a
// method of a native object binds it, so the result is a callable holding a
// share of the receiver.
func (rt *Runtime) GetAttr(o Object, name string) Object {
	if o.v != nil {
		switch o.v.kind {
		case KindModule, KindDict:
			if item := o.GetItemString(name); item.Valid() {
				return item.Retain()
			}
		case KindNative:
			if fn, ok := o.v.native.methods[name]; ok {
				return rt.Func(name, fn, o)
			}
		}
	}

	rt.SetError(AttributeError, "'%s' object has no attribute '%s'", o.TypeName(), name)
	return Object{}
}

func (rt *Runtime) HasAttr(o Object, name string) bool {
	if o.v == nil {
		return false
	}

	switch o.v.kind {
	case KindModule, KindDict:
		return o.GetItemString(name).Valid()
	case KindNative:
		_, ok := o.v.native.methods[name]
		return ok
	}

	return false
}

func (o Object) IsCallable() bool {
	return o.v != nil && o.v.kind == KindFunc
}

func (o Object) IsCoroutine() bool {
	return o.v != nil && o.v.kind == KindCoroutine
}

// Call invokes a callable with the given arguments. The callee receives
// borrowed argument handles. An invalid result means an exception was raised;
// the pending error is then guaranteed to be set.
func (rt *Runtime) Call(callable Object, args ...Object) Object {
	if !callable.IsCallable() {
		rt.SetError(TypeError, "'%s' object is not callable", callable.TypeName())
		return Object{}
	}

	var self Object
	if callable.v.self != nil {
		self = Object{callable.v.self}
	}

	result := callable.v.fn(rt, self, args)
	if !result.Valid() && !rt.ErrOccurred() {
		rt.SetError(RuntimeError, "%s returned an invalid object without setting an exception", callable.v.fnName)
	}

	return result
}

// CallMethod looks up a method and calls it in one step.
func (rt *Runtime) CallMethod(o Object, name string, args ...Object) Object {
	m := rt.GetAttr(o, name)
	if !m.Valid() {
		return Object{}
	}
	defer m.Release()

	return rt.Call(m, args...)
}

// GetIter obtains an iterator over a Tuple or List, or asks the object itself
// via its __iter__ method.
func (rt *Runtime) GetIter(o Object) Object {
	if o.v == nil {
		rt.SetError(TypeError, "'invalid' object is not iterable")
		return Object{}
	}

	switch o.v.kind {
	case KindTuple, KindList:
		v := newValue(KindIterator)
		v.iterSrc = o.Retain().v
		return Object{v}
	case KindIterator:
		return o.Retain()
	case KindNative:
		if rt.HasAttr(o, "__iter__") {
			return rt.CallMethod(o, "__iter__")
		}
	}

	rt.SetError(TypeError, "'%s' object is not iterable", o.TypeName())
	return Object{}
}

// IterNext advances the iterator. The second result is false when the
// iterator is exhausted or an exception was raised; the two cases are told
// apart via ErrOccurred, exactly like a foreign iteration protocol.
func (rt *Runtime) IterNext(it Object) (Object, bool) {
	if it.v == nil {
		rt.SetError(TypeError, "'invalid' object is not an iterator")
		return Object{}, false
	}

	switch it.v.kind {
	case KindIterator:
		src := it.v.iterSrc
		if it.v.iterPos >= len(src.items) {
			return Object{}, false
		}

		item := Object{src.items[it.v.iterPos]}
		it.v.iterPos++
		return item.Retain(), true
	case KindNative:
		if !rt.HasAttr(it, "__next__") {
			break
		}

		result := rt.CallMethod(it, "__next__")
		if !result.Valid() {
			if rt.pending != nil && rt.pending.Kind == StopIteration {
				rt.ClearError()
			}
			return Object{}, false
		}

		return result, true
	}

	rt.SetError(TypeError, "'%s' object is not an iterator", it.TypeName())
	return Object{}, false
}
