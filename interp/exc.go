package interp

// ExcClass returns an exception class object for the given kind.
// Applications build exc_info tuples from these.
func (rt *Runtime) ExcClass(kind ExcKind) Object {
	v := newValue(KindExcClass)
	v.i = int64(kind)
	return Object{v}
}

// Exception instantiates an exception of the given class.
func (rt *Runtime) Exception(class Object, message string) Object {
	if !class.IsExcClass() {
		rt.SetError(TypeError, "exceptions must derive from an exception class")
		return Object{}
	}

	v := newValue(KindExcInstance)
	v.i = class.v.i
	v.runes = []rune(message)
	return Object{v}
}

func (o Object) IsExcClass() bool {
	return o.v != nil && o.v.kind == KindExcClass
}

func (o Object) IsExcInstance() bool {
	return o.v != nil && o.v.kind == KindExcInstance
}

// ExcKindOf returns the exception kind of a class or instance.
func (o Object) ExcKindOf() ExcKind {
	if o.v == nil {
		return RuntimeError
	}

	return ExcKind(o.v.i)
}

// IsInstance reports whether value is an instance of the exception class.
func (rt *Runtime) IsInstance(value, class Object) bool {
	return value.IsExcInstance() && class.IsExcClass() && value.v.i == class.v.i
}

// Raise sets the pending exception from an existing exception instance,
// preserving the object for the code that will observe it.
func (rt *Runtime) Raise(instance Object) {
	if !instance.IsExcInstance() {
		rt.SetError(TypeError, "exceptions must derive from an exception class")
		return
	}

	rt.SetErrorValue(instance.ExcKindOf(), instance, string(instance.v.runes))
}
