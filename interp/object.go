package interp

// Kind enumerates the runtime's value kinds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNone
	KindBool
	KindInt
	KindStr
	KindBytes
	KindTuple
	KindList
	KindDict
	KindFunc
	KindNative
	KindCapsule
	KindModule
	KindCoroutine
	KindIterator
	KindExcClass
	KindExcInstance
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindStr:
		return "str"
	case KindBytes:
		return "bytes"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindFunc:
		return "function"
	case KindNative:
		return "object"
	case KindCapsule:
		return "capsule"
	case KindModule:
		return "module"
	case KindCoroutine:
		return "coroutine"
	case KindIterator:
		return "iterator"
	case KindExcClass:
		return "type"
	case KindExcInstance:
		return "exception"
	}

	return "invalid"
}

// NativeFunc is the signature of functions exposed into the runtime. self is
// the object the function was bound with at creation (invalid for free
// functions). A zero Object return signals a raised exception; the pending
// error state must be set in that case.
type NativeFunc func(rt *Runtime, self Object, args []Object) Object

type nativeData struct {
	typeName string
	methods  map[string]NativeFunc
	data     any
	finalize func(any)
}

type value struct {
	kind Kind
	refs int

	b     bool
	i     int64
	runes []rune
	bytes []byte
	items []*value

	dictKeys []string
	dict     map[string]*value

	fn     NativeFunc
	fnName string
	self   *value

	native *nativeData

	capName  string
	capValue any

	modName string

	iterPos int
	iterSrc *value
}

// Object is a scoped handle to a runtime value. Handles are move-only by
// convention: pass them along or Release them, and call Retain for an
// explicit extra share. The zero Object is invalid and denotes a raised
// exception when returned from runtime operations.
type Object struct {
	v *value
}

func (o Object) Valid() bool {
	return o.v != nil
}

func (o Object) Kind() Kind {
	if o.v == nil {
		return KindInvalid
	}

	return o.v.kind
}

// Retain adds one share and returns the same handle for convenience.
func (o Object) Retain() Object {
	if o.v != nil {
		o.v.refs++
	}

	return o
}

// Release drops exactly one share. When the last share is gone, the value's
// finalizer runs and the shares it held on contained values are dropped too.
func (o Object) Release() {
	if o.v == nil {
		return
	}

	o.v.refs--
	if o.v.refs > 0 {
		return
	}

	v := o.v
	if v.native != nil && v.native.finalize != nil {
		v.native.finalize(v.native.data)
		v.native.finalize = nil
	}

	for _, item := range v.items {
		Object{item}.Release()
	}
	v.items = nil

	for _, item := range v.dict {
		Object{item}.Release()
	}
	v.dict = nil
	v.dictKeys = nil

	if v.self != nil {
		Object{v.self}.Release()
		v.self = nil
	}

	if v.iterSrc != nil {
		Object{v.iterSrc}.Release()
		v.iterSrc = nil
	}
}

func newValue(kind Kind) *value {
	return &value{kind: kind, refs: 1}
}

func (rt *Runtime) None() Object {
	return Object{newValue(KindNone)}
}

func (rt *Runtime) Bool(b bool) Object {
	v := newValue(KindBool)
	v.b = b
	return Object{v}
}

func (rt *Runtime) Int(i int64) Object {
	v := newValue(KindInt)
	v.i = i
	return Object{v}
}

// Str builds a unicode string from a sequence of Go runes (codepoints).
func (rt *Runtime) Str(s string) Object {
	v := newValue(KindStr)
	v.runes = []rune(s)
	return Object{v}
}

// Bytes builds a byte string. The data is copied.
func (rt *Runtime) Bytes(data []byte) Object {
	v := newValue(KindBytes)
	v.bytes = append([]byte(nil), data...)
	return Object{v}
}

// Tuple packs the given objects, taking one share of each.
func (rt *Runtime) Tuple(items ...Object) Object {
	v := newValue(KindTuple)
	for _, item := range items {
		v.items = append(v.items, item.Retain().v)
	}
	return Object{v}
}

// List builds a mutable sequence, taking one share of each item.
func (rt *Runtime) List(items ...Object) Object {
	v := newValue(KindList)
	for _, item := range items {
		v.items = append(v.items, item.Retain().v)
	}
	return Object{v}
}

func (rt *Runtime) Dict() Object {
	v := newValue(KindDict)
	v.dict = make(map[string]*value)
	return Object{v}
}

// Coroutine builds a coroutine object. The bridge never awaits those, it only
// recognizes and rejects them.
func (rt *Runtime) Coroutine() Object {
	return Object{newValue(KindCoroutine)}
}

func (rt *Runtime) newModule(name string) Object {
	v := newValue(KindModule)
	v.modName = name
	v.dict = make(map[string]*value)
	return Object{v}
}

// BoolValue reports the boolean payload of a Bool object.
func (o Object) BoolValue() bool {
	return o.v != nil && o.v.kind == KindBool && o.v.b
}

func (o Object) IntValue() int64 {
	if o.v == nil {
		return 0
	}

	return o.v.i
}

// Len returns the number of items of a Tuple, List, Dict or Module, and -1
// otherwise.
func (o Object) Len() int {
	if o.v == nil {
		return -1
	}

	switch o.v.kind {
	case KindTuple, KindList:
		return len(o.v.items)
	case KindDict, KindModule:
		return len(o.v.dictKeys)
	}

	return -1
}

// Item returns a borrowed handle to the i-th element of a Tuple or List. The
// caller must Retain it to keep it.
func (o Object) Item(i int) Object {
	if o.v == nil || i < 0 || i >= len(o.v.items) {
		return Object{}
	}

	return Object{o.v.items[i]}
}

// SetItemString inserts a value under a string key, taking one share of it. A
// replaced value loses the dict's share.
func (rt *Runtime) SetItemString(dict Object, key string, item Object) bool {
	if dict.v == nil || dict.v.dict == nil {
		rt.SetError(TypeError, "%s object does not support item assignment", dict.Kind())
		return false
	}
	if !item.Valid() {
		rt.SetError(TypeError, "cannot insert an invalid object")
		return false
	}

	if old, ok := dict.v.dict[key]; ok {
		Object{old}.Release()
	} else {
		dict.v.dictKeys = append(dict.v.dictKeys, key)
	}
	dict.v.dict[key] = item.Retain().v

	return true
}

// GetItemString returns a borrowed handle to the value under key, or an
// invalid Object without setting an error, mirroring a lookup that simply
// missed.
func (o Object) GetItemString(key string) Object {
	if o.v == nil || o.v.dict == nil {
		return Object{}
	}

	item, ok := o.v.dict[key]
	if !ok {
		return Object{}
	}

	return Object{item}
}

// Keys returns the dict's keys in insertion order.
func (o Object) Keys() []string {
	if o.v == nil {
		return nil
	}

	return o.v.dictKeys
}
