package interp

import "fmt"

// ExcKind identifies the class of a runtime exception.
type ExcKind uint8

const (
	RuntimeError ExcKind = iota
	ValueError
	TypeError
	AssertionError
	IOError
	ImportError
	AttributeError
	StopIteration
)

func (k ExcKind) String() string {
	switch k {
	case ValueError:
		return "ValueError"
	case TypeError:
		return "TypeError"
	case AssertionError:
		return "AssertionError"
	case IOError:
		return "IOError"
	case ImportError:
		return "ImportError"
	case AttributeError:
		return "AttributeError"
	case StopIteration:
		return "StopIteration"
	}

	return "RuntimeError"
}

// Error is a runtime exception in its translated, string form.
type Error struct {
	Kind    ExcKind
	Message string
	// Value carries the original exception object when the exception was
	// raised with one (exc_info re-raise). May be invalid.
	Value Object
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}

	return e.Kind.String() + ": " + e.Message
}

// SetError records a pending exception. An already pending exception is
// overwritten.
func (rt *Runtime) SetError(kind ExcKind, format string, args ...any) {
	rt.pending = &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// SetErrorValue records a pending exception carrying an exception object,
// preserving it for the application to observe.
func (rt *Runtime) SetErrorValue(kind ExcKind, value Object, message string) {
	rt.pending = &Error{Kind: kind, Message: message, Value: value.Retain()}
}

func (rt *Runtime) ErrOccurred() bool {
	return rt.pending != nil
}

// PendingError exposes the pending exception without clearing it.
func (rt *Runtime) PendingError() *Error {
	return rt.pending
}

func (rt *Runtime) ClearError() {
	if rt.pending != nil && rt.pending.Value.Valid() {
		rt.pending.Value.Release()
	}
	rt.pending = nil
}

// Rethrow fetches, normalizes and clears the pending exception, returning it
// as a domain error. With no exception pending it still fails, as calling it
// then is a bug in the caller.
func (rt *Runtime) Rethrow() error {
	if rt.pending == nil {
		return &Error{Kind: RuntimeError, Message: "no exception set"}
	}

	err := rt.pending
	rt.pending = nil
	return err
}
