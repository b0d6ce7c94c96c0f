package jsengine

import (
	"errors"
	"fmt"
)

// Kind classifies the failure modes of engine and value operations.
type Kind int

const (
	// KindTypeError indicates the handle has the wrong kind for the
	// requested operation (calling a non-function, reading properties of
	// a non-object, and so on).
	KindTypeError Kind = iota + 1
	// KindConversionError indicates the runtime raised an exception
	// while coercing a value (e.g. an object whose valueOf throws).
	KindConversionError
	// KindScriptError indicates script code raised an exception during
	// evaluation or invocation. The error carries the runtime's message
	// and stack text.
	KindScriptError
	// KindEngineDisposed indicates the operation touched a handle whose
	// owning engine has been closed.
	KindEngineDisposed
	// KindHandleReleased indicates the operation touched a handle that
	// was already released (or was never valid).
	KindHandleReleased
)

func (k Kind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindConversionError:
		return "ConversionError"
	case KindScriptError:
		return "ScriptError"
	case KindEngineDisposed:
		return "EngineDisposed"
	case KindHandleReleased:
		return "HandleReleased"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the typed error returned by engine and value operations.
type Error struct {
	Kind    Kind
	Message string
	// Stack holds the script-side stack text for KindScriptError.
	Stack string
	cause error
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var je *Error
	return errors.As(err, &je) && je.Kind == kind
}

func typeError(format string, args ...any) *Error {
	return &Error{Kind: KindTypeError, Message: fmt.Sprintf(format, args...)}
}

func conversionError(message string, cause error) *Error {
	return &Error{Kind: KindConversionError, Message: message, cause: cause}
}

func scriptError(message, stack string, cause error) *Error {
	return &Error{Kind: KindScriptError, Message: message, Stack: stack, cause: cause}
}

func disposedError() *Error {
	return &Error{Kind: KindEngineDisposed, Message: "engine has been closed"}
}

func releasedError() *Error {
	return &Error{Kind: KindHandleReleased, Message: "handle has been released"}
}
