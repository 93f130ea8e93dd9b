package eval

import (
	"errors"
	"fmt"

	"github.com/bridjelang/bridje/internal/form"
)

var (
	ErrNoMatchingClause  = errors.New("no matching clause")
	ErrUnhandledEffect   = errors.New("unhandled effect")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrNotCallable       = errors.New("value is not callable")
	ErrArity             = errors.New("wrong number of arguments")
	ErrUndefinedVar      = errors.New("var is not defined yet")
	ErrIntDivisionByZero = errors.New("integer division by zero")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrNotAForm          = errors.New("value is not a form")
	ErrMacroResult       = errors.New("macro did not return a form")
	ErrMissingField      = errors.New("missing record field")
	ErrUnexpectedValue   = errors.New("unexpected value")
)

// A RuntimeError is a failure during evaluation, located at the expression that raised it.
type RuntimeError struct {
	Message string
	Loc     form.Loc
	Cause   error
}

func newRuntimeError(loc form.Loc, cause error, format string, args ...any) *RuntimeError {
	msg := cause.Error()
	if format != "" {
		msg += ": " + fmt.Sprintf(format, args...)
	}
	return &RuntimeError{Message: msg, Loc: loc, Cause: cause}
}

func (e *RuntimeError) Error() string {
	if e.Loc.IsZero() {
		return e.Message
	}
	return e.Loc.String() + " " + e.Message
}

func (e *RuntimeError) MessageWithoutLocation() string {
	return e.Message
}

func (e *RuntimeError) Location() form.Loc {
	return e.Loc
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

//locate attaches loc to err if err is not a runtime error yet.
func locate(loc form.Loc, err error) error {
	var runtimeErr *RuntimeError
	if err == nil || errors.As(err, &runtimeErr) {
		return err
	}
	return &RuntimeError{Message: err.Error(), Loc: loc, Cause: err}
}
