package eval

import (
	"fmt"

	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/printer"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// Code categorizes evaluation errors.
type Code string

const (
	// CodeNullValue indicates an operator that needs a value received null.
	CodeNullValue Code = "NULL_VALUE"

	// CodeNullContext indicates an object access on a null context.
	CodeNullContext Code = "NULL_CONTEXT"

	// CodeIncomparable indicates an ordering between values without an order.
	CodeIncomparable Code = "INCOMPARABLE"

	// CodeTypeMismatch indicates a runtime value of the wrong kind.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeUnboundParameter indicates a parameter missing from the parameter map.
	CodeUnboundParameter Code = "UNBOUND_PARAMETER"

	// CodeUnsupported indicates a node the evaluator cannot interpret.
	CodeUnsupported Code = "UNSUPPORTED"

	// CodeNotFound indicates a key that does not resolve at the requested revision.
	CodeNotFound Code = "NOT_FOUND"
)

// Error is an evaluation failure at one node.
type Error struct {
	Code Code

	// Node is the node being evaluated, nil for failures outside the tree.
	Node query.Node

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v (at %s)", e.Code, e.Err, printer.String(e.Node))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts the evaluation error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsError reports whether err is an evaluation error with the given code.
func IsError(err error, code Code) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// raise aborts the evaluation. Entry points recover it through catch.
func raise(code Code, n query.Node, format string, args ...any) {
	panic(&Error{Code: code, Node: n, Err: errors.Errorf(format, args...)})
}

// raiseWrap aborts the evaluation with cause as the underlying error.
func raiseWrap(code Code, n query.Node, cause error, message string) {
	panic(&Error{Code: code, Node: n, Err: errors.Wrap(cause, message)})
}

// failure carries a non-evaluation error (e.g. a storage error) through the
// visitor stack.
type failure struct {
	err error
}

func fail(err error) {
	panic(failure{err})
}

// catch converts a raised evaluation error into err. Other panics propagate.
func catch(err *error) {
	switch r := recover().(type) {
	case nil:
	case *Error:
		*err = r
	case failure:
		*err = r.err
	default:
		panic(r)
	}
}

// show renders a runtime value for error messages.
func show(v value.Value) string {
	switch v.(type) {
	case nil, value.Null, value.String, value.Int, value.Bool, value.Key:
		return value.Format(v)
	default:
		return pretty.Sprint(v)
	}
}
