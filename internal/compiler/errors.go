package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a schema compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsCompileError reports whether err is or wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// DocumentError is a malformed query document. Line and Column are 1-based
// and zero when unknown.
type DocumentError struct {
	Path    string
	Message string
	Line    int
	Column  int
}

func (e *DocumentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s: %s", e.Line, e.Column, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsDocumentError reports whether err is or wraps a *DocumentError.
func IsDocumentError(err error) bool {
	var de *DocumentError
	return errors.As(err, &de)
}

// Validation error codes.
const (
	ErrStructure     = "E120" // structural problem reported by query.Validate
	ErrBinder        = "E130" // unresolved name
	ErrTyping        = "E140" // polymorphic or concrete type error
	ErrSymbols       = "E150" // symbol creation error
	ErrUnsupportedOp = "E151" // set operation without symbol representation
)

// ValidationError is one problem found by Analyze, in the JSON shape the CLI
// prints.
type ValidationError struct {
	Pass    string `json:"pass"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Node    string `json:"node,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("[%s] %s: %s at %s", e.Code, e.Pass, e.Message, e.Node)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Pass, e.Message)
}
