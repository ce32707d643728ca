package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/kquery/internal/compiler"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
)

// LoadError represents an error that occurred while loading a schema, a
// query document or a setting.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

// Error code constants - unified across all CLI commands. Analysis
// diagnostics use the compiler codes (E120 and up).
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // File read failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeInvalidSchema = "E006" // Schema does not compile
	ErrCodeConfig        = "E007" // Invalid kquery.toml
	ErrCodeDocument      = "E008" // Invalid query or scenario document
	ErrCodeParam         = "E009" // Invalid parameter value
	ErrCodeStore         = "E010" // Store failure
	ErrCodeEval          = "E011" // Evaluation failure
)

// LoadSchema compiles the CUE schema in dir.
func LoadSchema(dir string) (*meta.Schema, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	schema, err := compiler.LoadSchema(dir)
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, &LoadError{
				Code:    ErrCodeInvalidSchema,
				Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
				Pos:     compileErr.Pos,
			}
		}
		return nil, &LoadError{Code: ErrCodeInvalidSchema, Message: err.Error()}
	}
	return schema, nil
}

// FindCUEFiles returns the .cue files directly in dir. The schema is a
// single CUE package, so subdirectories are not part of it.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// LoadQuery reads and decodes a query document.
func LoadQuery(path string) (query.Query, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("query file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	q, err := compiler.DecodeQuery(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	return q, nil
}

// commandError converts a load failure into an exit error, writing the
// error envelope first.
func commandError(f *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
		if loadErr.Pos.IsValid() {
			message = loadErr.Error()
		}
	}
	_ = f.Error(code, message, nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}
