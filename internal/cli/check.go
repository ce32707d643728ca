package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/kquery/internal/compiler"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/sqlsym"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Lenient bool // tolerate accesses without a single concrete type
}

// FileReport is the analysis outcome of one query document.
type FileReport struct {
	File   string                     `json:"file"`
	Type   string                     `json:"type,omitempty"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// CheckResult holds the reports of every checked file, in argument order.
type CheckResult struct {
	Valid bool         `json:"valid"`
	Files []FileReport `json:"files"`
}

// String renders the text output.
func (r CheckResult) String() string {
	var b strings.Builder
	for i, f := range r.Files {
		if i > 0 {
			b.WriteByte('\n')
		}
		if f.Valid {
			fmt.Fprintf(&b, "✓ %s (%s)", f.File, f.Type)
			continue
		}
		fmt.Fprintf(&b, "✗ %s", f.File)
		for _, e := range f.Errors {
			fmt.Fprintf(&b, "\n  %s", e.Error())
		}
	}
	return b.String()
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <query.yaml>...",
		Short: "Analyze query documents",
		Long: `Decode each query document, validate its structure, and run the binder,
type and symbol passes against the schema.

Exit codes:
  0 - No diagnostics
  1 - One or more queries have diagnostics
  2 - Command error (schema errors, unreadable documents, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Lenient, "lenient", false, "allow accesses through contexts without a single concrete type")

	return cmd
}

func runCheck(opts *CheckOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dir, err := opts.schema()
	if err != nil {
		return commandError(formatter, err)
	}
	schema, err := LoadSchema(dir)
	if err != nil {
		return commandError(formatter, err)
	}
	formatter.VerboseLog("Loaded schema from %s", dir)

	result, err := CheckFiles(schema, files, opts.requireSymbols(opts.Lenient))
	if err != nil {
		return commandError(formatter, err)
	}

	if result.Valid {
		return formatter.Success(result)
	}

	failed := 0
	var first compiler.ValidationError
	for _, f := range result.Files {
		if !f.Valid {
			if failed == 0 {
				first = f.Errors[0]
			}
			failed++
		}
	}
	if err := formatter.Failure(first.Code, first.Message, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d query file(s) have diagnostics", failed, len(result.Files)))
}

// CheckFiles analyzes the query documents concurrently. Each analysis owns
// its tree, annotations and symbol factory. A document that cannot be read
// or decoded aborts the check.
func CheckFiles(schema *meta.Schema, files []string, requireSymbols bool) (CheckResult, error) {
	reports := make([]FileReport, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			q, err := LoadQuery(file)
			if err != nil {
				return err
			}
			a, err := compiler.Analyze(schema, q, compiler.Options{
				Factory:        sqlsym.NewFactory(),
				RequireSymbols: requireSymbols,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			reports[i] = FileReport{File: file, Valid: a.OK(), Errors: a.Errors()}
			if !meta.IsInvalid(a.Type) {
				reports[i].Type = a.Type.Name()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{Valid: true, Files: reports}
	for _, r := range reports {
		result.Valid = result.Valid && r.Valid
	}
	return result, nil
}
