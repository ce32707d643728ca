package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kquery/internal/compiler"
	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/sqlsym"
	"github.com/roach88/kquery/internal/store"
	"github.com/roach88/kquery/internal/value"
)

// Evaluation strategies, as reported in EvalResult.
const (
	StrategySQL    = "sql"
	StrategyMemory = "memory"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	DB       string   // path to the SQLite store
	Revision int64    // 0 means the head revision
	Params   []string // name=value pairs
	Seed     string   // optional seed file committed before evaluating
	Lenient  bool
}

// EvalResult is the outcome of an evaluation.
type EvalResult struct {
	Revision int64    `json:"revision"`
	Strategy string   `json:"strategy"`
	Results  []string `json:"results"`
}

// String renders the text output, one element per line.
func (r EvalResult) String() string {
	if len(r.Results) == 0 {
		return "(no results)"
	}
	return strings.Join(r.Results, "\n")
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <query.yaml>",
		Short: "Evaluate a query against the object store",
		Long: `Check a query document, then materialize its search against the store.

Filters over a single extent are translated to SQL; any other search is
evaluated in memory over a snapshot of the store.

Examples:
  kquery eval adults.yaml --db zoo.db --param min=18
  kquery eval dogs.yaml --db zoo.db --param owner=Person:bob --revision 3
  kquery eval adults.yaml --db /tmp/zoo.db --seed zoo.seed.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the object store (default: database from kquery.toml)")
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "revision to evaluate at (default: head)")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "parameter value as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "YAML seed committed to the store before evaluating")
	cmd.Flags().BoolVar(&opts.Lenient, "lenient", false, "allow accesses through contexts without a single concrete type")

	return cmd
}

func runEval(ctx context.Context, opts *EvalOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	dir, err := opts.schema()
	if err != nil {
		return commandError(formatter, err)
	}
	schema, err := LoadSchema(dir)
	if err != nil {
		return commandError(formatter, err)
	}
	q, err := LoadQuery(file)
	if err != nil {
		return commandError(formatter, err)
	}

	a, err := compiler.Analyze(schema, q, compiler.Options{
		Factory:        sqlsym.NewFactory(),
		RequireSymbols: opts.requireSymbols(opts.Lenient),
	})
	if err != nil {
		return commandError(formatter, err)
	}
	if !a.OK() {
		report := CheckResult{Files: []FileReport{{File: file, Errors: a.Errors()}}}
		first := report.Files[0].Errors[0]
		if err := formatter.Failure(first.Code, first.Message, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s has diagnostics", file))
	}

	var defaults map[string]any
	if opts.Config != nil {
		defaults = opts.Config.Params
	}
	params, err := ParseParams(q, opts.Params, defaults)
	if err != nil {
		return commandError(formatter, err)
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return commandError(formatter, err)
	}
	defer st.Close()

	revision := opts.Revision
	if revision == 0 {
		if revision, err = st.Head(ctx); err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeStore, Message: err.Error()})
		}
	}

	result, err := Evaluate(ctx, st, schema, a, revision, params)
	if err != nil {
		return commandError(formatter, &LoadError{Code: ErrCodeEval, Message: err.Error()})
	}
	formatter.VerboseLog("Evaluated %s at revision %d (%s): %d result(s)", file, revision, result.Strategy, len(result.Results))
	return formatter.Success(result)
}

// openStore opens the configured store and commits the seed, if any. A
// store that does not exist is only created when a seed fills it.
func (o *EvalOptions) openStore(ctx context.Context) (*store.Store, error) {
	path := o.DB
	if path == "" && o.Config != nil {
		path = o.Config.Database
	}
	if path == "" {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "no database: use --db or set database in " + ConfigFileName}
	}
	if o.Seed == "" {
		if _, err := os.Stat(path); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	if o.Seed == "" {
		return st, nil
	}

	data, err := os.ReadFile(o.Seed)
	if err != nil {
		st.Close()
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", o.Seed, err)}
	}
	seed, err := store.ParseSeed(data)
	if err != nil {
		st.Close()
		return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: %v", o.Seed, err)}
	}
	if _, err := st.Load(ctx, seed); err != nil {
		st.Close()
		return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("loading %s: %v", o.Seed, err)}
	}
	slog.Debug("seed committed", "path", o.Seed, "revisions", len(seed.Revisions))
	return st, nil
}

// Evaluate materializes the search of an analyzed query. A revision query
// whose filter translates to SQL runs in the store; everything else runs in
// memory over a snapshot.
func Evaluate(ctx context.Context, st *store.Store, ts meta.TypeSystem, a *compiler.Analysis, revision int64, params map[string]value.Value) (EvalResult, error) {
	result := EvalResult{Revision: revision, Results: []string{}}

	if rq, ok := a.Query.(*query.RevisionQuery); ok && a.Symbols != nil {
		stmt, err := sqlsym.NewCompiler(ts, a.Symbols, params).Compile(rq, revision)
		switch {
		case err == nil:
			keys, err := sqlsym.Run(ctx, st, stmt)
			if err != nil {
				return result, err
			}
			result.Strategy = StrategySQL
			for _, k := range keys {
				result.Results = append(result.Results, value.Format(k))
			}
			return result, nil
		case !errors.Is(err, sqlsym.ErrNotTranslatable):
			return result, err
		}
	}

	snapshot := st.Snapshot(ctx)
	elems, err := eval.NewMaterializer(ts, snapshot).Run(a.Query, revision, params, snapshot)
	if err != nil {
		return result, err
	}
	result.Strategy = StrategyMemory
	for _, v := range elems {
		result.Results = append(result.Results, value.Format(v))
	}
	return result, nil
}
