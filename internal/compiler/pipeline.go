package compiler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/kquery/internal/binder"
	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/printer"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/symbol"
	"github.com/roach88/kquery/internal/typing"
)

// Pass names, as recorded in diagnostics.
const (
	PassValidate    = "validate"
	PassBinder      = "binder"
	PassPolymorphic = "polymorphic"
	PassConcrete    = "concrete"
	PassSymbols     = "symbols"
)

// Options configures Analyze.
type Options struct {
	// Factory creates the symbols of the last pass. Nil skips the pass.
	Factory symbol.Factory

	// RequireSymbols reports accesses through contexts without a single
	// concrete type.
	RequireSymbols bool
}

// Analysis is the outcome of analyzing one query.
type Analysis struct {
	Query       query.Query
	Annotations *query.Annotations
	Diagnostics *diag.Diagnostics

	// Type is the polymorphic element type of the search.
	Type meta.MetaObject

	// Symbols is nil when the symbol pass did not run.
	Symbols *symbol.Table
}

// OK reports whether no pass found a problem.
func (a *Analysis) OK() bool {
	return !a.Diagnostics.HasErrors()
}

// Errors returns the diagnostics with their error codes.
func (a *Analysis) Errors() []ValidationError {
	items := a.Diagnostics.All()
	out := make([]ValidationError, len(items))
	for i, d := range items {
		out[i] = ValidationError{Pass: d.Pass, Message: d.Message, Code: codeFor(d)}
		if d.Node != nil {
			out[i].Node = printer.String(d.Node)
		}
	}
	return out
}

func codeFor(d diag.Diagnostic) string {
	switch d.Pass {
	case PassValidate:
		return ErrStructure
	case PassBinder:
		return ErrBinder
	case PassPolymorphic, PassConcrete:
		return ErrTyping
	}
	if d.Node == nil {
		return ErrUnsupportedOp
	}
	return ErrSymbols
}

// Analyze validates q and runs the analysis passes in order. The binder and
// typing passes always run on a structurally valid query, so one call lists
// every name and type problem; unresolved names are typed as meta.Invalid and
// do not cascade. Symbols are only created for a query without problems.
// Problems are recorded in the returned Analysis; the error is reserved for
// misuse, such as a reused factory.
func Analyze(ts meta.TypeSystem, q query.Query, opts Options) (*Analysis, error) {
	a := &Analysis{
		Query:       q,
		Annotations: query.NewAnnotations(),
		Diagnostics: diag.New(),
		Type:        meta.Invalid,
	}
	d := a.Diagnostics

	if res := query.Validate(q); !res.Valid {
		sink := d.For(PassValidate)
		for _, p := range res.Problems {
			sink.Errorf(nil, "%s", p)
		}
		slog.Debug("query rejected", "problems", len(res.Problems))
		return a, nil
	}

	binder.Bind(ts, q, a.Annotations, d.For(PassBinder))
	slog.Debug("pass done", "pass", PassBinder, "attributes", a.Annotations.Attributes.Len(), "errors", d.Count())

	a.Type = typing.Polymorphic(ts, q, a.Annotations, d.For(PassPolymorphic))
	slog.Debug("pass done", "pass", PassPolymorphic, "type", a.Type.Name(), "errors", d.Count())

	concrete := typing.Concrete(ts, q, a.Annotations, d.For(PassConcrete))
	slog.Debug("pass done", "pass", PassConcrete, "types", concrete.String(), "errors", d.Count())
	if d.HasErrors() || opts.Factory == nil {
		return a, nil
	}

	table, err := symbol.NewCreator(ts, opts.Factory, opts.RequireSymbols).Run(q, a.Annotations, d.For(PassSymbols))
	switch {
	case errors.Is(err, symbol.ErrUnsupported):
		d.For(PassSymbols).Errorf(nil, "%v", err)
	case err != nil:
		return nil, fmt.Errorf("create symbols: %w", err)
	}
	a.Symbols = table
	slog.Debug("pass done", "pass", PassSymbols, "symbols", table.Len(), "errors", d.Count())
	return a, nil
}
