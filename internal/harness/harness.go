package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/kquery/internal/compiler"
	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/sqlsym"
	"github.com/roach88/kquery/internal/store"
	"github.com/roach88/kquery/internal/value"
)

// Harness is the scenario execution state: the compiled schema, the objects
// and the analyzed queries.
type Harness struct {
	schema   *meta.Schema
	objects  *eval.Memory
	keys     map[string]value.Key
	revision int64
	logger   *slog.Logger

	queries map[string]*prepared
}

// prepared is an analyzed query with its bound parameters.
type prepared struct {
	analysis *compiler.Analysis
	params   map[string]value.Value
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes the harness logs to logger. They are discarded by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result. An error means the
// scenario itself is broken (schema, objects or documents); failed
// expectations are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	schema, err := compiler.CompileSchemaString(scenario.Schema, scenario.Name+".cue")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	h := &Harness{
		schema:   schema,
		objects:  eval.NewMemory(),
		keys:     make(map[string]value.Key, len(scenario.Objects)),
		revision: scenario.Revision,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		queries:  make(map[string]*prepared, len(scenario.Queries)),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.revision == 0 {
		h.revision = 1
	}

	if err := h.loadObjects(scenario.Objects); err != nil {
		return nil, err
	}

	result := NewResult()
	for _, spec := range scenario.Queries {
		p, err := h.prepare(spec)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", spec.Name, err)
		}
		h.queries[spec.Name] = p

		outcome := QueryOutcome{Name: spec.Name, Type: p.analysis.Type.Name()}
		for _, e := range p.analysis.Errors() {
			outcome.Diagnostics = append(outcome.Diagnostics, e.Error())
		}
		result.Queries = append(result.Queries, outcome)
		h.logger.Debug("query analyzed", "query", spec.Name, "type", outcome.Type, "diagnostics", len(outcome.Diagnostics))
	}

	for i, e := range scenario.Expect {
		if err := h.check(e); err != nil {
			result.AddError(fmt.Sprintf("expect[%d] %s %s: %v", i, e.Type, e.Query, err))
		}
	}
	return result, nil
}

// loadObjects builds the object versions. Keys are assigned first so that
// attribute values can reference any object with {$ref: id}.
func (h *Harness) loadObjects(objects []ObjectSpec) error {
	for _, obj := range objects {
		if _, ok := h.schema.Class(obj.Type); !ok {
			return fmt.Errorf("object %s: unknown type %q", obj.ID, obj.Type)
		}
		h.keys[obj.ID] = value.Key{Branch: value.TrunkBranch, ID: obj.ID, Type: obj.Type, Revision: value.Current}
	}

	for _, obj := range objects {
		attrs, err := h.record(obj.Attrs)
		if err != nil {
			return fmt.Errorf("object %s attrs: %w", obj.ID, err)
		}
		flex, err := h.record(obj.Flex)
		if err != nil {
			return fmt.Errorf("object %s flex: %w", obj.ID, err)
		}

		o := &eval.Object{
			Key:        h.keys[obj.ID],
			Attributes: attrs,
			Flex:       flex,
			RevMin:     obj.RevMin,
			RevMax:     obj.RevMax,
			Committed:  !obj.Uncommitted,
		}
		if o.RevMin == 0 {
			o.RevMin = 1
		}
		if o.RevMax == 0 {
			o.RevMax = value.Current
		}
		h.objects.Add(o)
	}
	return nil
}

func (h *Harness) record(raw map[string]any) (value.Record, error) {
	rec := make(value.Record, len(raw))
	for name, field := range raw {
		v, err := store.SeedValue(field, h.keys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rec[name] = v
	}
	return rec, nil
}

func (h *Harness) prepare(spec QuerySpec) (*prepared, error) {
	q, err := compiler.DecodeQueryNode(&spec.Query)
	if err != nil {
		return nil, err
	}

	analysis, err := compiler.Analyze(h.schema, q, compiler.Options{
		Factory:        sqlsym.NewFactory(),
		RequireSymbols: !spec.Lenient,
	})
	if err != nil {
		return nil, err
	}

	params, err := h.record(spec.Params)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return &prepared{analysis: analysis, params: params}, nil
}

// search returns the search of a query that analyzed cleanly.
func (p *prepared) search() (query.SetExpression, error) {
	if !p.analysis.OK() {
		return nil, fmt.Errorf("query has %d diagnostic(s)", p.analysis.Diagnostics.Count())
	}
	return p.analysis.Query.SearchExpr(), nil
}

// ordered reports whether the query's results have a defined order.
func (p *prepared) ordered() bool {
	rq, ok := p.analysis.Query.(*query.RevisionQuery)
	return ok && rq.Order != nil
}
