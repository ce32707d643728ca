package eval

import (
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// Simple evaluates expressions against one base object at one revision.
// It is safe for concurrent use when its Resolver is.
type Simple struct {
	exprs    *ObjectEvaluator
	resolver Resolver
}

// NewSimple returns an evaluator reading objects through resolver.
func NewSimple(ts meta.TypeSystem, resolver Resolver) *Simple {
	return &Simple{exprs: NewObjectEvaluator(ts), resolver: resolver}
}

func (s *Simple) context(base value.Value, revision int64, params map[string]value.Value) Context {
	return Context{Value: base, Revision: revision, Params: params, Resolver: s.resolver}
}

// Evaluate computes expr with base as the context value.
func (s *Simple) Evaluate(expr query.Expression, base value.Value, revision int64, params map[string]value.Value) (value.Value, error) {
	return s.exprs.Evaluate(expr, s.context(base, revision, params))
}

// Matches evaluates a predicate against base. A non-boolean result is a
// TYPE_MISMATCH.
func (s *Simple) Matches(expr query.Expression, base value.Value, revision int64, params map[string]value.Value) (ok bool, err error) {
	defer catch(&err)
	return s.exprs.boolean(expr, s.context(base, revision, params)), nil
}

// Contains reports whether candidate is an element of set.
func (s *Simple) Contains(set query.SetExpression, candidate value.Value, revision int64, params map[string]value.Value) (bool, error) {
	return s.exprs.sets.Contains(set, s.context(candidate, revision, params))
}
