// Package binder resolves the type and attribute names of a query tree
// against a meta.TypeSystem.
//
// Results are written to the Attributes and Resolved tables of
// query.Annotations. Every problem goes to a diag.Sink and binding continues
// with a placeholder (meta.Invalid or meta.InvalidAttribute), so one run
// reports all name errors of a query.
package binder

import (
	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/visit"
)

// Scope maps parameter names to their declared types.
type Scope map[string]meta.MetaObject

type none = struct{}

type kernel = visit.Descending[Scope, none, none, none, none, none]

// Binder holds no per-query state besides its collaborators; the parameter
// scope is the traversal argument.
type Binder struct {
	*kernel

	ts   meta.TypeSystem
	ann  *query.Annotations
	sink diag.Sink
}

func newBinder(ts meta.TypeSystem, ann *query.Annotations, sink diag.Sink) *Binder {
	b := &Binder{ts: ts, ann: ann, sink: sink}
	b.kernel = visit.NewDescending[Scope, none, none, none, none, none](b)
	b.Self = b
	return b
}

// Bind resolves all names in q.
func Bind(ts meta.TypeSystem, q query.Query, ann *query.Annotations, sink diag.Sink) {
	newBinder(ts, ann, sink).Query(q, Scope{})
}

// BindExpr resolves the names of a standalone expression. Parameters are
// looked up in params; nil means no parameters.
func BindExpr(ts meta.TypeSystem, expr query.Expression, params Scope, ann *query.Annotations, sink diag.Sink) {
	newBinder(ts, ann, sink).Expr(expr, params.clone())
}

// BindSet resolves the names of a standalone set expression.
func BindSet(ts meta.TypeSystem, set query.SetExpression, params Scope, ann *query.Annotations, sink diag.Sink) {
	newBinder(ts, ann, sink).Set(set, params.clone())
}

func (s Scope) clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// VisitHistoryQuery declares the implicit branch and revision parameters
// before the explicit ones.
func (b *Binder) VisitHistoryQuery(n *query.HistoryQuery, scope Scope) none {
	for _, name := range []string{n.BranchParam, n.RevisionParam} {
		if name != "" {
			if _, ok := scope[name]; !ok {
				scope[name] = meta.Int
			}
		}
	}
	return b.kernel.VisitHistoryQuery(n, scope)
}

func (b *Binder) resolveType(n query.Node, name string) meta.MetaObject {
	t, ok := b.ts.Type(name)
	if !ok {
		b.sink.Errorf(n, "unknown type %q", name)
		return meta.Invalid
	}
	return t
}

// resolveItemType resolves name and requires an item type.
func (b *Binder) resolveItemType(n query.Node, name string) meta.MetaObject {
	t := b.resolveType(n, name)
	if meta.IsInvalid(t) {
		return t
	}
	if !meta.IsItem(t) {
		b.sink.Errorf(n, "type %q is not an item type", name)
		return meta.Invalid
	}
	return t
}

func (b *Binder) bindType(n query.Node, t meta.MetaObject) {
	b.ann.Resolved.Set(n, t)
}

// resolveAttribute looks up ownerType.name and checks that its reference
// flag matches the access.
func (b *Binder) resolveAttribute(n query.Node, ownerType, name string, reference bool) {
	b.ann.Attributes.Set(n, b.lookupAttribute(n, ownerType, name, reference))
}

func (b *Binder) lookupAttribute(n query.Node, ownerType, name string, reference bool) *meta.Attribute {
	owner := b.resolveItemType(n, ownerType)
	if meta.IsInvalid(owner) {
		return meta.InvalidAttribute
	}
	attr, ok := b.ts.Attribute(owner, name)
	if !ok {
		b.sink.Errorf(n, "type %q has no attribute %q", ownerType, name)
		return meta.InvalidAttribute
	}
	switch {
	case reference && !attr.Reference:
		b.sink.Errorf(n, "attribute %s is not a reference", attr.QualifiedName())
		return meta.InvalidAttribute
	case !reference && attr.Reference:
		b.sink.Errorf(n, "attribute %s is a reference and needs a reference access", attr.QualifiedName())
		return meta.InvalidAttribute
	}
	return attr
}

func (b *Binder) resolveParameter(n query.Node, name string, scope Scope) {
	t, ok := scope[name]
	if !ok {
		b.sink.Errorf(n, "undeclared parameter %q", name)
		t = meta.Invalid
	}
	b.bindType(n, t)
}

func (b *Binder) ProcessParameterDeclaration(n *query.ParameterDeclaration, scope Scope) none {
	t := b.resolveType(n, n.TypeName)
	b.bindType(n, t)
	if _, ok := scope[n.Name]; !ok {
		scope[n.Name] = t
	}
	return none{}
}

func (b *Binder) ProcessRevisionQuery(*query.RevisionQuery, Scope, []none, none, none) none {
	return none{}
}

func (b *Binder) ProcessHistoryQuery(*query.HistoryQuery, Scope, []none, none) none {
	return none{}
}

func (b *Binder) ProcessLiteral(*query.Literal, Scope) none { return none{} }

func (b *Binder) ProcessParameter(n *query.Parameter, scope Scope) none {
	b.resolveParameter(n, n.Name, scope)
	return none{}
}

func (b *Binder) ProcessAttribute(n *query.Attribute, _ Scope, _ none) none {
	b.resolveAttribute(n, n.OwnerType, n.Name, false)
	return none{}
}

func (b *Binder) ProcessReference(n *query.Reference, _ Scope, _ none) none {
	b.resolveAttribute(n, n.OwnerType, n.Name, true)
	return none{}
}

func (b *Binder) ProcessFlex(n *query.Flex, _ Scope, _ none) none {
	t := b.resolveType(n, n.TypeName)
	if !meta.IsInvalid(t) && !meta.IsPrimitive(t) {
		b.sink.Errorf(n, "flex attribute %q: type %q is not primitive", n.Name, n.TypeName)
		t = meta.Invalid
	}
	b.bindType(n, t)
	return none{}
}

func (b *Binder) ProcessGetEntry(*query.GetEntry, Scope, none) none          { return none{} }
func (b *Binder) ProcessBinary(*query.BinaryOperation, Scope, none, none) none { return none{} }
func (b *Binder) ProcessUnary(*query.UnaryOperation, Scope, none) none       { return none{} }
func (b *Binder) ProcessTuple(*query.Tuple, Scope, []none) none              { return none{} }
func (b *Binder) ProcessEval(*query.Eval, Scope, none, none) none            { return none{} }
func (b *Binder) ProcessContextAccess(*query.ContextAccess, Scope) none      { return none{} }
func (b *Binder) ProcessInSet(*query.InSet, Scope, none, none) none          { return none{} }
func (b *Binder) ProcessMatches(*query.Matches, Scope, none) none            { return none{} }

func (b *Binder) ProcessHasType(n *query.HasType, _ Scope, _ none) none {
	b.bindType(n, b.resolveItemType(n, n.TypeName))
	return none{}
}

func (b *Binder) ProcessInstanceOf(n *query.InstanceOf, _ Scope, _ none) none {
	b.bindType(n, b.resolveItemType(n, n.TypeName))
	return none{}
}

func (b *Binder) ProcessIsCurrent(*query.IsCurrent, Scope, none) none { return none{} }

func (b *Binder) ProcessRequestedHistoryContext(*query.RequestedHistoryContext, Scope) none {
	return none{}
}

func (b *Binder) ProcessNone(*query.None, Scope) none { return none{} }

func (b *Binder) ProcessAllOf(n *query.AllOf, _ Scope) none {
	t := b.resolveItemType(n, n.TypeName)
	if meta.IsAbstract(t) {
		b.sink.Errorf(n, "allOf needs a concrete type, %q is abstract", n.TypeName)
		t = meta.Invalid
	}
	b.bindType(n, t)
	return none{}
}

func (b *Binder) ProcessAnyOf(n *query.AnyOf, _ Scope) none {
	b.bindType(n, b.resolveItemType(n, n.TypeName))
	return none{}
}

func (b *Binder) ProcessSetLiteral(*query.SetLiteral, Scope) none { return none{} }

// ProcessSetParameter binds the element type; set parameters are declared
// with the type of their elements.
func (b *Binder) ProcessSetParameter(n *query.SetParameter, scope Scope) none {
	b.resolveParameter(n, n.Name, scope)
	return none{}
}

func (b *Binder) ProcessFilter(*query.Filter, Scope, none, none) none          { return none{} }
func (b *Binder) ProcessMapTo(*query.MapTo, Scope, none, none) none            { return none{} }
func (b *Binder) ProcessCrossProduct(*query.CrossProduct, Scope, []none) none  { return none{} }
func (b *Binder) ProcessUnion(*query.Union, Scope, none, none) none            { return none{} }
func (b *Binder) ProcessIntersection(*query.Intersection, Scope, none, none) none {
	return none{}
}
func (b *Binder) ProcessSubstraction(*query.Substraction, Scope, none, none) none {
	return none{}
}
func (b *Binder) ProcessPartition(*query.Partition, Scope, none, none, none) none {
	return none{}
}

func (b *Binder) ProcessCount(*query.Count, Scope) none    { return none{} }
func (b *Binder) ProcessSum(*query.Sum, Scope, none) none  { return none{} }
func (b *Binder) ProcessMin(*query.Min, Scope, none) none  { return none{} }
func (b *Binder) ProcessMax(*query.Max, Scope, none) none  { return none{} }

func (b *Binder) ProcessOrderSpec(*query.OrderSpec, Scope, none) none     { return none{} }
func (b *Binder) ProcessOrderTuple(*query.OrderTuple, Scope, []none) none { return none{} }
