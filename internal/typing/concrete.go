package typing

import (
	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/visit"
)

// Narrowed is the result of computing the concrete types of an expression.
type Narrowed struct {
	// Types are the concrete types of the expression's value.
	Types meta.TypeSet

	// Context are the concrete types the current object may have wherever
	// the expression evaluates to true.
	Context meta.TypeSet
}

type concreteKernel = visit.Descending[meta.TypeSet, meta.TypeSet, Narrowed, meta.TypeSet, meta.TypeSet, none]

type concrete struct {
	*concreteKernel

	ts   meta.TypeSystem
	ann  *query.Annotations
	sink diag.Sink
}

func newConcrete(ts meta.TypeSystem, ann *query.Annotations, sink diag.Sink) *concrete {
	c := &concrete{ts: ts, ann: ann, sink: sink}
	c.concreteKernel = visit.NewDescending[meta.TypeSet, meta.TypeSet, Narrowed, meta.TypeSet, meta.TypeSet, none](c)
	c.Self = c
	return c
}

// Concrete computes the concrete types of a query typed by Polymorphic and
// returns the concrete element types of its search. Without polymorphic
// annotations it reports an error and annotates nothing.
func Concrete(ts meta.TypeSystem, q query.Query, ann *query.Annotations, sink diag.Sink) meta.TypeSet {
	if !ann.Polymorphic.Has(q) {
		sink.Errorf(q, "concrete types need polymorphic types")
		return meta.NewTypeSet()
	}
	return newConcrete(ts, ann, sink).Query(q, meta.NewTypeSet(ts.ItemType()))
}

// ConcreteExpr computes the concrete types of an expression typed by
// PolymorphicExpr, with a current object of one of contextTypes.
func ConcreteExpr(ts meta.TypeSystem, expr query.Expression, contextTypes meta.TypeSet, ann *query.Annotations, sink diag.Sink) Narrowed {
	if !ann.Polymorphic.Has(expr) {
		sink.Errorf(expr, "concrete types need polymorphic types")
		return Narrowed{Types: meta.NewTypeSet(), Context: contextTypes}
	}
	return newConcrete(ts, ann, sink).Expr(expr, contextTypes)
}

// ConcreteSet computes the concrete element types of a set expression typed
// by PolymorphicSet.
func ConcreteSet(ts meta.TypeSystem, set query.SetExpression, ann *query.Annotations, sink diag.Sink) meta.TypeSet {
	if !ann.Polymorphic.Has(set) {
		sink.Errorf(set, "concrete types need polymorphic types")
		return meta.NewTypeSet()
	}
	return newConcrete(ts, ann, sink).Set(set, meta.NewTypeSet(ts.ItemType()))
}

func (c *concrete) assign(n query.Node, types meta.TypeSet) meta.TypeSet {
	c.ann.Concrete.Set(n, types)
	stored, _ := c.ann.Concrete.Get(n)
	return stored
}

func (c *concrete) narrowed(n query.Node, types, context meta.TypeSet) Narrowed {
	return Narrowed{Types: c.assign(n, types), Context: context}
}

func (c *concrete) polymorphic(n query.Node) meta.MetaObject {
	if t, ok := c.ann.Polymorphic.Get(n); ok && t != nil {
		return t
	}
	return meta.Invalid
}

// subtypes expands t to its concrete subtypes. Tuples expand entrywise into
// all combinations of their entries' concrete types.
func (c *concrete) subtypes(t meta.MetaObject) meta.TypeSet {
	switch {
	case meta.IsItem(t):
		return c.ts.ConcreteSubtypes(t)
	case t.Kind() == meta.KindTuple:
		entries := t.(*meta.Tuple).Entries()
		sets := make([]meta.TypeSet, len(entries))
		for i, e := range entries {
			sets[i] = c.subtypes(e)
		}
		return c.product(sets)
	default:
		return meta.NewTypeSet(t)
	}
}

// product returns the tuple types over all combinations of members.
func (c *concrete) product(members []meta.TypeSet) meta.TypeSet {
	combos := [][]meta.MetaObject{{}}
	for _, m := range members {
		var next [][]meta.MetaObject
		for _, prefix := range combos {
			for _, t := range m.Slice() {
				combo := append(append([]meta.MetaObject(nil), prefix...), t)
				next = append(next, combo)
			}
		}
		combos = next
	}
	out := meta.NewTypeSet()
	for _, combo := range combos {
		out = out.With(c.ts.TupleType(combo...))
	}
	return out
}

var (
	boolTypes = meta.NewTypeSet(meta.Bool)
	intTypes  = meta.NewTypeSet(meta.Int)
)

func (c *concrete) VisitRevisionQuery(n *query.RevisionQuery, arg meta.TypeSet) meta.TypeSet {
	result := c.Set(n.Search, arg)
	if n.Order != nil {
		c.Order(n.Order, result)
	}
	return c.assign(n, result)
}

// VisitBinary narrows the context through AND and joins it through OR.
func (c *concrete) VisitBinary(n *query.BinaryOperation, arg meta.TypeSet) Narrowed {
	switch n.Op {
	case query.OpAnd:
		left := c.Expr(n.Left, arg)
		right := c.Expr(n.Right, left.Context)
		return c.narrowed(n, boolTypes, left.Context.Intersect(right.Context))
	case query.OpOr:
		left := c.Expr(n.Left, arg)
		right := c.Expr(n.Right, arg)
		return c.narrowed(n, boolTypes, left.Context.Union(right.Context))
	default:
		return c.concreteKernel.VisitBinary(n, arg)
	}
}

// VisitUnary removes the types a negated type test of the current object
// accepts.
func (c *concrete) VisitUnary(n *query.UnaryOperation, arg meta.TypeSet) Narrowed {
	operand := c.Expr(n.Operand, arg)
	if n.Op == query.OpNot && isNarrowingTest(n.Operand) {
		return c.narrowed(n, boolTypes, arg.Minus(operand.Context))
	}
	if n.Op == query.OpNot || n.Op == query.OpIsNull {
		return c.narrowed(n, boolTypes, arg)
	}
	return c.narrowed(n, meta.NewTypeSet(unaryType(n.Op)), arg)
}

func isNarrowingTest(e query.Expression) bool {
	switch e := e.(type) {
	case *query.HasType:
		return narrows(e.Context)
	case *query.InstanceOf:
		return narrows(e.Context)
	}
	return false
}

// VisitEval computes the inner expression with the concrete types of the
// context value as current object.
func (c *concrete) VisitEval(n *query.Eval, arg meta.TypeSet) Narrowed {
	context := c.Expr(n.Context, arg)
	inner := c.Expr(n.Inner, context.Types)
	return c.narrowed(n, inner.Types, arg)
}

func (c *concrete) VisitFilter(n *query.Filter, arg meta.TypeSet) meta.TypeSet {
	source := c.Set(n.Source, arg)
	predicate := c.Expr(n.Predicate, source)
	return c.assign(n, source.Intersect(predicate.Context))
}

func (c *concrete) VisitMapTo(n *query.MapTo, arg meta.TypeSet) meta.TypeSet {
	source := c.Set(n.Source, arg)
	return c.assign(n, c.Expr(n.Mapping, source).Types)
}

func (c *concrete) VisitPartition(n *query.Partition, arg meta.TypeSet) meta.TypeSet {
	source := c.Set(n.Source, arg)
	c.Expr(n.Equivalence, source)
	return c.assign(n, c.Function(n.Representative, source))
}

func (c *concrete) ProcessParameterDeclaration(*query.ParameterDeclaration, meta.TypeSet) meta.TypeSet {
	return meta.NewTypeSet()
}

func (c *concrete) ProcessRevisionQuery(n *query.RevisionQuery, _ meta.TypeSet, _ []meta.TypeSet, search meta.TypeSet, _ none) meta.TypeSet {
	return c.assign(n, search)
}

func (c *concrete) ProcessHistoryQuery(n *query.HistoryQuery, _ meta.TypeSet, _ []meta.TypeSet, search meta.TypeSet) meta.TypeSet {
	return c.assign(n, search)
}

func (c *concrete) ProcessLiteral(n *query.Literal, arg meta.TypeSet) Narrowed {
	return c.narrowed(n, c.subtypes(c.polymorphic(n)), arg)
}

func (c *concrete) ProcessParameter(n *query.Parameter, arg meta.TypeSet) Narrowed {
	return c.narrowed(n, c.subtypes(c.polymorphic(n)), arg)
}

// ProcessAttribute expands item-typed values to their concrete subtypes
// unless the attribute is monomorphic.
func (c *concrete) ProcessAttribute(n *query.Attribute, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, c.attributeTypes(n), arg)
}

func (c *concrete) ProcessReference(n *query.Reference, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, c.attributeTypes(n), arg)
}

func (c *concrete) attributeTypes(n query.Node) meta.TypeSet {
	t := c.polymorphic(n)
	attr, _ := c.ann.Attributes.Get(n)
	if attr != nil && attr.Monomorphic && meta.IsItem(t) {
		return meta.NewTypeSet(t)
	}
	return c.subtypes(t)
}

func (c *concrete) ProcessFlex(n *query.Flex, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, meta.NewTypeSet(c.polymorphic(n)), arg)
}

func (c *concrete) ProcessGetEntry(n *query.GetEntry, arg meta.TypeSet, context Narrowed) Narrowed {
	out := meta.NewTypeSet()
	for _, t := range context.Types.Slice() {
		tuple, ok := t.(*meta.Tuple)
		if !ok || n.Index < 0 || n.Index >= len(tuple.Entries()) {
			continue
		}
		out = out.With(tuple.Entries()[n.Index])
	}
	return c.narrowed(n, out, arg)
}

// ProcessBinary handles comparisons; AND and OR are handled by VisitBinary.
func (c *concrete) ProcessBinary(n *query.BinaryOperation, arg meta.TypeSet, _, _ Narrowed) Narrowed {
	return c.narrowed(n, boolTypes, arg)
}

// ProcessUnary is unused; VisitUnary handles every operator.
func (c *concrete) ProcessUnary(n *query.UnaryOperation, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, meta.NewTypeSet(unaryType(n.Op)), arg)
}

func (c *concrete) ProcessTuple(n *query.Tuple, arg meta.TypeSet, entries []Narrowed) Narrowed {
	sets := make([]meta.TypeSet, len(entries))
	for i, e := range entries {
		sets[i] = e.Types
	}
	return c.narrowed(n, c.product(sets), arg)
}

// ProcessEval is unused; VisitEval computes the inner expression itself.
func (c *concrete) ProcessEval(n *query.Eval, arg meta.TypeSet, _, inner Narrowed) Narrowed {
	return c.narrowed(n, inner.Types, arg)
}

func (c *concrete) ProcessContextAccess(n *query.ContextAccess, arg meta.TypeSet) Narrowed {
	return c.narrowed(n, arg, arg)
}

func (c *concrete) ProcessInSet(n *query.InSet, arg meta.TypeSet, _ Narrowed, _ meta.TypeSet) Narrowed {
	return c.narrowed(n, boolTypes, arg)
}

func (c *concrete) ProcessMatches(n *query.Matches, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, boolTypes, arg)
}

// ProcessHasType keeps the declared type if the context may have it.
func (c *concrete) ProcessHasType(n *query.HasType, arg meta.TypeSet, context Narrowed) Narrowed {
	declared := c.declared(n)
	if !narrows(n.Context) || meta.IsInvalid(declared) {
		return c.narrowed(n, boolTypes, arg)
	}
	match := meta.NewTypeSet()
	if context.Context.Contains(declared) {
		match = meta.NewTypeSet(declared)
	}
	return c.narrowed(n, boolTypes, match)
}

// ProcessInstanceOf keeps the context types that are subtypes of the
// declared type.
func (c *concrete) ProcessInstanceOf(n *query.InstanceOf, arg meta.TypeSet, context Narrowed) Narrowed {
	declared := c.declared(n)
	if !narrows(n.Context) || meta.IsInvalid(declared) {
		return c.narrowed(n, boolTypes, arg)
	}
	return c.narrowed(n, boolTypes, context.Context.Intersect(c.ts.ConcreteSubtypes(declared)))
}

func (c *concrete) declared(n query.Node) meta.MetaObject {
	if t, ok := c.ann.Resolved.Get(n); ok && t != nil {
		return t
	}
	return meta.Invalid
}

func (c *concrete) ProcessIsCurrent(n *query.IsCurrent, arg meta.TypeSet, _ Narrowed) Narrowed {
	return c.narrowed(n, boolTypes, arg)
}

func (c *concrete) ProcessRequestedHistoryContext(n *query.RequestedHistoryContext, arg meta.TypeSet) Narrowed {
	return c.narrowed(n, intTypes, arg)
}

func (c *concrete) ProcessNone(n *query.None, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, meta.NewTypeSet())
}

func (c *concrete) ProcessAllOf(n *query.AllOf, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, meta.NewTypeSet(c.polymorphic(n)))
}

func (c *concrete) ProcessAnyOf(n *query.AnyOf, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, c.subtypes(c.polymorphic(n)))
}

func (c *concrete) ProcessSetLiteral(n *query.SetLiteral, _ meta.TypeSet) meta.TypeSet {
	out := meta.NewTypeSet()
	for _, v := range n.Values {
		t, _ := LiteralType(c.ts, v)
		out = out.Union(c.subtypes(t))
	}
	return c.assign(n, out)
}

func (c *concrete) ProcessSetParameter(n *query.SetParameter, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, c.subtypes(c.polymorphic(n)))
}

// ProcessFilter, ProcessMapTo and ProcessPartition are unused; the Visit
// methods above thread the element types into the nested expressions.
func (c *concrete) ProcessFilter(n *query.Filter, _ meta.TypeSet, source meta.TypeSet, predicate Narrowed) meta.TypeSet {
	return c.assign(n, source.Intersect(predicate.Context))
}

func (c *concrete) ProcessMapTo(n *query.MapTo, _ meta.TypeSet, _ meta.TypeSet, mapping Narrowed) meta.TypeSet {
	return c.assign(n, mapping.Types)
}

func (c *concrete) ProcessPartition(n *query.Partition, _ meta.TypeSet, _ meta.TypeSet, _ Narrowed, representative meta.TypeSet) meta.TypeSet {
	return c.assign(n, representative)
}

func (c *concrete) ProcessCrossProduct(n *query.CrossProduct, _ meta.TypeSet, members []meta.TypeSet) meta.TypeSet {
	if len(members) == 1 {
		return c.assign(n, members[0])
	}
	return c.assign(n, c.product(members))
}

func (c *concrete) ProcessUnion(n *query.Union, _ meta.TypeSet, left, right meta.TypeSet) meta.TypeSet {
	return c.assign(n, left.Union(right))
}

func (c *concrete) ProcessIntersection(n *query.Intersection, _ meta.TypeSet, left, right meta.TypeSet) meta.TypeSet {
	return c.assign(n, left.Intersect(right))
}

// ProcessSubstraction keeps the left set: the right side may hold only some
// instances of its concrete types.
func (c *concrete) ProcessSubstraction(n *query.Substraction, _ meta.TypeSet, left, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, left)
}

func (c *concrete) ProcessCount(n *query.Count, _ meta.TypeSet) meta.TypeSet {
	return c.assign(n, intTypes)
}

func (c *concrete) ProcessSum(n *query.Sum, _ meta.TypeSet, expr Narrowed) meta.TypeSet {
	return c.assign(n, intTypes)
}

func (c *concrete) ProcessMin(n *query.Min, _ meta.TypeSet, expr Narrowed) meta.TypeSet {
	return c.assign(n, expr.Types)
}

func (c *concrete) ProcessMax(n *query.Max, _ meta.TypeSet, expr Narrowed) meta.TypeSet {
	return c.assign(n, expr.Types)
}

func (c *concrete) ProcessOrderSpec(*query.OrderSpec, meta.TypeSet, Narrowed) none { return none{} }

func (c *concrete) ProcessOrderTuple(*query.OrderTuple, meta.TypeSet, []none) none {
	return none{}
}
