package typing

import (
	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/visit"
)

// Typed is the result of typing an expression.
type Typed struct {
	// Type is the type of the expression's value.
	Type meta.MetaObject

	// Context is the type of the current object wherever the expression
	// evaluates to true. For non-boolean expressions it is the incoming context.
	Context meta.MetaObject
}

type polyKernel = visit.Descending[meta.MetaObject, meta.MetaObject, Typed, meta.MetaObject, meta.MetaObject, none]

type polymorphic struct {
	*polyKernel

	ts   meta.TypeSystem
	ann  *query.Annotations
	sink diag.Sink
}

func newPolymorphic(ts meta.TypeSystem, ann *query.Annotations, sink diag.Sink) *polymorphic {
	p := &polymorphic{ts: ts, ann: ann, sink: sink}
	p.polyKernel = visit.NewDescending[meta.MetaObject, meta.MetaObject, Typed, meta.MetaObject, meta.MetaObject, none](p)
	p.Self = p
	return p
}

// Polymorphic types a bound query and returns the element type of its search.
func Polymorphic(ts meta.TypeSystem, q query.Query, ann *query.Annotations, sink diag.Sink) meta.MetaObject {
	return newPolymorphic(ts, ann, sink).Query(q, ts.ItemType())
}

// PolymorphicExpr types a bound expression evaluated with a current object of
// type contextType.
func PolymorphicExpr(ts meta.TypeSystem, expr query.Expression, contextType meta.MetaObject, ann *query.Annotations, sink diag.Sink) Typed {
	return newPolymorphic(ts, ann, sink).Expr(expr, contextType)
}

// PolymorphicSet types a bound set expression and returns its element type.
func PolymorphicSet(ts meta.TypeSystem, set query.SetExpression, ann *query.Annotations, sink diag.Sink) meta.MetaObject {
	return newPolymorphic(ts, ann, sink).Set(set, ts.ItemType())
}

// assign records t for n. The first assignment wins, so the stored type is
// returned.
func (p *polymorphic) assign(n query.Node, t meta.MetaObject) meta.MetaObject {
	p.ann.Polymorphic.Set(n, t)
	stored, _ := p.ann.Polymorphic.Get(n)
	return stored
}

func (p *polymorphic) typed(n query.Node, t, context meta.MetaObject) Typed {
	return Typed{Type: p.assign(n, t), Context: context}
}

func (p *polymorphic) check(n query.Node, expected, computed meta.MetaObject) {
	if !p.ts.IsAssignable(expected, computed) {
		p.sink.Errorf(n, "type mismatch: expected %s, got %s", expected.Name(), computed.Name())
	}
}

// itemContext reports whether t may be accessed like an object. Invalid
// contexts were reported before and are accepted silently.
func (p *polymorphic) itemContext(n query.Node, t meta.MetaObject) bool {
	if meta.IsInvalid(t) {
		return false
	}
	if !meta.IsItem(t) {
		p.sink.Errorf(n, "context of type %s (%s) is not an item type", t.Name(), t.Kind())
		return false
	}
	return true
}

func (p *polymorphic) resolved(n query.Node) meta.MetaObject {
	if t, ok := p.ann.Resolved.Get(n); ok && t != nil {
		return t
	}
	return meta.Invalid
}

func (p *polymorphic) attribute(n query.Node) *meta.Attribute {
	if a, ok := p.ann.Attributes.Get(n); ok && a != nil {
		return a
	}
	return meta.InvalidAttribute
}

// VisitRevisionQuery types the order under the element type of the search.
func (p *polymorphic) VisitRevisionQuery(n *query.RevisionQuery, arg meta.MetaObject) meta.MetaObject {
	p.Declarations(n.Params, arg)
	result := p.Set(n.Search, arg)
	if n.Order != nil {
		p.Order(n.Order, result)
	}
	return p.assign(n, result)
}

// VisitBinary threads the context: the right operand of AND is typed in the
// context the left one leaves when true, OR joins both contexts.
func (p *polymorphic) VisitBinary(n *query.BinaryOperation, arg meta.MetaObject) Typed {
	switch n.Op {
	case query.OpAnd:
		left := p.Expr(n.Left, arg)
		p.check(n.Left, meta.Bool, left.Type)
		right := p.Expr(n.Right, left.Context)
		p.check(n.Right, meta.Bool, right.Type)
		return p.typed(n, meta.Bool, right.Context)
	case query.OpOr:
		left := p.Expr(n.Left, arg)
		p.check(n.Left, meta.Bool, left.Type)
		right := p.Expr(n.Right, arg)
		p.check(n.Right, meta.Bool, right.Type)
		return p.typed(n, meta.Bool, p.ts.Union(left.Context, right.Context))
	default:
		return p.polyKernel.VisitBinary(n, arg)
	}
}

// VisitEval types the inner expression with the value of the context
// expression as current object.
func (p *polymorphic) VisitEval(n *query.Eval, arg meta.MetaObject) Typed {
	context := p.Expr(n.Context, arg)
	switch context.Type.Kind() {
	case meta.KindItem, meta.KindAlternative, meta.KindPrimitive, meta.KindTuple:
	case meta.KindInvalid:
	default:
		p.sink.Errorf(n, "evaluation context cannot be of kind %s", context.Type.Kind())
	}
	inner := p.Expr(n.Inner, context.Type)
	return p.typed(n, inner.Type, context.Context)
}

// VisitFilter types the predicate with the source elements as current object.
// The filter yields the context the predicate leaves when true.
func (p *polymorphic) VisitFilter(n *query.Filter, arg meta.MetaObject) meta.MetaObject {
	source := p.Set(n.Source, arg)
	predicate := p.Expr(n.Predicate, source)
	p.check(n.Predicate, meta.Bool, predicate.Type)
	return p.assign(n, predicate.Context)
}

func (p *polymorphic) VisitMapTo(n *query.MapTo, arg meta.MetaObject) meta.MetaObject {
	source := p.Set(n.Source, arg)
	return p.assign(n, p.Expr(n.Mapping, source).Type)
}

func (p *polymorphic) VisitPartition(n *query.Partition, arg meta.MetaObject) meta.MetaObject {
	source := p.Set(n.Source, arg)
	p.Expr(n.Equivalence, source)
	return p.assign(n, p.Function(n.Representative, source))
}

func (p *polymorphic) ProcessParameterDeclaration(n *query.ParameterDeclaration, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.resolved(n))
}

func (p *polymorphic) ProcessRevisionQuery(n *query.RevisionQuery, _ meta.MetaObject, _ []meta.MetaObject, search meta.MetaObject, _ none) meta.MetaObject {
	return p.assign(n, search)
}

func (p *polymorphic) ProcessHistoryQuery(n *query.HistoryQuery, _ meta.MetaObject, _ []meta.MetaObject, search meta.MetaObject) meta.MetaObject {
	return p.assign(n, search)
}

func (p *polymorphic) ProcessLiteral(n *query.Literal, arg meta.MetaObject) Typed {
	t, ok := LiteralType(p.ts, n.Value)
	if !ok {
		p.sink.Errorf(n, "literal of unsupported type")
	}
	return p.typed(n, t, arg)
}

func (p *polymorphic) ProcessParameter(n *query.Parameter, arg meta.MetaObject) Typed {
	return p.typed(n, p.resolved(n), arg)
}

// accessed checks an attribute access on context and returns the attribute,
// or nil when the access cannot be typed.
func (p *polymorphic) accessed(n query.Node, name string, context meta.MetaObject) *meta.Attribute {
	if !p.itemContext(n, context) {
		return nil
	}
	attr := p.attribute(n)
	if attr == meta.InvalidAttribute {
		return nil
	}
	if !p.ts.IsSubtype(context, attr.Owner) {
		p.sink.Errorf(n, "access to attribute %q that is not defined in context type %s", name, context.Name())
	}
	return attr
}

func (p *polymorphic) ProcessAttribute(n *query.Attribute, _ meta.MetaObject, context Typed) Typed {
	attr := p.accessed(n, n.Name, context.Type)
	if attr == nil {
		return p.typed(n, meta.Invalid, context.Context)
	}
	return p.typed(n, attr.Type, context.Context)
}

func (p *polymorphic) ProcessReference(n *query.Reference, _ meta.MetaObject, context Typed) Typed {
	attr := p.accessed(n, n.Name, context.Type)
	if attr == nil {
		return p.typed(n, meta.Invalid, context.Context)
	}
	return p.typed(n, referencePartType(attr, n.Part), context.Context)
}

func (p *polymorphic) ProcessFlex(n *query.Flex, _ meta.MetaObject, context Typed) Typed {
	p.itemContext(n, context.Type)
	return p.typed(n, p.resolved(n), context.Context)
}

func (p *polymorphic) ProcessGetEntry(n *query.GetEntry, _ meta.MetaObject, context Typed) Typed {
	if meta.IsInvalid(context.Type) {
		return p.typed(n, meta.Invalid, context.Context)
	}
	tuple, ok := context.Type.(*meta.Tuple)
	if !ok {
		p.sink.Errorf(n, "context of type %s is not a tuple", context.Type.Name())
		return p.typed(n, meta.Invalid, context.Context)
	}
	entries := tuple.Entries()
	if n.Index < 0 || n.Index >= len(entries) {
		p.sink.Errorf(n, "tuple index %d out of range for %s", n.Index, tuple.Name())
		return p.typed(n, meta.Invalid, context.Context)
	}
	return p.typed(n, entries[n.Index], context.Context)
}

// ProcessBinary types comparisons; AND and OR are handled by VisitBinary.
func (p *polymorphic) ProcessBinary(n *query.BinaryOperation, arg meta.MetaObject, left, right Typed) Typed {
	switch {
	case n.Op == query.OpEq:
		if !p.ts.HasCommonInstances(left.Type, right.Type) {
			p.sink.Errorf(n, "comparison of incompatible types %s and %s", left.Type.Name(), right.Type.Name())
		}
	case n.Op == query.OpEqCI:
		p.check(n.Left, meta.String, left.Type)
		p.check(n.Right, meta.String, right.Type)
	case n.Op.IsOrdering():
		if !p.ts.IsComparable(left.Type, right.Type) {
			p.sink.Errorf(n, "types %s and %s are not comparable", left.Type.Name(), right.Type.Name())
		}
	default:
		p.check(n.Left, meta.Bool, left.Type)
		p.check(n.Right, meta.Bool, right.Type)
	}
	return p.typed(n, meta.Bool, arg)
}

// ProcessUnary restores the incoming context: a negated type test says
// nothing about the type of the current object.
func (p *polymorphic) ProcessUnary(n *query.UnaryOperation, arg meta.MetaObject, operand Typed) Typed {
	switch {
	case n.Op == query.OpNot:
		p.check(n.Operand, meta.Bool, operand.Type)
	case n.Op.IsKeyAccess():
		p.itemContext(n, operand.Type)
	}
	return p.typed(n, unaryType(n.Op), arg)
}

func (p *polymorphic) ProcessTuple(n *query.Tuple, arg meta.MetaObject, entries []Typed) Typed {
	types := make([]meta.MetaObject, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return p.typed(n, p.ts.TupleType(types...), arg)
}

// ProcessEval is unused; VisitEval types the inner expression itself.
func (p *polymorphic) ProcessEval(n *query.Eval, _ meta.MetaObject, context, inner Typed) Typed {
	return p.typed(n, inner.Type, context.Context)
}

func (p *polymorphic) ProcessContextAccess(n *query.ContextAccess, arg meta.MetaObject) Typed {
	return p.typed(n, arg, arg)
}

func (p *polymorphic) ProcessInSet(n *query.InSet, arg meta.MetaObject, context Typed, set meta.MetaObject) Typed {
	if !p.ts.HasCommonInstances(context.Type, set) {
		p.sink.Errorf(n, "membership test with incompatible types %s and %s", context.Type.Name(), set.Name())
	}
	return p.typed(n, meta.Bool, arg)
}

func (p *polymorphic) ProcessMatches(n *query.Matches, arg meta.MetaObject, inner Typed) Typed {
	p.check(n.Inner, meta.String, inner.Type)
	return p.typed(n, meta.Bool, arg)
}

// typeTest types HasType and InstanceOf. When they test the current object
// the declared type becomes the context.
func (p *polymorphic) typeTest(n query.Node, tested query.Expression, arg meta.MetaObject, context Typed) Typed {
	p.itemContext(n, context.Type)
	declared := p.resolved(n)
	if !narrows(tested) || meta.IsInvalid(declared) {
		return p.typed(n, meta.Bool, arg)
	}
	return p.typed(n, meta.Bool, declared)
}

func (p *polymorphic) ProcessHasType(n *query.HasType, arg meta.MetaObject, context Typed) Typed {
	return p.typeTest(n, n.Context, arg, context)
}

func (p *polymorphic) ProcessInstanceOf(n *query.InstanceOf, arg meta.MetaObject, context Typed) Typed {
	return p.typeTest(n, n.Context, arg, context)
}

func (p *polymorphic) ProcessIsCurrent(n *query.IsCurrent, arg meta.MetaObject, context Typed) Typed {
	p.itemContext(n, context.Type)
	return p.typed(n, meta.Bool, arg)
}

func (p *polymorphic) ProcessRequestedHistoryContext(n *query.RequestedHistoryContext, arg meta.MetaObject) Typed {
	return p.typed(n, meta.Int, arg)
}

func (p *polymorphic) ProcessNone(n *query.None, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.ts.ItemType())
}

func (p *polymorphic) ProcessAllOf(n *query.AllOf, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.resolved(n))
}

func (p *polymorphic) ProcessAnyOf(n *query.AnyOf, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.resolved(n))
}

func (p *polymorphic) ProcessSetLiteral(n *query.SetLiteral, _ meta.MetaObject) meta.MetaObject {
	if len(n.Values) == 0 {
		return p.assign(n, meta.Null)
	}
	var element meta.MetaObject
	for _, v := range n.Values {
		t, ok := LiteralType(p.ts, v)
		if !ok {
			p.sink.Errorf(n, "set literal entry of unsupported type")
			return p.assign(n, meta.Invalid)
		}
		if element == nil {
			element = t
			continue
		}
		element = p.ts.Union(element, t)
	}
	if element == meta.Any {
		p.sink.Errorf(n, "set literal mixes incompatible types")
		return p.assign(n, meta.Invalid)
	}
	return p.assign(n, element)
}

func (p *polymorphic) ProcessSetParameter(n *query.SetParameter, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.resolved(n))
}

// ProcessFilter, ProcessMapTo and ProcessPartition are unused; the Visit
// methods above thread the element type into the nested expressions.
func (p *polymorphic) ProcessFilter(n *query.Filter, _ meta.MetaObject, _ meta.MetaObject, predicate Typed) meta.MetaObject {
	return p.assign(n, predicate.Context)
}

func (p *polymorphic) ProcessMapTo(n *query.MapTo, _ meta.MetaObject, _ meta.MetaObject, mapping Typed) meta.MetaObject {
	return p.assign(n, mapping.Type)
}

func (p *polymorphic) ProcessPartition(n *query.Partition, _ meta.MetaObject, _ meta.MetaObject, _ Typed, representative meta.MetaObject) meta.MetaObject {
	return p.assign(n, representative)
}

// ProcessCrossProduct builds the tuple type of the members. A single member
// does not form tuples.
func (p *polymorphic) ProcessCrossProduct(n *query.CrossProduct, _ meta.MetaObject, members []meta.MetaObject) meta.MetaObject {
	if len(members) == 1 {
		return p.assign(n, members[0])
	}
	return p.assign(n, p.ts.TupleType(members...))
}

func (p *polymorphic) ProcessUnion(n *query.Union, _ meta.MetaObject, left, right meta.MetaObject) meta.MetaObject {
	return p.assign(n, p.ts.Union(left, right))
}

func (p *polymorphic) ProcessIntersection(n *query.Intersection, _ meta.MetaObject, left, right meta.MetaObject) meta.MetaObject {
	if !p.ts.HasCommonInstances(left, right) {
		p.sink.Errorf(n, "intersection of incompatible types %s and %s", left.Name(), right.Name())
	}
	return p.assign(n, p.ts.Intersection(left, right))
}

func (p *polymorphic) ProcessSubstraction(n *query.Substraction, _ meta.MetaObject, left, right meta.MetaObject) meta.MetaObject {
	if !p.ts.HasCommonInstances(left, right) {
		p.sink.Errorf(n, "substraction of %s from %s cannot remove any element", right.Name(), left.Name())
	}
	return p.assign(n, left)
}

func (p *polymorphic) ProcessCount(n *query.Count, _ meta.MetaObject) meta.MetaObject {
	return p.assign(n, meta.Int)
}

func (p *polymorphic) ProcessSum(n *query.Sum, _ meta.MetaObject, expr Typed) meta.MetaObject {
	p.check(n.Expr, meta.Int, expr.Type)
	return p.assign(n, meta.Int)
}

func (p *polymorphic) ProcessMin(n *query.Min, _ meta.MetaObject, expr Typed) meta.MetaObject {
	return p.assign(n, p.ordered(n.Expr, expr.Type))
}

func (p *polymorphic) ProcessMax(n *query.Max, _ meta.MetaObject, expr Typed) meta.MetaObject {
	return p.assign(n, p.ordered(n.Expr, expr.Type))
}

// ordered requires a type whose values can be ordered against each other.
func (p *polymorphic) ordered(n query.Node, t meta.MetaObject) meta.MetaObject {
	switch t.Kind() {
	case meta.KindPrimitive, meta.KindItem, meta.KindTuple, meta.KindInvalid:
		return t
	default:
		p.sink.Errorf(n, "values of type %s cannot be ordered", t.Name())
		return meta.Invalid
	}
}

func (p *polymorphic) ProcessOrderSpec(*query.OrderSpec, meta.MetaObject, Typed) none { return none{} }

func (p *polymorphic) ProcessOrderTuple(*query.OrderTuple, meta.MetaObject, []none) none {
	return none{}
}
