package visit

import "github.com/roach88/kquery/internal/query"

// Processor combines the results of a node's children into the node's result.
// Every method receives the node, the traversal argument and the child results
// in source order.
type Processor[A, Q, E, S, F, O any] interface {
	ProcessParameterDeclaration(n *query.ParameterDeclaration, arg A) Q
	// ProcessRevisionQuery receives the zero O when the query has no order.
	ProcessRevisionQuery(n *query.RevisionQuery, arg A, decls []Q, search S, order O) Q
	ProcessHistoryQuery(n *query.HistoryQuery, arg A, decls []Q, search S) Q

	ProcessLiteral(n *query.Literal, arg A) E
	ProcessParameter(n *query.Parameter, arg A) E
	ProcessAttribute(n *query.Attribute, arg A, context E) E
	ProcessReference(n *query.Reference, arg A, context E) E
	ProcessFlex(n *query.Flex, arg A, context E) E
	ProcessGetEntry(n *query.GetEntry, arg A, context E) E
	ProcessBinary(n *query.BinaryOperation, arg A, left, right E) E
	ProcessUnary(n *query.UnaryOperation, arg A, operand E) E
	ProcessTuple(n *query.Tuple, arg A, entries []E) E
	ProcessEval(n *query.Eval, arg A, context, inner E) E
	ProcessContextAccess(n *query.ContextAccess, arg A) E
	ProcessInSet(n *query.InSet, arg A, context E, set S) E
	ProcessMatches(n *query.Matches, arg A, inner E) E
	ProcessHasType(n *query.HasType, arg A, context E) E
	ProcessInstanceOf(n *query.InstanceOf, arg A, context E) E
	ProcessIsCurrent(n *query.IsCurrent, arg A, context E) E
	ProcessRequestedHistoryContext(n *query.RequestedHistoryContext, arg A) E

	ProcessNone(n *query.None, arg A) S
	ProcessAllOf(n *query.AllOf, arg A) S
	ProcessAnyOf(n *query.AnyOf, arg A) S
	ProcessSetLiteral(n *query.SetLiteral, arg A) S
	ProcessSetParameter(n *query.SetParameter, arg A) S
	ProcessFilter(n *query.Filter, arg A, source S, predicate E) S
	ProcessMapTo(n *query.MapTo, arg A, source S, mapping E) S
	ProcessCrossProduct(n *query.CrossProduct, arg A, members []S) S
	ProcessUnion(n *query.Union, arg A, left, right S) S
	ProcessIntersection(n *query.Intersection, arg A, left, right S) S
	ProcessSubstraction(n *query.Substraction, arg A, left, right S) S
	ProcessPartition(n *query.Partition, arg A, source S, equivalence E, representative F) S

	ProcessCount(n *query.Count, arg A) F
	ProcessSum(n *query.Sum, arg A, expr E) F
	ProcessMin(n *query.Min, arg A, expr E) F
	ProcessMax(n *query.Max, arg A, expr E) F

	ProcessOrderSpec(n *query.OrderSpec, arg A, expr E) O
	ProcessOrderTuple(n *query.OrderTuple, arg A, specs []O) O
}

// Descending is a Visitor that visits every child of a node with the node's
// own argument and hands the child results to its Processor.
//
// Children are dispatched through Self. A pass that needs a different
// argument for some children embeds *Descending, overrides the Visit methods
// for those node kinds and points Self at itself; all other kinds keep the
// descending behavior.
type Descending[A, Q, E, S, F, O any] struct {
	P    Processor[A, Q, E, S, F, O]
	Self Visitor[A, Q, E, S, F, O]
}

// NewDescending returns a Descending over p dispatching children to itself.
func NewDescending[A, Q, E, S, F, O any](p Processor[A, Q, E, S, F, O]) *Descending[A, Q, E, S, F, O] {
	d := &Descending[A, Q, E, S, F, O]{P: p}
	d.Self = d
	return d
}

// Expr visits e through Self.
func (d *Descending[A, Q, E, S, F, O]) Expr(e query.Expression, arg A) E {
	return Expr[A, E](d.Self, e, arg)
}

// Set visits s through Self.
func (d *Descending[A, Q, E, S, F, O]) Set(s query.SetExpression, arg A) S {
	return Set[A, S](d.Self, s, arg)
}

// Function visits f through Self.
func (d *Descending[A, Q, E, S, F, O]) Function(f query.Function, arg A) F {
	return Function[A, F](d.Self, f, arg)
}

// Order visits o through Self.
func (d *Descending[A, Q, E, S, F, O]) Order(o query.Order, arg A) O {
	return Order[A, O](d.Self, o, arg)
}

// Query visits q through Self.
func (d *Descending[A, Q, E, S, F, O]) Query(q query.Query, arg A) Q {
	return Query[A, Q](d.Self, q, arg)
}

func (d *Descending[A, Q, E, S, F, O]) exprs(es []query.Expression, arg A) []E {
	out := make([]E, len(es))
	for i, e := range es {
		out[i] = d.Expr(e, arg)
	}
	return out
}

// Declarations processes parameter declarations in order.
func (d *Descending[A, Q, E, S, F, O]) Declarations(decls []*query.ParameterDeclaration, arg A) []Q {
	out := make([]Q, len(decls))
	for i, decl := range decls {
		out[i] = d.P.ProcessParameterDeclaration(decl, arg)
	}
	return out
}

func (d *Descending[A, Q, E, S, F, O]) VisitRevisionQuery(n *query.RevisionQuery, arg A) Q {
	decls := d.Declarations(n.Params, arg)
	search := d.Set(n.Search, arg)
	var order O
	if n.Order != nil {
		order = d.Order(n.Order, arg)
	}
	return d.P.ProcessRevisionQuery(n, arg, decls, search, order)
}

func (d *Descending[A, Q, E, S, F, O]) VisitHistoryQuery(n *query.HistoryQuery, arg A) Q {
	decls := d.Declarations(n.Params, arg)
	return d.P.ProcessHistoryQuery(n, arg, decls, d.Set(n.Search, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitLiteral(n *query.Literal, arg A) E {
	return d.P.ProcessLiteral(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitParameter(n *query.Parameter, arg A) E {
	return d.P.ProcessParameter(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitAttribute(n *query.Attribute, arg A) E {
	return d.P.ProcessAttribute(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitReference(n *query.Reference, arg A) E {
	return d.P.ProcessReference(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitFlex(n *query.Flex, arg A) E {
	return d.P.ProcessFlex(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitGetEntry(n *query.GetEntry, arg A) E {
	return d.P.ProcessGetEntry(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitBinary(n *query.BinaryOperation, arg A) E {
	left := d.Expr(n.Left, arg)
	right := d.Expr(n.Right, arg)
	return d.P.ProcessBinary(n, arg, left, right)
}

func (d *Descending[A, Q, E, S, F, O]) VisitUnary(n *query.UnaryOperation, arg A) E {
	return d.P.ProcessUnary(n, arg, d.Expr(n.Operand, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitTuple(n *query.Tuple, arg A) E {
	return d.P.ProcessTuple(n, arg, d.exprs(n.Entries, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitEval(n *query.Eval, arg A) E {
	context := d.Expr(n.Context, arg)
	inner := d.Expr(n.Inner, arg)
	return d.P.ProcessEval(n, arg, context, inner)
}

func (d *Descending[A, Q, E, S, F, O]) VisitContextAccess(n *query.ContextAccess, arg A) E {
	return d.P.ProcessContextAccess(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitInSet(n *query.InSet, arg A) E {
	context := d.Expr(n.Context, arg)
	set := d.Set(n.Set, arg)
	return d.P.ProcessInSet(n, arg, context, set)
}

func (d *Descending[A, Q, E, S, F, O]) VisitMatches(n *query.Matches, arg A) E {
	return d.P.ProcessMatches(n, arg, d.Expr(n.Inner, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitHasType(n *query.HasType, arg A) E {
	return d.P.ProcessHasType(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitInstanceOf(n *query.InstanceOf, arg A) E {
	return d.P.ProcessInstanceOf(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitIsCurrent(n *query.IsCurrent, arg A) E {
	return d.P.ProcessIsCurrent(n, arg, d.Expr(n.Context, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitRequestedHistoryContext(n *query.RequestedHistoryContext, arg A) E {
	return d.P.ProcessRequestedHistoryContext(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitNone(n *query.None, arg A) S {
	return d.P.ProcessNone(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitAllOf(n *query.AllOf, arg A) S {
	return d.P.ProcessAllOf(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitAnyOf(n *query.AnyOf, arg A) S {
	return d.P.ProcessAnyOf(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitSetLiteral(n *query.SetLiteral, arg A) S {
	return d.P.ProcessSetLiteral(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitSetParameter(n *query.SetParameter, arg A) S {
	return d.P.ProcessSetParameter(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitFilter(n *query.Filter, arg A) S {
	source := d.Set(n.Source, arg)
	predicate := d.Expr(n.Predicate, arg)
	return d.P.ProcessFilter(n, arg, source, predicate)
}

func (d *Descending[A, Q, E, S, F, O]) VisitMapTo(n *query.MapTo, arg A) S {
	source := d.Set(n.Source, arg)
	mapping := d.Expr(n.Mapping, arg)
	return d.P.ProcessMapTo(n, arg, source, mapping)
}

func (d *Descending[A, Q, E, S, F, O]) VisitCrossProduct(n *query.CrossProduct, arg A) S {
	members := make([]S, len(n.Members))
	for i, m := range n.Members {
		members[i] = d.Set(m, arg)
	}
	return d.P.ProcessCrossProduct(n, arg, members)
}

func (d *Descending[A, Q, E, S, F, O]) VisitUnion(n *query.Union, arg A) S {
	left := d.Set(n.Left, arg)
	right := d.Set(n.Right, arg)
	return d.P.ProcessUnion(n, arg, left, right)
}

func (d *Descending[A, Q, E, S, F, O]) VisitIntersection(n *query.Intersection, arg A) S {
	left := d.Set(n.Left, arg)
	right := d.Set(n.Right, arg)
	return d.P.ProcessIntersection(n, arg, left, right)
}

func (d *Descending[A, Q, E, S, F, O]) VisitSubstraction(n *query.Substraction, arg A) S {
	left := d.Set(n.Left, arg)
	right := d.Set(n.Right, arg)
	return d.P.ProcessSubstraction(n, arg, left, right)
}

func (d *Descending[A, Q, E, S, F, O]) VisitPartition(n *query.Partition, arg A) S {
	source := d.Set(n.Source, arg)
	equivalence := d.Expr(n.Equivalence, arg)
	representative := d.Function(n.Representative, arg)
	return d.P.ProcessPartition(n, arg, source, equivalence, representative)
}

func (d *Descending[A, Q, E, S, F, O]) VisitCount(n *query.Count, arg A) F {
	return d.P.ProcessCount(n, arg)
}

func (d *Descending[A, Q, E, S, F, O]) VisitSum(n *query.Sum, arg A) F {
	return d.P.ProcessSum(n, arg, d.Expr(n.Expr, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitMin(n *query.Min, arg A) F {
	return d.P.ProcessMin(n, arg, d.Expr(n.Expr, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitMax(n *query.Max, arg A) F {
	return d.P.ProcessMax(n, arg, d.Expr(n.Expr, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitOrderSpec(n *query.OrderSpec, arg A) O {
	return d.P.ProcessOrderSpec(n, arg, d.Expr(n.Expr, arg))
}

func (d *Descending[A, Q, E, S, F, O]) VisitOrderTuple(n *query.OrderTuple, arg A) O {
	specs := make([]O, len(n.Specs))
	for i, spec := range n.Specs {
		specs[i] = d.Order(spec, arg)
	}
	return d.P.ProcessOrderTuple(n, arg, specs)
}
