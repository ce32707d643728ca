// Package visit is the traversal kernel shared by every analysis pass and
// the evaluators.
//
// Each node family has a visitor interface parameterized on the traversal
// argument A and the family's result type, and a dispatch function that
// selects the per-kind method with an exhaustive type switch. Passes that
// produce one kind of result for every family instantiate all result types
// equally.
//
// Descending implements the common "visit children, then combine" shape on
// top of a Processor; see descending.go.
package visit

import (
	"fmt"

	"github.com/roach88/kquery/internal/query"
)

// ExprVisitor handles every Expression kind.
type ExprVisitor[A, E any] interface {
	VisitLiteral(n *query.Literal, arg A) E
	VisitParameter(n *query.Parameter, arg A) E
	VisitAttribute(n *query.Attribute, arg A) E
	VisitReference(n *query.Reference, arg A) E
	VisitFlex(n *query.Flex, arg A) E
	VisitGetEntry(n *query.GetEntry, arg A) E
	VisitBinary(n *query.BinaryOperation, arg A) E
	VisitUnary(n *query.UnaryOperation, arg A) E
	VisitTuple(n *query.Tuple, arg A) E
	VisitEval(n *query.Eval, arg A) E
	VisitContextAccess(n *query.ContextAccess, arg A) E
	VisitInSet(n *query.InSet, arg A) E
	VisitMatches(n *query.Matches, arg A) E
	VisitHasType(n *query.HasType, arg A) E
	VisitInstanceOf(n *query.InstanceOf, arg A) E
	VisitIsCurrent(n *query.IsCurrent, arg A) E
	VisitRequestedHistoryContext(n *query.RequestedHistoryContext, arg A) E
}

// SetVisitor handles every SetExpression kind.
type SetVisitor[A, S any] interface {
	VisitNone(n *query.None, arg A) S
	VisitAllOf(n *query.AllOf, arg A) S
	VisitAnyOf(n *query.AnyOf, arg A) S
	VisitSetLiteral(n *query.SetLiteral, arg A) S
	VisitSetParameter(n *query.SetParameter, arg A) S
	VisitFilter(n *query.Filter, arg A) S
	VisitMapTo(n *query.MapTo, arg A) S
	VisitCrossProduct(n *query.CrossProduct, arg A) S
	VisitUnion(n *query.Union, arg A) S
	VisitIntersection(n *query.Intersection, arg A) S
	VisitSubstraction(n *query.Substraction, arg A) S
	VisitPartition(n *query.Partition, arg A) S
}

// OrderVisitor handles both Order kinds.
type OrderVisitor[A, O any] interface {
	VisitOrderSpec(n *query.OrderSpec, arg A) O
	VisitOrderTuple(n *query.OrderTuple, arg A) O
}

// FunctionVisitor handles every aggregate Function kind.
type FunctionVisitor[A, F any] interface {
	VisitCount(n *query.Count, arg A) F
	VisitSum(n *query.Sum, arg A) F
	VisitMin(n *query.Min, arg A) F
	VisitMax(n *query.Max, arg A) F
}

// QueryVisitor handles both Query kinds.
type QueryVisitor[A, Q any] interface {
	VisitRevisionQuery(n *query.RevisionQuery, arg A) Q
	VisitHistoryQuery(n *query.HistoryQuery, arg A) Q
}

// Visitor bundles all five families. Q is the result type for queries and
// parameter declarations, E for expressions, S for sets, F for functions and
// O for orders.
type Visitor[A, Q, E, S, F, O any] interface {
	QueryVisitor[A, Q]
	ExprVisitor[A, E]
	SetVisitor[A, S]
	FunctionVisitor[A, F]
	OrderVisitor[A, O]
}

// Expr dispatches e to the matching method of v.
func Expr[A, E any](v ExprVisitor[A, E], e query.Expression, arg A) E {
	switch n := e.(type) {
	case *query.Literal:
		return v.VisitLiteral(n, arg)
	case *query.Parameter:
		return v.VisitParameter(n, arg)
	case *query.Attribute:
		return v.VisitAttribute(n, arg)
	case *query.Reference:
		return v.VisitReference(n, arg)
	case *query.Flex:
		return v.VisitFlex(n, arg)
	case *query.GetEntry:
		return v.VisitGetEntry(n, arg)
	case *query.BinaryOperation:
		return v.VisitBinary(n, arg)
	case *query.UnaryOperation:
		return v.VisitUnary(n, arg)
	case *query.Tuple:
		return v.VisitTuple(n, arg)
	case *query.Eval:
		return v.VisitEval(n, arg)
	case *query.ContextAccess:
		return v.VisitContextAccess(n, arg)
	case *query.InSet:
		return v.VisitInSet(n, arg)
	case *query.Matches:
		return v.VisitMatches(n, arg)
	case *query.HasType:
		return v.VisitHasType(n, arg)
	case *query.InstanceOf:
		return v.VisitInstanceOf(n, arg)
	case *query.IsCurrent:
		return v.VisitIsCurrent(n, arg)
	case *query.RequestedHistoryContext:
		return v.VisitRequestedHistoryContext(n, arg)
	default:
		panic(fmt.Sprintf("visit: unexpected expression %T", e))
	}
}

// Set dispatches s to the matching method of v.
func Set[A, S any](v SetVisitor[A, S], s query.SetExpression, arg A) S {
	switch n := s.(type) {
	case *query.None:
		return v.VisitNone(n, arg)
	case *query.AllOf:
		return v.VisitAllOf(n, arg)
	case *query.AnyOf:
		return v.VisitAnyOf(n, arg)
	case *query.SetLiteral:
		return v.VisitSetLiteral(n, arg)
	case *query.SetParameter:
		return v.VisitSetParameter(n, arg)
	case *query.Filter:
		return v.VisitFilter(n, arg)
	case *query.MapTo:
		return v.VisitMapTo(n, arg)
	case *query.CrossProduct:
		return v.VisitCrossProduct(n, arg)
	case *query.Union:
		return v.VisitUnion(n, arg)
	case *query.Intersection:
		return v.VisitIntersection(n, arg)
	case *query.Substraction:
		return v.VisitSubstraction(n, arg)
	case *query.Partition:
		return v.VisitPartition(n, arg)
	default:
		panic(fmt.Sprintf("visit: unexpected set expression %T", s))
	}
}

// Order dispatches o to the matching method of v.
func Order[A, O any](v OrderVisitor[A, O], o query.Order, arg A) O {
	switch n := o.(type) {
	case *query.OrderSpec:
		return v.VisitOrderSpec(n, arg)
	case *query.OrderTuple:
		return v.VisitOrderTuple(n, arg)
	default:
		panic(fmt.Sprintf("visit: unexpected order %T", o))
	}
}

// Function dispatches f to the matching method of v.
func Function[A, F any](v FunctionVisitor[A, F], f query.Function, arg A) F {
	switch n := f.(type) {
	case *query.Count:
		return v.VisitCount(n, arg)
	case *query.Sum:
		return v.VisitSum(n, arg)
	case *query.Min:
		return v.VisitMin(n, arg)
	case *query.Max:
		return v.VisitMax(n, arg)
	default:
		panic(fmt.Sprintf("visit: unexpected function %T", f))
	}
}

// Query dispatches q to the matching method of v.
func Query[A, Q any](v QueryVisitor[A, Q], q query.Query, arg A) Q {
	switch n := q.(type) {
	case *query.RevisionQuery:
		return v.VisitRevisionQuery(n, arg)
	case *query.HistoryQuery:
		return v.VisitHistoryQuery(n, arg)
	default:
		panic(fmt.Sprintf("visit: unexpected query %T", q))
	}
}
