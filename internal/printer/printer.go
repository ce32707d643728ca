// Package printer renders query trees in a compact functional notation,
// e.g. filter(allOf(Person), ge(.Person.age, 18)).
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
	"github.com/roach88/kquery/internal/visit"
)

type printer struct{}

var kernel = visit.NewDescending[none, string, string, string, string, string](printer{})

// String renders any query node. A nil node renders as "<nil>"; nil children
// of a structurally invalid tree (see query.Validate) are not supported.
func String(n query.Node) string {
	var arg struct{}
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case query.Query:
		return kernel.Query(n, arg)
	case *query.ParameterDeclaration:
		return kernel.P.ProcessParameterDeclaration(n, arg)
	case query.Expression:
		return kernel.Expr(n, arg)
	case query.SetExpression:
		return kernel.Set(n, arg)
	case query.Function:
		return kernel.Function(n, arg)
	case query.Order:
		return kernel.Order(n, arg)
	default:
		return fmt.Sprintf("<%T>", n)
	}
}

type none = struct{}

func call(name string, args ...string) string {
	return name + "(" + strings.Join(args, ", ") + ")"
}

// access renders attribute-like reads; reads off the current object drop the
// context.
func access(n query.ContextExpression, context, path string) string {
	if query.IsContextAccess(n.ContextExpr()) {
		return "." + path
	}
	return context + "." + path
}

func (printer) ProcessParameterDeclaration(n *query.ParameterDeclaration, _ none) string {
	return n.TypeName + " $" + n.Name
}

func (printer) ProcessRevisionQuery(n *query.RevisionQuery, _ none, decls []string, search, order string) string {
	var b strings.Builder
	b.WriteString("revision")
	b.WriteString(call("", decls...))
	b.WriteString(" search ")
	b.WriteString(search)
	if n.Order != nil {
		b.WriteString(" order ")
		b.WriteString(order)
	}
	return b.String()
}

func (printer) ProcessHistoryQuery(n *query.HistoryQuery, _ none, decls []string, search string) string {
	var b strings.Builder
	b.WriteString("history")
	if n.BranchParam != "" || n.RevisionParam != "" {
		b.WriteString("[$" + n.BranchParam + ", $" + n.RevisionParam + "]")
	}
	b.WriteString(call("", decls...))
	b.WriteString(" search ")
	b.WriteString(search)
	return b.String()
}

func (printer) ProcessLiteral(n *query.Literal, _ none) string {
	return value.Format(n.Value)
}

func (printer) ProcessParameter(n *query.Parameter, _ none) string {
	return "$" + n.Name
}

func (printer) ProcessAttribute(n *query.Attribute, _ none, context string) string {
	return access(n, context, n.OwnerType+"."+n.Name)
}

func (printer) ProcessReference(n *query.Reference, _ none, context string) string {
	s := access(n, context, n.OwnerType+"."+n.Name)
	if n.Part != query.RefObject {
		s += "#" + n.Part.String()
	}
	return s
}

func (printer) ProcessFlex(n *query.Flex, _ none, context string) string {
	return access(n, context, "~"+n.Name+":"+n.TypeName)
}

func (printer) ProcessGetEntry(n *query.GetEntry, _ none, context string) string {
	return access(n, context, strconv.Itoa(n.Index))
}

func (printer) ProcessBinary(n *query.BinaryOperation, _ none, left, right string) string {
	return call(n.Op.String(), left, right)
}

func (printer) ProcessUnary(n *query.UnaryOperation, _ none, operand string) string {
	return call(n.Op.String(), operand)
}

func (printer) ProcessTuple(_ *query.Tuple, _ none, entries []string) string {
	return call("tuple", entries...)
}

func (printer) ProcessEval(_ *query.Eval, _ none, context, inner string) string {
	return call("eval", context, inner)
}

func (printer) ProcessContextAccess(*query.ContextAccess, none) string {
	return "ctx"
}

func (printer) ProcessInSet(_ *query.InSet, _ none, context, set string) string {
	return call("in", context, set)
}

func (printer) ProcessMatches(n *query.Matches, _ none, inner string) string {
	pattern := "<nil>"
	if n.Pattern != nil {
		pattern = strconv.Quote(n.Pattern.String())
	}
	return call("matches", inner, pattern)
}

func (printer) ProcessHasType(n *query.HasType, _ none, context string) string {
	return call("hasType", context, n.TypeName)
}

func (printer) ProcessInstanceOf(n *query.InstanceOf, _ none, context string) string {
	return call("instanceOf", context, n.TypeName)
}

func (printer) ProcessIsCurrent(_ *query.IsCurrent, _ none, context string) string {
	return call("isCurrent", context)
}

func (printer) ProcessRequestedHistoryContext(*query.RequestedHistoryContext, none) string {
	return "requestedRevision"
}

func (printer) ProcessNone(*query.None, none) string {
	return "none"
}

func (printer) ProcessAllOf(n *query.AllOf, _ none) string {
	return call("allOf", n.TypeName)
}

func (printer) ProcessAnyOf(n *query.AnyOf, _ none) string {
	return call("anyOf", n.TypeName)
}

func (printer) ProcessSetLiteral(n *query.SetLiteral, _ none) string {
	return value.Format(value.List(n.Values))
}

func (printer) ProcessSetParameter(n *query.SetParameter, _ none) string {
	return "$" + n.Name
}

func (printer) ProcessFilter(_ *query.Filter, _ none, source, predicate string) string {
	return call("filter", source, predicate)
}

func (printer) ProcessMapTo(_ *query.MapTo, _ none, source, mapping string) string {
	return call("map", source, mapping)
}

func (printer) ProcessCrossProduct(_ *query.CrossProduct, _ none, members []string) string {
	return call("cross", members...)
}

func (printer) ProcessUnion(_ *query.Union, _ none, left, right string) string {
	return call("union", left, right)
}

func (printer) ProcessIntersection(_ *query.Intersection, _ none, left, right string) string {
	return call("intersect", left, right)
}

func (printer) ProcessSubstraction(_ *query.Substraction, _ none, left, right string) string {
	return call("minus", left, right)
}

func (printer) ProcessPartition(_ *query.Partition, _ none, source, equivalence, representative string) string {
	return call("partition", source, equivalence, representative)
}

func (printer) ProcessCount(*query.Count, none) string {
	return "count()"
}

func (printer) ProcessSum(_ *query.Sum, _ none, expr string) string {
	return call("sum", expr)
}

func (printer) ProcessMin(_ *query.Min, _ none, expr string) string {
	return call("min", expr)
}

func (printer) ProcessMax(_ *query.Max, _ none, expr string) string {
	return call("max", expr)
}

func (printer) ProcessOrderSpec(n *query.OrderSpec, _ none, expr string) string {
	if n.Descending {
		return expr + " desc"
	}
	return expr + " asc"
}

func (printer) ProcessOrderTuple(_ *query.OrderTuple, _ none, specs []string) string {
	return strings.Join(specs, ", ")
}
