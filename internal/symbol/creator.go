package symbol

import (
	"errors"
	"fmt"

	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/printer"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/visit"
)

var (
	// ErrCreatorReused is returned by a second Run of the same Creator.
	ErrCreatorReused = errors.New("symbol creator already ran")

	// ErrUnsupported is returned for set operations that have no symbol
	// representation. Intersection and Substraction must be rewritten before
	// symbols are created.
	ErrUnsupported = errors.New("unsupported set operation")
)

type kernel = visit.Descending[Symbol, Symbol, Symbol, Symbol, Symbol, Symbol]

// Creator assigns symbols to an analyzed query.
//
// A Creator carries the parameter symbols of one compilation and must be
// discarded after its Run. It is not safe for concurrent use.
type Creator struct {
	*kernel

	ts             meta.TypeSystem
	factory        Factory
	requireSymbols bool

	ann    *query.Annotations
	sink   diag.Sink
	table  *Table
	params map[string]Symbol
	used   bool
}

// abort carries a fatal error out of the traversal.
type abort struct{ err error }

// NewCreator returns a Creator for one compilation. With requireSymbols
// unset, accesses through an ambiguous context silently get no symbol.
func NewCreator(ts meta.TypeSystem, factory Factory, requireSymbols bool) *Creator {
	c := &Creator{ts: ts, factory: factory, requireSymbols: requireSymbols}
	c.kernel = visit.NewDescending[Symbol, Symbol, Symbol, Symbol, Symbol, Symbol](c)
	c.Self = c
	return c
}

// Run creates the symbols of q, which must have been typed by the concrete
// type computation. Problems are reported to sink; the returned error is
// non-nil only for ErrCreatorReused and ErrUnsupported.
func (c *Creator) Run(q query.Query, ann *query.Annotations, sink diag.Sink) (table *Table, err error) {
	if c.used {
		return nil, ErrCreatorReused
	}
	c.used = true
	c.ann, c.sink = ann, sink
	c.table = NewTable()
	c.params = make(map[string]Symbol)

	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			table, err = c.table, a.err
		}
	}()

	c.Query(q, nil)
	return c.table, nil
}

func (c *Creator) assign(n query.Node, s Symbol) Symbol {
	if s == nil {
		return nil
	}
	c.table.Set(n, s)
	stored, _ := c.table.Get(n)
	return stored
}

func (c *Creator) polymorphic(n query.Node) meta.MetaObject {
	if t, ok := c.ann.Polymorphic.Get(n); ok && t != nil {
		return t
	}
	return meta.Invalid
}

func (c *Creator) fail(n query.Node, err error) Symbol {
	c.sink.Errorf(n, "%v", err)
	return c.assign(n, c.factory.Error(n, err.Error()))
}

func (c *Creator) unsupported(n query.Node, operation string) {
	panic(abort{err: fmt.Errorf("%w: %s at %s", ErrUnsupported, operation, printer.String(n))})
}

// tableOf resolves the storage of the object a context expression denotes. It
// needs exactly one concrete type for the context.
func (c *Creator) tableOf(n query.Node, name string, contextExpr query.Expression, context Symbol) TableSymbol {
	if context == nil {
		return nil
	}
	types, _ := c.ann.Concrete.Get(contextExpr)
	concrete, ok := types.Single()
	if !ok {
		if c.requireSymbols {
			if types.Len() == 0 {
				c.sink.Errorf(n, "access to %s through a context without concrete type", name)
			} else {
				c.sink.Errorf(n, "ambiguous context for access to %s: %s", name, types)
			}
		}
		return nil
	}
	item, ok := context.(ItemSymbol)
	if !ok {
		c.fail(n, fmt.Errorf("context of access to %s is not an object", name))
		return nil
	}
	table, err := item.Dereference(concrete)
	if err != nil {
		c.fail(n, err)
		return nil
	}
	return table
}

// VisitRevisionQuery creates the order symbols with the search elements as
// current object.
func (c *Creator) VisitRevisionQuery(n *query.RevisionQuery, arg Symbol) Symbol {
	c.Declarations(n.Params, arg)
	search := c.Set(n.Search, arg)
	if n.Order != nil {
		c.Order(n.Order, search)
	}
	return c.assign(n, search)
}

// VisitHistoryQuery binds the implicit branch and revision parameters.
func (c *Creator) VisitHistoryQuery(n *query.HistoryQuery, arg Symbol) Symbol {
	for _, name := range []string{n.BranchParam, n.RevisionParam} {
		if name != "" {
			c.params[name] = c.factory.Parameter(&query.ParameterDeclaration{Name: name, TypeName: meta.IntName}, meta.Int)
		}
	}
	return c.kernel.VisitHistoryQuery(n, arg)
}

func (c *Creator) VisitEval(n *query.Eval, arg Symbol) Symbol {
	context := c.Expr(n.Context, arg)
	return c.assign(n, c.Expr(n.Inner, context))
}

func (c *Creator) VisitFilter(n *query.Filter, arg Symbol) Symbol {
	source := c.Set(n.Source, arg)
	c.Expr(n.Predicate, source)
	return c.assign(n, source)
}

func (c *Creator) VisitMapTo(n *query.MapTo, arg Symbol) Symbol {
	source := c.Set(n.Source, arg)
	return c.assign(n, c.Expr(n.Mapping, source))
}

func (c *Creator) VisitPartition(n *query.Partition, arg Symbol) Symbol {
	source := c.Set(n.Source, arg)
	c.Expr(n.Equivalence, source)
	c.Function(n.Representative, source)
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

// VisitIntersection and VisitSubstraction abort before visiting their
// operands.
func (c *Creator) VisitIntersection(n *query.Intersection, _ Symbol) Symbol {
	c.unsupported(n, "intersection")
	return nil
}

func (c *Creator) VisitSubstraction(n *query.Substraction, _ Symbol) Symbol {
	c.unsupported(n, "substraction")
	return nil
}

func (c *Creator) ProcessParameterDeclaration(n *query.ParameterDeclaration, _ Symbol) Symbol {
	t, ok := c.ann.Resolved.Get(n)
	if !ok || t == nil {
		t = meta.Invalid
	}
	s := c.factory.Parameter(n, t)
	if _, declared := c.params[n.Name]; !declared {
		c.params[n.Name] = s
	}
	return c.assign(n, s)
}

func (c *Creator) ProcessRevisionQuery(n *query.RevisionQuery, _ Symbol, _ []Symbol, search, _ Symbol) Symbol {
	return c.assign(n, search)
}

func (c *Creator) ProcessHistoryQuery(n *query.HistoryQuery, _ Symbol, _ []Symbol, search Symbol) Symbol {
	return c.assign(n, search)
}

func (c *Creator) ProcessLiteral(n *query.Literal, _ Symbol) Symbol {
	return c.assign(n, c.factory.Literal(n, c.polymorphic(n)))
}

func (c *Creator) ProcessParameter(n *query.Parameter, _ Symbol) Symbol {
	return c.assign(n, c.params[n.Name])
}

func (c *Creator) ProcessAttribute(n *query.Attribute, _ Symbol, context Symbol) Symbol {
	return c.attribute(n, n.Context, context)
}

func (c *Creator) ProcessReference(n *query.Reference, _ Symbol, context Symbol) Symbol {
	return c.attribute(n, n.Context, context)
}

func (c *Creator) attribute(n query.Node, contextExpr query.Expression, context Symbol) Symbol {
	attr, ok := c.ann.Attributes.Get(n)
	if !ok || attr == meta.InvalidAttribute {
		return nil
	}
	table := c.tableOf(n, attr.QualifiedName(), contextExpr, context)
	if table == nil {
		return nil
	}
	s, err := table.AttributeSymbol(n, attr)
	if err != nil {
		return c.fail(n, err)
	}
	return c.assign(n, s)
}

func (c *Creator) ProcessFlex(n *query.Flex, _ Symbol, context Symbol) Symbol {
	t, ok := c.ann.Resolved.Get(n)
	if !ok || meta.IsInvalid(t) {
		return nil
	}
	table := c.tableOf(n, "~"+n.Name, n.Context, context)
	if table == nil {
		return nil
	}
	s, err := table.FlexSymbol(n, c.ts, t, n.Name)
	if err != nil {
		return c.fail(n, err)
	}
	return c.assign(n, s)
}

func (c *Creator) ProcessGetEntry(n *query.GetEntry, _ Symbol, context Symbol) Symbol {
	tuple, ok := context.(TupleSymbol)
	if !ok {
		return nil
	}
	s, err := tuple.Entry(n.Index)
	if err != nil {
		return c.fail(n, err)
	}
	return c.assign(n, s)
}

func (c *Creator) ProcessBinary(*query.BinaryOperation, Symbol, Symbol, Symbol) Symbol { return nil }
func (c *Creator) ProcessUnary(*query.UnaryOperation, Symbol, Symbol) Symbol          { return nil }

// ProcessTuple builds a tuple symbol when every entry has a symbol.
func (c *Creator) ProcessTuple(n *query.Tuple, _ Symbol, entries []Symbol) Symbol {
	for _, e := range entries {
		if e == nil {
			return nil
		}
	}
	return c.assign(n, c.factory.Tuple(n, entries))
}

func (c *Creator) ProcessEval(n *query.Eval, _ Symbol, _, inner Symbol) Symbol {
	return c.assign(n, inner)
}

func (c *Creator) ProcessContextAccess(n *query.ContextAccess, arg Symbol) Symbol {
	return c.assign(n, arg)
}

func (c *Creator) ProcessInSet(*query.InSet, Symbol, Symbol, Symbol) Symbol         { return nil }
func (c *Creator) ProcessMatches(*query.Matches, Symbol, Symbol) Symbol             { return nil }
func (c *Creator) ProcessHasType(*query.HasType, Symbol, Symbol) Symbol             { return nil }
func (c *Creator) ProcessInstanceOf(*query.InstanceOf, Symbol, Symbol) Symbol       { return nil }
func (c *Creator) ProcessIsCurrent(*query.IsCurrent, Symbol, Symbol) Symbol         { return nil }
func (c *Creator) ProcessRequestedHistoryContext(*query.RequestedHistoryContext, Symbol) Symbol {
	return nil
}

func (c *Creator) ProcessNone(n *query.None, _ Symbol) Symbol {
	return c.assign(n, c.factory.Null(n))
}

func (c *Creator) ProcessAllOf(n *query.AllOf, _ Symbol) Symbol {
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

func (c *Creator) ProcessAnyOf(n *query.AnyOf, _ Symbol) Symbol {
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

func (c *Creator) ProcessSetLiteral(n *query.SetLiteral, _ Symbol) Symbol {
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

func (c *Creator) ProcessSetParameter(n *query.SetParameter, _ Symbol) Symbol {
	return c.assign(n, c.params[n.Name])
}

// ProcessFilter, ProcessMapTo and ProcessPartition are unused; the Visit
// methods above pass the source symbol to the nested expressions.
func (c *Creator) ProcessFilter(n *query.Filter, _ Symbol, source, _ Symbol) Symbol {
	return c.assign(n, source)
}

func (c *Creator) ProcessMapTo(n *query.MapTo, _ Symbol, _, mapping Symbol) Symbol {
	return c.assign(n, mapping)
}

func (c *Creator) ProcessPartition(n *query.Partition, _ Symbol, _, _, _ Symbol) Symbol {
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

// ProcessCrossProduct builds the tuple of the member symbols. A single member
// stands for itself.
func (c *Creator) ProcessCrossProduct(n *query.CrossProduct, _ Symbol, members []Symbol) Symbol {
	for _, m := range members {
		if m == nil {
			return nil
		}
	}
	if len(members) == 1 {
		return c.assign(n, members[0])
	}
	return c.assign(n, c.factory.Tuple(n, members))
}

func (c *Creator) ProcessUnion(n *query.Union, _ Symbol, _, _ Symbol) Symbol {
	return c.assign(n, c.factory.Table(n, c.polymorphic(n)))
}

func (c *Creator) ProcessIntersection(*query.Intersection, Symbol, Symbol, Symbol) Symbol { return nil }
func (c *Creator) ProcessSubstraction(*query.Substraction, Symbol, Symbol, Symbol) Symbol { return nil }

func (c *Creator) ProcessCount(*query.Count, Symbol) Symbol     { return nil }
func (c *Creator) ProcessSum(*query.Sum, Symbol, Symbol) Symbol { return nil }
func (c *Creator) ProcessMin(*query.Min, Symbol, Symbol) Symbol { return nil }
func (c *Creator) ProcessMax(*query.Max, Symbol, Symbol) Symbol { return nil }

func (c *Creator) ProcessOrderSpec(*query.OrderSpec, Symbol, Symbol) Symbol     { return nil }
func (c *Creator) ProcessOrderTuple(*query.OrderTuple, Symbol, []Symbol) Symbol { return nil }
