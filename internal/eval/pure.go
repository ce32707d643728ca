package eval

import (
	stderrors "errors"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
	"github.com/roach88/kquery/internal/visit"
)

// Pure evaluates the operators that need no object store: boolean logic,
// comparisons, tuples, regular expressions and context switching.
// Object-graph nodes fail with UNSUPPORTED.
//
// Operands are dispatched through Self, so an evaluator embedding Pure
// overrides single node kinds by pointing Self at itself.
type Pure struct {
	Self visit.ExprVisitor[Context, value.Value]
}

var _ visit.ExprVisitor[Context, value.Value] = (*Pure)(nil)

// NewPure returns a Pure dispatching to itself.
func NewPure() *Pure {
	p := &Pure{}
	p.Self = p
	return p
}

// Evaluate computes the value of e.
func (p *Pure) Evaluate(e query.Expression, ctx Context) (v value.Value, err error) {
	defer catch(&err)
	return p.eval(e, ctx), nil
}

func (p *Pure) eval(e query.Expression, ctx Context) value.Value {
	return visit.Expr(p.Self, e, ctx)
}

// boolean evaluates e and requires a boolean result.
func (p *Pure) boolean(e query.Expression, ctx Context) bool {
	switch v := p.eval(e, ctx).(type) {
	case value.Bool:
		return bool(v)
	case nil, value.Null:
		raise(CodeNullValue, e, "boolean operand is null")
	default:
		raise(CodeTypeMismatch, e, "expected bool, got %s", show(v))
	}
	return false
}

func (p *Pure) VisitLiteral(n *query.Literal, _ Context) value.Value {
	return n.Value
}

func (p *Pure) VisitParameter(n *query.Parameter, ctx Context) value.Value {
	v, ok := ctx.Params[n.Name]
	if !ok {
		raise(CodeUnboundParameter, n, "parameter %q is not bound", n.Name)
	}
	if v == nil {
		return value.Null{}
	}
	return v
}

func (p *Pure) VisitBinary(n *query.BinaryOperation, ctx Context) value.Value {
	switch n.Op {
	case query.OpAnd:
		return value.Bool(p.boolean(n.Left, ctx) && p.boolean(n.Right, ctx))
	case query.OpOr:
		return value.Bool(p.boolean(n.Left, ctx) || p.boolean(n.Right, ctx))
	}

	left := p.eval(n.Left, ctx)
	right := p.eval(n.Right, ctx)
	switch n.Op {
	case query.OpEq:
		return value.Bool(value.Equal(left, right))
	case query.OpEqCI:
		return value.Bool(value.EqualFold(p.str(n, left), p.str(n, right)))
	}

	c, err := value.Compare(left, right)
	switch {
	case stderrors.Is(err, value.ErrNull):
		raise(CodeNullValue, n, "%s of %s and %s", n.Op, show(left), show(right))
	case err != nil:
		raiseWrap(CodeIncomparable, n, err, n.Op.String())
	}
	switch n.Op {
	case query.OpLt:
		return value.Bool(c < 0)
	case query.OpLe:
		return value.Bool(c <= 0)
	case query.OpGt:
		return value.Bool(c > 0)
	case query.OpGe:
		return value.Bool(c >= 0)
	}
	raise(CodeUnsupported, n, "binary operator %s", n.Op)
	return nil
}

func (p *Pure) str(n query.Node, v value.Value) string {
	switch s := v.(type) {
	case value.String:
		return string(s)
	case nil, value.Null:
		raise(CodeNullValue, n, "string operand is null")
	default:
		raise(CodeTypeMismatch, n, "expected string, got %s", show(v))
	}
	return ""
}

func (p *Pure) VisitUnary(n *query.UnaryOperation, ctx Context) value.Value {
	switch n.Op {
	case query.OpNot:
		return value.Bool(!p.boolean(n.Operand, ctx))
	case query.OpIsNull:
		return value.Bool(value.IsNull(p.eval(n.Operand, ctx)))
	}
	raise(CodeUnsupported, n, "unary operator %s needs an object store", n.Op)
	return nil
}

func (p *Pure) VisitTuple(n *query.Tuple, ctx Context) value.Value {
	entries := make(value.Tuple, len(n.Entries))
	for i, e := range n.Entries {
		entries[i] = p.eval(e, ctx)
	}
	return entries
}

func (p *Pure) VisitGetEntry(n *query.GetEntry, ctx Context) value.Value {
	switch t := p.eval(n.Context, ctx).(type) {
	case value.Tuple:
		if n.Index < 0 || n.Index >= len(t) {
			raise(CodeTypeMismatch, n, "tuple %s has no entry %d", show(t), n.Index)
		}
		return t[n.Index]
	case nil, value.Null:
		raise(CodeNullContext, n, "entry %d of null", n.Index)
	default:
		raise(CodeTypeMismatch, n, "expected tuple, got %s", show(t))
	}
	return nil
}

func (p *Pure) VisitEval(n *query.Eval, ctx Context) value.Value {
	return p.eval(n.Inner, ctx.With(p.eval(n.Context, ctx)))
}

func (p *Pure) VisitContextAccess(_ *query.ContextAccess, ctx Context) value.Value {
	if ctx.Value == nil {
		return value.Null{}
	}
	return ctx.Value
}

func (p *Pure) VisitMatches(n *query.Matches, ctx Context) value.Value {
	s := p.str(n, p.eval(n.Inner, ctx))
	return value.Bool(n.Pattern.MatchString(s))
}

func (p *Pure) VisitRequestedHistoryContext(_ *query.RequestedHistoryContext, ctx Context) value.Value {
	return value.Int(ctx.Revision)
}

func (p *Pure) VisitAttribute(n *query.Attribute, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitReference(n *query.Reference, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitFlex(n *query.Flex, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitInSet(n *query.InSet, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitHasType(n *query.HasType, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitInstanceOf(n *query.InstanceOf, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) VisitIsCurrent(n *query.IsCurrent, _ Context) value.Value {
	return p.objectAccess(n)
}

func (p *Pure) objectAccess(n query.Node) value.Value {
	raise(CodeUnsupported, n, "object access needs an object store")
	return nil
}
