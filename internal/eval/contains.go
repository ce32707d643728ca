package eval

import (
	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
	"github.com/roach88/kquery/internal/visit"
)

// CheckSetContains decides whether the context value of its argument is an
// element of a set expression, without enumerating the set.
//
// AllOf and AnyOf resolve the candidate to check it exists at the requested
// revision. Sets that cannot be inverted (MapTo, Partition) fail with
// UNSUPPORTED.
type CheckSetContains struct {
	exprs *ObjectEvaluator
}

var _ visit.SetVisitor[Context, bool] = (*CheckSetContains)(nil)

// Contains reports whether ctx.Value is an element of set.
func (c *CheckSetContains) Contains(set query.SetExpression, ctx Context) (ok bool, err error) {
	defer catch(&err)
	return c.contains(set, ctx), nil
}

func (c *CheckSetContains) contains(set query.SetExpression, ctx Context) bool {
	return visit.Set[Context, bool](c, set, ctx)
}

// object resolves the candidate, or returns nil when it is not an existing
// object. Set elements are always current keys, so a key pinned to a revision
// is never a member.
func (c *CheckSetContains) object(n query.Node, ctx Context) *Object {
	k, ok := ctx.Value.(value.Key)
	if !ok || !k.IsCurrent() {
		return nil
	}
	if ctx.Resolver == nil {
		raise(CodeUnsupported, n, "no resolver for %s", k)
	}
	obj, err := ctx.Resolver.Resolve(k, ctx.resolvedRevision(k))
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		fail(err)
	}
	return obj
}

func (c *CheckSetContains) VisitNone(*query.None, Context) bool {
	return false
}

func (c *CheckSetContains) VisitAllOf(n *query.AllOf, ctx Context) bool {
	obj := c.object(n, ctx)
	return obj != nil && obj.Key.Type == n.TypeName
}

func (c *CheckSetContains) VisitAnyOf(n *query.AnyOf, ctx Context) bool {
	obj := c.object(n, ctx)
	return obj != nil && c.exprs.instanceOf(obj.Key.Type, n.TypeName)
}

func (c *CheckSetContains) VisitSetLiteral(n *query.SetLiteral, ctx Context) bool {
	return containsValue(n.Values, ctx.Value)
}

func (c *CheckSetContains) VisitSetParameter(n *query.SetParameter, ctx Context) bool {
	return containsValue(setParameter(n, ctx), ctx.Value)
}

func (c *CheckSetContains) VisitFilter(n *query.Filter, ctx Context) bool {
	return c.contains(n.Source, ctx) && c.exprs.boolean(n.Predicate, ctx)
}

func (c *CheckSetContains) VisitMapTo(n *query.MapTo, _ Context) bool {
	raise(CodeUnsupported, n, "membership in a mapped set")
	return false
}

func (c *CheckSetContains) VisitPartition(n *query.Partition, _ Context) bool {
	raise(CodeUnsupported, n, "membership in a partition")
	return false
}

func (c *CheckSetContains) VisitCrossProduct(n *query.CrossProduct, ctx Context) bool {
	if len(n.Members) == 1 {
		return c.contains(n.Members[0], ctx)
	}
	t, ok := ctx.Value.(value.Tuple)
	if !ok || len(t) != len(n.Members) {
		return false
	}
	for i, member := range n.Members {
		if !c.contains(member, ctx.With(t[i])) {
			return false
		}
	}
	return true
}

func (c *CheckSetContains) VisitUnion(n *query.Union, ctx Context) bool {
	return c.contains(n.Left, ctx) || c.contains(n.Right, ctx)
}

func (c *CheckSetContains) VisitIntersection(n *query.Intersection, ctx Context) bool {
	return c.contains(n.Left, ctx) && c.contains(n.Right, ctx)
}

func (c *CheckSetContains) VisitSubstraction(n *query.Substraction, ctx Context) bool {
	return c.contains(n.Left, ctx) && !c.contains(n.Right, ctx)
}

// setParameter returns the elements bound to a set parameter.
func setParameter(n *query.SetParameter, ctx Context) []value.Value {
	v, ok := ctx.Params[n.Name]
	if !ok {
		raise(CodeUnboundParameter, n, "set parameter %q is not bound", n.Name)
	}
	switch l := v.(type) {
	case value.List:
		return l
	case nil, value.Null:
		return nil
	default:
		raise(CodeTypeMismatch, n, "set parameter %q holds %s", n.Name, show(v))
	}
	return nil
}

func containsValue(values []value.Value, v value.Value) bool {
	for _, elem := range values {
		if value.Equal(elem, v) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err reports a missing object.
func IsNotFound(err error) bool {
	return IsError(err, CodeNotFound) || errors.Is(err, ErrNotFound)
}
