package eval

import (
	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// ObjectEvaluator extends Pure with the cases that read the object graph
// through the Context's Resolver.
type ObjectEvaluator struct {
	Pure

	ts   meta.TypeSystem
	sets *CheckSetContains
}

// NewObjectEvaluator returns an evaluator over objects typed by ts.
func NewObjectEvaluator(ts meta.TypeSystem) *ObjectEvaluator {
	o := &ObjectEvaluator{ts: ts}
	o.Self = o
	o.sets = &CheckSetContains{exprs: o}
	return o
}

// Sets returns the membership interpreter sharing this evaluator.
func (o *ObjectEvaluator) Sets() *CheckSetContains {
	return o.sets
}

// key evaluates the context of an object access.
func (o *ObjectEvaluator) key(n query.Node, context query.Expression, ctx Context) value.Key {
	switch k := o.eval(context, ctx).(type) {
	case value.Key:
		return k
	case nil, value.Null:
		raise(CodeNullContext, n, "access to a null object")
	default:
		raise(CodeTypeMismatch, n, "expected object, got %s", show(k))
	}
	return value.Key{}
}

// object resolves the context of an object access.
func (o *ObjectEvaluator) object(n query.Node, context query.Expression, ctx Context) *Object {
	return o.resolve(n, o.key(n, context, ctx), ctx)
}

func (o *ObjectEvaluator) resolve(n query.Node, k value.Key, ctx Context) *Object {
	if ctx.Resolver == nil {
		raise(CodeUnsupported, n, "no resolver for %s", k)
	}
	obj, err := ctx.Resolver.Resolve(k, ctx.resolvedRevision(k))
	switch {
	case errors.Is(err, ErrNotFound):
		raise(CodeNotFound, n, "%s does not exist at revision %d", k, ctx.resolvedRevision(k))
	case err != nil:
		fail(errors.Wrapf(err, "resolve %s", k))
	}
	return obj
}

// read returns attribute name of obj, with the revision bounds of
// uncommitted objects reading as current.
func read(obj *Object, name string) value.Value {
	switch name {
	case meta.AttrRevMin:
		if !obj.Committed {
			return value.Int(value.Current)
		}
		return value.Int(obj.RevMin)
	case meta.AttrRevMax:
		if !obj.Committed {
			return value.Int(value.Current)
		}
		return value.Int(obj.RevMax)
	}
	if v, ok := obj.Attributes[name]; ok && v != nil {
		return v
	}
	return value.Null{}
}

func (o *ObjectEvaluator) VisitAttribute(n *query.Attribute, ctx Context) value.Value {
	return read(o.object(n, n.Context, ctx), n.Name)
}

func (o *ObjectEvaluator) VisitReference(n *query.Reference, ctx Context) value.Value {
	target := read(o.object(n, n.Context, ctx), n.Name)
	k, ok := target.(value.Key)
	if !ok {
		if !value.IsNull(target) {
			raise(CodeTypeMismatch, n, "reference %s holds %s", n.Name, show(target))
		}
		return value.Null{}
	}
	switch n.Part {
	case query.RefBranch:
		return value.Int(k.Branch)
	case query.RefRevision:
		return value.Int(ctx.resolvedRevision(k))
	case query.RefName:
		return value.String(k.ID)
	case query.RefType:
		return value.String(k.Type)
	}
	return k
}

func (o *ObjectEvaluator) VisitFlex(n *query.Flex, ctx Context) value.Value {
	obj := o.object(n, n.Context, ctx)
	if v, ok := obj.Flex[n.Name]; ok && v != nil {
		return v
	}
	return value.Null{}
}

func (o *ObjectEvaluator) VisitInSet(n *query.InSet, ctx Context) value.Value {
	return value.Bool(o.sets.contains(n.Set, ctx.With(o.eval(n.Context, ctx))))
}

func (o *ObjectEvaluator) VisitHasType(n *query.HasType, ctx Context) value.Value {
	switch k := o.eval(n.Context, ctx).(type) {
	case value.Key:
		return value.Bool(k.Type == n.TypeName)
	case nil, value.Null:
		return value.Bool(false)
	default:
		raise(CodeTypeMismatch, n, "type test on %s", show(k))
	}
	return nil
}

func (o *ObjectEvaluator) VisitInstanceOf(n *query.InstanceOf, ctx Context) value.Value {
	switch k := o.eval(n.Context, ctx).(type) {
	case value.Key:
		return value.Bool(o.instanceOf(k.Type, n.TypeName))
	case nil, value.Null:
		return value.Bool(false)
	default:
		raise(CodeTypeMismatch, n, "type test on %s", show(k))
	}
	return nil
}

func (o *ObjectEvaluator) instanceOf(typeName, super string) bool {
	sub, ok := o.ts.Type(typeName)
	if !ok {
		return false
	}
	t, ok := o.ts.Type(super)
	return ok && o.ts.IsSubtype(sub, t)
}

func (o *ObjectEvaluator) VisitIsCurrent(n *query.IsCurrent, ctx Context) value.Value {
	return value.Bool(o.key(n, n.Context, ctx).IsCurrent())
}

func (o *ObjectEvaluator) VisitUnary(n *query.UnaryOperation, ctx Context) value.Value {
	if !n.Op.IsKeyAccess() {
		return o.Pure.VisitUnary(n, ctx)
	}
	k := o.key(n, n.Operand, ctx)
	switch n.Op {
	case query.OpBranch:
		return value.Int(k.Branch)
	case query.OpRevision:
		return value.Int(ctx.resolvedRevision(k))
	case query.OpHistoryContext:
		return value.Int(k.Revision)
	case query.OpIdentifier:
		return value.String(k.ID)
	case query.OpTypeName:
		return value.String(k.Type)
	}
	raise(CodeUnsupported, n, "unary operator %s", n.Op)
	return nil
}
