// Package typing computes the polymorphic and concrete types of query trees.
//
// Polymorphic computes one static type per node. Concrete computes the set of
// concrete runtime types per node and must run after Polymorphic, whose
// annotations it reads. Both passes thread the type of the current object
// (ContextAccess) through the traversal: an expression yields its own type
// together with the context that holds wherever it evaluates to true, which
// is how InstanceOf and HasType narrow the context of the predicates to their
// right in an AND.
//
// Neither pass keeps per-query state outside the annotation tables, so one
// TypeSystem may serve any number of concurrent analyses of distinct trees.
package typing

import (
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

type none = struct{}

// LiteralType returns the type of a literal value. Keys are typed by their
// type name; ok is false for values that cannot appear in literals.
func LiteralType(ts meta.TypeSystem, v value.Value) (meta.MetaObject, bool) {
	switch v := v.(type) {
	case nil, value.Null:
		return meta.Null, true
	case value.String:
		return meta.String, true
	case value.Int:
		return meta.Int, true
	case value.Bool:
		return meta.Bool, true
	case value.Key:
		t, ok := ts.Type(v.Type)
		if !ok || !meta.IsItem(t) {
			return meta.Invalid, false
		}
		return t, true
	case value.Tuple:
		entries := make([]meta.MetaObject, len(v))
		for i, e := range v {
			t, ok := LiteralType(ts, e)
			if !ok {
				return meta.Invalid, false
			}
			entries[i] = t
		}
		return ts.TupleType(entries...), true
	default:
		return meta.Invalid, false
	}
}

// referencePartType returns the type of a reference access.
func referencePartType(attr *meta.Attribute, part query.ReferencePart) meta.MetaObject {
	switch part {
	case query.RefBranch, query.RefRevision:
		return meta.Int
	case query.RefName, query.RefType:
		return meta.String
	default:
		return attr.Type
	}
}

// unaryType returns the result type of a unary operator.
func unaryType(op query.UnaryOp) meta.MetaObject {
	switch op {
	case query.OpBranch, query.OpRevision, query.OpHistoryContext:
		return meta.Int
	case query.OpIdentifier, query.OpTypeName:
		return meta.String
	default:
		return meta.Bool
	}
}

// narrows reports whether a type test restricts the current object. Tests of
// any other value leave the context alone.
func narrows(context query.Expression) bool {
	return query.IsContextAccess(context)
}
