// Package eval interprets analyzed queries against live objects.
//
// The evaluators are stateless visitors: everything an evaluation depends on
// travels in the immutable Context argument. Pure handles the scalar
// operators; ObjectEvaluator adds the object-graph cases; CheckSetContains
// decides set membership of one candidate without enumerating the set.
// Simple bundles them behind plain function calls.
//
// Materializer is the enumerating counterpart of CheckSetContains, used to
// run whole queries over an Extent.
package eval

import (
	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/value"
)

// ErrNotFound is returned by a Resolver for keys without a version alive at
// the requested revision.
var ErrNotFound = errors.New("object not found")

// Object is one version of a stored object.
type Object struct {
	Key value.Key

	// Attributes holds the schema attribute values; absent means null.
	Attributes value.Record

	// Flex holds the attributes outside the schema.
	Flex value.Record

	// RevMin and RevMax bound the revisions the version is alive in,
	// both inclusive. RevMax is value.Current for the live version.
	RevMin int64
	RevMax int64

	// Committed is false for objects created in an open transaction; their
	// revision bounds read as value.Current.
	Committed bool
}

// AliveAt reports whether the version is visible at revision.
func (o *Object) AliveAt(revision int64) bool {
	if !o.Committed {
		return true
	}
	return o.RevMin <= revision && revision <= o.RevMax
}

// Resolver looks up object versions. Current keys resolve at the requested
// revision; other keys at their own.
type Resolver interface {
	Resolve(key value.Key, revision int64) (*Object, error)
}

// Extent enumerates the objects of one concrete type.
type Extent interface {
	// Instances returns the current keys of the objects whose type is exactly
	// typeName and that are alive at revision, ordered by identifier.
	Instances(typeName string, revision int64) ([]value.Key, error)
}

// Context is the argument every evaluator threads through the tree.
type Context struct {
	// Value is the value ContextAccess yields.
	Value value.Value

	// Revision is the revision the query runs at.
	Revision int64

	Params   map[string]value.Value
	Resolver Resolver
}

// With returns a copy of c whose context value is v.
func (c Context) With(v value.Value) Context {
	c.Value = v
	return c
}

// resolvedRevision is the revision a key is read at.
func (c Context) resolvedRevision(k value.Key) int64 {
	if k.IsCurrent() {
		return c.Revision
	}
	return k.Revision
}
