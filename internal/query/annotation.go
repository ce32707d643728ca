package query

import (
	"github.com/roach88/kquery/internal/meta"
)

// Annotation is a write-once side table from nodes to values of type T.
//
// The first Set for a node wins; later writes for the same node are ignored,
// so re-running a pass over an annotated tree cannot change its results.
// The zero value is ready to use. An Annotation is not safe for concurrent
// writes; a fully written table may be read concurrently.
type Annotation[T any] struct {
	m map[Node]T
}

// Set records v for n unless n is already annotated.
// It reports whether the value was stored.
func (a *Annotation[T]) Set(n Node, v T) bool {
	if a.m == nil {
		a.m = make(map[Node]T)
	}
	if _, ok := a.m[n]; ok {
		return false
	}
	a.m[n] = v
	return true
}

// Get returns the annotation of n.
func (a *Annotation[T]) Get(n Node) (T, bool) {
	v, ok := a.m[n]
	return v, ok
}

// Has reports whether n is annotated.
func (a *Annotation[T]) Has(n Node) bool {
	_, ok := a.Get(n)
	return ok
}

// Len returns the number of annotated nodes.
func (a *Annotation[T]) Len() int {
	return len(a.m)
}

// Each calls fn for every annotated node in unspecified order.
func (a *Annotation[T]) Each(fn func(Node, T)) {
	for n, v := range a.m {
		fn(n, v)
	}
}

// Annotations holds the results of the analysis passes for one query tree.
//
// Each table is written by exactly one pass:
//   - Attributes, Resolved: the type binder
//   - Polymorphic: polymorphic type computation
//   - Concrete: concrete type computation
type Annotations struct {
	// Attributes maps Attribute and Reference nodes to their resolved attribute.
	Attributes Annotation[*meta.Attribute]

	// Resolved maps nodes that name a type (AllOf, AnyOf, HasType, InstanceOf,
	// Flex, parameter declarations and references) to the resolved type.
	Resolved Annotation[meta.MetaObject]

	Polymorphic Annotation[meta.MetaObject]
	Concrete    Annotation[meta.TypeSet]
}

// NewAnnotations creates empty annotation tables.
func NewAnnotations() *Annotations {
	return &Annotations{}
}
