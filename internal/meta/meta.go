// Package meta models the type system queries are checked against.
//
// A MetaObject is a handle for one type. Item types (*Class) form a single
// inheritance tree rooted at the abstract Item class. Primitive and tuple
// types describe scalar values. Three sentinels complete the lattice:
//   - Null: the bottom type, a subtype of everything (the type of an empty set)
//   - Any: the top type
//   - Invalid: the placeholder written after an analysis error; it is
//     compatible with everything so one error does not cascade
//
// The TypeSystem interface is what the analysis passes consume. Schema is the
// in-memory implementation used by the CLI and tests.
package meta

import (
	"strings"
)

// Kind classifies a MetaObject.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindAny
	KindItem
	KindPrimitive
	KindTuple
	KindCollection
	KindAlternative
	KindFunction
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNull:
		return "null"
	case KindAny:
		return "any"
	case KindItem:
		return "item"
	case KindPrimitive:
		return "primitive"
	case KindTuple:
		return "tuple"
	case KindCollection:
		return "collection"
	case KindAlternative:
		return "alternative"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// MetaObject is a handle for a type.
// Two MetaObjects of the same schema denote the same type iff their names are equal.
type MetaObject interface {
	Name() string
	Kind() Kind
}

// TypeSystem resolves type names and answers subtype questions.
// Implementations must be safe for concurrent reads.
type TypeSystem interface {
	// Type resolves a type by name.
	Type(name string) (MetaObject, bool)

	// ItemType returns the universal item type every object is an instance of.
	ItemType() MetaObject

	// ConcreteSubtypes returns the instantiable subtypes of t, including t itself
	// when t is concrete. Non-item types are their own single concrete type.
	ConcreteSubtypes(t MetaObject) TypeSet

	// Union returns the most specific common supertype of a and b.
	Union(a, b MetaObject) MetaObject

	// Intersection returns the most general type whose instances are instances
	// of both a and b, or Null when there is none.
	Intersection(a, b MetaObject) MetaObject

	HasCommonInstances(a, b MetaObject) bool
	IsComparable(a, b MetaObject) bool
	IsAssignable(to, from MetaObject) bool
	IsSubtype(sub, super MetaObject) bool

	// Attribute looks up an attribute declared on owner or one of its supertypes.
	Attribute(owner MetaObject, name string) (*Attribute, bool)

	// TupleType returns the tuple type with the given entries.
	TupleType(entries ...MetaObject) MetaObject
}

// sentinel is the implementation of Null, Any and Invalid.
type sentinel struct {
	kind Kind
	name string
}

func (s *sentinel) Name() string { return s.name }
func (s *sentinel) Kind() Kind   { return s.kind }
func (s *sentinel) String() string {
	return s.name
}

var (
	// Null is the type of the empty set.
	Null MetaObject = &sentinel{kind: KindNull, name: "<null>"}

	// Any is the top type.
	Any MetaObject = &sentinel{kind: KindAny, name: "<any>"}

	// Invalid marks a type that could not be computed.
	Invalid MetaObject = &sentinel{kind: KindInvalid, name: "<invalid>"}
)

// Primitive is a scalar value type.
type Primitive struct {
	name string
}

// Primitive type names known to every schema.
const (
	StringName = "string"
	IntName    = "int"
	BoolName   = "bool"
)

var (
	String = &Primitive{name: StringName}
	Int    = &Primitive{name: IntName}
	Bool   = &Primitive{name: BoolName}
)

func (p *Primitive) Name() string   { return p.name }
func (p *Primitive) Kind() Kind     { return KindPrimitive }
func (p *Primitive) String() string { return p.name }

// Tuple is an ordered product type.
type Tuple struct {
	entries []MetaObject
	name    string
}

// NewTuple creates the tuple type of the given entries.
func NewTuple(entries ...MetaObject) *Tuple {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return &Tuple{
		entries: append([]MetaObject(nil), entries...),
		name:    "(" + strings.Join(names, ", ") + ")",
	}
}

func (t *Tuple) Name() string   { return t.name }
func (t *Tuple) Kind() Kind     { return KindTuple }
func (t *Tuple) String() string { return t.name }

// Entries returns the entry types in order.
func (t *Tuple) Entries() []MetaObject { return t.entries }

// Class is an item (table) type.
type Class struct {
	name       string
	super      *Class
	abstract   bool
	attributes []*Attribute
	subclasses []*Class
}

func (c *Class) Name() string   { return c.name }
func (c *Class) Kind() Kind     { return KindItem }
func (c *Class) String() string { return c.name }

// Super returns the direct super class, or nil for the root.
func (c *Class) Super() *Class { return c.super }

// Abstract reports whether the class cannot be instantiated.
func (c *Class) Abstract() bool { return c.abstract }

// Subclasses returns the direct subclasses in declaration order.
func (c *Class) Subclasses() []*Class { return c.subclasses }

// DeclaredAttributes returns the attributes declared on this class only.
func (c *Class) DeclaredAttributes() []*Attribute { return c.attributes }

// Attributes returns all attributes including inherited ones, root first.
func (c *Class) Attributes() []*Attribute {
	var chain []*Class
	for k := c; k != nil; k = k.super {
		chain = append(chain, k)
	}
	var attrs []*Attribute
	for i := len(chain) - 1; i >= 0; i-- {
		attrs = append(attrs, chain[i].attributes...)
	}
	return attrs
}

// lookup finds an attribute on c or its supertypes.
func (c *Class) lookup(name string) (*Attribute, bool) {
	for k := c; k != nil; k = k.super {
		for _, a := range k.attributes {
			if a.Name == name {
				return a, true
			}
		}
	}
	return nil, false
}

// isA reports whether c is other or a subclass of it.
func (c *Class) isA(other *Class) bool {
	for k := c; k != nil; k = k.super {
		if k == other {
			return true
		}
	}
	return false
}

// Attribute is a declared attribute of an item type.
type Attribute struct {
	Owner *Class
	Name  string
	Type  MetaObject

	// Reference marks foreign-key-like attributes whose values are object keys.
	Reference bool

	// Monomorphic marks attributes whose values are exactly of Type, never of a subtype.
	Monomorphic bool

	Mandatory bool
}

// QualifiedName returns "Owner.name".
func (a *Attribute) QualifiedName() string {
	if a.Owner == nil {
		return a.Name
	}
	return a.Owner.name + "." + a.Name
}

// InvalidAttribute is the placeholder bound when an attribute cannot be resolved.
var InvalidAttribute = &Attribute{Name: "<invalid>", Type: Invalid}

// IsItem reports whether t is an item type.
func IsItem(t MetaObject) bool {
	return t != nil && t.Kind() == KindItem
}

// IsPrimitive reports whether t is a primitive type.
func IsPrimitive(t MetaObject) bool {
	return t != nil && t.Kind() == KindPrimitive
}

// IsInvalid reports whether t is missing or the Invalid placeholder.
func IsInvalid(t MetaObject) bool {
	return t == nil || t.Kind() == KindInvalid
}

// IsAbstract reports whether t is an abstract item type.
func IsAbstract(t MetaObject) bool {
	c, ok := t.(*Class)
	return ok && c.abstract
}
