package meta

import (
	"fmt"
)

// ItemName is the name of the root item type of every schema.
const ItemName = "Item"

// System attributes declared on the root item type.
const (
	AttrRevMin = "revMin"
	AttrRevMax = "revMax"
)

// Schema is an in-memory TypeSystem.
//
// A Schema is built once (NewSchema, AddClass, AddAttribute) and is read-only
// afterwards; the read methods are safe for concurrent use.
type Schema struct {
	types   map[string]MetaObject
	classes []*Class
	item    *Class
}

var _ TypeSystem = (*Schema)(nil)

// NewSchema creates a schema containing the primitive types and the root
// abstract Item class with its system attributes.
func NewSchema() *Schema {
	s := &Schema{types: make(map[string]MetaObject)}
	for _, p := range []*Primitive{String, Int, Bool} {
		s.types[p.name] = p
	}
	s.item = &Class{name: ItemName, abstract: true}
	s.types[ItemName] = s.item
	s.classes = append(s.classes, s.item)
	s.item.attributes = []*Attribute{
		{Owner: s.item, Name: AttrRevMin, Type: Int, Mandatory: true, Monomorphic: true},
		{Owner: s.item, Name: AttrRevMax, Type: Int, Mandatory: true, Monomorphic: true},
	}
	return s
}

// AddClass declares a new item type. An empty super defaults to Item.
func (s *Schema) AddClass(name, super string, abstract bool) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("class name is empty")
	}
	if _, exists := s.types[name]; exists {
		return nil, fmt.Errorf("type %q already declared", name)
	}
	if super == "" {
		super = ItemName
	}
	parent, ok := s.types[super].(*Class)
	if !ok {
		return nil, fmt.Errorf("class %q: unknown super class %q", name, super)
	}

	c := &Class{name: name, super: parent, abstract: abstract}
	parent.subclasses = append(parent.subclasses, c)
	s.types[name] = c
	s.classes = append(s.classes, c)
	return c, nil
}

// AddAttribute declares an attribute on owner.
// Reference attributes must have an item type; plain ones must not.
func (s *Schema) AddAttribute(owner *Class, attr Attribute) (*Attribute, error) {
	if owner == nil {
		return nil, fmt.Errorf("attribute %q: nil owner", attr.Name)
	}
	if _, exists := owner.lookup(attr.Name); exists {
		return nil, fmt.Errorf("attribute %s.%s already declared", owner.name, attr.Name)
	}
	if attr.Type == nil {
		return nil, fmt.Errorf("attribute %s.%s: missing type", owner.name, attr.Name)
	}
	if attr.Reference != IsItem(attr.Type) {
		if attr.Reference {
			return nil, fmt.Errorf("attribute %s.%s: reference must target an item type, got %s", owner.name, attr.Name, attr.Type.Name())
		}
		return nil, fmt.Errorf("attribute %s.%s: item-typed attribute must be declared as reference", owner.name, attr.Name)
	}
	a := attr
	a.Owner = owner
	owner.attributes = append(owner.attributes, &a)
	return &a, nil
}

// Classes returns all item types in declaration order, Item first.
func (s *Schema) Classes() []*Class {
	return s.classes
}

// Class resolves an item type by name.
func (s *Schema) Class(name string) (*Class, bool) {
	c, ok := s.types[name].(*Class)
	return c, ok
}

func (s *Schema) Type(name string) (MetaObject, bool) {
	t, ok := s.types[name]
	return t, ok
}

func (s *Schema) ItemType() MetaObject {
	return s.item
}

func (s *Schema) ConcreteSubtypes(t MetaObject) TypeSet {
	switch t := t.(type) {
	case *Class:
		out := NewTypeSet()
		collectConcrete(t, &out)
		return out
	case *sentinel:
		if t == Any {
			out := NewTypeSet()
			collectConcrete(s.item, &out)
			return out
		}
		return NewTypeSet()
	case nil:
		return NewTypeSet()
	default:
		return NewTypeSet(t)
	}
}

func collectConcrete(c *Class, out *TypeSet) {
	if !c.abstract {
		out.m[c.name] = c
	}
	for _, sub := range c.subclasses {
		collectConcrete(sub, out)
	}
}

func (s *Schema) IsSubtype(sub, super MetaObject) bool {
	if IsInvalid(sub) || IsInvalid(super) {
		return true
	}
	if super == Any || sub == Null {
		return true
	}
	if sub == Any || super == Null {
		return false
	}

	switch a := sub.(type) {
	case *Class:
		b, ok := super.(*Class)
		return ok && a.isA(b)
	case *Primitive:
		b, ok := super.(*Primitive)
		return ok && a.name == b.name
	case *Tuple:
		b, ok := super.(*Tuple)
		if !ok || len(a.entries) != len(b.entries) {
			return false
		}
		for i := range a.entries {
			if !s.IsSubtype(a.entries[i], b.entries[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (s *Schema) IsAssignable(to, from MetaObject) bool {
	return s.IsSubtype(from, to)
}

func (s *Schema) Union(a, b MetaObject) MetaObject {
	if IsInvalid(a) || IsInvalid(b) {
		return Invalid
	}
	if s.IsSubtype(a, b) {
		return b
	}
	if s.IsSubtype(b, a) {
		return a
	}

	switch x := a.(type) {
	case *Class:
		if y, ok := b.(*Class); ok {
			for k := x; k != nil; k = k.super {
				if y.isA(k) {
					return k
				}
			}
			return s.item
		}
	case *Tuple:
		if y, ok := b.(*Tuple); ok && len(x.entries) == len(y.entries) {
			entries := make([]MetaObject, len(x.entries))
			for i := range x.entries {
				entries[i] = s.Union(x.entries[i], y.entries[i])
			}
			return NewTuple(entries...)
		}
	}
	return Any
}

func (s *Schema) Intersection(a, b MetaObject) MetaObject {
	if IsInvalid(a) || IsInvalid(b) {
		return Invalid
	}
	if s.IsSubtype(a, b) {
		return a
	}
	if s.IsSubtype(b, a) {
		return b
	}

	x, ok1 := a.(*Tuple)
	y, ok2 := b.(*Tuple)
	if ok1 && ok2 && len(x.entries) == len(y.entries) {
		entries := make([]MetaObject, len(x.entries))
		for i := range x.entries {
			entries[i] = s.Intersection(x.entries[i], y.entries[i])
			if entries[i] == Null {
				return Null
			}
		}
		return NewTuple(entries...)
	}
	return Null
}

func (s *Schema) HasCommonInstances(a, b MetaObject) bool {
	if vacuous(a) || vacuous(b) {
		return true
	}

	switch x := a.(type) {
	case *Class:
		if _, ok := b.(*Class); !ok {
			return false
		}
		return s.ConcreteSubtypes(a).Intersect(s.ConcreteSubtypes(b)).Len() > 0
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && x.name == y.name
	case *Tuple:
		y, ok := b.(*Tuple)
		if !ok || len(x.entries) != len(y.entries) {
			return false
		}
		for i := range x.entries {
			if !s.HasCommonInstances(x.entries[i], y.entries[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (s *Schema) IsComparable(a, b MetaObject) bool {
	if vacuous(a) || vacuous(b) {
		return true
	}
	x, ok1 := a.(*Tuple)
	y, ok2 := b.(*Tuple)
	if ok1 && ok2 {
		if len(x.entries) != len(y.entries) {
			return false
		}
		for i := range x.entries {
			if !s.IsComparable(x.entries[i], y.entries[i]) {
				return false
			}
		}
		return true
	}
	return s.HasCommonInstances(a, b)
}

func (s *Schema) Attribute(owner MetaObject, name string) (*Attribute, bool) {
	c, ok := owner.(*Class)
	if !ok {
		return nil, false
	}
	return c.lookup(name)
}

func (s *Schema) TupleType(entries ...MetaObject) MetaObject {
	return NewTuple(entries...)
}

// vacuous reports whether t places no constraint in compatibility checks.
func vacuous(t MetaObject) bool {
	return IsInvalid(t) || t == Any || t == Null
}
