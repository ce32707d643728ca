package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kquery/internal/meta"
)

// Zoo builds the schema shared by the analysis and evaluation tests:
//
//	Item (abstract)
//	├── Animal (abstract)   name: string
//	│   ├── Dog             owner: ref Person (monomorphic)
//	│   │   └── Puppy
//	│   └── Cat             lives: int
//	└── Person              name: string, age: int, pet: ref Animal
func Zoo(t testing.TB) *meta.Schema {
	t.Helper()
	s := meta.NewSchema()

	animal := mustClass(t, s, "Animal", "", true)
	mustAttr(t, s, animal, meta.Attribute{Name: "name", Type: meta.String})

	person := mustClass(t, s, "Person", "", false)
	mustAttr(t, s, person, meta.Attribute{Name: "name", Type: meta.String, Mandatory: true})
	mustAttr(t, s, person, meta.Attribute{Name: "age", Type: meta.Int})
	mustAttr(t, s, person, meta.Attribute{Name: "pet", Type: animal, Reference: true})

	dog := mustClass(t, s, "Dog", "Animal", false)
	mustAttr(t, s, dog, meta.Attribute{Name: "owner", Type: person, Reference: true, Monomorphic: true})
	mustClass(t, s, "Puppy", "Dog", false)

	cat := mustClass(t, s, "Cat", "Animal", false)
	mustAttr(t, s, cat, meta.Attribute{Name: "lives", Type: meta.Int})
	return s
}

// Type resolves a type of ts that must exist.
func Type(t testing.TB, ts meta.TypeSystem, name string) meta.MetaObject {
	t.Helper()
	typ, ok := ts.Type(name)
	require.True(t, ok, "type %s", name)
	return typ
}

// Types resolves several types into a set.
func Types(t testing.TB, ts meta.TypeSystem, names ...string) meta.TypeSet {
	t.Helper()
	types := make([]meta.MetaObject, len(names))
	for i, name := range names {
		types[i] = Type(t, ts, name)
	}
	return meta.NewTypeSet(types...)
}

func mustClass(t testing.TB, s *meta.Schema, name, super string, abstract bool) *meta.Class {
	t.Helper()
	c, err := s.AddClass(name, super, abstract)
	require.NoError(t, err)
	return c
}

func mustAttr(t testing.TB, s *meta.Schema, owner *meta.Class, attr meta.Attribute) {
	t.Helper()
	_, err := s.AddAttribute(owner, attr)
	require.NoError(t, err)
}
