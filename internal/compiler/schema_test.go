package compiler

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kquery/internal/meta"
)

func loadZoo(t *testing.T) *meta.Schema {
	t.Helper()
	s, err := LoadSchema(filepath.Join("testdata", "zoo"))
	require.NoError(t, err)
	return s
}

func TestLoadSchema(t *testing.T) {
	s := loadZoo(t)

	animal, ok := s.Class("Animal")
	require.True(t, ok)
	assert.True(t, animal.Abstract())
	assert.Equal(t, meta.ItemName, animal.Super().Name())

	puppy, ok := s.Class("Puppy")
	require.True(t, ok)
	assert.Equal(t, "Dog", puppy.Super().Name())
	assert.False(t, puppy.Abstract())

	assert.Equal(t, "{Cat, Dog, Puppy}", s.ConcreteSubtypes(animal).String())
}

func TestCompileSchemaAttributes(t *testing.T) {
	s := loadZoo(t)
	person, _ := s.Type("Person")
	dog, _ := s.Type("Dog")
	puppy, _ := s.Type("Puppy")

	tests := []struct {
		owner       meta.MetaObject
		name        string
		typ         string
		reference   bool
		monomorphic bool
		mandatory   bool
	}{
		{person, "name", meta.StringName, false, false, true},
		{person, "age", meta.IntName, false, false, false},
		{person, "pet", "Animal", true, false, false},
		{dog, "owner", "Person", true, true, false},
		{puppy, "name", meta.StringName, false, false, false},
		{puppy, meta.AttrRevMin, meta.IntName, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.owner.Name()+"."+tt.name, func(t *testing.T) {
			attr, ok := s.Attribute(tt.owner, tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.typ, attr.Type.Name())
			assert.Equal(t, tt.reference, attr.Reference)
			assert.Equal(t, tt.monomorphic, attr.Monomorphic)
			assert.Equal(t, tt.mandatory, attr.Mandatory)
		})
	}
}

func TestCompileSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "float attribute",
			src:   `type: Item2: attributes: weight: float`,
			field: "type.Item2.attributes.weight",
			msg:   "float types are forbidden",
		},
		{
			name:  "list attribute",
			src:   `type: A: attributes: tags: [...string]`,
			field: "type.A.attributes.tags",
			msg:   "unsupported type kind",
		},
		{
			name:  "unknown reference target",
			src:   `type: A: attributes: b: ref: "B"`,
			field: "type.A.attributes.b",
			msg:   `unknown type "B"`,
		},
		{
			name:  "reference to primitive",
			src:   `type: A: attributes: b: ref: "int"`,
			field: "type.A.attributes.b",
			msg:   "reference must target an item type",
		},
		{
			name:  "struct without ref",
			src:   `type: A: attributes: b: {monomorphic: true}`,
			field: "type.A.attributes.b",
			msg:   "must name a reference target",
		},
		{
			name:  "unknown super",
			src:   `type: A: extends: "Nope"`,
			field: "type.A.extends",
			msg:   `unknown or cyclic super type "Nope"`,
		},
		{
			name:  "cyclic super",
			src:   `type: {A: extends: "B", B: extends: "A"}`,
			field: "type.A.extends",
			msg:   "unknown or cyclic",
		},
		{
			name:  "unknown mandatory attribute",
			src:   `type: A: {attributes: x: int, mandatory: ["y"]}`,
			field: "type.A.mandatory",
			msg:   `unknown attribute "y"`,
		},
		{
			name:  "no types",
			src:   `other: 1`,
			field: "type",
			msg:   "no types declared",
		},
		{
			name:  "redeclared root",
			src:   `type: Item: {}`,
			field: "type.Item",
			msg:   "already declared",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSchemaString(tt.src, "schema.cue")
			require.Error(t, err)
			require.True(t, IsCompileError(err), "got %T: %v", err, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileSchemaSyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileSchemaString("type: {\n  A: extends: \n}", "broken.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "broken.cue:")
}

func TestLoadSchemaMissingDir(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
