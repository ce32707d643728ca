package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/testutil"
)

func bind(t *testing.T, q query.Query) (*query.Annotations, *diag.Diagnostics) {
	t.Helper()
	ann := query.NewAnnotations()
	d := diag.New()
	Bind(testutil.Zoo(t), q, ann, d.For("binder"))
	return ann, d
}

func TestBindResolvesNames(t *testing.T) {
	age := query.Attr("Person", "age")
	pet := query.Ref("Person", "pet")
	all := query.All("Person")
	inst := query.InstanceOfExpr(pet, "Dog")
	nick := query.FlexAttr("string", "nick")
	param := query.Param("minAge")
	decl := query.Decl("int", "minAge")

	q := query.NewRevisionQuery(
		query.Params(decl),
		query.Where(all, query.And(query.Ge(age, param), query.And(inst, query.IsNull(nick)))),
		nil,
	)
	ann, d := bind(t, q)
	require.False(t, d.HasErrors(), d.Messages())

	attr, ok := ann.Attributes.Get(age)
	require.True(t, ok)
	assert.Equal(t, "Person.age", attr.QualifiedName())

	ref, ok := ann.Attributes.Get(pet)
	require.True(t, ok)
	assert.True(t, ref.Reference)

	for node, want := range map[query.Node]string{
		all:   "Person",
		inst:  "Dog",
		nick:  meta.StringName,
		param: meta.IntName,
		decl:  meta.IntName,
	} {
		got, ok := ann.Resolved.Get(node)
		require.True(t, ok, "%T not bound", node)
		assert.Equal(t, want, got.Name())
	}
}

func TestBindReportsErrorsAndContinues(t *testing.T) {
	tests := []struct {
		name    string
		search  query.SetExpression
		message string
	}{
		{"unknown type", query.All("Ghost"), `unknown type "Ghost"`},
		{"abstract allOf", query.All("Animal"), `allOf needs a concrete type, "Animal" is abstract`},
		{"primitive allOf", query.Any("int"), `type "int" is not an item type`},
		{"unknown attribute", query.Where(query.All("Person"), query.IsNull(query.Attr("Person", "shoe"))), `type "Person" has no attribute "shoe"`},
		{"reference as attribute", query.Where(query.All("Person"), query.IsNull(query.Attr("Person", "pet"))), "attribute Person.pet is a reference"},
		{"attribute as reference", query.Where(query.All("Person"), query.IsNull(query.Ref("Person", "age"))), "attribute Person.age is not a reference"},
		{"flex non primitive", query.Where(query.All("Person"), query.IsNull(query.FlexAttr("Dog", "x"))), `flex attribute "x": type "Dog" is not primitive`},
		{"undeclared parameter", query.Where(query.All("Person"), query.Eq(query.Attr("Person", "age"), query.Param("n"))), `undeclared parameter "n"`},
		{"undeclared set parameter", query.UnionOf(query.All("Dog"), query.SetParam("dogs")), `undeclared parameter "dogs"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, d := bind(t, query.Search(tt.search))
			require.Equal(t, 1, d.Count(), d.Messages())
			assert.Contains(t, d.All()[0].Message, tt.message)
			assert.Equal(t, "binder", d.All()[0].Pass)
		})
	}
}

func TestBindPlaceholders(t *testing.T) {
	ghost := query.All("Ghost")
	shoe := query.Attr("Person", "shoe")
	ann, d := bind(t, query.Search(query.UnionOf(ghost, query.Where(query.All("Person"), query.IsNull(shoe)))))

	assert.Equal(t, 2, d.Count())
	typ, ok := ann.Resolved.Get(ghost)
	require.True(t, ok)
	assert.True(t, meta.IsInvalid(typ))

	attr, ok := ann.Attributes.Get(shoe)
	require.True(t, ok)
	assert.Same(t, meta.InvalidAttribute, attr)
}

func TestBindHistoryParametersAreInts(t *testing.T) {
	branch := query.Param("b")
	rev := query.Param("r")
	q := query.NewHistoryQuery("b", "r", nil,
		query.Where(query.All("Person"), query.And(query.Eq(query.Branch(), branch), query.Le(query.Revision(), rev))))

	ann, d := bind(t, q)
	require.False(t, d.HasErrors(), d.Messages())
	for _, p := range []query.Node{branch, rev} {
		typ, ok := ann.Resolved.Get(p)
		require.True(t, ok)
		assert.Equal(t, meta.Int, typ)
	}
}

func TestBindExprUsesGivenScope(t *testing.T) {
	p := query.Param("name")
	ann := query.NewAnnotations()
	d := diag.New()
	scope := Scope{"name": meta.String}

	BindExpr(testutil.Zoo(t), query.Eq(query.Attr("Person", "name"), p), scope, ann, d)
	require.False(t, d.HasErrors())
	typ, _ := ann.Resolved.Get(p)
	assert.Equal(t, meta.String, typ)
	assert.Len(t, scope, 1)
}

func TestBindTwiceKeepsAnnotations(t *testing.T) {
	age := query.Attr("Person", "age")
	q := query.Search(query.Where(query.All("Person"), query.IsNull(age)))
	ann := query.NewAnnotations()
	ts := testutil.Zoo(t)

	Bind(ts, q, ann, diag.Discard)
	first, _ := ann.Attributes.Get(age)
	Bind(ts, q, ann, diag.Discard)
	second, _ := ann.Attributes.Get(age)

	assert.Same(t, first, second)
	assert.Equal(t, 1, ann.Attributes.Len())
}
