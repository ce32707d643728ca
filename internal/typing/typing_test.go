package typing

import (
	"fmt"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kquery/internal/binder"
	"github.com/roach88/kquery/internal/diag"
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/testutil"
	"github.com/roach88/kquery/internal/value"
)

type analysis struct {
	ts   *meta.Schema
	ann  *query.Annotations
	diag *diag.Diagnostics
	poly meta.MetaObject
	conc meta.TypeSet
}

func analyze(t *testing.T, q query.Query) analysis {
	t.Helper()
	a := analysis{ts: testutil.Zoo(t), ann: query.NewAnnotations(), diag: diag.New()}
	binder.Bind(a.ts, q, a.ann, a.diag.For("binder"))
	a.poly = Polymorphic(a.ts, q, a.ann, a.diag.For("polymorphic"))
	a.conc = Concrete(a.ts, q, a.ann, a.diag.For("concrete"))
	return a
}

func (a analysis) concreteOf(t *testing.T, n query.Node) []string {
	t.Helper()
	set, ok := a.ann.Concrete.Get(n)
	require.True(t, ok, "%T has no concrete types", n)
	return set.Names()
}

func (a analysis) polymorphicOf(t *testing.T, n query.Node) string {
	t.Helper()
	typ, ok := a.ann.Polymorphic.Get(n)
	require.True(t, ok, "%T has no polymorphic type", n)
	return typ.Name()
}

func TestPolymorphicFilter(t *testing.T) {
	age := query.Attr("Person", "age")
	q := query.Search(query.Where(query.All("Person"), query.Ge(age, query.Lit(value.Int(18)))))

	a := analyze(t, q)
	require.False(t, a.diag.HasErrors(), a.diag.Messages())
	assert.Equal(t, "Person", a.poly.Name())
	assert.Equal(t, meta.IntName, a.polymorphicOf(t, age))
	assert.Equal(t, []string{"Person"}, a.conc.Names())
}

func TestPolymorphicTypes(t *testing.T) {
	pet := query.Ref("Person", "pet")
	petBranch := query.RefOf(query.Context(), "Person", "pet", query.RefBranch)
	petName := query.RefOf(query.Context(), "Person", "pet", query.RefName)
	tuple := query.NewTuple(query.Attr("Person", "name"), query.Attr("Person", "age"))
	entry := query.EntryOf(tuple, 1)
	eval := query.EvalIn(pet, query.Attr("Animal", "name"))
	union := query.UnionOf(query.All("Dog"), query.All("Cat"))
	cross := query.Cross(query.All("Person"), query.Any("Animal"))
	single := query.Cross(query.All("Person"))
	mapped := query.Map(query.All("Person"), query.Attr("Person", "age"))
	counted := query.PartitionBy(query.All("Person"), query.Attr("Person", "age"), query.CountOf())
	literals := query.Literals(value.Int(1), value.Int(2))
	empty := query.Literals()

	exprs := query.And(
		query.And(query.IsNull(pet), query.Eq(petBranch, query.Lit(value.Int(0)))),
		query.And(query.EqCI(petName, query.Lit(value.String("rex"))),
			query.And(query.Eq(entry, query.Lit(value.Int(3))), query.IsNull(eval))),
	)
	q := query.Search(query.Where(query.All("Person"), exprs))
	a := analyze(t, q)
	require.False(t, a.diag.HasErrors(), a.diag.Messages())

	for _, set := range []query.SetExpression{union, cross, single, mapped, counted, literals, empty} {
		binder.BindSet(a.ts, set, nil, a.ann, a.diag.For("binder"))
		PolymorphicSet(a.ts, set, a.ann, a.diag.For("polymorphic"))
	}
	require.False(t, a.diag.HasErrors(), a.diag.Messages())

	tests := []struct {
		node query.Node
		want string
	}{
		{pet, "Animal"},
		{petBranch, meta.IntName},
		{petName, meta.StringName},
		{tuple, "(string, int)"},
		{entry, meta.IntName},
		{eval, meta.StringName},
		{union, "Animal"},
		{cross, "(Person, Animal)"},
		{single, "Person"},
		{mapped, meta.IntName},
		{counted, meta.IntName},
		{literals, meta.IntName},
		{empty, meta.Null.Name()},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.node), func(t *testing.T) {
			assert.Equal(t, tt.want, a.polymorphicOf(t, tt.node))
		})
	}
}

func TestPolymorphicNarrowing(t *testing.T) {
	t.Run("and narrows the right operand", func(t *testing.T) {
		ctx := query.Context()
		pred := query.And(query.TypeIs("Dog"), query.Current(ctx))
		a := analyze(t, query.Search(query.Where(query.Any("Animal"), pred)))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, "Dog", a.polymorphicOf(t, ctx))
		assert.Equal(t, "Dog", a.poly.Name())
	})

	t.Run("or joins both contexts", func(t *testing.T) {
		pred := query.Or(query.TypeIs("Puppy"), query.TypeIs("Cat"))
		a := analyze(t, query.Search(query.Where(query.Any("Animal"), pred)))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, "Animal", a.poly.Name())
	})

	t.Run("not restores the context", func(t *testing.T) {
		pred := query.Not(query.TypeIs("Dog"))
		a := analyze(t, query.Search(query.Where(query.Any("Animal"), pred)))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, "Animal", a.poly.Name())
	})

	t.Run("test of another value keeps the context", func(t *testing.T) {
		pred := query.InstanceOfExpr(query.Ref("Person", "pet"), "Dog")
		a := analyze(t, query.Search(query.Where(query.All("Person"), pred)))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, "Person", a.poly.Name())
	})
}

func TestPolymorphicErrors(t *testing.T) {
	tests := []struct {
		name   string
		search query.SetExpression
		want   string
	}{
		{
			name:   "incomparable ordering",
			search: query.Where(query.All("Person"), query.Lt(query.Attr("Person", "name"), query.Lit(value.Int(1)))),
			want:   "types string and int are not comparable",
		},
		{
			name:   "equality without common instances",
			search: query.Where(query.All("Person"), query.Eq(query.Attr("Person", "age"), query.Lit(value.String("x")))),
			want:   "comparison of incompatible types int and string",
		},
		{
			name:   "attribute of another type",
			search: query.Where(query.All("Person"), query.IsNull(query.Attr("Cat", "lives"))),
			want:   `access to attribute "lives" that is not defined in context type Person`,
		},
		{
			name:   "entry of a non tuple",
			search: query.Where(query.All("Person"), query.IsNull(query.Entry(0))),
			want:   "context of type Person is not a tuple",
		},
		{
			name:   "entry out of range",
			search: query.Where(query.Cross(query.All("Person"), query.All("Dog")), query.IsNull(query.Entry(2))),
			want:   "tuple index 2 out of range",
		},
		{
			name:   "non boolean predicate",
			search: query.Where(query.All("Person"), query.Attr("Person", "age")),
			want:   "type mismatch: expected bool, got int",
		},
		{
			name:   "attribute of a primitive",
			search: query.Map(query.Literals(value.Int(1)), query.Attr("Person", "age")),
			want:   "context of type int (primitive) is not an item type",
		},
		{
			name:   "disjoint intersection",
			search: query.IntersectionOf(query.All("Dog"), query.All("Cat")),
			want:   "intersection of incompatible types Dog and Cat",
		},
		{
			name:   "substraction without common instances",
			search: query.Minus(query.All("Person"), query.All("Cat")),
			want:   "substraction of Cat from Person cannot remove any element",
		},
		{
			name:   "mixed set literal",
			search: query.Literals(value.Int(1), value.String("a")),
			want:   "set literal mixes incompatible types",
		},
		{
			name:   "sum of strings",
			search: query.PartitionBy(query.All("Person"), query.Attr("Person", "age"), query.SumOf(query.Attr("Person", "name"))),
			want:   "type mismatch: expected int, got string",
		},
		{
			name:   "membership with incompatible types",
			search: query.Where(query.All("Person"), query.InSetOf(query.Attr("Person", "age"), query.All("Dog"))),
			want:   "membership test with incompatible types int and Dog",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyze(t, query.Search(tt.search))
			require.Empty(t, a.diag.ByPass("binder"), a.diag.Messages())
			got := a.diag.ByPass("polymorphic")
			require.Len(t, got, 1, a.diag.Messages())
			assert.Contains(t, got[0].Message, tt.want)
		})
	}
}

func TestPolymorphicInvalidDoesNotCascade(t *testing.T) {
	bad := query.Attr("Person", "height")
	pred := query.And(query.Ge(bad, query.Lit(value.Int(1))), query.Eq(query.Attr("Person", "name"), bad))
	a := analyze(t, query.Search(query.Where(query.All("Person"), pred)))

	assert.Len(t, a.diag.ByPass("binder"), 1, a.diag.Messages())
	assert.Empty(t, a.diag.ByPass("polymorphic"), a.diag.Messages())
	assert.True(t, meta.IsInvalid(mustPoly(t, a, bad)))
}

func mustPoly(t *testing.T, a analysis, n query.Node) meta.MetaObject {
	t.Helper()
	typ, ok := a.ann.Polymorphic.Get(n)
	require.True(t, ok)
	return typ
}

func TestConcreteTypes(t *testing.T) {
	anyAnimal := query.Any("Animal")
	allDog := query.All("Dog")
	pet := query.Ref("Person", "pet")
	union := query.UnionOf(query.All("Dog"), query.All("Cat"))
	inter := query.IntersectionOf(query.Any("Animal"), query.Any("Dog"))
	minus := query.Minus(query.Any("Animal"), query.All("Cat"))
	minusFiltered := query.Minus(query.Any("Animal"), query.Where(query.All("Cat"), query.Gt(query.Attr("Cat", "lives"), query.Lit(value.Int(5)))))
	cross := query.Cross(query.Any("Dog"), query.All("Person"))
	literals := query.Literals(value.Int(1))
	none := query.Empty()

	a := analyze(t, query.Search(query.Where(query.All("Person"), query.IsNull(pet))))
	require.False(t, a.diag.HasErrors(), a.diag.Messages())

	for _, set := range []query.SetExpression{anyAnimal, allDog, union, inter, minus, minusFiltered, cross, literals, none} {
		binder.BindSet(a.ts, set, nil, a.ann, a.diag.For("binder"))
		PolymorphicSet(a.ts, set, a.ann, a.diag.For("polymorphic"))
		ConcreteSet(a.ts, set, a.ann, a.diag.For("concrete"))
	}
	require.False(t, a.diag.HasErrors(), a.diag.Messages())

	tests := []struct {
		name string
		node query.Node
		want []string
	}{
		{"anyOf expands", anyAnimal, []string{"Cat", "Dog", "Puppy"}},
		{"allOf is exact", allDog, []string{"Dog"}},
		{"polymorphic reference expands", pet, []string{"Cat", "Dog", "Puppy"}},
		{"union", union, []string{"Cat", "Dog"}},
		{"intersection", inter, []string{"Dog", "Puppy"}},
		{"substraction keeps the left types", minus, []string{"Cat", "Dog", "Puppy"}},
		{"substraction of a filter", minusFiltered, []string{"Cat", "Dog", "Puppy"}},
		{"cross product", cross, []string{"(Dog, Person)", "(Puppy, Person)"}},
		{"primitive", literals, []string{meta.IntName}},
		{"none", none, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.concreteOf(t, tt.node))
		})
	}
}

func TestConcreteMonomorphicReference(t *testing.T) {
	owner := query.Ref("Dog", "owner")
	q := query.Search(query.Where(query.Any("Dog"), query.IsNull(owner)))
	a := analyze(t, q)
	require.False(t, a.diag.HasErrors(), a.diag.Messages())
	assert.Equal(t, []string{"Person"}, a.concreteOf(t, owner))
}

// Filter(T, HasType(ctx, T) AND p): p sees exactly the narrowed context.
func TestConcreteAndOrThreading(t *testing.T) {
	tests := []struct {
		name   string
		source query.SetExpression
		test   func() query.Expression
		join   func(l, r query.Expression) query.Expression
		want   []string
	}{
		{"allOf hasType", query.All("Dog"), func() query.Expression { return query.TypeIs("Dog") }, query.And, []string{"Dog"}},
		{"anyOf hasType", query.Any("Animal"), func() query.Expression { return query.TypeIs("Dog") }, query.And, []string{"Dog"}},
		{"anyOf instanceOf", query.Any("Animal"), func() query.Expression { return query.Instance("Dog") }, query.And, []string{"Dog", "Puppy"}},
		{"hasType of excluded type", query.Any("Cat"), func() query.Expression { return query.TypeIs("Cat") }, query.And, []string{"Cat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := query.Context()
			filter := query.Where(tt.source, tt.join(tt.test(), query.Current(ctx)))
			a := analyze(t, query.Search(filter))
			require.False(t, a.diag.HasErrors(), a.diag.Messages())
			assert.Equal(t, tt.want, a.concreteOf(t, ctx))
			assert.Equal(t, tt.want, a.concreteOf(t, filter))
		})
	}

	t.Run("or joins both branches", func(t *testing.T) {
		filter := query.Where(query.Any("Animal"), query.Or(query.TypeIs("Puppy"), query.TypeIs("Cat")))
		a := analyze(t, query.Search(filter))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, []string{"Cat", "Puppy"}, a.concreteOf(t, filter))
	})

	t.Run("not removes the tested types", func(t *testing.T) {
		filter := query.Where(query.Any("Animal"), query.Not(query.Instance("Dog")))
		a := analyze(t, query.Search(filter))
		require.False(t, a.diag.HasErrors(), a.diag.Messages())
		assert.Equal(t, []string{"Cat"}, a.concreteOf(t, filter))
	})
}

func TestConcreteNeedsPolymorphicTypes(t *testing.T) {
	ts := testutil.Zoo(t)
	d := diag.New()
	q := query.Search(query.All("Person"))
	set := Concrete(ts, q, query.NewAnnotations(), d.For("concrete"))
	assert.Equal(t, 0, set.Len())
	require.Len(t, d.ByPass("concrete"), 1)
	assert.Contains(t, d.All()[0].Message, "need polymorphic types")
}

func soundnessQueries() map[string]query.Query {
	return map[string]query.Query{
		"filter": query.Search(query.Where(query.Any("Animal"),
			query.And(query.Instance("Dog"), query.IsNull(query.Ref("Dog", "owner"))))),
		"eval": query.Search(query.Where(query.All("Person"),
			query.IsNull(query.EvalIn(query.Ref("Person", "pet"), query.Attr("Animal", "name"))))),
		"cross": query.Search(query.Where(query.Cross(query.Any("Animal"), query.All("Person")),
			query.Eq(query.Source(), query.Source()))),
		"sets": query.Search(query.UnionOf(query.Minus(query.Any("Animal"), query.All("Cat")),
			query.IntersectionOf(query.Any("Dog"), query.All("Puppy")))),
		"ordered": query.NewRevisionQuery(
			query.Params(query.Decl("int", "min")),
			query.Where(query.All("Person"), query.Ge(query.Attr("Person", "age"), query.Param("min"))),
			query.Orders(query.Desc(query.Attr("Person", "age")), query.Asc(query.Attr("Person", "name"))),
		),
		"history": query.NewHistoryQuery("b", "r", nil, query.Where(query.Any("Animal"),
			query.And(query.Eq(query.Branch(), query.Param("b")), query.Ge(query.Revision(), query.Param("r"))))),
		"partition": query.Search(query.PartitionBy(query.All("Cat"), query.Attr("Cat", "name"), query.MaxOf(query.Attr("Cat", "lives")))),
	}
}

func TestConcreteSoundness(t *testing.T) {
	for name, q := range soundnessQueries() {
		t.Run(name, func(t *testing.T) {
			a := analyze(t, q)
			require.False(t, a.diag.HasErrors(), a.diag.Messages())
			require.Positive(t, a.ann.Concrete.Len())
			a.ann.Concrete.Each(func(n query.Node, set meta.TypeSet) {
				poly, ok := a.ann.Polymorphic.Get(n)
				require.True(t, ok, "%T has concrete but no polymorphic type", n)
				for _, c := range set.Slice() {
					assert.True(t, a.ts.IsSubtype(c, poly), "%T: %s is not a subtype of %s", n, c.Name(), poly.Name())
				}
			})
		})
	}
}

func snapshot(ann *query.Annotations) map[string][]string {
	out := make(map[string][]string)
	ann.Polymorphic.Each(func(n query.Node, t meta.MetaObject) {
		key := fmt.Sprintf("%T@%p", n, n)
		out[key] = append(out[key], "poly:"+t.Name())
	})
	ann.Concrete.Each(func(n query.Node, set meta.TypeSet) {
		key := fmt.Sprintf("%T@%p", n, n)
		out[key] = append(out[key], "concrete:"+set.String())
	})
	return out
}

// Two runs over the same tree, each into fresh annotations, must agree node
// by node.
func TestAnnotationIdempotence(t *testing.T) {
	ts := testutil.Zoo(t)
	run := func(t *testing.T, q query.Query) *query.Annotations {
		t.Helper()
		ann, d := query.NewAnnotations(), diag.New()
		binder.Bind(ts, q, ann, d.For("binder"))
		Polymorphic(ts, q, ann, d.For("polymorphic"))
		Concrete(ts, q, ann, d.For("concrete"))
		require.False(t, d.HasErrors(), d.Messages())
		return ann
	}

	for name, q := range soundnessQueries() {
		t.Run(name, func(t *testing.T) {
			first, second := run(t, q), run(t, q)
			require.NotZero(t, first.Concrete.Len())
			assert.Equal(t, first.Polymorphic.Len(), second.Polymorphic.Len())
			assert.Equal(t, first.Concrete.Len(), second.Concrete.Len())
			assert.Empty(t, pretty.Diff(snapshot(first), snapshot(second)))
		})
	}
}
