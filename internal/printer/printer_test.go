package printer

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

func TestStringNodes(t *testing.T) {
	tests := []struct {
		name string
		node query.Node
		want string
	}{
		{"nil", nil, "<nil>"},
		{"literal string", query.Lit(value.String("a\"b")), `"a\"b"`},
		{"context attribute", query.Attr("Person", "age"), ".Person.age"},
		{"nested attribute", query.AttrOf(query.Ref("Person", "pet"), "Dog", "name"), ".Person.pet.Dog.name"},
		{"reference part", query.RefOf(query.Context(), "Dog", "owner", query.RefBranch), ".Dog.owner#branch"},
		{"declaration", query.Decl("int", "n"), "int $n"},
		{"count", query.CountOf(), "count()"},
		{"empty set", query.Empty(), "none"},
		{"order", query.Desc(query.Attr("Person", "age")), ".Person.age desc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, String(tt.node))
		})
	}
}

func TestStringGolden(t *testing.T) {
	nodes := []query.Node{
		query.NewRevisionQuery(
			query.Params(query.Decl("int", "minAge")),
			query.Where(query.All("Person"), query.And(
				query.Ge(query.Attr("Person", "age"), query.Param("minAge")),
				query.Not(query.IsNull(query.Attr("Person", "name"))),
			)),
			query.Orders(query.Asc(query.Attr("Person", "name")), query.Desc(query.Attr("Person", "age"))),
		),
		query.NewHistoryQuery("branch", "rev", nil,
			query.Where(query.Any("Animal"), query.Current(query.Ref("Dog", "owner")))),
		query.Map(query.Cross(query.All("Person"), query.All("Dog")), query.NewTuple(query.Entry(1), query.Entry(0))),
		query.PartitionBy(query.All("Dog"), query.RefOf(query.Context(), "Dog", "owner", query.RefName), query.SumOf(query.Attr("Dog", "age"))),
		query.Minus(query.UnionOf(query.All("Dog"), query.All("Cat")), query.Literals(value.String("x"), value.Int(2))),
		query.Where(query.All("Person"), query.Match("^A",
			query.FlexOf(query.EvalIn(query.Ref("Person", "pet"), query.Context()), "string", "nick"))),
		query.Where(query.Any("Animal"), query.Or(query.TypeIs("Dog"), query.Instance("Cat"))),
		query.Eq(query.RequestedRevision(), query.Revision()),
	}

	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = String(n)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "printer", []byte(strings.Join(lines, "\n")+"\n"))
}
