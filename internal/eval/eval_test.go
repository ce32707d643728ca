package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/testutil"
	"github.com/roach88/kquery/internal/value"
)

const now int64 = 10

func key(typ, id string) value.Key {
	return value.Key{Branch: value.TrunkBranch, ID: id, Type: typ, Revision: value.Current}
}

var (
	alice  = key("Person", "alice")
	bob    = key("Person", "bob")
	carl   = key("Person", "carl")
	rex    = key("Dog", "rex")
	pip    = key("Puppy", "pip")
	tom    = key("Cat", "tom")
	kitten = key("Cat", "kitten")
	ghost  = key("Dog", "ghost")
)

func live(k value.Key, revMin int64, attrs value.Record) *Object {
	return &Object{Key: k, Attributes: attrs, RevMin: revMin, RevMax: value.Current, Committed: true}
}

// zoo returns the objects of the evaluation tests:
//
//	alice  Person  age 16 in revisions 1-4, 17 from 5; pet rex
//	bob    Person  age 18; pet tom
//	carl   Person  no age, from revision 6
//	rex    Dog     "Rex", owner bob, flex nick "Rexy"
//	pip    Puppy   "Pip"
//	tom    Cat     "Tom", 9 lives
//	kitten Cat     uncommitted
func zoo() *Memory {
	rexObj := live(rex, 1, value.Record{"name": value.String("Rex"), "owner": bob})
	rexObj.Flex = value.Record{"nick": value.String("Rexy")}
	return NewMemory(
		&Object{Key: alice, Attributes: value.Record{"name": value.String("Alice"), "age": value.Int(16), "pet": rex}, RevMin: 1, RevMax: 4, Committed: true},
		live(alice, 5, value.Record{"name": value.String("Alice"), "age": value.Int(17), "pet": rex}),
		live(bob, 1, value.Record{"name": value.String("Bob"), "age": value.Int(18), "pet": tom}),
		live(carl, 6, value.Record{"name": value.String("Carl")}),
		rexObj,
		live(pip, 2, value.Record{"name": value.String("Pip")}),
		live(tom, 1, value.Record{"name": value.String("Tom"), "lives": value.Int(9)}),
		&Object{Key: kitten, Attributes: value.Record{"name": value.String("Kit")}},
	)
}

func adult() query.Expression {
	return query.Ge(query.Attr("Person", "age"), query.Lit(value.Int(18)))
}

// knownAdult is adult without failing on a missing age.
func knownAdult() query.Expression {
	return query.And(query.Not(query.IsNull(query.Attr("Person", "age"))), adult())
}

func TestSimpleMatchesAdult(t *testing.T) {
	s := NewSimple(testutil.Zoo(t), zoo())

	ok, err := s.Matches(adult(), alice, now, nil)
	require.NoError(t, err)
	assert.False(t, ok, "alice is 17")

	ok, err = s.Matches(adult(), bob, now, nil)
	require.NoError(t, err)
	assert.True(t, ok, "bob is 18")

	adults := query.Where(query.All("Person"), adult())
	ok, err = s.Contains(adults, bob, now, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

// counting records resolutions and refuses enumeration.
type counting struct {
	*Memory
	t        *testing.T
	resolved []value.Key
}

func (c *counting) Resolve(k value.Key, revision int64) (*Object, error) {
	c.resolved = append(c.resolved, k)
	return c.Memory.Resolve(k, revision)
}

func (c *counting) Instances(typeName string, _ int64) ([]value.Key, error) {
	c.t.Fatalf("membership test enumerated %s", typeName)
	return nil, nil
}

func TestContainsUnionShortCircuit(t *testing.T) {
	store := &counting{Memory: zoo(), t: t}
	s := NewSimple(testutil.Zoo(t), store)
	pets := query.UnionOf(query.All("Dog"), query.All("Cat"))

	ok, err := s.Contains(pets, rex, now, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []value.Key{rex}, store.resolved, "the Cat branch is never consulted")

	store.resolved = nil
	ok, err = s.Contains(pets, tom, now, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, store.resolved, 2)
}

func TestMembershipMatchesMaterialization(t *testing.T) {
	ts := testutil.Zoo(t)
	store := zoo()
	sets := map[string]query.SetExpression{
		"allOf":        query.All("Dog"),
		"anyOf":        query.Any("Animal"),
		"union":        query.UnionOf(query.All("Dog"), query.All("Cat")),
		"intersection": query.IntersectionOf(query.Any("Animal"), query.Any("Dog")),
		"substraction": query.Minus(query.Any("Animal"), query.All("Puppy")),
		"filter":       query.Where(query.All("Person"), knownAdult()),
		"filterName":   query.Where(query.Any("Animal"), query.EqLiteral(query.Attr("Animal", "name"), value.String("Rex"))),
		"cross":        query.Cross(query.All("Dog"), query.All("Cat")),
		"crossSingle":  query.Cross(query.Any("Dog")),
		"nested":       query.Minus(query.UnionOf(query.All("Person"), query.Any("Dog")), query.Where(query.All("Person"), query.IsNull(query.Attr("Person", "age")))),
		"empty":        query.Empty(),
	}
	pinnedRex := rex
	pinnedRex.Revision = 3
	candidates := []value.Value{
		alice, bob, carl, rex, pip, tom, kitten, ghost, pinnedRex,
		value.Int(3), value.Null{},
		value.Tuple{rex, tom}, value.Tuple{tom, rex}, value.Tuple{rex, kitten, tom}, value.Tuple{pinnedRex, tom},
	}

	m := NewMaterializer(ts, store)
	s := NewSimple(ts, store)
	for name, set := range sets {
		t.Run(name, func(t *testing.T) {
			elems, err := m.Set(set, Context{Revision: now, Resolver: store})
			require.NoError(t, err)
			for _, c := range candidates {
				got, err := s.Contains(set, c, now, nil)
				require.NoError(t, err, value.Format(c))
				assert.Equal(t, containsValue(elems, c), got, "%s in %s", value.Format(c), name)
			}
		})
	}
}

func TestEvaluateObjectAccess(t *testing.T) {
	tests := []struct {
		name     string
		expr     query.Expression
		base     value.Value
		revision int64
		want     value.Value
	}{
		{"attribute", query.Attr("Person", "age"), alice, now, value.Int(17)},
		{"attribute at revision", query.Attr("Person", "age"), alice, 3, value.Int(16)},
		{"missing attribute", query.Attr("Person", "age"), carl, now, value.Null{}},
		{"revMin", query.Attr("Item", "revMin"), alice, now, value.Int(5)},
		{"revMax", query.Attr("Item", "revMax"), alice, 3, value.Int(4)},
		{"uncommitted revMin", query.Attr("Item", "revMin"), kitten, now, value.Int(value.Current)},
		{"uncommitted revMax", query.Attr("Item", "revMax"), kitten, now, value.Int(value.Current)},
		{"reference", query.Ref("Person", "pet"), alice, now, rex},
		{"reference name", query.RefOf(query.Context(), "Person", "pet", query.RefName), alice, now, value.String("rex")},
		{"reference type", query.RefOf(query.Context(), "Person", "pet", query.RefType), alice, now, value.String("Dog")},
		{"reference branch", query.RefOf(query.Context(), "Person", "pet", query.RefBranch), alice, now, value.Int(value.TrunkBranch)},
		{"reference revision", query.RefOf(query.Context(), "Person", "pet", query.RefRevision), alice, now, value.Int(now)},
		{"eval", query.EvalIn(query.Ref("Person", "pet"), query.Attr("Animal", "name")), alice, now, value.String("Rex")},
		{"two hops", query.EvalIn(query.Ref("Dog", "owner"), query.Attr("Person", "age")), rex, now, value.Int(18)},
		{"flex", query.FlexAttr("string", "nick"), rex, now, value.String("Rexy")},
		{"missing flex", query.FlexAttr("string", "nick"), tom, now, value.Null{}},
		{"hasType", query.TypeIs("Dog"), pip, now, value.Bool(false)},
		{"instanceOf", query.Instance("Dog"), pip, now, value.Bool(true)},
		{"hasType null", query.TypeIs("Dog"), value.Null{}, now, value.Bool(false)},
		{"inSet", query.InSetOf(query.Ref("Person", "pet"), query.Any("Animal")), alice, now, value.Bool(true)},
		{"isCurrent", query.Current(query.Context()), alice, now, value.Bool(true)},
		{"isCurrent fixed", query.Current(query.Context()), value.Key{Branch: 1, ID: "alice", Type: "Person", Revision: 3}, now, value.Bool(false)},
		{"requested revision", query.RequestedRevision(), alice, 7, value.Int(7)},
		{"identifier", query.Identifier(), alice, now, value.String("alice")},
		{"type name", query.TypeNameOf(), pip, now, value.String("Puppy")},
		{"branch", query.Branch(), alice, now, value.Int(value.TrunkBranch)},
		{"revision of current key", query.Revision(), alice, now, value.Int(now)},
		{"history context", query.HistoryContextOf(query.Context()), alice, now, value.Int(value.Current)},
		{"matches", query.Match("^R", query.Attr("Animal", "name")), rex, now, value.Bool(true)},
		{"eqci", query.EqCI(query.Attr("Animal", "name"), query.Lit(value.String("REX"))), rex, now, value.Bool(true)},
		{"entry", query.Destination(), value.Tuple{rex, tom}, now, tom},
		{"tuple", query.NewTuple(query.Identifier(), query.Attr("Person", "age")), bob, now, value.Tuple{value.String("bob"), value.Int(18)}},
		{"eq null", query.Eq(query.Attr("Person", "age"), query.Param("none")), carl, now, value.Bool(true)},
		{"not", query.Not(adult()), alice, now, value.Bool(true)},
	}
	s := NewSimple(testutil.Zoo(t), zoo())
	params := map[string]value.Value{"none": value.Null{}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Evaluate(tt.expr, tt.base, tt.revision, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr query.Expression
		base value.Value
		want Code
	}{
		{"ordering on null", adult(), carl, CodeNullValue},
		{"attribute of null", query.Attr("Person", "age"), value.Null{}, CodeNullContext},
		{"incomparable", query.Lt(query.Lit(value.String("a")), query.Lit(value.Int(1))), alice, CodeIncomparable},
		{"unbound parameter", query.Param("missing"), alice, CodeUnboundParameter},
		{"match on int", query.Match("1", query.Attr("Person", "age")), alice, CodeTypeMismatch},
		{"non-boolean and", query.Binary(query.OpAnd, query.Lit(value.Int(1)), query.Lit(value.Int(2))), alice, CodeTypeMismatch},
		{"entry out of range", query.Entry(2), value.Tuple{rex, tom}, CodeTypeMismatch},
		{"missing object", query.Attr("Animal", "name"), ghost, CodeNotFound},
		{"not alive yet", query.Attr("Person", "name"), value.Key{Branch: value.TrunkBranch, ID: "carl", Type: "Person", Revision: 5}, CodeNotFound},
	}
	s := NewSimple(testutil.Zoo(t), zoo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Evaluate(tt.expr, tt.base, now, nil)
			require.Error(t, err)
			assert.True(t, IsError(err, tt.want), "got %v", err)
		})
	}
}

func TestMatchesRequiresBoolean(t *testing.T) {
	s := NewSimple(testutil.Zoo(t), zoo())
	_, err := s.Matches(query.Attr("Person", "age"), alice, now, nil)
	assert.True(t, IsError(err, CodeTypeMismatch), "got %v", err)
}

func TestPureRejectsObjectAccess(t *testing.T) {
	_, err := NewPure().Evaluate(query.Attr("Person", "age"), Context{Value: alice})
	assert.True(t, IsError(err, CodeUnsupported), "got %v", err)

	v, err := NewPure().Evaluate(query.And(query.Context(), query.Not(query.False())), Context{Value: value.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, value.Bool(true), v)
}

func TestContainsUnsupported(t *testing.T) {
	sets := map[string]query.SetExpression{
		"mapTo":     query.Map(query.All("Person"), query.Ref("Person", "pet")),
		"partition": query.PartitionBy(query.Any("Animal"), query.TypeNameOf(), query.CountOf()),
		"nested":    query.UnionOf(query.All("Cat"), query.Map(query.All("Person"), query.Ref("Person", "pet"))),
	}
	s := NewSimple(testutil.Zoo(t), zoo())
	for name, set := range sets {
		t.Run(name, func(t *testing.T) {
			_, err := s.Contains(set, rex, now, nil)
			require.Error(t, err)
			assert.True(t, IsError(err, CodeUnsupported), "got %v", err)
		})
	}
}

func TestContainsSetParameter(t *testing.T) {
	s := NewSimple(testutil.Zoo(t), zoo())
	params := map[string]value.Value{"pets": value.List{rex, tom}}

	ok, err := s.Contains(query.SetParam("pets"), tom, now, params)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Contains(query.SetParam("pets"), tom, now, nil)
	assert.True(t, IsError(err, CodeUnboundParameter), "got %v", err)
}

func TestMaterializeMapAndPartition(t *testing.T) {
	ts := testutil.Zoo(t)
	store := zoo()
	m := NewMaterializer(ts, store)
	ctx := Context{Revision: now, Resolver: store}

	tests := []struct {
		name string
		set  query.SetExpression
		want []value.Value
	}{
		{"pets", query.Map(query.All("Person"), query.Ref("Person", "pet")), []value.Value{rex, tom}},
		{"count per type", query.PartitionBy(query.Any("Animal"), query.TypeNameOf(), query.CountOf()), []value.Value{value.Int(2), value.Int(1)}},
		{"age sum", query.PartitionBy(query.All("Person"), query.True(), query.SumOf(query.Attr("Person", "age"))), []value.Value{value.Int(35)}},
		{"oldest", query.PartitionBy(query.All("Person"), query.True(), query.MaxOf(query.Attr("Person", "age"))), []value.Value{value.Int(18)}},
		{"youngest", query.PartitionBy(query.All("Person"), query.True(), query.MinOf(query.Attr("Person", "age"))), []value.Value{value.Int(17)}},
		{"literals", query.Literals(value.Int(1), value.Int(2), value.Int(1)), []value.Value{value.Int(1), value.Int(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Set(tt.set, ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestMaterializeOrder(t *testing.T) {
	ts := testutil.Zoo(t)
	store := zoo()
	age := query.Attr("Person", "age")

	tests := []struct {
		name  string
		order query.Order
		want  []value.Value
	}{
		{"ascending", query.Orders(query.Asc(age)), []value.Value{carl, alice, bob}},
		{"descending", query.Orders(query.Desc(age)), []value.Value{bob, alice, carl}},
		{"single spec", query.Desc(query.Identifier()), []value.Value{carl, bob, alice}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.NewRevisionQuery(nil, query.All("Person"), tt.order)
			got, err := NewMaterializer(ts, store).Run(q, now, nil, store)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaterializeHistoryQuery(t *testing.T) {
	ts := testutil.Zoo(t)
	store := zoo()
	q := query.NewHistoryQuery("b", "r", nil, query.Where(query.All("Person"), query.Not(adult())))

	got, err := NewMaterializer(ts, store).Run(q, now, map[string]value.Value{"r": value.Int(3), "b": value.Int(value.TrunkBranch)}, store)
	require.NoError(t, err)
	assert.Equal(t, []value.Value{alice}, got, "carl does not exist at revision 3")

	got, err = NewMaterializer(ts, store).Run(q, now, map[string]value.Value{"r": value.Int(3), "b": value.Int(2)}, store)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestErrorMessage(t *testing.T) {
	_, err := NewSimple(testutil.Zoo(t), zoo()).Evaluate(adult(), carl, now, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL_VALUE: ge of null and 18 (at ge(")

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNullValue, e.Code)
	_, isBinary := e.Node.(*query.BinaryOperation)
	assert.True(t, isBinary)
}
