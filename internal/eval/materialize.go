package eval

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
	"github.com/roach88/kquery/internal/visit"
)

// Materializer enumerates set expressions over an Extent.
//
// Elements are distinct under value.Equal and keep the order in which they
// are first produced. Objects appear as current keys.
type Materializer struct {
	ts     meta.TypeSystem
	exprs  *ObjectEvaluator
	extent Extent
}

var _ visit.SetVisitor[Context, []value.Value] = (*Materializer)(nil)

// NewMaterializer returns a materializer enumerating objects of extent.
func NewMaterializer(ts meta.TypeSystem, extent Extent) *Materializer {
	return &Materializer{ts: ts, exprs: NewObjectEvaluator(ts), extent: extent}
}

// Set returns the elements of set.
func (m *Materializer) Set(set query.SetExpression, ctx Context) (elems []value.Value, err error) {
	defer catch(&err)
	return m.set(set, ctx), nil
}

// Run evaluates a query's search at revision and orders the result.
// A history query reads its revision and branch from its own parameters
// when they are bound.
func (m *Materializer) Run(q query.Query, revision int64, params map[string]value.Value, resolver Resolver) (elems []value.Value, err error) {
	defer catch(&err)
	ctx := Context{Revision: revision, Params: params, Resolver: resolver}
	switch q := q.(type) {
	case *query.RevisionQuery:
		elems = m.set(q.Search, ctx)
		if q.Order != nil {
			m.order(elems, q.Order, ctx)
		}
		return elems, nil
	case *query.HistoryQuery:
		if r, ok := params[q.RevisionParam].(value.Int); ok {
			ctx.Revision = int64(r)
		}
		elems = m.set(q.Search, ctx)
		if b, ok := params[q.BranchParam].(value.Int); ok {
			elems = slices.DeleteFunc(elems, func(v value.Value) bool {
				k, isKey := v.(value.Key)
				return isKey && k.Branch != int64(b)
			})
		}
		return elems, nil
	}
	return nil, errors.Errorf("unsupported query %T", q)
}

func (m *Materializer) set(set query.SetExpression, ctx Context) []value.Value {
	return visit.Set[Context, []value.Value](m, set, ctx)
}

func (m *Materializer) instances(typeName string, ctx Context) []value.Value {
	keys, err := m.extent.Instances(typeName, ctx.Revision)
	if err != nil {
		fail(errors.Wrapf(err, "instances of %s", typeName))
	}
	elems := make([]value.Value, len(keys))
	for i, k := range keys {
		elems[i] = k
	}
	return elems
}

func (m *Materializer) VisitNone(*query.None, Context) []value.Value {
	return nil
}

func (m *Materializer) VisitAllOf(n *query.AllOf, ctx Context) []value.Value {
	return m.instances(n.TypeName, ctx)
}

func (m *Materializer) VisitAnyOf(n *query.AnyOf, ctx Context) []value.Value {
	t, ok := m.ts.Type(n.TypeName)
	if !ok {
		raise(CodeTypeMismatch, n, "unknown type %s", n.TypeName)
	}
	var out distinct
	for _, sub := range m.ts.ConcreteSubtypes(t).Slice() {
		out.addAll(m.instances(sub.Name(), ctx))
	}
	return out.elems
}

func (m *Materializer) VisitSetLiteral(n *query.SetLiteral, _ Context) []value.Value {
	var out distinct
	out.addAll(n.Values)
	return out.elems
}

func (m *Materializer) VisitSetParameter(n *query.SetParameter, ctx Context) []value.Value {
	var out distinct
	out.addAll(setParameter(n, ctx))
	return out.elems
}

func (m *Materializer) VisitFilter(n *query.Filter, ctx Context) []value.Value {
	var out []value.Value
	for _, elem := range m.set(n.Source, ctx) {
		if m.exprs.boolean(n.Predicate, ctx.With(elem)) {
			out = append(out, elem)
		}
	}
	return out
}

func (m *Materializer) VisitMapTo(n *query.MapTo, ctx Context) []value.Value {
	var out distinct
	for _, elem := range m.set(n.Source, ctx) {
		out.add(m.exprs.eval(n.Mapping, ctx.With(elem)))
	}
	return out.elems
}

func (m *Materializer) VisitCrossProduct(n *query.CrossProduct, ctx Context) []value.Value {
	if len(n.Members) == 1 {
		return m.set(n.Members[0], ctx)
	}
	product := []value.Tuple{{}}
	for _, member := range n.Members {
		elems := m.set(member, ctx)
		next := make([]value.Tuple, 0, len(product)*len(elems))
		for _, prefix := range product {
			for _, elem := range elems {
				next = append(next, append(slices.Clip(prefix), elem))
			}
		}
		product = next
	}
	out := make([]value.Value, len(product))
	for i, t := range product {
		out[i] = t
	}
	return out
}

func (m *Materializer) VisitUnion(n *query.Union, ctx Context) []value.Value {
	var out distinct
	out.addAll(m.set(n.Left, ctx))
	out.addAll(m.set(n.Right, ctx))
	return out.elems
}

func (m *Materializer) VisitIntersection(n *query.Intersection, ctx Context) []value.Value {
	right := m.set(n.Right, ctx)
	var out []value.Value
	for _, elem := range m.set(n.Left, ctx) {
		if containsValue(right, elem) {
			out = append(out, elem)
		}
	}
	return out
}

func (m *Materializer) VisitSubstraction(n *query.Substraction, ctx Context) []value.Value {
	right := m.set(n.Right, ctx)
	var out []value.Value
	for _, elem := range m.set(n.Left, ctx) {
		if !containsValue(right, elem) {
			out = append(out, elem)
		}
	}
	return out
}

// VisitPartition groups the source by the equivalence value and yields the
// representative function's value for each group.
func (m *Materializer) VisitPartition(n *query.Partition, ctx Context) []value.Value {
	var classes distinct
	var groups [][]value.Value
	for _, elem := range m.set(n.Source, ctx) {
		class := m.exprs.eval(n.Equivalence, ctx.With(elem))
		i := classes.index(class)
		if i < 0 {
			i = classes.add(class)
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], elem)
	}
	var out distinct
	for _, g := range groups {
		out.add(visit.Function[group, value.Value](aggregator{m.exprs}, n.Representative, group{ctx, g}))
	}
	return out.elems
}

// order sorts elems in place by the order's keys. Null sorts first.
func (m *Materializer) order(elems []value.Value, o query.Order, ctx Context) {
	var specs []*query.OrderSpec
	switch o := o.(type) {
	case *query.OrderSpec:
		specs = []*query.OrderSpec{o}
	case *query.OrderTuple:
		specs = o.Specs
	}
	keys := make(map[int][]value.Value, len(elems))
	for i, elem := range elems {
		row := make([]value.Value, len(specs))
		for j, spec := range specs {
			row[j] = m.exprs.eval(spec.Expr, ctx.With(elem))
		}
		keys[i] = row
	}

	idx := make([]int, len(elems))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for j, spec := range specs {
			c := compareOrdered(spec, keys[a][j], keys[b][j])
			if spec.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	sorted := make([]value.Value, len(elems))
	for i, j := range idx {
		sorted[i] = elems[j]
	}
	copy(elems, sorted)
}

func compareOrdered(spec *query.OrderSpec, a, b value.Value) int {
	switch an, bn := value.IsNull(a), value.IsNull(b); {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	c, err := value.Compare(a, b)
	if err != nil {
		raiseWrap(CodeIncomparable, spec, err, "order")
	}
	return c
}

// group is one equivalence class of a partition.
type group struct {
	ctx   Context
	elems []value.Value
}

// aggregator computes representative functions over a group.
type aggregator struct {
	exprs *ObjectEvaluator
}

func (a aggregator) values(e query.Expression, g group) []value.Value {
	var out []value.Value
	for _, elem := range g.elems {
		if v := a.exprs.eval(e, g.ctx.With(elem)); !value.IsNull(v) {
			out = append(out, v)
		}
	}
	return out
}

func (a aggregator) VisitCount(_ *query.Count, g group) value.Value {
	return value.Int(len(g.elems))
}

func (a aggregator) VisitSum(n *query.Sum, g group) value.Value {
	var sum value.Int
	for _, v := range a.values(n.Expr, g) {
		i, ok := v.(value.Int)
		if !ok {
			raise(CodeTypeMismatch, n, "sum of %s", show(v))
		}
		sum += i
	}
	return sum
}

func (a aggregator) VisitMin(n *query.Min, g group) value.Value {
	return a.extreme(n, n.Expr, g, -1)
}

func (a aggregator) VisitMax(n *query.Max, g group) value.Value {
	return a.extreme(n, n.Expr, g, 1)
}

// extreme returns the value v with sign(compare(v, other)) == dir for all
// others, or null for a group without values.
func (a aggregator) extreme(n query.Node, e query.Expression, g group, dir int) value.Value {
	var best value.Value = value.Null{}
	for _, v := range a.values(e, g) {
		if value.IsNull(best) {
			best = v
			continue
		}
		c, err := value.Compare(v, best)
		if err != nil {
			raiseWrap(CodeIncomparable, n, err, "aggregate")
		}
		if c*dir > 0 {
			best = v
		}
	}
	return best
}

// distinct collects values without duplicates, in insertion order.
type distinct struct {
	elems   []value.Value
	buckets map[string][]int
}

// index returns the position of v, or -1.
func (d *distinct) index(v value.Value) int {
	for _, i := range d.buckets[value.Format(v)] {
		if value.Equal(d.elems[i], v) {
			return i
		}
	}
	return -1
}

// add inserts v unless present and returns its position.
func (d *distinct) add(v value.Value) int {
	if i := d.index(v); i >= 0 {
		return i
	}
	if d.buckets == nil {
		d.buckets = make(map[string][]int)
	}
	f := value.Format(v)
	d.buckets[f] = append(d.buckets[f], len(d.elems))
	d.elems = append(d.elems, v)
	return len(d.elems) - 1
}

func (d *distinct) addAll(vs []value.Value) {
	for _, v := range vs {
		d.add(v)
	}
}
