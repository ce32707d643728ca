package sqlsym

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/symbol"
	"github.com/roach88/kquery/internal/value"
)

// ErrNotTranslatable is returned for queries the compiler cannot express in
// SQL. Callers evaluate those in memory.
var ErrNotTranslatable = errors.New("not translatable to SQL")

// Statement is a compiled query: parameterized SQL selecting the branch, id
// and type of the matching rows, with its arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Compiler translates analyzed revision queries to SQL over the objects table.
//
// Every value is bound as an argument, never interpolated. Every statement
// ends with an ORDER BY on the object identifier, so results are
// deterministic.
type Compiler struct {
	ts      meta.TypeSystem
	symbols *symbol.Table

	// Params holds the values of the query parameters.
	Params map[string]value.Value
}

// NewCompiler returns a compiler reading symbols, which must have been
// created with a Factory of this package.
func NewCompiler(ts meta.TypeSystem, symbols *symbol.Table, params map[string]value.Value) *Compiler {
	return &Compiler{ts: ts, symbols: symbols, Params: params}
}

// Compile translates q at revision. The search must be a type extent,
// possibly filtered; anything else yields ErrNotTranslatable.
func (c *Compiler) Compile(q *query.RevisionQuery, revision int64) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}

	var predicates []query.Expression
	source := q.Search
	for {
		f, ok := source.(*query.Filter)
		if !ok {
			break
		}
		predicates = append(predicates, f.Predicate)
		source = f.Source
	}

	var types []string
	switch s := source.(type) {
	case *query.AllOf:
		types = []string{s.TypeName}
	case *query.AnyOf:
		types = c.concrete(s.TypeName)
	default:
		return Statement{}, fmt.Errorf("%w: search over %T", ErrNotTranslatable, source)
	}
	if len(types) == 0 {
		return Statement{}, fmt.Errorf("%w: no concrete types to search", ErrNotTranslatable)
	}

	table, err := c.table(source)
	if err != nil {
		return Statement{}, err
	}
	a := table.Alias

	var b builder
	b.write("SELECT %s.branch, %s.id, %s.type FROM objects AS %s WHERE %s.type IN (", a, a, a, a, a)
	for i, t := range types {
		if i > 0 {
			b.write(", ")
		}
		b.arg(t)
	}
	b.write(") AND %s.rev_min <= ", a)
	b.arg(revision)
	b.write(" AND %s.rev_max >= ", a)
	b.arg(revision)

	// Filters apply innermost first.
	for i := len(predicates) - 1; i >= 0; i-- {
		b.write(" AND ")
		if err := c.predicate(&b, predicates[i], table); err != nil {
			return Statement{}, err
		}
	}

	b.write(" ORDER BY ")
	if q.Order != nil {
		if err := c.order(&b, q.Order, table); err != nil {
			return Statement{}, err
		}
		b.write(", ")
	}
	b.write("%s.id ASC COLLATE BINARY, %s.branch ASC", a, a)

	return Statement{SQL: b.sql.String(), Args: b.args}, nil
}

// concrete returns the names of the concrete subtypes of typeName.
func (c *Compiler) concrete(typeName string) []string {
	t, ok := c.ts.Type(typeName)
	if !ok {
		return nil
	}
	var names []string
	for _, sub := range c.ts.ConcreteSubtypes(t).Slice() {
		names = append(names, sub.Name())
	}
	return names
}

func (c *Compiler) table(n query.Node) (*Table, error) {
	s, ok := c.symbols.Get(n)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no symbol", ErrNotTranslatable, n)
	}
	t, ok := s.(*Table)
	if !ok {
		return nil, fmt.Errorf("symbol of %T is %T, want *sqlsym.Table", n, s)
	}
	return t, nil
}

func (c *Compiler) order(b *builder, o query.Order, table *Table) error {
	var specs []*query.OrderSpec
	switch o := o.(type) {
	case *query.OrderSpec:
		specs = []*query.OrderSpec{o}
	case *query.OrderTuple:
		specs = o.Specs
	}
	for i, spec := range specs {
		if i > 0 {
			b.write(", ")
		}
		if err := c.expr(b, spec.Expr, table); err != nil {
			return err
		}
		if spec.Descending {
			b.write(" DESC")
		} else {
			b.write(" ASC")
		}
	}
	return nil
}

// predicate writes a boolean condition.
func (c *Compiler) predicate(b *builder, e query.Expression, table *Table) error {
	switch n := e.(type) {
	case *query.Literal:
		v, ok := n.Value.(value.Bool)
		if !ok {
			return fmt.Errorf("%w: non-boolean predicate %s", ErrNotTranslatable, value.Format(n.Value))
		}
		if v {
			b.write("1")
		} else {
			b.write("0")
		}
		return nil

	case *query.BinaryOperation:
		switch {
		case n.Op.IsBoolean():
			op := " AND "
			if n.Op == query.OpOr {
				op = " OR "
			}
			b.write("(")
			if err := c.predicate(b, n.Left, table); err != nil {
				return err
			}
			b.write(op)
			if err := c.predicate(b, n.Right, table); err != nil {
				return err
			}
			b.write(")")
			return nil
		case n.Op == query.OpEq, n.Op.IsOrdering():
			return c.comparison(b, n, table)
		}
		return fmt.Errorf("%w: operator %s", ErrNotTranslatable, n.Op)

	case *query.UnaryOperation:
		switch n.Op {
		case query.OpNot:
			b.write("NOT ")
			return c.predicate(b, n.Operand, table)
		case query.OpIsNull:
			b.write("(")
			if err := c.expr(b, n.Operand, table); err != nil {
				return err
			}
			b.write(" IS NULL)")
			return nil
		}

	case *query.HasType:
		if _, ok := n.Context.(*query.ContextAccess); !ok {
			return fmt.Errorf("%w: type test on %T", ErrNotTranslatable, n.Context)
		}
		b.write("(%s.type = ", table.Alias)
		b.arg(n.TypeName)
		b.write(")")
		return nil

	case *query.InstanceOf:
		if _, ok := n.Context.(*query.ContextAccess); !ok {
			return fmt.Errorf("%w: type test on %T", ErrNotTranslatable, n.Context)
		}
		subtypes := c.concrete(n.TypeName)
		if len(subtypes) == 0 {
			b.write("0")
			return nil
		}
		b.write("%s.type IN (", table.Alias)
		for i, name := range subtypes {
			if i > 0 {
				b.write(", ")
			}
			b.arg(name)
		}
		b.write(")")
		return nil
	}

	// Boolean attributes and parameters are stored as 0 and 1.
	b.write("(")
	if err := c.expr(b, e, table); err != nil {
		return err
	}
	b.write(" = 1)")
	return nil
}

// comparison writes eq with IS, which is null-safe like value equality.
// Ordering comparisons with null are false.
func (c *Compiler) comparison(b *builder, n *query.BinaryOperation, table *Table) error {
	b.write("(")
	if err := c.expr(b, n.Left, table); err != nil {
		return err
	}
	switch n.Op {
	case query.OpEq:
		b.write(" IS ")
	case query.OpLt:
		b.write(" < ")
	case query.OpLe:
		b.write(" <= ")
	case query.OpGt:
		b.write(" > ")
	case query.OpGe:
		b.write(" >= ")
	}
	if err := c.expr(b, n.Right, table); err != nil {
		return err
	}
	b.write(")")
	return nil
}

// expr writes a scalar.
func (c *Compiler) expr(b *builder, e query.Expression, table *Table) error {
	switch n := e.(type) {
	case *query.Literal:
		return b.value(n.Value)

	case *query.Parameter:
		v, ok := c.Params[n.Name]
		if !ok {
			return fmt.Errorf("unbound parameter %q", n.Name)
		}
		return b.value(v)

	case *query.Attribute, *query.Reference, *query.Flex:
		s, ok := c.symbols.Get(n)
		if !ok {
			return fmt.Errorf("%w: %T has no symbol", ErrNotTranslatable, n)
		}
		col, ok := s.(*Column)
		if !ok {
			return fmt.Errorf("%w: symbol of %T is %T", ErrNotTranslatable, n, s)
		}
		if col.Untranslatable != "" {
			return fmt.Errorf("%w: %s", ErrNotTranslatable, col.Untranslatable)
		}
		b.write("%s", col.Expr)
		return nil

	case *query.UnaryOperation:
		if _, ok := n.Operand.(*query.ContextAccess); ok {
			switch n.Op {
			case query.OpIdentifier:
				b.write("%s.id", table.Alias)
				return nil
			case query.OpTypeName:
				b.write("%s.type", table.Alias)
				return nil
			case query.OpBranch:
				b.write("%s.branch", table.Alias)
				return nil
			}
		}
		if n.Op == query.OpNot || n.Op == query.OpIsNull {
			return c.predicate(b, n, table)
		}
		return fmt.Errorf("%w: %s of %T", ErrNotTranslatable, n.Op, n.Operand)

	case *query.BinaryOperation:
		if n.Op == query.OpEqCI {
			return fmt.Errorf("%w: case-insensitive comparison", ErrNotTranslatable)
		}
		return c.predicate(b, n, table)
	}
	return fmt.Errorf("%w: %T", ErrNotTranslatable, e)
}

// Querier runs SQL. *store.Store implements it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Run executes st and returns the current keys of the matching objects.
func Run(ctx context.Context, db Querier, st Statement) ([]value.Key, error) {
	rows, err := db.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("run compiled query: %w", err)
	}
	defer rows.Close()

	keys := []value.Key{}
	for rows.Next() {
		k := value.Key{Revision: value.Current}
		if err := rows.Scan(&k.Branch, &k.ID, &k.Type); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return keys, nil
}

type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(format string, args ...any) {
	fmt.Fprintf(&b.sql, format, args...)
}

func (b *builder) arg(v any) {
	b.sql.WriteString("?")
	b.args = append(b.args, v)
}

// value binds v. Keys compare by identifier.
func (b *builder) value(v value.Value) error {
	switch v := v.(type) {
	case value.Null:
		b.write("NULL")
	case value.String:
		b.arg(string(v))
	case value.Int:
		b.arg(int64(v))
	case value.Bool:
		b.arg(bool(v))
	case value.Key:
		b.arg(v.ID)
	default:
		return fmt.Errorf("%w: %s value", ErrNotTranslatable, value.KindName(v))
	}
	return nil
}
