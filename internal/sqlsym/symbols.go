// Package sqlsym implements symbols over the SQLite object store and
// translates filters on them to SQL.
//
// Symbols are plain data: a Table names a row alias of the objects table, a
// Column an SQL expression over it. Compiler turns the predicate of an
// analyzed query into a parameterized WHERE clause, reading the column of
// every attribute access from the symbol table.
package sqlsym

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/store"
	"github.com/roach88/kquery/internal/symbol"
	"github.com/roach88/kquery/internal/value"
)

// Table is a row alias of the objects table.
type Table struct {
	Alias string
	typ   meta.MetaObject
}

var _ symbol.TableSymbol = (*Table)(nil)

func (t *Table) Type() meta.MetaObject { return t.typ }

// Dereference narrows the alias to one concrete type. Rows of all types share
// one table, so the alias is kept.
func (t *Table) Dereference(concrete meta.MetaObject) (symbol.TableSymbol, error) {
	return &Table{Alias: t.Alias, typ: concrete}, nil
}

// AttributeSymbol returns the column of attr. References yield the
// identifier of the referenced key.
func (t *Table) AttributeSymbol(n query.Node, attr *meta.Attribute) (symbol.Symbol, error) {
	switch attr.Name {
	case meta.AttrRevMin:
		return &Column{Expr: t.Alias + ".rev_min", typ: attr.Type}, nil
	case meta.AttrRevMax:
		return &Column{Expr: t.Alias + ".rev_max", typ: attr.Type}, nil
	}
	path := store.AttrPath(attr.Name)
	if !attr.Reference {
		return &Column{Expr: jsonExtract(t.Alias+".attrs", path), typ: attr.Type}, nil
	}

	part := query.RefObject
	if ref, ok := n.(*query.Reference); ok {
		part = ref.Part
	}
	switch part {
	case query.RefObject:
		return &Column{Expr: jsonExtract(t.Alias+".attrs", path+`."$key".id`), typ: attr.Type, Key: true}, nil
	case query.RefName:
		return &Column{Expr: jsonExtract(t.Alias+".attrs", path+`."$key".id`), typ: meta.String}, nil
	case query.RefType:
		return &Column{Expr: jsonExtract(t.Alias+".attrs", path+`."$key".type`), typ: meta.String}, nil
	case query.RefBranch:
		return &Column{Expr: jsonExtract(t.Alias+".attrs", path+`."$key".branch`), typ: meta.Int}, nil
	}
	// The revision of a current reference is the requested revision, which
	// the stored key does not carry.
	return &Column{Untranslatable: fmt.Sprintf("%s of reference %s", part, attr.QualifiedName()), typ: meta.Int}, nil
}

func (t *Table) FlexSymbol(_ query.Node, _ meta.TypeSystem, typ meta.MetaObject, name string) (symbol.Symbol, error) {
	return &Column{Expr: jsonExtract(t.Alias+".flex", store.AttrPath(name)), typ: typ}, nil
}

// Column is an SQL expression over a Table alias.
type Column struct {
	Expr string

	// Key marks the identifier column of a reference; it compares with the
	// identifier of key values.
	Key bool

	// Untranslatable is set for values with no SQL expression.
	Untranslatable string

	typ meta.MetaObject
}

func (c *Column) Type() meta.MetaObject { return c.typ }

// Literal is a constant bound as a statement argument.
type Literal struct {
	Value value.Value
	typ   meta.MetaObject
}

func (l *Literal) Type() meta.MetaObject { return l.typ }

// Param is a query parameter bound as a statement argument at compilation.
type Param struct {
	Name string
	typ  meta.MetaObject
}

func (p *Param) Type() meta.MetaObject { return p.typ }

// Null is the symbol of the empty set.
type Null struct{}

func (Null) Type() meta.MetaObject { return meta.Null }

// Tuple groups the symbols of a cross product or tuple expression.
type Tuple struct {
	Entries []symbol.Symbol
}

var _ symbol.TupleSymbol = (*Tuple)(nil)

func (t *Tuple) Type() meta.MetaObject { return meta.Invalid }

func (t *Tuple) Entry(i int) (symbol.Symbol, error) {
	if i < 0 || i >= len(t.Entries) {
		return nil, fmt.Errorf("tuple of %d entries has no entry %d", len(t.Entries), i)
	}
	return t.Entries[i], nil
}

// Error stands for a node whose symbol could not be built.
type Error struct {
	Message string
}

func (*Error) Type() meta.MetaObject { return meta.Invalid }

// Factory creates sqlsym symbols. Aliases are numbered per factory, so use
// one factory per compilation.
type Factory struct {
	tables int
}

var _ symbol.Factory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{}
}

// Table returns a fresh alias named after t in snake_case, e.g. "person_1".
func (f *Factory) Table(_ query.SetExpression, t meta.MetaObject) symbol.ItemSymbol {
	f.tables++
	base := "t"
	if t.Kind() == meta.KindItem {
		base = strcase.ToSnake(t.Name())
	}
	return &Table{Alias: fmt.Sprintf("%s_%d", base, f.tables), typ: t}
}

func (f *Factory) Literal(n *query.Literal, t meta.MetaObject) symbol.Symbol {
	return &Literal{Value: n.Value, typ: t}
}

func (f *Factory) Null(query.Node) symbol.Symbol {
	return Null{}
}

func (f *Factory) Tuple(_ query.Node, entries []symbol.Symbol) symbol.TupleSymbol {
	return &Tuple{Entries: entries}
}

func (f *Factory) Error(_ query.Node, message string) symbol.Symbol {
	return &Error{Message: message}
}

func (f *Factory) Parameter(decl *query.ParameterDeclaration, t meta.MetaObject) symbol.Symbol {
	return &Param{Name: decl.Name, typ: t}
}

func jsonExtract(column, path string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", column, strings.ReplaceAll(path, "'", "''"))
}
