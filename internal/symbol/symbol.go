// Package symbol assigns storage symbols to the nodes of an analyzed query.
//
// A Symbol is an opaque handle a code generator uses to address the value of
// a node: a table of rows, a column, a bound parameter. This package defines
// the symbol interfaces and the Creator pass; concrete symbols come from a
// Factory (see package sqlsym).
package symbol

import (
	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
)

// Symbol is the storage handle of one node.
type Symbol interface {
	// Type is the static type of the value the symbol stands for.
	Type() meta.MetaObject
}

// ItemSymbol addresses objects of a possibly polymorphic item type.
type ItemSymbol interface {
	Symbol

	// Dereference narrows the symbol to the storage of one concrete type.
	Dereference(concrete meta.MetaObject) (TableSymbol, error)
}

// TableSymbol addresses the rows of one concrete item type.
type TableSymbol interface {
	ItemSymbol

	// AttributeSymbol returns the symbol of attr read by node n, which is an
	// Attribute or a Reference.
	AttributeSymbol(n query.Node, attr *meta.Attribute) (Symbol, error)

	// FlexSymbol returns the symbol of the flex attribute name read as t.
	FlexSymbol(n query.Node, ts meta.TypeSystem, t meta.MetaObject, name string) (Symbol, error)
}

// TupleSymbol addresses a tuple of symbols.
type TupleSymbol interface {
	Symbol
	Entry(i int) (Symbol, error)
}

// Factory creates the symbols the Creator cannot derive from other symbols.
type Factory interface {
	// Table returns the symbol of the elements of set n, of type t.
	Table(n query.SetExpression, t meta.MetaObject) ItemSymbol

	// Literal returns the symbol of a literal of type t.
	Literal(n *query.Literal, t meta.MetaObject) Symbol

	Null(n query.Node) Symbol
	Tuple(n query.Node, entries []Symbol) TupleSymbol

	// Error returns a placeholder for a node whose symbol could not be built.
	Error(n query.Node, message string) Symbol

	// Parameter returns the symbol bound to a declared parameter.
	Parameter(decl *query.ParameterDeclaration, t meta.MetaObject) Symbol
}

// Table maps nodes to their symbols. Nodes without a symbol are absent.
type Table struct {
	query.Annotation[Symbol]
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}
