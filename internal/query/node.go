// Package query defines the query AST: scalar expressions, set expressions,
// orders, aggregate functions and top-level queries.
//
// Every node family is a sealed interface. Only the pointer types in this
// package implement it, which lets passes use exhaustive type switches and
// lets annotation tables key on node identity.
//
// Node kinds:
//   - Expression: Literal, Parameter, Attribute, Reference, Flex, GetEntry,
//     BinaryOperation, UnaryOperation, Tuple, Eval, ContextAccess, InSet,
//     Matches, HasType, InstanceOf, IsCurrent, RequestedHistoryContext
//   - SetExpression: None, AllOf, AnyOf, SetLiteral, SetParameter, Filter,
//     MapTo, CrossProduct, Union, Intersection, Substraction, Partition
//   - Order: OrderSpec, OrderTuple
//   - Function: Count, Sum, Min, Max
//   - Query: RevisionQuery, HistoryQuery
//
// Trees are built with the factory functions in factory.go and are not
// modified afterwards; analysis results live in Annotations.
package query

// Node is any query AST node.
type Node interface {
	node()
}

// Expression is a scalar-valued node.
type Expression interface {
	Node
	expression()
}

// ContextExpression is an expression whose meaning depends on the value of
// its context sub-expression.
type ContextExpression interface {
	Expression
	ContextExpr() Expression
}

// SetExpression is a set-valued node.
type SetExpression interface {
	Node
	setExpression()
}

// Order is a sort specification of a revision query.
type Order interface {
	Node
	order()
}

// Function is an aggregate used as the representative of a partition.
type Function interface {
	Node
	function()
}

// Query is a top-level query.
type Query interface {
	Node
	query()
	Parameters() []*ParameterDeclaration
	SearchExpr() SetExpression
}
