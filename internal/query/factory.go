package query

import (
	"fmt"
	"regexp"

	"github.com/roach88/kquery/internal/value"
)

// Context returns a new ContextAccess node.
func Context() Expression {
	return &ContextAccess{}
}

// Lit creates a literal. It panics on a null value; use IsNull to test for
// absent values instead.
func Lit(v value.Value) Expression {
	if value.IsNull(v) {
		panic("query: literals with value null are not allowed")
	}
	return &Literal{Value: v}
}

// True and False return boolean literals.
func True() Expression  { return Lit(value.Bool(true)) }
func False() Expression { return Lit(value.Bool(false)) }

// Param references a declared parameter.
func Param(name string) Expression {
	return &Parameter{Name: name}
}

// Not negates expr.
func Not(expr Expression) Expression {
	return &UnaryOperation{Op: OpNot, Operand: expr}
}

// IsNull tests expr for the null value.
func IsNull(expr Expression) Expression {
	return &UnaryOperation{Op: OpIsNull, Operand: expr}
}

// And combines two predicates. A nil or literal-true operand is dropped and
// a literal-false operand makes the result false.
func And(left, right Expression) Expression {
	if left == nil || IsLiteralTrue(left) {
		return orLiteral(right, true)
	}
	if right == nil || IsLiteralTrue(right) {
		return orLiteral(left, true)
	}
	if IsLiteralFalse(left) || IsLiteralFalse(right) {
		return False()
	}
	return &BinaryOperation{Op: OpAnd, Left: left, Right: right}
}

// Or combines two predicates. A nil or literal-false operand is dropped and
// a literal-true operand makes the result true.
func Or(left, right Expression) Expression {
	if left == nil || IsLiteralFalse(left) {
		return orLiteral(right, false)
	}
	if right == nil || IsLiteralFalse(right) {
		return orLiteral(left, false)
	}
	if IsLiteralTrue(left) || IsLiteralTrue(right) {
		return True()
	}
	return &BinaryOperation{Op: OpOr, Left: left, Right: right}
}

func orLiteral(expr Expression, b bool) Expression {
	if expr == nil {
		return Lit(value.Bool(b))
	}
	return expr
}

// IsLiteralTrue reports whether expr is the literal true.
func IsLiteralTrue(expr Expression) bool {
	return isConstant(expr, value.Bool(true))
}

// IsLiteralFalse reports whether expr is the literal false.
func IsLiteralFalse(expr Expression) bool {
	return isConstant(expr, value.Bool(false))
}

func isConstant(expr Expression, v value.Value) bool {
	lit, ok := LiteralValue(expr)
	return ok && value.Equal(lit, v)
}

// LiteralValue returns the value of a literal expression.
func LiteralValue(expr Expression) (value.Value, bool) {
	lit, ok := expr.(*Literal)
	if !ok {
		return nil, false
	}
	return lit.Value, true
}

// Binary creates a binary operation.
func Binary(op BinaryOp, left, right Expression) Expression {
	return &BinaryOperation{Op: op, Left: left, Right: right}
}

// Unary creates a unary operation.
func Unary(op UnaryOp, operand Expression) Expression {
	return &UnaryOperation{Op: op, Operand: operand}
}

func Eq(left, right Expression) Expression   { return Binary(OpEq, left, right) }
func EqCI(left, right Expression) Expression { return Binary(OpEqCI, left, right) }
func Lt(left, right Expression) Expression   { return Binary(OpLt, left, right) }
func Le(left, right Expression) Expression   { return Binary(OpLe, left, right) }
func Gt(left, right Expression) Expression   { return Binary(OpGt, left, right) }
func Ge(left, right Expression) Expression   { return Binary(OpGe, left, right) }

// EqLiteral compares expr with v; a null v becomes an IsNull test.
func EqLiteral(expr Expression, v value.Value) Expression {
	if value.IsNull(v) {
		return IsNull(expr)
	}
	return Eq(expr, Lit(v))
}

// Attr reads attribute name of ownerType from the current object.
func Attr(ownerType, name string) Expression {
	return AttrOf(Context(), ownerType, name)
}

// AttrOf reads attribute name of ownerType from the value of context.
func AttrOf(context Expression, ownerType, name string) Expression {
	return &Attribute{Context: context, OwnerType: ownerType, Name: name}
}

// Ref reads the referenced key of a reference attribute of the current object.
func Ref(ownerType, name string) Expression {
	return RefOf(Context(), ownerType, name, RefObject)
}

// RefOf reads part of a reference attribute of the value of context.
func RefOf(context Expression, ownerType, name string, part ReferencePart) Expression {
	return &Reference{Context: context, OwnerType: ownerType, Name: name, Part: part}
}

// FlexAttr reads a flex attribute of the current object.
func FlexAttr(typeName, name string) Expression {
	return FlexOf(Context(), typeName, name)
}

// FlexOf reads a flex attribute of the value of context.
func FlexOf(context Expression, typeName, name string) Expression {
	return &Flex{Context: context, Name: name, TypeName: typeName}
}

// Entry reads entry index of the current tuple.
func Entry(index int) Expression {
	return EntryOf(Context(), index)
}

// EntryOf reads entry index of the tuple value of context.
func EntryOf(context Expression, index int) Expression {
	return &GetEntry{Context: context, Index: index}
}

// Source and Destination read the two entries of a link tuple.
func Source() Expression      { return Entry(0) }
func Destination() Expression { return Entry(1) }

// NewTuple constructs a tuple expression. It panics on an empty entry list.
func NewTuple(entries ...Expression) Expression {
	if len(entries) == 0 {
		panic("query: empty tuples are not allowed")
	}
	return &Tuple{Entries: entries}
}

// EvalIn evaluates expr with the value of context as current object.
func EvalIn(context, expr Expression) Expression {
	return &Eval{Context: context, Inner: expr}
}

// In tests the current object for membership in set.
func In(set SetExpression) Expression {
	return InSetOf(Context(), set)
}

// InSetOf tests the value of expr for membership in set.
func InSetOf(expr Expression, set SetExpression) Expression {
	return &InSet{Context: expr, Set: set}
}

// InLiteralSet tests expr for membership in a constant set.
func InLiteralSet(expr Expression, values ...value.Value) Expression {
	return InSetOf(expr, Literals(values...))
}

// Match tests the string value of expr against pattern.
// It panics if pattern does not compile.
func Match(pattern string, expr Expression) Expression {
	return &Matches{Inner: expr, Pattern: regexp.MustCompile(pattern)}
}

// TypeIs tests the current object for exact type typeName.
func TypeIs(typeName string) Expression {
	return &HasType{Context: Context(), TypeName: typeName}
}

// HasTypeOf tests the value of context for exact type typeName.
func HasTypeOf(context Expression, typeName string) Expression {
	return &HasType{Context: context, TypeName: typeName}
}

// Instance tests whether the current object is a typeName.
func Instance(typeName string) Expression {
	return InstanceOfExpr(Context(), typeName)
}

// InstanceOfExpr tests whether the value of context is a typeName.
func InstanceOfExpr(context Expression, typeName string) Expression {
	return &InstanceOf{Context: context, TypeName: typeName}
}

// Current tests whether the value of context is a current key.
func Current(context Expression) Expression {
	return &IsCurrent{Context: context}
}

// RequestedRevision yields the revision the query runs at.
func RequestedRevision() Expression {
	return &RequestedHistoryContext{}
}

// Branch, Revision, Identifier and TypeNameOf read key metadata of the current object.
func Branch() Expression     { return Unary(OpBranch, Context()) }
func Revision() Expression   { return Unary(OpRevision, Context()) }
func Identifier() Expression { return Unary(OpIdentifier, Context()) }
func TypeNameOf() Expression { return Unary(OpTypeName, Context()) }

// HistoryContextOf reads the stored revision of the key value of expr.
func HistoryContextOf(expr Expression) Expression {
	return Unary(OpHistoryContext, expr)
}

// Empty returns the empty set.
func Empty() SetExpression {
	return &None{}
}

// All is the set of objects of exactly typeName.
func All(typeName string) SetExpression {
	return &AllOf{TypeName: typeName}
}

// Any is the set of objects of typeName or any subtype.
func Any(typeName string) SetExpression {
	return &AnyOf{TypeName: typeName}
}

// Literals is a constant set.
func Literals(values ...value.Value) SetExpression {
	return &SetLiteral{Values: values}
}

// SetParam references a set-valued parameter.
func SetParam(name string) SetExpression {
	return &SetParameter{Name: name}
}

// Where filters source by predicate. A literal-true predicate returns source.
func Where(source SetExpression, predicate Expression) SetExpression {
	if IsLiteralTrue(predicate) {
		return source
	}
	return &Filter{Source: source, Predicate: predicate}
}

// Map projects source through mapping.
func Map(source SetExpression, mapping Expression) SetExpression {
	return &MapTo{Source: source, Mapping: mapping}
}

// Cross builds the cross product of members. It panics on an empty member list.
func Cross(members ...SetExpression) SetExpression {
	if len(members) == 0 {
		panic("query: empty cross products are not allowed")
	}
	return &CrossProduct{Members: members}
}

func UnionOf(left, right SetExpression) SetExpression {
	return &Union{Left: left, Right: right}
}

func IntersectionOf(left, right SetExpression) SetExpression {
	return &Intersection{Left: left, Right: right}
}

func Minus(left, right SetExpression) SetExpression {
	return &Substraction{Left: left, Right: right}
}

// PartitionBy groups source by equivalence and reduces each group with representative.
func PartitionBy(source SetExpression, equivalence Expression, representative Function) SetExpression {
	return &Partition{Source: source, Equivalence: equivalence, Representative: representative}
}

// Navigate follows links from the objects in from. Links are tuples
// (source, destination); backwards navigation follows them in reverse.
// The result keeps only the targets of type expectedType.
func Navigate(backwards bool, from, links SetExpression, expectedType string) SetExpression {
	near, far := Source(), Destination()
	if backwards {
		near, far = Destination(), Source()
	}
	return Where(Map(Where(links, InSetOf(near, from)), far), Instance(expectedType))
}

func CountOf() Function              { return &Count{} }
func SumOf(expr Expression) Function { return &Sum{Expr: expr} }
func MinOf(expr Expression) Function { return &Min{Expr: expr} }
func MaxOf(expr Expression) Function { return &Max{Expr: expr} }

// Asc and Desc create order specs.
func Asc(expr Expression) *OrderSpec  { return &OrderSpec{Expr: expr} }
func Desc(expr Expression) *OrderSpec { return &OrderSpec{Expr: expr, Descending: true} }

// Orders combines order specs.
func Orders(specs ...*OrderSpec) Order {
	return &OrderTuple{Specs: specs}
}

// Decl declares a parameter.
func Decl(typeName, name string) *ParameterDeclaration {
	return &ParameterDeclaration{Name: name, TypeName: typeName}
}

// Params collects parameter declarations.
func Params(decls ...*ParameterDeclaration) []*ParameterDeclaration {
	return decls
}

// NewRevisionQuery creates a revision query; order may be nil.
func NewRevisionQuery(params []*ParameterDeclaration, search SetExpression, order Order) *RevisionQuery {
	return &RevisionQuery{Params: params, Search: search, Order: order}
}

// NewHistoryQuery creates a history query.
func NewHistoryQuery(branchParam, revisionParam string, params []*ParameterDeclaration, search SetExpression) *HistoryQuery {
	return &HistoryQuery{BranchParam: branchParam, RevisionParam: revisionParam, Params: params, Search: search}
}

// Search wraps a set expression into an unparameterized, unordered revision query.
func Search(search SetExpression) *RevisionQuery {
	return NewRevisionQuery(nil, search, nil)
}

// CompilePattern is Match for patterns from untrusted input.
func CompilePattern(pattern string, expr Expression) (Expression, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &Matches{Inner: expr, Pattern: re}, nil
}
