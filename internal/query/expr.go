package query

import (
	"regexp"

	"github.com/roach88/kquery/internal/value"
)

// BinaryOp is the operator of a BinaryOperation.
type BinaryOp int

const (
	OpAnd BinaryOp = iota
	OpOr
	OpEq   // binary (exact) equality
	OpEqCI // case-insensitive string equality
	OpLt
	OpLe
	OpGt
	OpGe
)

var binaryOpNames = [...]string{
	OpAnd:  "and",
	OpOr:   "or",
	OpEq:   "eq",
	OpEqCI: "eqci",
	OpLt:   "lt",
	OpLe:   "le",
	OpGt:   "gt",
	OpGe:   "ge",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "binary?"
}

// IsBoolean reports whether op combines boolean operands.
func (op BinaryOp) IsBoolean() bool {
	return op == OpAnd || op == OpOr
}

// IsOrdering reports whether op is one of lt, le, gt, ge.
func (op BinaryOp) IsOrdering() bool {
	return op >= OpLt && op <= OpGe
}

// UnaryOp is the operator of a UnaryOperation.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpIsNull
	OpBranch
	OpRevision       // revision of a key; the requested revision for current keys
	OpHistoryContext // revision of a key, always as stored in the key
	OpIdentifier
	OpTypeName
)

var unaryOpNames = [...]string{
	OpNot:            "not",
	OpIsNull:         "isNull",
	OpBranch:         "branch",
	OpRevision:       "revision",
	OpHistoryContext: "historyContext",
	OpIdentifier:     "identifier",
	OpTypeName:       "typeName",
}

func (op UnaryOp) String() string {
	if int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return "unary?"
}

// IsKeyAccess reports whether op reads metadata off an object key.
func (op UnaryOp) IsKeyAccess() bool {
	return op >= OpBranch
}

// ReferencePart selects which component of a referenced key a Reference yields.
type ReferencePart int

const (
	RefObject ReferencePart = iota
	RefBranch
	RefRevision
	RefName
	RefType
)

var referencePartNames = [...]string{
	RefObject:   "object",
	RefBranch:   "branch",
	RefRevision: "revision",
	RefName:     "name",
	RefType:     "type",
}

func (p ReferencePart) String() string {
	if int(p) < len(referencePartNames) {
		return referencePartNames[p]
	}
	return "part?"
}

// Literal is a constant. The value is never Null.
type Literal struct {
	Value value.Value
}

// Parameter references a declared query parameter.
type Parameter struct {
	Name string
}

// Attribute reads a plain attribute of the context object.
type Attribute struct {
	Context   Expression
	OwnerType string
	Name      string
}

// Reference reads a reference attribute of the context object.
type Reference struct {
	Context   Expression
	OwnerType string
	Name      string
	Part      ReferencePart
}

// Flex reads a dynamically typed attribute of the context object.
type Flex struct {
	Context  Expression
	Name     string
	TypeName string
}

// GetEntry reads an entry of a tuple-valued context.
type GetEntry struct {
	Context Expression
	Index   int
}

// BinaryOperation applies Op to Left and Right.
type BinaryOperation struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// UnaryOperation applies Op to Operand.
type UnaryOperation struct {
	Op      UnaryOp
	Operand Expression
}

// Tuple constructs a tuple value.
type Tuple struct {
	Entries []Expression
}

// Eval evaluates Inner with the value of Context as the current object.
type Eval struct {
	Context Expression
	Inner   Expression
}

// ContextAccess denotes the current object.
type ContextAccess struct {
	_ byte // non-zero size keeps node identities distinct
}

// InSet tests whether the value of Context is a member of Set.
type InSet struct {
	Context Expression
	Set     SetExpression
}

// Matches tests a string value against a regular expression.
type Matches struct {
	Inner   Expression
	Pattern *regexp.Regexp
}

// HasType tests whether the context object is exactly of type TypeName.
type HasType struct {
	Context  Expression
	TypeName string
}

// InstanceOf tests whether the context object is of type TypeName or a subtype.
type InstanceOf struct {
	Context  Expression
	TypeName string
}

// IsCurrent tests whether the context key follows the requested revision.
type IsCurrent struct {
	Context Expression
}

// RequestedHistoryContext yields the revision the query runs at.
type RequestedHistoryContext struct {
	_ byte
}

func (*Literal) node()                 {}
func (*Parameter) node()               {}
func (*Attribute) node()               {}
func (*Reference) node()               {}
func (*Flex) node()                    {}
func (*GetEntry) node()                {}
func (*BinaryOperation) node()         {}
func (*UnaryOperation) node()          {}
func (*Tuple) node()                   {}
func (*Eval) node()                    {}
func (*ContextAccess) node()           {}
func (*InSet) node()                   {}
func (*Matches) node()                 {}
func (*HasType) node()                 {}
func (*InstanceOf) node()              {}
func (*IsCurrent) node()               {}
func (*RequestedHistoryContext) node() {}

func (*Literal) expression()                 {}
func (*Parameter) expression()               {}
func (*Attribute) expression()               {}
func (*Reference) expression()               {}
func (*Flex) expression()                    {}
func (*GetEntry) expression()                {}
func (*BinaryOperation) expression()         {}
func (*UnaryOperation) expression()          {}
func (*Tuple) expression()                   {}
func (*Eval) expression()                    {}
func (*ContextAccess) expression()           {}
func (*InSet) expression()                   {}
func (*Matches) expression()                 {}
func (*HasType) expression()                 {}
func (*InstanceOf) expression()              {}
func (*IsCurrent) expression()               {}
func (*RequestedHistoryContext) expression() {}

func (e *Attribute) ContextExpr() Expression  { return e.Context }
func (e *Reference) ContextExpr() Expression  { return e.Context }
func (e *Flex) ContextExpr() Expression       { return e.Context }
func (e *GetEntry) ContextExpr() Expression   { return e.Context }
func (e *Eval) ContextExpr() Expression       { return e.Context }
func (e *InSet) ContextExpr() Expression      { return e.Context }
func (e *HasType) ContextExpr() Expression    { return e.Context }
func (e *InstanceOf) ContextExpr() Expression { return e.Context }
func (e *IsCurrent) ContextExpr() Expression  { return e.Context }

// IsContextAccess reports whether e is ContextAccess().
func IsContextAccess(e Expression) bool {
	_, ok := e.(*ContextAccess)
	return ok
}
