package query

import "github.com/roach88/kquery/internal/value"

// None is the empty set.
type None struct {
	_ byte // non-zero size keeps node identities distinct
}

// AllOf is the set of all objects of exactly type TypeName.
type AllOf struct {
	TypeName string
}

// AnyOf is the set of all objects of type TypeName or one of its subtypes.
type AnyOf struct {
	TypeName string
}

// SetLiteral is a constant set of values.
type SetLiteral struct {
	Values []value.Value
}

// SetParameter references a set-valued query parameter.
type SetParameter struct {
	Name string
}

// Filter keeps the elements of Source for which Predicate is true.
type Filter struct {
	Source    SetExpression
	Predicate Expression
}

// MapTo projects each element of Source through Mapping.
type MapTo struct {
	Source  SetExpression
	Mapping Expression
}

// CrossProduct is the set of tuples over its members.
type CrossProduct struct {
	Members []SetExpression
}

// Union is Left ∪ Right.
type Union struct {
	Left  SetExpression
	Right SetExpression
}

// Intersection is Left ∩ Right.
type Intersection struct {
	Left  SetExpression
	Right SetExpression
}

// Substraction is Left \ Right.
type Substraction struct {
	Left  SetExpression
	Right SetExpression
}

// Partition groups Source by the value of Equivalence and yields the value
// of Representative for each group.
type Partition struct {
	Source         SetExpression
	Equivalence    Expression
	Representative Function
}

func (*None) node()         {}
func (*AllOf) node()        {}
func (*AnyOf) node()        {}
func (*SetLiteral) node()   {}
func (*SetParameter) node() {}
func (*Filter) node()       {}
func (*MapTo) node()        {}
func (*CrossProduct) node() {}
func (*Union) node()        {}
func (*Intersection) node() {}
func (*Substraction) node() {}
func (*Partition) node()    {}

func (*None) setExpression()         {}
func (*AllOf) setExpression()        {}
func (*AnyOf) setExpression()        {}
func (*SetLiteral) setExpression()   {}
func (*SetParameter) setExpression() {}
func (*Filter) setExpression()       {}
func (*MapTo) setExpression()        {}
func (*CrossProduct) setExpression() {}
func (*Union) setExpression()        {}
func (*Intersection) setExpression() {}
func (*Substraction) setExpression() {}
func (*Partition) setExpression()    {}
