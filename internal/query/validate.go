package query

import (
	"fmt"

	"github.com/roach88/kquery/internal/value"
)

// ValidationResult lists the structural problems of a query tree.
type ValidationResult struct {
	// Valid is true when no problems were found.
	Valid bool

	// Problems describes each problem found, in tree order.
	Problems []string
}

// Validate checks a query tree for structural problems the factory functions
// cannot rule out when trees are built by hand or decoded from documents:
//   - missing (nil) children
//   - null literals
//   - empty tuples and cross products
//   - negative entry indices
//   - duplicate parameter declarations, including history parameters
//
// Validate is a pure function with no side effects. Type errors are out of
// its reach; the analysis passes report those.
func Validate(q Query) ValidationResult {
	v := &validator{
		problems: []string{},
		params:   map[string]bool{},
	}
	v.validateQuery(q)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	params   map[string]bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) declare(name, origin string) {
	if name == "" {
		v.addProblem("%s with empty name", origin)
		return
	}
	if v.params[name] {
		v.addProblem("parameter %q declared twice", name)
		return
	}
	v.params[name] = true
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
		return
	case *RevisionQuery:
		v.validateParams(query.Params)
		v.validateSet(query.Search)
		if query.Order != nil {
			v.validateOrder(query.Order)
		}
	case *HistoryQuery:
		if query.BranchParam != "" {
			v.declare(query.BranchParam, "branch parameter")
		}
		if query.RevisionParam != "" {
			v.declare(query.RevisionParam, "revision parameter")
		}
		v.validateParams(query.Params)
		v.validateSet(query.Search)
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateParams(decls []*ParameterDeclaration) {
	for _, d := range decls {
		if d == nil {
			v.addProblem("nil parameter declaration")
			continue
		}
		v.declare(d.Name, "parameter declaration")
		if d.TypeName == "" {
			v.addProblem("parameter %q has no type", d.Name)
		}
	}
}

func (v *validator) validateOrder(o Order) {
	switch order := o.(type) {
	case *OrderSpec:
		v.validateExpr(order.Expr, "order expression")
	case *OrderTuple:
		if len(order.Specs) == 0 {
			v.addProblem("empty order tuple")
		}
		for _, spec := range order.Specs {
			if spec == nil {
				v.addProblem("nil order spec")
				continue
			}
			v.validateExpr(spec.Expr, "order expression")
		}
	default:
		v.addProblem("unknown order type %T", o)
	}
}

func (v *validator) validateFunction(f Function) {
	switch fn := f.(type) {
	case nil:
		v.addProblem("partition without representative")
	case *Count:
	case *Sum:
		v.validateExpr(fn.Expr, "sum operand")
	case *Min:
		v.validateExpr(fn.Expr, "min operand")
	case *Max:
		v.validateExpr(fn.Expr, "max operand")
	default:
		v.addProblem("unknown function type %T", f)
	}
}

func (v *validator) validateSet(s SetExpression) {
	switch set := s.(type) {
	case nil:
		v.addProblem("missing set expression")
	case *None, *SetParameter:
	case *AllOf:
		v.requireName(set.TypeName, "allOf")
	case *AnyOf:
		v.requireName(set.TypeName, "anyOf")
	case *SetLiteral:
		for i, val := range set.Values {
			if value.IsNull(val) {
				v.addProblem("set literal entry %d is null", i)
			}
		}
	case *Filter:
		v.validateSet(set.Source)
		v.validateExpr(set.Predicate, "filter predicate")
	case *MapTo:
		v.validateSet(set.Source)
		v.validateExpr(set.Mapping, "mapping")
	case *CrossProduct:
		if len(set.Members) == 0 {
			v.addProblem("empty cross product")
		}
		for _, m := range set.Members {
			v.validateSet(m)
		}
	case *Union:
		v.validateSet(set.Left)
		v.validateSet(set.Right)
	case *Intersection:
		v.validateSet(set.Left)
		v.validateSet(set.Right)
	case *Substraction:
		v.validateSet(set.Left)
		v.validateSet(set.Right)
	case *Partition:
		v.validateSet(set.Source)
		v.validateExpr(set.Equivalence, "partition equivalence")
		v.validateFunction(set.Representative)
	default:
		v.addProblem("unknown set expression type %T", s)
	}
}

func (v *validator) requireName(name, what string) {
	if name == "" {
		v.addProblem("%s without type name", what)
	}
}

func (v *validator) validateExpr(e Expression, what string) {
	switch expr := e.(type) {
	case nil:
		v.addProblem("missing %s", what)
	case *Literal:
		if value.IsNull(expr.Value) {
			v.addProblem("null literal")
		}
	case *Parameter:
		v.requireName(expr.Name, "parameter reference")
	case *ContextAccess, *RequestedHistoryContext:
	case *Attribute:
		v.validateExpr(expr.Context, "attribute context")
		v.requireName(expr.OwnerType, "attribute "+expr.Name)
	case *Reference:
		v.validateExpr(expr.Context, "reference context")
		v.requireName(expr.OwnerType, "reference "+expr.Name)
	case *Flex:
		v.validateExpr(expr.Context, "flex context")
		v.requireName(expr.TypeName, "flex "+expr.Name)
	case *GetEntry:
		v.validateExpr(expr.Context, "entry context")
		if expr.Index < 0 {
			v.addProblem("negative entry index %d", expr.Index)
		}
	case *BinaryOperation:
		v.validateExpr(expr.Left, expr.Op.String()+" left operand")
		v.validateExpr(expr.Right, expr.Op.String()+" right operand")
	case *UnaryOperation:
		v.validateExpr(expr.Operand, expr.Op.String()+" operand")
	case *Tuple:
		if len(expr.Entries) == 0 {
			v.addProblem("empty tuple")
		}
		for _, entry := range expr.Entries {
			v.validateExpr(entry, "tuple entry")
		}
	case *Eval:
		v.validateExpr(expr.Context, "eval context")
		v.validateExpr(expr.Inner, "eval expression")
	case *InSet:
		v.validateExpr(expr.Context, "inSet context")
		v.validateSet(expr.Set)
	case *Matches:
		v.validateExpr(expr.Inner, "matches operand")
		if expr.Pattern == nil {
			v.addProblem("matches without pattern")
		}
	case *HasType:
		v.validateExpr(expr.Context, "hasType context")
		v.requireName(expr.TypeName, "hasType")
	case *InstanceOf:
		v.validateExpr(expr.Context, "instanceOf context")
		v.requireName(expr.TypeName, "instanceOf")
	case *IsCurrent:
		v.validateExpr(expr.Context, "isCurrent context")
	default:
		v.addProblem("unknown expression type %T", e)
	}
}
