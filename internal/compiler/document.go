package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// DecodeQuery decodes a YAML query document:
//
//	params:
//	  - {name: min, type: int}
//	search:
//	  where:
//	    source: {all: Person}
//	    predicate: {ge: [{attr: Person.age}, {param: min}]}
//	order:
//	  - desc: {attr: Person.age}
//
// A document with a history section decodes to a history query:
//
//	history: {branch: b, revision: r}
//
// Scalars in expression position are literals. Every other node is a mapping
// with a single operator key; see the package tests for the full vocabulary.
func DecodeQuery(data []byte) (query.Query, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Path: "$", Message: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &DocumentError{Path: "$", Message: "empty document"}
	}
	return DecodeQueryNode(doc.Content[0])
}

// DecodeQueryNode decodes a query document embedded in a larger YAML file.
func DecodeQueryNode(n *yaml.Node) (query.Query, error) {
	var d decoder
	return d.query(n, "$")
}

type decoder struct{}

func (decoder) errorf(n *yaml.Node, path, format string, args ...any) error {
	e := &DocumentError{Path: path, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

// fields returns the entries of mapping n, rejecting keys not in allowed.
func (d decoder) fields(n *yaml.Node, path string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, path, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return nil, d.errorf(n.Content[i], path, "unknown field %q", key)
		}
		out[key] = n.Content[i+1]
	}
	return out, nil
}

func (d decoder) require(n *yaml.Node, fields map[string]*yaml.Node, path string, names ...string) error {
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			return d.errorf(n, path, "missing field %q", name)
		}
	}
	return nil
}

// op splits a single-key operator mapping.
func (d decoder) op(n *yaml.Node, path string) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, d.errorf(n, path, "expected a mapping with exactly one operator")
	}
	return n.Content[0].Value, n.Content[1], nil
}

func (d decoder) str(n *yaml.Node, path string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", d.errorf(n, path, "expected a string")
	}
	return n.Value, nil
}

func (d decoder) seq(n *yaml.Node, path string, min int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, path, "expected a list")
	}
	if len(n.Content) < min {
		return nil, d.errorf(n, path, "expected at least %d entries, got %d", min, len(n.Content))
	}
	return n.Content, nil
}

func (d decoder) value(n *yaml.Node, path string) (value.Value, error) {
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, d.errorf(n, path, "%v", err)
	}
	v, err := value.FromGo(raw)
	if err != nil {
		return nil, d.errorf(n, path, "%v", err)
	}
	return v, nil
}

func (d decoder) query(n *yaml.Node, path string) (query.Query, error) {
	f, err := d.fields(n, path, "params", "search", "order", "history")
	if err != nil {
		return nil, err
	}
	if err := d.require(n, f, path, "search"); err != nil {
		return nil, err
	}

	var params []*query.ParameterDeclaration
	if p, ok := f["params"]; ok {
		if params, err = d.params(p, path+".params"); err != nil {
			return nil, err
		}
	}
	search, err := d.set(f["search"], path+".search")
	if err != nil {
		return nil, err
	}

	if h, ok := f["history"]; ok {
		if _, ok := f["order"]; ok {
			return nil, d.errorf(f["order"], path+".order", "history queries are unordered")
		}
		hf, err := d.fields(h, path+".history", "branch", "revision")
		if err != nil {
			return nil, err
		}
		var branch, revision string
		if b, ok := hf["branch"]; ok {
			if branch, err = d.str(b, path+".history.branch"); err != nil {
				return nil, err
			}
		}
		if r, ok := hf["revision"]; ok {
			if revision, err = d.str(r, path+".history.revision"); err != nil {
				return nil, err
			}
		}
		return query.NewHistoryQuery(branch, revision, params, search), nil
	}

	var order query.Order
	if o, ok := f["order"]; ok {
		if order, err = d.order(o, path+".order"); err != nil {
			return nil, err
		}
	}
	return query.NewRevisionQuery(params, search, order), nil
}

func (d decoder) params(n *yaml.Node, path string) ([]*query.ParameterDeclaration, error) {
	items, err := d.seq(n, path, 0)
	if err != nil {
		return nil, err
	}
	decls := make([]*query.ParameterDeclaration, 0, len(items))
	for i, item := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		f, err := d.fields(item, p, "name", "type")
		if err != nil {
			return nil, err
		}
		if err := d.require(item, f, p, "name", "type"); err != nil {
			return nil, err
		}
		name, err := d.str(f["name"], p+".name")
		if err != nil {
			return nil, err
		}
		typeName, err := d.str(f["type"], p+".type")
		if err != nil {
			return nil, err
		}
		decls = append(decls, query.Decl(typeName, name))
	}
	return decls, nil
}

func (d decoder) order(n *yaml.Node, path string) (query.Order, error) {
	items, err := d.seq(n, path, 1)
	if err != nil {
		return nil, err
	}
	specs := make([]*query.OrderSpec, len(items))
	for i, item := range items {
		p := fmt.Sprintf("%s[%d]", path, i)
		dir, arg, err := d.op(item, p)
		if err != nil {
			return nil, err
		}
		e, err := d.expr(arg, p+"."+dir)
		if err != nil {
			return nil, err
		}
		switch dir {
		case "asc":
			specs[i] = query.Asc(e)
		case "desc":
			specs[i] = query.Desc(e)
		default:
			return nil, d.errorf(item, p, "unknown order direction %q", dir)
		}
	}
	if len(specs) == 1 {
		return specs[0], nil
	}
	return query.Orders(specs...), nil
}

var binaryOps = map[string]query.BinaryOp{
	"eq":   query.OpEq,
	"eqci": query.OpEqCI,
	"lt":   query.OpLt,
	"le":   query.OpLe,
	"gt":   query.OpGt,
	"ge":   query.OpGe,
}

// keyOps read metadata off a key; the operand defaults to the current object.
var keyOps = map[string]query.UnaryOp{
	"branch":         query.OpBranch,
	"revision":       query.OpRevision,
	"historyContext": query.OpHistoryContext,
	"identifier":     query.OpIdentifier,
	"typeName":       query.OpTypeName,
}

var referenceParts = map[string]query.ReferencePart{
	"object":   query.RefObject,
	"branch":   query.RefBranch,
	"revision": query.RefRevision,
	"name":     query.RefName,
	"type":     query.RefType,
}

func (d decoder) expr(n *yaml.Node, path string) (query.Expression, error) {
	if n.Kind == yaml.ScalarNode {
		v, err := d.value(n, path)
		if err != nil {
			return nil, err
		}
		if value.IsNull(v) {
			return nil, d.errorf(n, path, "null literals are not allowed; use isNull")
		}
		return query.Lit(v), nil
	}

	op, arg, err := d.op(n, path)
	if err != nil {
		return nil, err
	}
	path += "." + op

	if bop, ok := binaryOps[op]; ok {
		operands, err := d.exprs(arg, path, 2)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, d.errorf(arg, path, "expected 2 operands, got %d", len(operands))
		}
		return query.Binary(bop, operands[0], operands[1]), nil
	}
	if uop, ok := keyOps[op]; ok {
		operand, err := d.optionalContext(arg, path)
		if err != nil {
			return nil, err
		}
		return query.Unary(uop, operand), nil
	}

	switch op {
	case "lit":
		v, err := d.value(arg, path)
		if err != nil {
			return nil, err
		}
		if value.IsNull(v) {
			return nil, d.errorf(arg, path, "null literals are not allowed; use isNull")
		}
		return query.Lit(v), nil

	case "param":
		name, err := d.str(arg, path)
		if err != nil {
			return nil, err
		}
		return query.Param(name), nil

	case "context":
		return query.Context(), nil

	case "requestedRevision":
		return query.RequestedRevision(), nil

	case "and", "or":
		operands, err := d.exprs(arg, path, 2)
		if err != nil {
			return nil, err
		}
		combine := query.And
		if op == "or" {
			combine = query.Or
		}
		out := operands[0]
		for _, e := range operands[1:] {
			out = combine(out, e)
		}
		return out, nil

	case "not", "isNull", "isCurrent":
		operand, err := d.expr(arg, path)
		if err != nil {
			return nil, err
		}
		switch op {
		case "not":
			return query.Not(operand), nil
		case "isNull":
			return query.IsNull(operand), nil
		}
		return query.Current(operand), nil

	case "attr", "ref":
		return d.access(op, arg, path)

	case "flex":
		f, err := d.fields(arg, path, "type", "name", "of")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "type", "name"); err != nil {
			return nil, err
		}
		typeName, err := d.str(f["type"], path+".type")
		if err != nil {
			return nil, err
		}
		name, err := d.str(f["name"], path+".name")
		if err != nil {
			return nil, err
		}
		context, err := d.of(f, path)
		if err != nil {
			return nil, err
		}
		return query.FlexOf(context, typeName, name), nil

	case "entry":
		if arg.Kind == yaml.ScalarNode {
			i, err := d.index(arg, path)
			if err != nil {
				return nil, err
			}
			return query.Entry(i), nil
		}
		f, err := d.fields(arg, path, "index", "of")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "index"); err != nil {
			return nil, err
		}
		i, err := d.index(f["index"], path+".index")
		if err != nil {
			return nil, err
		}
		context, err := d.of(f, path)
		if err != nil {
			return nil, err
		}
		return query.EntryOf(context, i), nil

	case "tuple":
		entries, err := d.exprs(arg, path, 1)
		if err != nil {
			return nil, err
		}
		return query.NewTuple(entries...), nil

	case "eval":
		f, err := d.fields(arg, path, "of", "expr")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "of", "expr"); err != nil {
			return nil, err
		}
		context, err := d.expr(f["of"], path+".of")
		if err != nil {
			return nil, err
		}
		inner, err := d.expr(f["expr"], path+".expr")
		if err != nil {
			return nil, err
		}
		return query.EvalIn(context, inner), nil

	case "in":
		f, err := d.fields(arg, path, "value", "set")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "set"); err != nil {
			return nil, err
		}
		set, err := d.set(f["set"], path+".set")
		if err != nil {
			return nil, err
		}
		if _, ok := f["value"]; !ok {
			return query.In(set), nil
		}
		v, err := d.expr(f["value"], path+".value")
		if err != nil {
			return nil, err
		}
		return query.InSetOf(v, set), nil

	case "match":
		f, err := d.fields(arg, path, "pattern", "value")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "pattern", "value"); err != nil {
			return nil, err
		}
		pattern, err := d.str(f["pattern"], path+".pattern")
		if err != nil {
			return nil, err
		}
		v, err := d.expr(f["value"], path+".value")
		if err != nil {
			return nil, err
		}
		e, err := query.CompilePattern(pattern, v)
		if err != nil {
			return nil, d.errorf(f["pattern"], path+".pattern", "%v", err)
		}
		return e, nil

	case "hasType", "instanceOf":
		var typeName string
		context := query.Context()
		if arg.Kind == yaml.ScalarNode {
			if typeName, err = d.str(arg, path); err != nil {
				return nil, err
			}
		} else {
			f, err := d.fields(arg, path, "type", "of")
			if err != nil {
				return nil, err
			}
			if err := d.require(arg, f, path, "type"); err != nil {
				return nil, err
			}
			if typeName, err = d.str(f["type"], path+".type"); err != nil {
				return nil, err
			}
			if context, err = d.of(f, path); err != nil {
				return nil, err
			}
		}
		if op == "hasType" {
			return query.HasTypeOf(context, typeName), nil
		}
		return query.InstanceOfExpr(context, typeName), nil
	}
	return nil, d.errorf(n, path, "unknown operator %q", op)
}

func (d decoder) exprs(n *yaml.Node, path string, min int) ([]query.Expression, error) {
	items, err := d.seq(n, path, min)
	if err != nil {
		return nil, err
	}
	out := make([]query.Expression, len(items))
	for i, item := range items {
		if out[i], err = d.expr(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// of decodes the optional "of" context field.
func (d decoder) of(f map[string]*yaml.Node, path string) (query.Expression, error) {
	n, ok := f["of"]
	if !ok {
		return query.Context(), nil
	}
	return d.expr(n, path+".of")
}

func (d decoder) optionalContext(n *yaml.Node, path string) (query.Expression, error) {
	if n.Kind == yaml.ScalarNode && (n.Tag == "!!null" || n.Value == "") {
		return query.Context(), nil
	}
	return d.expr(n, path)
}

func (d decoder) index(n *yaml.Node, path string) (int, error) {
	if n.Kind != yaml.ScalarNode {
		return 0, d.errorf(n, path, "expected an entry index")
	}
	i, err := strconv.Atoi(n.Value)
	if err != nil || i < 0 {
		return 0, d.errorf(n, path, "invalid entry index %q", n.Value)
	}
	return i, nil
}

// access decodes attr and ref: either "Owner.name" or a mapping with name,
// of and, for references, part.
func (d decoder) access(op string, n *yaml.Node, path string) (query.Expression, error) {
	qualified := ""
	context := query.Context()
	part := query.RefObject

	if n.Kind == yaml.ScalarNode {
		s, err := d.str(n, path)
		if err != nil {
			return nil, err
		}
		qualified = s
	} else {
		allowed := []string{"name", "of"}
		if op == "ref" {
			allowed = append(allowed, "part")
		}
		f, err := d.fields(n, path, allowed...)
		if err != nil {
			return nil, err
		}
		if err := d.require(n, f, path, "name"); err != nil {
			return nil, err
		}
		if qualified, err = d.str(f["name"], path+".name"); err != nil {
			return nil, err
		}
		if context, err = d.of(f, path); err != nil {
			return nil, err
		}
		if p, ok := f["part"]; ok {
			name, err := d.str(p, path+".part")
			if err != nil {
				return nil, err
			}
			if part, ok = referenceParts[name]; !ok {
				return nil, d.errorf(p, path+".part", "unknown reference part %q", name)
			}
		}
	}

	owner, name, ok := strings.Cut(qualified, ".")
	if !ok || owner == "" || name == "" {
		return nil, d.errorf(n, path, "expected Owner.attribute, got %q", qualified)
	}
	if op == "attr" {
		return query.AttrOf(context, owner, name), nil
	}
	return query.RefOf(context, owner, name, part), nil
}

func (d decoder) set(n *yaml.Node, path string) (query.SetExpression, error) {
	op, arg, err := d.op(n, path)
	if err != nil {
		return nil, err
	}
	path += "." + op

	switch op {
	case "none":
		return query.Empty(), nil

	case "all", "any":
		typeName, err := d.str(arg, path)
		if err != nil {
			return nil, err
		}
		if op == "all" {
			return query.All(typeName), nil
		}
		return query.Any(typeName), nil

	case "literals":
		items, err := d.seq(arg, path, 0)
		if err != nil {
			return nil, err
		}
		values := make([]value.Value, len(items))
		for i, item := range items {
			if values[i], err = d.value(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return nil, err
			}
		}
		return query.Literals(values...), nil

	case "param":
		name, err := d.str(arg, path)
		if err != nil {
			return nil, err
		}
		return query.SetParam(name), nil

	case "where":
		f, err := d.fields(arg, path, "source", "predicate")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "source", "predicate"); err != nil {
			return nil, err
		}
		source, err := d.set(f["source"], path+".source")
		if err != nil {
			return nil, err
		}
		pred, err := d.expr(f["predicate"], path+".predicate")
		if err != nil {
			return nil, err
		}
		return query.Where(source, pred), nil

	case "map":
		f, err := d.fields(arg, path, "source", "to")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "source", "to"); err != nil {
			return nil, err
		}
		source, err := d.set(f["source"], path+".source")
		if err != nil {
			return nil, err
		}
		mapping, err := d.expr(f["to"], path+".to")
		if err != nil {
			return nil, err
		}
		return query.Map(source, mapping), nil

	case "cross":
		members, err := d.sets(arg, path, 1)
		if err != nil {
			return nil, err
		}
		return query.Cross(members...), nil

	case "union", "intersect", "minus":
		operands, err := d.sets(arg, path, 2)
		if err != nil {
			return nil, err
		}
		if len(operands) != 2 {
			return nil, d.errorf(arg, path, "expected 2 operands, got %d", len(operands))
		}
		switch op {
		case "union":
			return query.UnionOf(operands[0], operands[1]), nil
		case "intersect":
			return query.IntersectionOf(operands[0], operands[1]), nil
		}
		return query.Minus(operands[0], operands[1]), nil

	case "partition":
		f, err := d.fields(arg, path, "source", "by", "yield")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "source", "by", "yield"); err != nil {
			return nil, err
		}
		source, err := d.set(f["source"], path+".source")
		if err != nil {
			return nil, err
		}
		by, err := d.expr(f["by"], path+".by")
		if err != nil {
			return nil, err
		}
		yield, err := d.function(f["yield"], path+".yield")
		if err != nil {
			return nil, err
		}
		return query.PartitionBy(source, by, yield), nil

	case "navigate":
		f, err := d.fields(arg, path, "from", "links", "type", "backwards")
		if err != nil {
			return nil, err
		}
		if err := d.require(arg, f, path, "from", "links", "type"); err != nil {
			return nil, err
		}
		from, err := d.set(f["from"], path+".from")
		if err != nil {
			return nil, err
		}
		links, err := d.set(f["links"], path+".links")
		if err != nil {
			return nil, err
		}
		typeName, err := d.str(f["type"], path+".type")
		if err != nil {
			return nil, err
		}
		backwards := false
		if b, ok := f["backwards"]; ok {
			if err := b.Decode(&backwards); err != nil {
				return nil, d.errorf(b, path+".backwards", "expected a bool")
			}
		}
		return query.Navigate(backwards, from, links, typeName), nil
	}
	return nil, d.errorf(n, path, "unknown set operator %q", op)
}

func (d decoder) sets(n *yaml.Node, path string, min int) ([]query.SetExpression, error) {
	items, err := d.seq(n, path, min)
	if err != nil {
		return nil, err
	}
	out := make([]query.SetExpression, len(items))
	for i, item := range items {
		if out[i], err = d.set(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d decoder) function(n *yaml.Node, path string) (query.Function, error) {
	op, arg, err := d.op(n, path)
	if err != nil {
		return nil, err
	}
	path += "." + op
	var reduce func(query.Expression) query.Function
	switch op {
	case "count":
		return query.CountOf(), nil
	case "sum":
		reduce = query.SumOf
	case "min":
		reduce = query.MinOf
	case "max":
		reduce = query.MaxOf
	default:
		return nil, d.errorf(n, path, "unknown function %q", op)
	}
	e, err := d.expr(arg, path)
	if err != nil {
		return nil, err
	}
	return reduce(e), nil
}
