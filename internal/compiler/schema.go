package compiler

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/kquery/internal/meta"
)

// LoadSchema loads the CUE package in dir and compiles its types.
func LoadSchema(dir string) (*meta.Schema, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("schema path %s is not a directory", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	v := cuecontext.New().BuildInstance(instances[0])
	return CompileSchema(v)
}

// CompileSchemaString compiles CUE source. filename is used in error positions.
func CompileSchemaString(src, filename string) (*meta.Schema, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileSchema(v)
}

// CompileSchema builds a schema from the "type" struct of v:
//
//	type: Animal: {abstract: true, attributes: name: string}
//	type: Person: {
//		attributes: {name: string, age: int, pet: {ref: "Animal"}}
//		mandatory: ["name"]
//	}
//	type: Dog: {extends: "Animal", attributes: owner: {ref: "Person", monomorphic: true}}
//
// Plain attributes are typed by their CUE kind (string, int or bool);
// reference attributes name their target type. Floats are rejected.
func CompileSchema(v cue.Value) (*meta.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	typesVal := v.LookupPath(cue.ParsePath("type"))
	if !typesVal.Exists() {
		return nil, &CompileError{Field: "type", Message: "no types declared", Pos: v.Pos()}
	}

	decls, err := parseTypes(typesVal)
	if err != nil {
		return nil, err
	}

	s := meta.NewSchema()
	if err := declareClasses(s, decls); err != nil {
		return nil, err
	}
	for _, d := range decls {
		if err := declareAttributes(s, d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type typeDecl struct {
	name      string
	extends   string
	abstract  bool
	attrs     []attrDecl
	mandatory map[string]bool
	val       cue.Value
}

type attrDecl struct {
	name        string
	typeName    string
	ref         bool
	monomorphic bool
	val         cue.Value
}

func parseTypes(v cue.Value) ([]*typeDecl, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []*typeDecl
	for iter.Next() {
		d := &typeDecl{name: iter.Label(), val: iter.Value(), mandatory: map[string]bool{}}
		field := "type." + d.name

		if ext := d.val.LookupPath(cue.ParsePath("extends")); ext.Exists() {
			if d.extends, err = ext.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if abs := d.val.LookupPath(cue.ParsePath("abstract")); abs.Exists() {
			if d.abstract, err = abs.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if d.attrs, err = parseAttributes(field, d.val); err != nil {
			return nil, err
		}

		if m := d.val.LookupPath(cue.ParsePath("mandatory")); m.Exists() {
			list, err := m.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for list.Next() {
				name, err := list.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				d.mandatory[name] = true
			}
		}
		for name := range d.mandatory {
			if !d.declares(name) {
				return nil, &CompileError{
					Field:   field + ".mandatory",
					Message: fmt.Sprintf("unknown attribute %q", name),
					Pos:     d.val.Pos(),
				}
			}
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (d *typeDecl) declares(name string) bool {
	for _, a := range d.attrs {
		if a.name == name {
			return true
		}
	}
	return false
}

func parseAttributes(field string, v cue.Value) ([]attrDecl, error) {
	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	if !attrsVal.Exists() {
		return nil, nil
	}
	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []attrDecl
	for iter.Next() {
		a := attrDecl{name: iter.Label(), val: iter.Value()}
		if a.val.IncompleteKind() == cue.StructKind {
			ref := a.val.LookupPath(cue.ParsePath("ref"))
			if !ref.Exists() {
				return nil, &CompileError{
					Field:   field + ".attributes." + a.name,
					Message: "struct attributes must name a reference target with ref",
					Pos:     a.val.Pos(),
				}
			}
			if a.typeName, err = ref.String(); err != nil {
				return nil, formatCUEError(err)
			}
			a.ref = true
			if mono := a.val.LookupPath(cue.ParsePath("monomorphic")); mono.Exists() {
				if a.monomorphic, err = mono.Bool(); err != nil {
					return nil, formatCUEError(err)
				}
			}
		} else if a.typeName, err = extractTypeName(field+".attributes."+a.name, a.val); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// declareClasses adds the classes of decls to s, supertypes first.
func declareClasses(s *meta.Schema, decls []*typeDecl) error {
	pending := append([]*typeDecl(nil), decls...)
	for len(pending) > 0 {
		var next []*typeDecl
		for _, d := range pending {
			if d.extends != "" {
				if _, ok := s.Class(d.extends); !ok {
					next = append(next, d)
					continue
				}
			}
			if _, err := s.AddClass(d.name, d.extends, d.abstract); err != nil {
				return &CompileError{Field: "type." + d.name, Message: err.Error(), Pos: d.val.Pos()}
			}
		}
		if len(next) == len(pending) {
			// Every remaining type extends an unknown type or takes part in a cycle.
			sort.Slice(next, func(i, j int) bool { return next[i].name < next[j].name })
			d := next[0]
			return &CompileError{
				Field:   "type." + d.name + ".extends",
				Message: fmt.Sprintf("unknown or cyclic super type %q", d.extends),
				Pos:     d.val.Pos(),
			}
		}
		pending = next
	}
	return nil
}

func declareAttributes(s *meta.Schema, d *typeDecl) error {
	owner, _ := s.Class(d.name)
	for _, a := range d.attrs {
		field := "type." + d.name + ".attributes." + a.name
		t, ok := s.Type(a.typeName)
		if !ok {
			return &CompileError{Field: field, Message: fmt.Sprintf("unknown type %q", a.typeName), Pos: a.val.Pos()}
		}
		_, err := s.AddAttribute(owner, meta.Attribute{
			Name:        a.name,
			Type:        t,
			Reference:   a.ref,
			Monomorphic: a.monomorphic,
			Mandatory:   d.mandatory[a.name],
		})
		if err != nil {
			return &CompileError{Field: field, Message: err.Error(), Pos: a.val.Pos()}
		}
	}
	return nil
}

// extractTypeName converts a CUE kind to the name of a primitive type.
// Floats are forbidden.
func extractTypeName(field string, v cue.Value) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return meta.StringName, nil
	case cue.IntKind:
		return meta.IntName, nil
	case cue.BoolKind:
		return meta.BoolName, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   field,
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}
