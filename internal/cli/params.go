package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/kquery/internal/meta"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/value"
)

// ParseParams binds the declared parameters of q. Command line values are
// name=value pairs converted by declared type; defaults come from the
// project file and are overridden by flags. Object parameters are written
// Type:id, or id alone to use the declared type. The branch and revision
// parameters of a history query are optional ints.
func ParseParams(q query.Query, flags []string, defaults map[string]any) (map[string]value.Value, error) {
	decls := make(map[string]string)
	optional := make(map[string]bool)
	if hq, ok := q.(*query.HistoryQuery); ok {
		for _, name := range []string{hq.BranchParam, hq.RevisionParam} {
			if name != "" {
				decls[name] = meta.IntName
				optional[name] = true
			}
		}
	}
	for _, d := range q.Parameters() {
		decls[d.Name] = d.TypeName
	}

	params := make(map[string]value.Value, len(decls))
	for name, raw := range defaults {
		typeName, ok := decls[name]
		if !ok {
			continue
		}
		v, err := defaultParam(typeName, raw)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("parameter %s: %v", name, err)}
		}
		params[name] = v
	}

	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")
		if !ok || name == "" {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("invalid parameter %q: expected name=value", flag)}
		}
		typeName, ok := decls[name]
		if !ok {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("undeclared parameter %q", name)}
		}
		v, err := parseParam(typeName, raw)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("parameter %s: %v", name, err)}
		}
		params[name] = v
	}

	for _, name := range slices.Sorted(maps.Keys(decls)) {
		if _, ok := params[name]; !ok && !optional[name] {
			return nil, &LoadError{Code: ErrCodeParam, Message: fmt.Sprintf("missing value for parameter %q", name)}
		}
	}
	return params, nil
}

func parseParam(typeName, raw string) (value.Value, error) {
	switch typeName {
	case meta.StringName:
		return value.String(raw), nil
	case meta.IntName:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", raw)
		}
		return value.Int(i), nil
	case meta.BoolName:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return value.Bool(b), nil
	}

	objectType, id, ok := strings.Cut(raw, ":")
	if !ok {
		objectType, id = typeName, raw
	}
	if id == "" {
		return nil, fmt.Errorf("empty object id")
	}
	return value.Key{Branch: value.TrunkBranch, ID: id, Type: objectType, Revision: value.Current}, nil
}

// defaultParam converts a TOML value. Strings follow the command line
// syntax; other values must already have the declared type.
func defaultParam(typeName string, raw any) (value.Value, error) {
	if s, ok := raw.(string); ok {
		return parseParam(typeName, s)
	}
	return value.FromGo(raw)
}
