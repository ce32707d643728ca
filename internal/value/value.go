// Package value defines the runtime values queries are evaluated to.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the runtime value kinds.
// Only Null, String, Int, Bool, Tuple, List, Record and Key implement it.
type Value interface {
	value()
}

// Null is the absent value. Comparisons on Null fail at evaluation time;
// use the IS_NULL operator to test for it.
type Null struct{}

func (Null) value() {}

// String is a string value.
type String string

func (String) value() {}

// Int is an integer value. There are no floats.
type Int int64

func (Int) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Tuple is a fixed-arity ordered value, produced by tuple construction and
// cross products.
type Tuple []Value

func (Tuple) value() {}

// List is an ordered collection used for set-valued parameters and
// materialized results.
type List []Value

func (List) value() {}

// Record maps attribute names to values.
// Use SortedKeys() for deterministic iteration.
type Record map[string]Value

func (Record) value() {}

// Current is the revision of a key that denotes "the object as of the
// requested revision", and the upper revision bound of live object versions.
const Current int64 = math.MaxInt64

// TrunkBranch is the default branch.
const TrunkBranch int64 = 1

// Key identifies an object version.
type Key struct {
	Branch   int64
	ID       string
	Type     string
	Revision int64
}

func (Key) value() {}

// IsCurrent reports whether the key follows the requested revision.
func (k Key) IsCurrent() bool {
	return k.Revision == Current
}

// AsCurrent returns the key detached from a fixed revision.
func (k Key) AsCurrent() Key {
	k.Revision = Current
	return k
}

// SameObject reports whether both keys identify the same object,
// ignoring the revision.
func (k Key) SameObject(o Key) bool {
	return k.Branch == o.Branch && k.ID == o.ID
}

// String renders "Type:id@rev" (rev is "current" for current keys).
func (k Key) String() string {
	rev := "current"
	if !k.IsCurrent() {
		rev = fmt.Sprintf("%d", k.Revision)
	}
	return fmt.Sprintf("%s:%s@%s", k.Type, k.ID, rev)
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// KindName returns a short name of the value kind for error messages.
func KindName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Tuple:
		return "tuple"
	case List:
		return "list"
	case Record:
		return "record"
	case Key:
		return "key"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FromGo converts decoded YAML or JSON data into a Value.
// Maps with a single "$key" entry decode to keys; floats are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not supported: %s", val)
		}
		return Int(n), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not supported: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		if raw, ok := val["$key"]; ok && len(val) == 1 {
			return keyFromGo(raw)
		}
		if raw, ok := val["$tuple"]; ok && len(val) == 1 {
			elems, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("$tuple: expected array, got %T", raw)
			}
			list, err := FromGo(elems)
			if err != nil {
				return nil, fmt.Errorf("$tuple%w", err)
			}
			return Tuple(list.(List)), nil
		}
		rec := make(Record, len(val))
		for k, elem := range val {
			ev, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func keyFromGo(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("$key: expected object, got %T", raw)
	}
	k := Key{Branch: TrunkBranch, Revision: Current}
	for name, field := range m {
		fv, err := FromGo(field)
		if err != nil {
			return nil, fmt.Errorf("$key.%s: %w", name, err)
		}
		switch name {
		case "branch", "rev":
			n, ok := fv.(Int)
			if !ok {
				return nil, fmt.Errorf("$key.%s: expected int, got %s", name, KindName(fv))
			}
			if name == "branch" {
				k.Branch = int64(n)
			} else {
				k.Revision = int64(n)
			}
		case "id", "type":
			s, ok := fv.(String)
			if !ok {
				return nil, fmt.Errorf("$key.%s: expected string, got %s", name, KindName(fv))
			}
			if name == "id" {
				k.ID = string(s)
			} else {
				k.Type = string(s)
			}
		default:
			return nil, fmt.Errorf("$key: unknown field %q", name)
		}
	}
	if k.ID == "" || k.Type == "" {
		return nil, fmt.Errorf("$key: id and type are required")
	}
	return k, nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units, which differs
// from Go's UTF-8 byte order for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
