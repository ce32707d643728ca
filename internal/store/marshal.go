package store

import (
	"fmt"
	"strconv"

	"github.com/roach88/kquery/internal/value"
)

// AttrPath returns the SQLite JSON path of an attribute stored in the attrs
// or flex column. Keys are the attribute names as declared; names that are
// not plain identifiers are quoted.
func AttrPath(name string) string {
	if plainKey(name) {
		return "$." + name
	}
	return "$." + strconv.Quote(name)
}

func plainKey(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// marshalAttrs converts an attribute record to canonical JSON TEXT. Null
// attributes are omitted.
func marshalAttrs(attrs value.Record) (string, error) {
	stored := make(value.Record, len(attrs))
	for name, v := range attrs {
		if value.IsNull(v) {
			continue
		}
		stored[name] = v
	}
	data, err := value.MarshalCanonical(stored)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

// unmarshalAttrs parses canonical JSON TEXT back into an attribute record.
func unmarshalAttrs(data string) (value.Record, error) {
	if data == "" || data == "{}" {
		return value.Record{}, nil
	}
	attrs, err := value.DecodeRecord([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return attrs, nil
}
