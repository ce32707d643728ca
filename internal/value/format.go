package value

import (
	"strconv"
	"strings"
)

// Format renders v in query notation: strings quoted, keys as Type:id@rev,
// tuples in parentheses, lists and records in brackets and braces.
func Format(v Value) string {
	var b strings.Builder
	format(&b, v)
	return b.String()
}

func format(b *strings.Builder, v Value) {
	switch v := v.(type) {
	case nil, Null:
		b.WriteString("null")
	case String:
		b.WriteString(strconv.Quote(string(v)))
	case Int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case Bool:
		b.WriteString(strconv.FormatBool(bool(v)))
	case Key:
		b.WriteString(v.String())
	case Tuple:
		b.WriteByte('(')
		formatAll(b, v)
		b.WriteByte(')')
	case List:
		b.WriteByte('[')
		formatAll(b, v)
		b.WriteByte(']')
	case Record:
		b.WriteByte('{')
		for i, k := range v.SortedKeys() {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			format(b, v[k])
		}
		b.WriteByte('}')
	}
}

func formatAll(b *strings.Builder, vs []Value) {
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, v)
	}
}
