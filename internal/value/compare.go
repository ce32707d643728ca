package value

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrIncomparable is returned by Compare for values without an order.
var ErrIncomparable = errors.New("incomparable values")

// ErrNull is returned by Compare when either operand is null.
var ErrNull = errors.New("null operand")

// Equal reports deep equality. Keys are equal when they identify the same
// object version; Null equals only Null.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch x := a.(type) {
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Key:
		y, ok := b.(Key)
		return ok && x == y
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case List:
		y, ok := b.(List)
		return ok && equalSlices(x, y)
	case Record:
		y, ok := b.(Record)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compare orders two values of the same kind. Strings compare bytewise,
// false sorts before true, tuples compare lexicographically and keys by
// (type, id, branch, revision).
func Compare(a, b Value) (int, error) {
	if IsNull(a) || IsNull(b) {
		return 0, ErrNull
	}
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	case Int:
		if y, ok := b.(Int); ok {
			return cmpInt(int64(x), int64(y)), nil
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			return cmpInt(boolRank(x), boolRank(y)), nil
		}
	case Key:
		if y, ok := b.(Key); ok {
			if c := strings.Compare(x.Type, y.Type); c != 0 {
				return c, nil
			}
			if c := strings.Compare(x.ID, y.ID); c != 0 {
				return c, nil
			}
			if c := cmpInt(x.Branch, y.Branch); c != 0 {
				return c, nil
			}
			return cmpInt(x.Revision, y.Revision), nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok && len(x) == len(y) {
			for i := range x {
				c, err := Compare(x[i], y[i])
				if err != nil {
					return 0, fmt.Errorf("entry %d: %w", i, err)
				}
				if c != 0 {
					return c, nil
				}
			}
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrIncomparable, KindName(a), KindName(b))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolRank(b Bool) int64 {
	if b {
		return 1
	}
	return 0
}

// EqualFold reports whether two strings are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	// A Caser is stateful; one per call keeps this safe for concurrent use.
	return cases.Fold().String(a) == cases.Fold().String(b)
}
