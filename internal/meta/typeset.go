package meta

import (
	"sort"
	"strings"
)

// TypeSet is an immutable set of types keyed by name.
// The zero value is the empty set.
type TypeSet struct {
	m map[string]MetaObject
}

// NewTypeSet creates a set from the given types.
func NewTypeSet(types ...MetaObject) TypeSet {
	s := TypeSet{m: make(map[string]MetaObject, len(types))}
	for _, t := range types {
		if t != nil {
			s.m[t.Name()] = t
		}
	}
	return s
}

// Len returns the number of types in the set.
func (s TypeSet) Len() int { return len(s.m) }

// Contains reports whether t is in the set.
func (s TypeSet) Contains(t MetaObject) bool {
	if t == nil {
		return false
	}
	_, ok := s.m[t.Name()]
	return ok
}

// Slice returns the members sorted by name.
func (s TypeSet) Slice() []MetaObject {
	out := make([]MetaObject, 0, len(s.m))
	for _, t := range s.m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Single returns the only member of a singleton set.
func (s TypeSet) Single() (MetaObject, bool) {
	if len(s.m) != 1 {
		return nil, false
	}
	for _, t := range s.m {
		return t, true
	}
	return nil, false
}

// With returns a copy of s with t added.
func (s TypeSet) With(t MetaObject) TypeSet {
	out := s.clone()
	if t != nil {
		out.m[t.Name()] = t
	}
	return out
}

// Union returns s ∪ o.
func (s TypeSet) Union(o TypeSet) TypeSet {
	out := s.clone()
	for k, t := range o.m {
		out.m[k] = t
	}
	return out
}

// Intersect returns s ∩ o.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	out := TypeSet{m: make(map[string]MetaObject)}
	for k, t := range s.m {
		if _, ok := o.m[k]; ok {
			out.m[k] = t
		}
	}
	return out
}

// Minus returns s \ o.
func (s TypeSet) Minus(o TypeSet) TypeSet {
	out := TypeSet{m: make(map[string]MetaObject)}
	for k, t := range s.m {
		if _, ok := o.m[k]; !ok {
			out.m[k] = t
		}
	}
	return out
}

// Equal reports whether both sets have the same members.
func (s TypeSet) Equal(o TypeSet) bool {
	if len(s.m) != len(o.m) {
		return false
	}
	for k := range s.m {
		if _, ok := o.m[k]; !ok {
			return false
		}
	}
	return true
}

// Names returns the sorted member names.
func (s TypeSet) Names() []string {
	names := make([]string, 0, len(s.m))
	for k := range s.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders the set as "{A, B}".
func (s TypeSet) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}

func (s TypeSet) clone() TypeSet {
	out := TypeSet{m: make(map[string]MetaObject, len(s.m)+1)}
	for k, t := range s.m {
		out.m[k] = t
	}
	return out
}
