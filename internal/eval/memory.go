package eval

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/roach88/kquery/internal/value"
)

// Memory is an in-memory Resolver and Extent.
type Memory struct {
	mu       sync.RWMutex
	versions map[objectID][]*Object
}

type objectID struct {
	branch int64
	id     string
}

var (
	_ Resolver = (*Memory)(nil)
	_ Extent   = (*Memory)(nil)
)

// NewMemory creates an empty store.
func NewMemory(objects ...*Object) *Memory {
	m := &Memory{versions: make(map[objectID][]*Object)}
	for _, obj := range objects {
		m.Add(obj)
	}
	return m
}

// Add records one object version. An uncommitted object replaces every
// version recorded before it.
func (m *Memory) Add(obj *Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := objectID{obj.Key.Branch, obj.Key.ID}
	if !obj.Committed {
		m.versions[id] = []*Object{obj}
		return
	}
	m.versions[id] = append(m.versions[id], obj)
}

// Resolve returns the version of key alive at revision.
func (m *Memory) Resolve(key value.Key, revision int64) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, obj := range m.versions[objectID{key.Branch, key.ID}] {
		if obj.AliveAt(revision) {
			return obj, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "%s at revision %d", key, revision)
}

// Instances returns the current keys of the objects of exactly typeName
// alive at revision.
func (m *Memory) Instances(typeName string, revision int64) ([]value.Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []value.Key
	for _, versions := range m.versions {
		for _, obj := range versions {
			if obj.Key.Type == typeName && obj.AliveAt(revision) {
				keys = append(keys, obj.Key.AsCurrent())
				break
			}
		}
	}
	slices.SortFunc(keys, func(a, b value.Key) int {
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Branch, b.Branch)
	})
	return keys, nil
}
