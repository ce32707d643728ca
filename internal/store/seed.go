package store

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kquery/internal/value"
)

// Seed is a YAML description of a sequence of commits on the trunk branch:
//
//	revisions:
//	  - message: initial
//	    create:
//	      - {id: bob, type: Person, attrs: {name: Bob, pet: {$ref: rex}}}
//	      - {id: rex, type: Dog, attrs: {name: Rex, owner: {$ref: bob}}}
//	  - message: rex leaves
//	    delete: [rex]
//
// A {$ref: id} attribute value is the current key of the object with that
// identifier anywhere in the seed. Objects without an id get a generated one
// and cannot be referenced.
type Seed struct {
	Revisions []SeedRevision `yaml:"revisions"`
}

// SeedRevision is one commit of a Seed.
type SeedRevision struct {
	Message string       `yaml:"message"`
	Create  []SeedObject `yaml:"create"`
	Update  []SeedObject `yaml:"update"`
	Delete  []string     `yaml:"delete"`
}

// SeedObject describes one object version. Type is only read on create.
type SeedObject struct {
	ID    string         `yaml:"id"`
	Type  string         `yaml:"type"`
	Attrs map[string]any `yaml:"attrs"`
	Flex  map[string]any `yaml:"flex"`
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Load commits every revision of seed and returns the keys of the created
// objects by identifier.
func (s *Store) Load(ctx context.Context, seed *Seed) (map[string]value.Key, error) {
	keys := make(map[string]value.Key)
	for _, r := range seed.Revisions {
		for _, obj := range r.Create {
			if obj.ID != "" {
				keys[obj.ID] = value.Key{Branch: value.TrunkBranch, ID: obj.ID, Type: obj.Type, Revision: value.Current}
			}
		}
	}

	for i, r := range seed.Revisions {
		var changes []Change
		for _, obj := range r.Create {
			c, err := seedChange(OpCreate, obj, keys)
			if err != nil {
				return nil, fmt.Errorf("revision %d: %w", i+1, err)
			}
			changes = append(changes, c)
		}
		for _, obj := range r.Update {
			c, err := seedChange(OpUpdate, obj, keys)
			if err != nil {
				return nil, fmt.Errorf("revision %d: %w", i+1, err)
			}
			changes = append(changes, c)
		}
		for _, id := range r.Delete {
			changes = append(changes, Change{Op: OpDelete, Key: value.Key{Branch: value.TrunkBranch, ID: id}})
		}
		if _, err := s.Commit(ctx, r.Message, changes...); err != nil {
			return nil, fmt.Errorf("revision %d: %w", i+1, err)
		}
	}
	return keys, nil
}

func seedChange(op Op, obj SeedObject, keys map[string]value.Key) (Change, error) {
	attrs, err := seedRecord(obj.Attrs, keys)
	if err != nil {
		return Change{}, fmt.Errorf("%s attrs: %w", obj.ID, err)
	}
	flex, err := seedRecord(obj.Flex, keys)
	if err != nil {
		return Change{}, fmt.Errorf("%s flex: %w", obj.ID, err)
	}
	return Change{
		Op:         op,
		Key:        value.Key{Branch: value.TrunkBranch, ID: obj.ID, Type: obj.Type},
		Attributes: attrs,
		Flex:       flex,
	}, nil
}

func seedRecord(raw map[string]any, keys map[string]value.Key) (value.Record, error) {
	rec := make(value.Record, len(raw))
	for name, field := range raw {
		v, err := SeedValue(field, keys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rec[name] = v
	}
	return rec, nil
}

// SeedValue converts decoded YAML into a value, resolving {$ref: id} through
// keys.
func SeedValue(raw any, keys map[string]value.Key) (value.Value, error) {
	switch v := raw.(type) {
	case map[string]any:
		if ref, ok := v["$ref"]; ok && len(v) == 1 {
			id, ok := ref.(string)
			if !ok {
				return nil, fmt.Errorf("$ref: expected string, got %T", ref)
			}
			k, ok := keys[id]
			if !ok {
				return nil, fmt.Errorf("$ref: unknown object %q", id)
			}
			return k, nil
		}
	case []any:
		list := make(value.List, len(v))
		for i, elem := range v {
			ev, err := SeedValue(elem, keys)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	}
	return value.FromGo(raw)
}
