package store

import (
	"context"
	"errors"
	"testing"

	"github.com/kr/pretty"

	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/query"
	"github.com/roach88/kquery/internal/testutil"
	"github.com/roach88/kquery/internal/value"
)

func TestCommit_CreateAndResolve(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rev, err := s.Commit(ctx, "initial",
		Change{Op: OpCreate, Key: value.Key{Type: "Person"}, Attributes: value.Record{"name": value.String("Ann"), "birthYear": value.Int(1990)}},
		Change{Op: OpCreate, Key: value.Key{ID: "rex", Type: "Dog"}, Flex: value.Record{"nick": value.String("Rexy")}},
	)
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if rev.Rev != 1 {
		t.Errorf("Rev = %d, want 1", rev.Rev)
	}
	want := []value.Key{trunk("Person", "obj-1"), trunk("Dog", "rex")}
	if diff := pretty.Diff(want, rev.Keys); len(diff) > 0 {
		t.Errorf("Keys differ: %v", diff)
	}

	obj, err := s.Resolve(ctx, trunk("Person", "obj-1"), 1)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if got := obj.Attributes["birthYear"]; got != value.Int(1990) {
		t.Errorf("birthYear = %v, want 1990", got)
	}
	if obj.RevMin != 1 || obj.RevMax != value.Current || !obj.Committed {
		t.Errorf("bounds = %d..%d committed=%v", obj.RevMin, obj.RevMax, obj.Committed)
	}

	var attrs string
	if err := s.db.QueryRow("SELECT attrs FROM objects WHERE id = 'obj-1'").Scan(&attrs); err != nil {
		t.Fatalf("read attrs: %v", err)
	}
	if attrs != `{"birthYear":1990,"name":"Ann"}` {
		t.Errorf("stored attrs = %s", attrs)
	}

	dog, err := s.Resolve(ctx, trunk("Dog", "rex"), 1)
	if err != nil {
		t.Fatalf("Resolve(rex) failed: %v", err)
	}
	if got := dog.Flex["nick"]; got != value.String("Rexy") {
		t.Errorf("nick = %v", got)
	}
}

func TestCommit_AttributeNamesRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	attrs := value.Record{"ownerID": value.Int(7), "first_name": value.String("Ann")}
	flex := value.Record{"legacy_code": value.String("X")}
	mustCommit(t, s, Change{Op: OpCreate, Key: value.Key{ID: "ann", Type: "Person"}, Attributes: attrs, Flex: flex})

	obj, err := s.Resolve(ctx, trunk("Person", "ann"), 1)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if diff := pretty.Diff(attrs, obj.Attributes); len(diff) > 0 {
		t.Errorf("Attributes differ: %v", diff)
	}
	if diff := pretty.Diff(flex, obj.Flex); len(diff) > 0 {
		t.Errorf("Flex differs: %v", diff)
	}

	// json_extract paths must address the stored keys.
	tests := []struct {
		column string
		name   string
		want   string
	}{
		{"attrs", "ownerID", "7"},
		{"attrs", "first_name", "Ann"},
		{"flex", "legacy_code", "X"},
	}
	for _, tt := range tests {
		var got string
		stmt := "SELECT json_extract(" + tt.column + ", ?) FROM objects WHERE id = 'ann'"
		if err := s.db.QueryRow(stmt, AttrPath(tt.name)).Scan(&got); err != nil {
			t.Fatalf("json_extract(%s, %s): %v", tt.column, tt.name, err)
		}
		if got != tt.want {
			t.Errorf("json_extract(%s, %s) = %q, want %q", tt.column, tt.name, got, tt.want)
		}
	}
}

func TestAttrPath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"age", "$.age"},
		{"ownerID", "$.ownerID"},
		{"first_name", "$.first_name"},
		{"x2", "$.x2"},
		{"2x", `$."2x"`},
		{"full name", `$."full name"`},
		{"a.b", `$."a.b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttrPath(tt.name); got != tt.want {
				t.Errorf("AttrPath(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestCommit_UpdateKeepsHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ann := trunk("Person", "ann")

	mustCommit(t, s, Change{Op: OpCreate, Key: ann, Attributes: value.Record{"age": value.Int(17)}})
	mustCommit(t, s, Change{Op: OpUpdate, Key: ann, Attributes: value.Record{"age": value.Int(18)}})

	tests := []struct {
		revision int64
		age      value.Value
	}{
		{1, value.Int(17)},
		{2, value.Int(18)},
		{value.Current, value.Int(18)},
	}
	for _, tt := range tests {
		obj, err := s.Resolve(ctx, ann, tt.revision)
		if err != nil {
			t.Fatalf("Resolve(rev %d) failed: %v", tt.revision, err)
		}
		if obj.Attributes["age"] != tt.age {
			t.Errorf("age at %d = %v, want %v", tt.revision, obj.Attributes["age"], tt.age)
		}
	}

	old, _ := s.Resolve(ctx, ann, 1)
	if old.RevMax != 1 {
		t.Errorf("closed version RevMax = %d, want 1", old.RevMax)
	}
}

func TestCommit_Delete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rex := trunk("Dog", "rex")

	mustCommit(t, s, Change{Op: OpCreate, Key: rex})
	mustCommit(t, s, Change{Op: OpDelete, Key: rex})

	if _, err := s.Resolve(ctx, rex, 1); err != nil {
		t.Errorf("rex should exist at revision 1: %v", err)
	}
	_, err := s.Resolve(ctx, rex, 2)
	if !errors.Is(err, eval.ErrNotFound) {
		t.Errorf("Resolve after delete = %v, want ErrNotFound", err)
	}

	keys, err := s.Instances(ctx, "Dog", 2)
	if err != nil {
		t.Fatalf("Instances() failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Instances at 2 = %v, want none", keys)
	}
}

func TestCommit_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rex := trunk("Dog", "rex")
	mustCommit(t, s, Change{Op: OpCreate, Key: rex})

	tests := []struct {
		name    string
		changes []Change
		want    error
	}{
		{"duplicate create", []Change{{Op: OpCreate, Key: rex}}, ErrExists},
		{"update missing", []Change{{Op: OpUpdate, Key: trunk("Dog", "ghost")}}, eval.ErrNotFound},
		{"delete missing", []Change{{Op: OpDelete, Key: trunk("Dog", "ghost")}}, eval.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Commit(ctx, tt.name, tt.changes...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Commit() = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := s.Commit(ctx, "twice", Change{Op: OpUpdate, Key: rex}, Change{Op: OpDelete, Key: rex}); err == nil {
		t.Error("touching an object twice should fail")
	}

	head, err := s.Head(ctx)
	if err != nil {
		t.Fatalf("Head() failed: %v", err)
	}
	if head != 1 {
		t.Errorf("failed commits must not add revisions, head = %d", head)
	}
}

func TestInstances_OrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCommit(t, s,
		Change{Op: OpCreate, Key: trunk("Cat", "tom")},
		Change{Op: OpCreate, Key: trunk("Cat", "kit")},
		Change{Op: OpCreate, Key: trunk("Dog", "rex")},
	)

	keys, err := s.Instances(ctx, "Cat", 1)
	if err != nil {
		t.Fatalf("Instances() failed: %v", err)
	}
	want := []value.Key{trunk("Cat", "kit"), trunk("Cat", "tom")}
	if diff := pretty.Diff(want, keys); len(diff) > 0 {
		t.Errorf("Instances differ: %v", diff)
	}
}

func TestRevisions(t *testing.T) {
	s := createTestStore(t)
	mustCommit(t, s, Change{Op: OpCreate, Key: trunk("Cat", "tom")})

	revs, err := s.Revisions(context.Background())
	if err != nil {
		t.Fatalf("Revisions() failed: %v", err)
	}
	if len(revs) != 1 || revs[0].Rev != 1 || revs[0].Changes != 1 {
		t.Errorf("Revisions() = %# v", pretty.Formatter(revs))
	}
}

const zooSeed = `
revisions:
  - message: initial
    create:
      - {id: bob, type: Person, attrs: {name: Bob, age: 17, pet: {$ref: rex}}}
      - {id: rex, type: Dog, attrs: {name: Rex, owner: {$ref: bob}}, flex: {nick: Rexy}}
      - {id: tom, type: Cat, attrs: {name: Tom, lives: 9}}
  - message: bob turns 18
    update:
      - {id: bob, attrs: {name: Bob, age: 18, pet: {$ref: rex}}}
  - message: tom leaves
    delete: [tom]
`

func TestLoadSeed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seed, err := ParseSeed([]byte(zooSeed))
	if err != nil {
		t.Fatalf("ParseSeed() failed: %v", err)
	}
	keys, err := s.Load(ctx, seed)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if keys["rex"] != trunk("Dog", "rex") {
		t.Errorf("rex key = %v", keys["rex"])
	}

	head, _ := s.Head(ctx)
	if head != 3 {
		t.Errorf("head = %d, want 3", head)
	}

	bob, err := s.Resolve(ctx, keys["bob"], 2)
	if err != nil {
		t.Fatalf("Resolve(bob) failed: %v", err)
	}
	if bob.Attributes["pet"] != keys["rex"] {
		t.Errorf("bob.pet = %v", bob.Attributes["pet"])
	}
}

func TestLoadSeed_UnknownReference(t *testing.T) {
	s := createTestStore(t)
	seed, err := ParseSeed([]byte(`
revisions:
  - create:
      - {id: bob, type: Person, attrs: {pet: {$ref: nobody}}}
`))
	if err != nil {
		t.Fatalf("ParseSeed() failed: %v", err)
	}
	if _, err := s.Load(context.Background(), seed); err == nil {
		t.Error("expected error for unknown reference")
	}
}

// TestSnapshot_Evaluation runs the evaluators against the store.
func TestSnapshot_Evaluation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed, _ := ParseSeed([]byte(zooSeed))
	keys, err := s.Load(ctx, seed)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	ts := testutil.Zoo(t)
	snap := s.Snapshot(ctx)
	simple := eval.NewSimple(ts, snap)

	adult := query.Ge(query.Attr("Person", "age"), query.Lit(value.Int(18)))
	for rev, want := range map[int64]bool{1: false, 2: true} {
		got, err := simple.Matches(adult, keys["bob"], rev, nil)
		if err != nil {
			t.Fatalf("Matches(rev %d) failed: %v", rev, err)
		}
		if got != want {
			t.Errorf("bob adult at %d = %v, want %v", rev, got, want)
		}
	}

	ownerName := query.EvalIn(query.Ref("Dog", "owner"), query.Attr("Person", "name"))
	got, err := simple.Evaluate(ownerName, keys["rex"], 3, nil)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if got != value.String("Bob") {
		t.Errorf("rex owner name = %v", got)
	}

	pets := query.Any("Animal")
	m := eval.NewMaterializer(ts, snap)
	for rev, want := range map[int64]int{1: 2, 3: 1} {
		elems, err := m.Set(pets, eval.Context{Revision: rev, Resolver: snap})
		if err != nil {
			t.Fatalf("Set(rev %d) failed: %v", rev, err)
		}
		if len(elems) != want {
			t.Errorf("animals at %d = %v, want %d", rev, elems, want)
		}
	}
}

func mustCommit(t *testing.T, s *Store, changes ...Change) Revision {
	t.Helper()
	rev, err := s.Commit(context.Background(), "", changes...)
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return rev
}
