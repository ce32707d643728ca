package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/value"
)

// ErrExists is returned when a create reuses the identifier of a live object.
var ErrExists = errors.New("object already exists")

// Op is the kind of a Change.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "op?"
	}
}

// Change is one object modification of a commit.
//
// Creates need Key.Type; an empty Key.ID is generated. Updates and deletes
// address the live version by Key.Branch and Key.ID. An update replaces the
// attribute and flex records as a whole.
type Change struct {
	Op         Op
	Key        value.Key
	Attributes value.Record
	Flex       value.Record
}

// Revision describes one entry of the revision log.
type Revision struct {
	Rev     int64
	Message string
	Changes int

	// Keys are the current keys of the objects written by the commit, in
	// change order. Deletes contribute no key.
	Keys []value.Key
}

// Commit applies changes atomically as one new revision.
//
// Each object may be touched once per commit. Updating or deleting an object
// without a live version returns an error wrapping eval.ErrNotFound.
func (s *Store) Commit(ctx context.Context, message string, changes ...Change) (Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) + 1 FROM revisions`).Scan(&rev); err != nil {
		return Revision{}, fmt.Errorf("commit: next revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (rev, message, changes) VALUES (?, ?, ?)
	`, rev, message, len(changes)); err != nil {
		return Revision{}, fmt.Errorf("commit: write revision: %w", err)
	}

	out := Revision{Rev: rev, Message: message, Changes: len(changes)}
	touched := make(map[objectID]bool, len(changes))
	for i, c := range changes {
		if c.Key.Branch == 0 {
			c.Key.Branch = value.TrunkBranch
		}
		if c.Op == OpCreate && c.Key.ID == "" {
			c.Key.ID = s.ids.Generate()
		}
		id := objectID{c.Key.Branch, c.Key.ID}
		if touched[id] {
			return Revision{}, fmt.Errorf("commit: change %d: %s touched twice", i, c.Key.ID)
		}
		touched[id] = true

		k, err := s.apply(ctx, tx, rev, c)
		if err != nil {
			return Revision{}, fmt.Errorf("commit: change %d (%s %s): %w", i, c.Op, c.Key.ID, err)
		}
		if c.Op != OpDelete {
			out.Keys = append(out.Keys, k)
		}
	}

	if err := tx.Commit(); err != nil {
		return Revision{}, fmt.Errorf("commit: %w", err)
	}

	slog.Debug("revision committed", "rev", rev, "changes", len(changes), "message", message)
	return out, nil
}

type objectID struct {
	branch int64
	id     string
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, rev int64, c Change) (value.Key, error) {
	k := value.Key{Branch: c.Key.Branch, ID: c.Key.ID, Type: c.Key.Type, Revision: value.Current}

	var liveType string
	err := tx.QueryRowContext(ctx, `
		SELECT type FROM objects WHERE branch = ? AND id = ? AND rev_max = ?
	`, k.Branch, k.ID, value.Current).Scan(&liveType)
	live := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return k, fmt.Errorf("read live version: %w", err)
	}

	switch c.Op {
	case OpCreate:
		if live {
			return k, ErrExists
		}
		if k.Type == "" {
			return k, errors.New("create without type")
		}
	case OpUpdate, OpDelete:
		if !live {
			return k, eval.ErrNotFound
		}
		k.Type = liveType
		if _, err := tx.ExecContext(ctx, `
			UPDATE objects SET rev_max = ? WHERE branch = ? AND id = ? AND rev_max = ?
		`, rev-1, k.Branch, k.ID, value.Current); err != nil {
			return k, fmt.Errorf("close live version: %w", err)
		}
		if c.Op == OpDelete {
			return k, nil
		}
	default:
		return k, fmt.Errorf("unknown op %d", c.Op)
	}

	attrs, err := marshalAttrs(c.Attributes)
	if err != nil {
		return k, err
	}
	flex, err := marshalAttrs(c.Flex)
	if err != nil {
		return k, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO objects (branch, id, type, rev_min, rev_max, attrs, flex)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, k.Branch, k.ID, k.Type, rev, value.Current, attrs, flex); err != nil {
		return k, fmt.Errorf("write version: %w", err)
	}
	return k, nil
}
