package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/value"
)

// Head returns the latest revision, or 0 for an empty store.
func (s *Store) Head(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) FROM revisions`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}
	return rev, nil
}

// Revisions returns the revision log in ascending order. Keys are not filled.
func (s *Store) Revisions(ctx context.Context) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rev, message, changes FROM revisions ORDER BY rev ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []Revision{}
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.Rev, &r.Message, &r.Changes); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// Resolve returns the version of key alive at revision.
// Returns an error wrapping eval.ErrNotFound if there is none.
func (s *Store) Resolve(ctx context.Context, key value.Key, revision int64) (*eval.Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT branch, id, type, rev_min, rev_max, attrs, flex
		FROM objects
		WHERE branch = ? AND id = ? AND rev_min <= ? AND rev_max >= ?
	`, key.Branch, key.ID, revision, revision)

	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s at revision %d: %w", key, revision, eval.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	return obj, nil
}

// Instances returns the current keys of the objects of exactly typeName
// alive at revision, ordered by identifier.
func (s *Store) Instances(ctx context.Context, typeName string, revision int64) ([]value.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT branch, id
		FROM objects
		WHERE type = ? AND rev_min <= ? AND rev_max >= ?
		ORDER BY id COLLATE BINARY ASC, branch ASC
	`, typeName, revision, revision)
	if err != nil {
		return nil, fmt.Errorf("query instances of %s: %w", typeName, err)
	}
	defer rows.Close()

	keys := []value.Key{}
	for rows.Next() {
		k := value.Key{Type: typeName, Revision: value.Current}
		if err := rows.Scan(&k.Branch, &k.ID); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return keys, nil
}

// scanner is the common interface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*eval.Object, error) {
	var (
		obj         eval.Object
		attrs, flex string
	)
	obj.Committed = true
	obj.Key.Revision = value.Current
	if err := row.Scan(&obj.Key.Branch, &obj.Key.ID, &obj.Key.Type, &obj.RevMin, &obj.RevMax, &attrs, &flex); err != nil {
		return nil, err
	}

	var err error
	if obj.Attributes, err = unmarshalAttrs(attrs); err != nil {
		return nil, err
	}
	if obj.Flex, err = unmarshalAttrs(flex); err != nil {
		return nil, err
	}
	return &obj, nil
}
