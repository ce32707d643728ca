package store

import (
	"context"

	"github.com/roach88/kquery/internal/eval"
	"github.com/roach88/kquery/internal/value"
)

// Snapshot reads the store through the evaluator interfaces. Every read runs
// under the context the snapshot was taken with.
type Snapshot struct {
	s   *Store
	ctx context.Context
}

var (
	_ eval.Resolver = Snapshot{}
	_ eval.Extent   = Snapshot{}
)

// Snapshot returns a reader bound to ctx.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	return Snapshot{s: s, ctx: ctx}
}

func (sn Snapshot) Resolve(key value.Key, revision int64) (*eval.Object, error) {
	return sn.s.Resolve(sn.ctx, key, revision)
}

func (sn Snapshot) Instances(typeName string, revision int64) ([]value.Key, error) {
	return sn.s.Instances(sn.ctx, typeName, revision)
}
