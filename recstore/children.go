package recstore

import (
	"context"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
)

// Children is the [relcmd.ChildStore] of a model, it also implements [relcmd.Batcher].
type Children struct {
	s     *Store
	model string
}

var (
	_ relcmd.ChildStore = (*Children)(nil)
	_ relcmd.Batcher    = (*Children)(nil)
)

// Children returns the child store of the records of model.
func (s *Store) Children(model string) *Children {
	return &Children{s: s, model: model}
}

// Insert creates a record, see [Store.Create].
func (c *Children) Insert(ctx context.Context, vals obj.O) (ID, error) {
	return c.s.Create(ctx, c.model, vals)
}

// Update writes a record, see [Store.Write].
func (c *Children) Update(ctx context.Context, id ID, vals obj.O) error {
	return c.s.Write(ctx, c.model, []ID{id}, vals)
}

// Remove deletes a record, see [Store.Unlink].
func (c *Children) Remove(ctx context.Context, id ID) error {
	return c.s.Unlink(ctx, c.model, []ID{id})
}

// Exists reports whether the record exists.
func (c *Children) Exists(_ context.Context, id ID) (bool, error) {
	return c.s.Exists(c.model, id)
}

// Batch runs f in a single transaction of the store, committed if f returns nil.
// The store given to f must not be used after f returns.
func (c *Children) Batch(_ context.Context, f func(relcmd.ChildStore) error) error {
	return c.s.update(func(t *tx) error {
		if _, err := t.model(c.model); err != nil {
			return err
		}
		return f(t.children(c.model, nil))
	})
}
