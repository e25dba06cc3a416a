package relcmd

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/birdie-ai/ormkit/obj"
)

// overlay is the staged view of a store that is not a [Batcher]. Updates and
// removals are recorded and run by flush, in order. Inserts reach the store
// right away since the store assigns the ids, discard removes them again.
type overlay struct {
	store    ChildStore
	ops      []func(context.Context) error
	removed  map[ID]bool
	inserted []ID
}

func newOverlay(store ChildStore) *overlay {
	return &overlay{store: store, removed: map[ID]bool{}}
}

func (o *overlay) Insert(ctx context.Context, vals obj.O) (ID, error) {
	id, err := o.store.Insert(ctx, vals)
	if err != nil {
		return 0, err
	}
	o.inserted = append(o.inserted, id)
	return id, nil
}

func (o *overlay) Update(ctx context.Context, id ID, vals obj.O) error {
	if err := mustExist(ctx, o, id); err != nil {
		return err
	}
	vals = obj.Clone(vals)
	o.ops = append(o.ops, func(ctx context.Context) error {
		return o.store.Update(ctx, id, vals)
	})
	return nil
}

func (o *overlay) Remove(ctx context.Context, id ID) error {
	if err := mustExist(ctx, o, id); err != nil {
		return err
	}
	o.removed[id] = true
	o.ops = append(o.ops, func(ctx context.Context) error {
		return o.store.Remove(ctx, id)
	})
	return nil
}

func (o *overlay) Exists(ctx context.Context, id ID) (bool, error) {
	if o.removed[id] {
		return false, nil
	}
	return o.store.Exists(ctx, id)
}

// flush runs the staged operations on the store, stopping at the first failure.
func (o *overlay) flush(ctx context.Context) error {
	for i, op := range o.ops {
		if err := op(ctx); err != nil {
			return fmt.Errorf("running staged operation %d: %w", i, err)
		}
	}
	return nil
}

// discard removes the children inserted on the store, newest first.
func (o *overlay) discard(ctx context.Context) error {
	var errs []error
	for _, id := range slices.Backward(o.inserted) {
		if err := o.store.Remove(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("removing child %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
