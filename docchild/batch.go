package docchild

import (
	"context"
	"errors"
	"fmt"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/birdie-ai/ormkit/xerrors"
)

type (
	// batch stages the operations of [Store.Batch] in memory.
	batch struct {
		s      *Store
		staged map[ID]*staged
		order  []ID
	}

	staged struct {
		doc     obj.O // nil once removed
		created bool
		dirty   bool
	}
)

// Batch runs f with a store staging every operation in memory. When f returns nil,
// the staged changes are written to the collection with a single action list,
// otherwise they are discarded and the collection is left as it was.
// Ids taken by discarded inserts are not reused.
//
// The action list is not transactional: if writing it fails, some of the
// changes may have been written.
func (s *Store) Batch(ctx context.Context, f func(relcmd.ChildStore) error) error {
	b := &batch{s: s, staged: map[ID]*staged{}}
	if err := f(b); err != nil {
		return err
	}
	return b.flush(ctx)
}

func (b *batch) Insert(ctx context.Context, vals obj.O) (ID, error) {
	id, err := b.s.newID(ctx)
	if err != nil {
		return 0, err
	}
	doc, err := b.s.document(id, obj.Clone(vals))
	if err != nil {
		return 0, err
	}
	b.stage(id, &staged{doc: doc, created: true, dirty: true})
	return id, nil
}

func (b *batch) Update(ctx context.Context, id ID, vals obj.O) error {
	if _, err := b.s.mods(vals); err != nil {
		return err
	}
	st, err := b.lookup(ctx, id)
	if err != nil {
		return err
	}
	for k, v := range obj.Clone(vals) {
		if v == nil {
			delete(st.doc, k)
			continue
		}
		st.doc[k] = v
	}
	st.dirty = true
	return nil
}

func (b *batch) Remove(ctx context.Context, id ID) error {
	st, err := b.lookup(ctx, id)
	if err != nil {
		return err
	}
	st.doc = nil
	st.dirty = true
	return nil
}

func (b *batch) Exists(ctx context.Context, id ID) (bool, error) {
	_, err := b.lookup(ctx, id)
	if errors.Is(err, relcmd.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// lookup returns the staged document id, reading it from the collection on first use.
func (b *batch) lookup(ctx context.Context, id ID) (*staged, error) {
	st, ok := b.staged[id]
	if !ok {
		doc, err := b.s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		st = &staged{doc: doc}
		b.stage(id, st)
	}
	if st.doc == nil {
		return nil, xerrors.Tagf(relcmd.ErrNotFound, "child %d removed in this batch", id)
	}
	return st, nil
}

func (b *batch) stage(id ID, st *staged) {
	if _, ok := b.staged[id]; !ok {
		b.order = append(b.order, id)
	}
	b.staged[id] = st
}

func (b *batch) flush(ctx context.Context) error {
	actions := b.s.coll.Actions()
	n := 0
	for _, id := range b.order {
		st := b.staged[id]
		switch {
		case !st.dirty, st.created && st.doc == nil:
			continue
		case st.created:
			actions.Create(st.doc)
		case st.doc == nil:
			actions.Delete(obj.O{b.s.key: id})
		default:
			actions.Replace(st.doc)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	if err := actions.Do(ctx); err != nil {
		return fmt.Errorf("writing %d staged children: %w", n, err)
	}
	return nil
}
