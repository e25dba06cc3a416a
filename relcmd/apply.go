package relcmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/birdie-ai/ormkit/slog"
)

// Apply applies cmds in order to the links in current, using store for the
// child records, and returns the resulting links.
//
// The current slice is never modified, links are computed on a copy and only
// returned when every command succeeds. Malformed commands fail with
// [ErrInvalidCommand] before the store is touched. When store is a [Batcher]
// the store operations of a failing sequence are discarded by the store.
// Otherwise updates and removals are staged and only run once every command
// succeeded, and children inserted by a failing sequence are removed again.
// A store failing while the staged operations run may keep the ones run before.
func Apply(ctx context.Context, cmds Commands, current []ID, store ChildStore) ([]ID, error) {
	if err := cmds.Validate(); err != nil {
		return nil, err
	}

	var links []ID
	run := func(s ChildStore) error {
		var err error
		links, err = apply(ctx, cmds, current, s)
		return err
	}

	if b, ok := store.(Batcher); ok {
		if err := b.Batch(ctx, run); err != nil {
			return nil, err
		}
	} else {
		if err := precheck(ctx, cmds, store); err != nil {
			return nil, err
		}
		o := newOverlay(store)
		err := run(o)
		if err == nil {
			err = o.flush(ctx)
		}
		if err != nil {
			if derr := o.discard(context.WithoutCancel(ctx)); derr != nil {
				err = errors.Join(err, fmt.Errorf("discarding inserted children: %w", derr))
			}
			return nil, err
		}
	}

	slog.FromCtx(ctx).Debug("applied relational commands", "commands", len(cmds), "links", len(links))
	return links, nil
}

func apply(ctx context.Context, cmds Commands, current []ID, s ChildStore) ([]ID, error) {
	links := newLinkSet(current)
	for i, c := range cmds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := applyOne(ctx, c, links, s); err != nil {
			return nil, fmt.Errorf("command %d %v: %w", i, c, err)
		}
	}
	return links.ids, nil
}

func applyOne(ctx context.Context, c Command, links *linkSet, s ChildStore) error {
	switch c.Code {
	case CREATE:
		id, err := s.Insert(ctx, c.Values)
		if err != nil {
			return err
		}
		links.add(id)
	case UPDATE:
		if err := mustExist(ctx, s, c.ID); err != nil {
			return err
		}
		return s.Update(ctx, c.ID, c.Values)
	case DELETE:
		if err := mustExist(ctx, s, c.ID); err != nil {
			return err
		}
		if err := s.Remove(ctx, c.ID); err != nil {
			return err
		}
		links.remove(c.ID)
	case UNLINK:
		links.remove(c.ID)
	case LINK:
		if err := mustExist(ctx, s, c.ID); err != nil {
			return err
		}
		links.add(c.ID)
	case CLEAR:
		links.reset(nil)
	case REPLACE:
		for _, id := range c.IDs {
			if err := mustExist(ctx, s, id); err != nil {
				return err
			}
		}
		links.reset(c.IDs)
	default:
		return fmt.Errorf("%w: unknown code %d", ErrInvalidCommand, int(c.Code))
	}
	return nil
}

// precheck fails on targets known to be missing before any store operation.
// Targets following a CREATE may be the new child and are left to apply.
func precheck(ctx context.Context, cmds Commands, s ChildStore) error {
	var (
		deleted = map[ID]bool{}
		created bool
	)
	check := func(id ID) error {
		if deleted[id] {
			return fmt.Errorf("%w: %d is deleted by a previous command", ErrNotFound, id)
		}
		if created {
			return nil
		}
		return mustExist(ctx, s, id)
	}
	for i, c := range cmds {
		var err error
		switch c.Code {
		case CREATE:
			created = true
		case UPDATE, LINK:
			err = check(c.ID)
		case DELETE:
			err = check(c.ID)
			deleted[c.ID] = true
		case REPLACE:
			for _, id := range c.IDs {
				if err = check(id); err != nil {
					break
				}
			}
		}
		if err != nil {
			return fmt.Errorf("command %d %v: %w", i, c, err)
		}
	}
	return nil
}

func mustExist(ctx context.Context, s ChildStore, id ID) error {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking child %d: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

// linkSet is an insertion ordered set of ids.
type linkSet struct {
	ids []ID
	has map[ID]struct{}
}

func newLinkSet(ids []ID) *linkSet {
	l := &linkSet{}
	l.reset(ids)
	return l
}

func (l *linkSet) reset(ids []ID) {
	l.ids = make([]ID, 0, len(ids))
	l.has = make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		l.add(id)
	}
}

func (l *linkSet) add(id ID) {
	if _, ok := l.has[id]; ok {
		return
	}
	l.has[id] = struct{}{}
	l.ids = append(l.ids, id)
}

func (l *linkSet) remove(id ID) {
	if _, ok := l.has[id]; !ok {
		return
	}
	delete(l.has, id)
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			return
		}
	}
}
