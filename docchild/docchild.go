// Package docchild stores the children of relational commands on a [docstore.Collection].
package docchild

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/birdie-ai/ormkit/xerrors"
	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

type (
	// ID identifies a child document.
	ID = relcmd.ID

	// Store is a [relcmd.ChildStore] keeping each child as a document of a collection,
	// keyed by its id. It also implements [relcmd.Batcher].
	//
	// Ids are assigned by the store, counting from the highest id on the collection
	// when the store is first used. The collection must not be written by others meanwhile.
	Store struct {
		coll *docstore.Collection
		key  string

		mu     sync.Mutex
		next   ID
		loaded bool
	}

	// Option configures a [Store].
	Option func(*Store)
)

// DefaultKeyField is the key field of the documents.
const DefaultKeyField = "id"

// ErrInvalidValue indicates child values that can't be stored.
var ErrInvalidValue = errors.New("invalid child value")

var (
	_ relcmd.ChildStore = (*Store)(nil)
	_ relcmd.Batcher    = (*Store)(nil)
)

// WithKeyField sets the key field of the documents, [DefaultKeyField] otherwise.
// It must be the key field the collection was opened with.
func WithKeyField(name string) Option {
	return func(s *Store) {
		s.key = name
	}
}

// New creates a store over coll.
func New(coll *docstore.Collection, opts ...Option) *Store {
	s := &Store{coll: coll, key: DefaultKeyField}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert creates a document with vals and a new id.
func (s *Store) Insert(ctx context.Context, vals obj.O) (ID, error) {
	id, err := s.newID(ctx)
	if err != nil {
		return 0, err
	}
	doc, err := s.document(id, vals)
	if err != nil {
		return 0, err
	}
	if err := s.coll.Create(ctx, doc); err != nil {
		return 0, fmt.Errorf("creating child %d: %w", id, err)
	}
	return id, nil
}

// Update sets the fields of vals on the document id, nil values remove the field.
func (s *Store) Update(ctx context.Context, id ID, vals obj.O) error {
	mods, err := s.mods(vals)
	if err != nil {
		return err
	}
	if len(mods) == 0 {
		return s.mustExist(ctx, id)
	}
	if err := s.coll.Update(ctx, obj.O{s.key: id}, mods); err != nil {
		return s.wrap(err, "updating", id)
	}
	return nil
}

// Remove deletes the document id.
func (s *Store) Remove(ctx context.Context, id ID) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	if err := s.coll.Delete(ctx, obj.O{s.key: id}); err != nil {
		return s.wrap(err, "deleting", id)
	}
	return nil
}

// Exists reports whether the document id exists.
func (s *Store) Exists(ctx context.Context, id ID) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, relcmd.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Put writes doc, replacing the document with the same id if any.
// Its key must hold a positive integral number.
func (s *Store) Put(ctx context.Context, doc obj.O) error {
	id, ok := toID(doc[s.key])
	if !ok || id <= 0 {
		return fmt.Errorf("%w: key %v (%T) is not an id", ErrInvalidValue, doc[s.key], doc[s.key])
	}
	doc = maps.Clone(doc)
	doc[s.key] = id
	if err := s.coll.Put(ctx, doc); err != nil {
		return fmt.Errorf("putting child %d: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = max(s.next, id)
	return nil
}

// Get returns the fields of the document id, including its key.
func (s *Store) Get(ctx context.Context, id ID) (obj.O, error) {
	doc := obj.O{s.key: id}
	if err := s.coll.Get(ctx, doc); err != nil {
		return nil, s.wrap(err, "getting", id)
	}
	return s.clean(doc), nil
}

// All returns every document of the collection ordered by id.
func (s *Store) All(ctx context.Context) ([]obj.O, error) {
	iter := s.coll.Query().Get(ctx)
	defer iter.Stop()

	var docs []obj.O
	for {
		doc := obj.O{}
		err := iter.Next(ctx, doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing children: %w", err)
		}
		if _, ok := toID(doc[s.key]); !ok {
			return nil, fmt.Errorf("%w: document key %v (%T) is not an id", ErrInvalidValue, doc[s.key], doc[s.key])
		}
		docs = append(docs, s.clean(doc))
	}
	slices.SortFunc(docs, func(a, b obj.O) int {
		x, _ := toID(a[s.key])
		y, _ := toID(b[s.key])
		return cmp.Compare(x, y)
	})
	return docs, nil
}

func (s *Store) newID(ctx context.Context) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		docs, err := s.All(ctx)
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			id, _ := toID(doc[s.key])
			s.next = max(s.next, id)
		}
		s.loaded = true
	}
	s.next++
	return s.next, nil
}

func (s *Store) mustExist(ctx context.Context, id ID) error {
	_, err := s.Get(ctx, id)
	return err
}

func (s *Store) document(id ID, vals obj.O) (obj.O, error) {
	if _, ok := vals[s.key]; ok {
		return nil, fmt.Errorf("%w: %q is assigned by the store", ErrInvalidValue, s.key)
	}
	doc := make(obj.O, len(vals)+1)
	maps.Copy(doc, vals)
	doc[s.key] = id
	return doc, nil
}

func (s *Store) mods(vals obj.O) (docstore.Mods, error) {
	mods := make(docstore.Mods, len(vals))
	for k, v := range vals {
		if k == s.key || k == docstore.DefaultRevisionField {
			return nil, fmt.Errorf("%w: %q can't be updated", ErrInvalidValue, k)
		}
		mods[docstore.FieldPath(k)] = v
	}
	return mods, nil
}

// clean removes the fields docstore keeps on the documents.
func (s *Store) clean(doc obj.O) obj.O {
	delete(doc, docstore.DefaultRevisionField)
	if id, ok := toID(doc[s.key]); ok {
		doc[s.key] = id
	}
	return doc
}

func (s *Store) wrap(err error, op string, id ID) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return xerrors.Tagf(relcmd.ErrNotFound, "%s child %d: %w", op, id, err)
	}
	return fmt.Errorf("%s child %d: %w", op, id, err)
}

func toID(v any) (ID, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	}
	return 0, false
}
