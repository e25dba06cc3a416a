package relcmd_test

import (
	"context"
	"fmt"
	"maps"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
)

// fakeStore is a map backed child store recording the mutations it receives.
type fakeStore struct {
	records map[relcmd.ID]obj.O
	next    relcmd.ID
	ops     []string
	failOn  relcmd.ID
}

func newFakeStore(ids ...relcmd.ID) *fakeStore {
	s := &fakeStore{records: map[relcmd.ID]obj.O{}, next: 100}
	for _, id := range ids {
		s.records[id] = obj.O{"id": id}
	}
	return s
}

func (s *fakeStore) Insert(_ context.Context, values obj.O) (relcmd.ID, error) {
	s.next++
	s.records[s.next] = obj.Clone(values)
	s.ops = append(s.ops, fmt.Sprintf("insert %d", s.next))
	return s.next, nil
}

func (s *fakeStore) Update(_ context.Context, id relcmd.ID, values obj.O) error {
	if id == s.failOn {
		return fmt.Errorf("update %d: boom", id)
	}
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %d", relcmd.ErrNotFound, id)
	}
	maps.Copy(rec, values)
	s.ops = append(s.ops, fmt.Sprintf("update %d", id))
	return nil
}

func (s *fakeStore) Remove(_ context.Context, id relcmd.ID) error {
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %d", relcmd.ErrNotFound, id)
	}
	delete(s.records, id)
	s.ops = append(s.ops, fmt.Sprintf("remove %d", id))
	return nil
}

func (s *fakeStore) Exists(_ context.Context, id relcmd.ID) (bool, error) {
	_, ok := s.records[id]
	return ok, nil
}

// batchStore stages operations on a copy of a fakeStore and swaps it in on success.
type batchStore struct {
	*fakeStore
}

func (b batchStore) Batch(_ context.Context, f func(relcmd.ChildStore) error) error {
	staged := &fakeStore{
		records: map[relcmd.ID]obj.O{},
		next:    b.next,
		ops:     append([]string(nil), b.ops...),
		failOn:  b.failOn,
	}
	for id, rec := range b.records {
		staged.records[id] = obj.Clone(rec)
	}
	if err := f(staged); err != nil {
		return err
	}
	*b.fakeStore = *staged
	return nil
}
