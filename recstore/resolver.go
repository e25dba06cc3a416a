package recstore

import (
	"fmt"
	"slices"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
)

// Resolver resolves field paths of the records of a model on a snapshot of the store.
// Records are given by id or as the values returned by [Store.Browse].
//
// Paths follow many2one, one2many and many2many fields. Paths through
// x2many fields resolve to [domain.Values] with the value of every related
// record, and a nil element when some related record has no record the rest
// of the path leads to.
// It implements [domain.Hierarchy] using the parent field of the models.
type Resolver struct {
	v     *view
	model Model
}

var (
	_ domain.FieldResolver = (*Resolver)(nil)
	_ domain.Hierarchy     = (*Resolver)(nil)
)

// Resolver returns a resolver of the records of model on the current snapshot.
// Later writes are not visible to it.
func (s *Store) Resolver(model string) (*Resolver, error) {
	v := s.view()
	m, err := v.model(model)
	if err != nil {
		return nil, err
	}
	return &Resolver{v: v, model: m}, nil
}

// ResolveField resolves path on rec.
func (r *Resolver) ResolveField(rec domain.Record, path string) (any, error) {
	id, err := recordID(rec)
	if err != nil {
		return nil, err
	}
	segments, err := obj.Segments(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnknownField, err)
	}

	var (
		m       = r.model
		ids     = []ID{id}
		through bool // an x2many field was traversed
		null    bool // a record reached through an x2many had no related record
	)
	if _, ok := r.v.get(m.Name, id); !ok {
		return nil, notFound(m.Name, id)
	}
	for i, seg := range segments {
		last := i == len(segments)-1
		if seg == IDField {
			if !last {
				return nil, fmt.Errorf("%w: %q: %s.id is not a relation", domain.ErrUnknownField, path, m.Name)
			}
			return r.values(m, Field{Name: IDField, Type: Integer}, ids, through, null), nil
		}
		f, ok := m.field(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q: %s has no field %q", domain.ErrUnknownField, path, m.Name, seg)
		}
		if last {
			return r.values(m, f, ids, through, null), nil
		}
		if !f.Type.Relational() {
			return nil, fmt.Errorf("%w: %q: %s.%s is not a relation", domain.ErrUnknownField, path, m.Name, seg)
		}

		var next []ID
		for _, id := range ids {
			related := r.related(m, f, id)
			if len(related) == 0 && through {
				null = true
			}
			next = append(next, related...)
		}
		through = through || f.Type.Multi()
		if m, err = r.v.model(f.Relation); err != nil {
			return nil, err
		}
		slices.Sort(next)
		ids = slices.Compact(next)
		if len(ids) == 0 {
			switch {
			case !through:
				return nil, nil
			case null:
				return domain.Values{nil}, nil
			}
			return domain.Values{}, nil
		}
	}
	return nil, fmt.Errorf("%w: empty path", domain.ErrUnknownField)
}

// Parent returns the parent of the record id of the model path leads to.
func (r *Resolver) Parent(path string, id any) (any, error) {
	m, err := r.target(path)
	if err != nil {
		return nil, err
	}
	pf := m.parentField()
	if pf == "" {
		return nil, fmt.Errorf("%w: model %q has no parent field", domain.ErrInvalidDomain, m.Name)
	}
	rid, ok := toID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T) is not a record id", domain.ErrTypeMismatch, id, id)
	}
	rec, ok := r.v.get(m.Name, rid)
	if !ok {
		return nil, nil
	}
	return rec[pf], nil
}

// target returns the model of the records path leads to.
func (r *Resolver) target(path string) (Model, error) {
	segments, err := obj.Segments(path)
	if err != nil {
		return Model{}, fmt.Errorf("%w: %v", domain.ErrUnknownField, err)
	}
	m := r.model
	for i, seg := range segments {
		if seg == IDField && i == len(segments)-1 {
			return m, nil
		}
		f, ok := m.field(seg)
		if !ok || !f.Type.Relational() {
			return Model{}, fmt.Errorf("%w: %q does not lead to records", domain.ErrInvalidDomain, path)
		}
		if m, err = r.v.model(f.Relation); err != nil {
			return Model{}, err
		}
	}
	return m, nil
}

// values returns the values of f for ids: the value of the single record
// unless through, one element per record and a nil one if null otherwise.
// List values of x2many fields are returned as []any.
func (r *Resolver) values(m Model, f Field, ids []ID, through, null bool) any {
	if !through {
		return anyList(r.value(m, f, ids[0]))
	}
	res := make(domain.Values, 0, len(ids)+1)
	for _, id := range ids {
		res = append(res, anyList(r.value(m, f, id)))
	}
	if null {
		res = append(res, nil)
	}
	return res
}

func anyList(v any) any {
	ids, ok := v.([]ID)
	if !ok {
		return v
	}
	res := make([]any, len(ids))
	for i, id := range ids {
		res[i] = id
	}
	return res
}

func (r *Resolver) value(m Model, f Field, id ID) any {
	if f.Name == IDField {
		return id
	}
	if f.Type == One2many {
		return one2many(r.v, f, id)
	}
	rec, _ := r.v.get(m.Name, id)
	return rec[f.Name]
}

func (r *Resolver) related(m Model, f Field, id ID) []ID {
	switch v := r.value(m, f, id).(type) {
	case ID:
		return []ID{v}
	case []ID:
		return v
	}
	return nil
}

func recordID(rec domain.Record) (ID, error) {
	if o, ok := rec.(obj.O); ok {
		rec = o[IDField]
	}
	id, ok := toID(rec)
	if !ok {
		return 0, fmt.Errorf("%w: %v (%T) is not a record", domain.ErrTypeMismatch, rec, rec)
	}
	return id, nil
}
