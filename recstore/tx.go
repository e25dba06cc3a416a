package recstore

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
)

type (
	// snapshot is an immutable state of the store.
	snapshot struct {
		tables map[string]*table
	}

	// table holds the records of a model by id. Stored records are never
	// modified, writes store a modified copy.
	table struct {
		records map[ID]obj.O
		next    ID
	}

	reader interface {
		model(name string) (Model, error)
		table(name string) *table
	}

	// view reads a snapshot.
	view struct {
		models map[string]Model
		snap   *snapshot
	}

	// tx stages writes over a snapshot, copying each table on its first write.
	tx struct {
		s      *Store
		models map[string]Model
		base   *snapshot
		tables map[string]*table
	}
)

func (v *view) model(name string) (Model, error) {
	return lookupModel(v.models, name)
}

func (v *view) table(name string) *table {
	return v.snap.tables[name]
}

func (v *view) get(model string, id ID) (obj.O, bool) {
	return lookup(v.table(model), id)
}

func (s *Store) newTx() *tx {
	return &tx{s: s, models: s.models, base: s.snap, tables: map[string]*table{}}
}

func (t *tx) model(name string) (Model, error) {
	return lookupModel(t.models, name)
}

func (t *tx) table(name string) *table {
	if tb, ok := t.tables[name]; ok {
		return tb
	}
	return t.base.tables[name]
}

func (t *tx) get(model string, id ID) (obj.O, bool) {
	return lookup(t.table(model), id)
}

func (t *tx) writable(name string) *table {
	if tb, ok := t.tables[name]; ok {
		return tb
	}
	base := t.base.tables[name]
	tb := &table{records: maps.Clone(base.records), next: base.next}
	t.tables[name] = tb
	return tb
}

// set sets field of the record id, which must exist.
func (t *tx) set(model string, id ID, field string, v any) {
	tb := t.writable(model)
	rec, ok := tb.records[id]
	if !ok {
		panic(fmt.Sprintf("recstore: setting %s of missing %s(%d)", field, model, id))
	}
	rec = maps.Clone(rec)
	rec[field] = v
	tb.records[id] = rec
}

func (t *tx) commit() {
	tables := maps.Clone(t.base.tables)
	maps.Copy(tables, t.tables)
	t.s.snap = &snapshot{tables: tables}
}

func (t *tx) create(ctx context.Context, model string, vals obj.O) (ID, error) {
	m, err := t.model(model)
	if err != nil {
		return 0, err
	}
	tb := t.writable(model)
	tb.next++
	id := tb.next

	rec := obj.O{IDField: id}
	for _, f := range m.Fields {
		switch f.Type {
		case One2many:
		case Many2many:
			rec[f.Name] = []ID{}
		case Boolean:
			rec[f.Name] = false
		default:
			rec[f.Name] = nil
		}
	}
	tb.records[id] = rec

	if err := t.update(ctx, m, id, vals); err != nil {
		return 0, err
	}
	if err := t.checkRequired(m, id); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *tx) update(ctx context.Context, m Model, id ID, vals obj.O) error {
	for _, name := range obj.Keys(vals) {
		// commands of a previous field may have deleted the record
		if _, ok := t.get(m.Name, id); !ok {
			return notFound(m.Name, id)
		}
		if err := t.setField(ctx, m, id, name, vals[name]); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	return nil
}

func (t *tx) setField(ctx context.Context, m Model, id ID, name string, v any) error {
	if name == IDField {
		return fmt.Errorf("%w: %q can't be written", ErrInvalidValue, IDField)
	}
	f, ok := m.field(name)
	if !ok {
		return fmt.Errorf("%w: unknown field %s.%s", ErrInvalidValue, m.Name, name)
	}
	switch f.Type {
	case Many2one:
		return t.setMany2one(m, f, id, v)
	case Many2many:
		return t.applyMany2many(ctx, m, f, id, v)
	case One2many:
		return t.applyOne2many(ctx, m, f, id, v)
	}
	sv, err := convert(f, v)
	if err != nil {
		return err
	}
	t.set(m.Name, id, f.Name, sv)
	return nil
}

func (t *tx) setMany2one(m Model, f Field, id ID, v any) error {
	if v == nil || v == false {
		t.set(m.Name, id, f.Name, nil)
		return nil
	}
	target, ok := toID(v)
	if !ok {
		return fmt.Errorf("%w: %v (%T) is not a record id", ErrInvalidValue, v, v)
	}
	if _, ok := t.get(f.Relation, target); !ok {
		return notFound(f.Relation, target)
	}
	t.set(m.Name, id, f.Name, target)
	return nil
}

func (t *tx) applyMany2many(ctx context.Context, m Model, f Field, id ID, v any) error {
	cmds, err := toCommands(v)
	if err != nil {
		return err
	}
	rec, _ := t.get(m.Name, id)
	links, err := relcmd.Apply(ctx, cmds, rec[f.Name].([]ID), t.children(f.Relation, nil))
	sampleCommands(cmds, err)
	if err != nil {
		return err
	}
	if _, ok := t.get(m.Name, id); !ok {
		return notFound(m.Name, id)
	}
	t.set(m.Name, id, f.Name, links)
	return nil
}

// applyOne2many applies commands to the records whose inverse field points
// to id, linking a record sets its inverse and unlinking clears it.
func (t *tx) applyOne2many(ctx context.Context, m Model, f Field, id ID, v any) error {
	cmds, err := toCommands(v)
	if err != nil {
		return err
	}
	current := one2many(t, f, id)
	links, err := relcmd.Apply(ctx, cmds, current, t.children(f.Relation, obj.O{f.Inverse: id}))
	sampleCommands(cmds, err)
	if err != nil {
		return err
	}
	if _, ok := t.get(m.Name, id); !ok {
		return notFound(m.Name, id)
	}

	linked := make(map[ID]bool, len(links))
	for _, child := range links {
		linked[child] = true
		if rec, ok := t.get(f.Relation, child); ok && rec[f.Inverse] != id {
			t.set(f.Relation, child, f.Inverse, id)
		}
	}
	target, err := t.model(f.Relation)
	if err != nil {
		return err
	}
	inverse, _ := target.field(f.Inverse)
	for _, child := range current {
		if linked[child] {
			continue
		}
		if _, ok := t.get(f.Relation, child); !ok {
			continue
		}
		if inverse.Required {
			return fmt.Errorf("%w: %s(%d) can't be unlinked, %s.%s is required", ErrInvalidValue, f.Relation, child, f.Relation, f.Inverse)
		}
		t.set(f.Relation, child, f.Inverse, nil)
	}
	return nil
}

func (t *tx) unlink(model string, ids []ID) error {
	if _, err := t.model(model); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := t.get(model, id); !ok {
			return notFound(model, id)
		}
	}
	t.remove(model, ids)
	return nil
}

// remove deletes the records of ids that still exist. Many2one fields pointing
// at them become NULL, unless required: those records are removed too.
func (t *tx) remove(model string, ids []ID) {
	gone := make(map[ID]bool, len(ids))
	tb := t.writable(model)
	for _, id := range ids {
		if _, ok := tb.records[id]; ok {
			gone[id] = true
			delete(tb.records, id)
		}
	}
	if len(gone) == 0 {
		return
	}
	isGone := func(id ID) bool { return gone[id] }

	cascade := map[string][]ID{}
	for _, name := range slices.Sorted(maps.Keys(t.models)) {
		m := t.models[name]
		for _, f := range m.Fields {
			if f.Relation != model || (f.Type != Many2one && f.Type != Many2many) {
				continue
			}
			for rid, rec := range t.table(m.Name).records {
				switch f.Type {
				case Many2one:
					ref, ok := rec[f.Name].(ID)
					if !ok || !gone[ref] {
						continue
					}
					if f.Required {
						cascade[m.Name] = append(cascade[m.Name], rid)
					} else {
						t.set(m.Name, rid, f.Name, nil)
					}
				case Many2many:
					links := rec[f.Name].([]ID)
					if slices.ContainsFunc(links, isGone) {
						t.set(m.Name, rid, f.Name, slices.DeleteFunc(slices.Clone(links), isGone))
					}
				}
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(cascade)) {
		t.remove(name, cascade[name])
	}
}

func (t *tx) checkRequired(m Model, id ID) error {
	rec, _ := t.get(m.Name, id)
	for _, f := range m.Fields {
		if !f.Required || f.Type == One2many {
			continue
		}
		v := rec[f.Name]
		if ids, ok := v.([]ID); (ok && len(ids) == 0) || v == nil {
			return fmt.Errorf("%w: %s.%s is required", ErrInvalidValue, m.Name, f.Name)
		}
	}
	return nil
}

func (t *tx) children(model string, defaults obj.O) txChildren {
	return txChildren{t: t, model: model, defaults: defaults}
}

// txChildren is the [relcmd.ChildStore] of a model inside a transaction.
// Inserted records get the defaults values.
type txChildren struct {
	t        *tx
	model    string
	defaults obj.O
}

func (c txChildren) Insert(ctx context.Context, vals obj.O) (ID, error) {
	merged := make(obj.O, len(vals)+len(c.defaults))
	maps.Copy(merged, vals)
	maps.Copy(merged, c.defaults)
	return c.t.create(ctx, c.model, merged)
}

func (c txChildren) Update(ctx context.Context, id ID, vals obj.O) error {
	m, err := c.t.model(c.model)
	if err != nil {
		return err
	}
	if _, ok := c.t.get(c.model, id); !ok {
		return notFound(c.model, id)
	}
	if err := c.t.update(ctx, m, id, vals); err != nil {
		return err
	}
	return c.t.checkRequired(m, id)
}

func (c txChildren) Remove(_ context.Context, id ID) error {
	return c.t.unlink(c.model, []ID{id})
}

// Batch runs f on c itself: the transaction is discarded as a whole when f fails.
func (c txChildren) Batch(_ context.Context, f func(relcmd.ChildStore) error) error {
	return f(c)
}

func (c txChildren) Exists(_ context.Context, id ID) (bool, error) {
	if _, err := c.t.model(c.model); err != nil {
		return false, err
	}
	_, ok := c.t.get(c.model, id)
	return ok, nil
}

// one2many returns the ids of the records whose inverse field of f is id, sorted.
func one2many(r reader, f Field, id ID) []ID {
	var res []ID
	tb := r.table(f.Relation)
	if tb == nil {
		return []ID{}
	}
	for cid, rec := range tb.records {
		if ref, ok := rec[f.Inverse].(ID); ok && ref == id {
			res = append(res, cid)
		}
	}
	slices.Sort(res)
	if res == nil {
		res = []ID{}
	}
	return res
}

func lookupModel(models map[string]Model, name string) (Model, error) {
	m, ok := models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

func lookup(tb *table, id ID) (obj.O, bool) {
	if tb == nil {
		return nil, false
	}
	rec, ok := tb.records[id]
	return rec, ok
}
