package recstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/birdie-ai/ormkit/domain"
	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/xerrgroup"
)

type (
	// SearchOptions control the records returned by a search.
	SearchOptions struct {
		// Limit is the maximum number of records, 0 means no limit.
		Limit int
		// Offset is the number of matching records skipped.
		Offset int
		// Order is a comma separated list of fields, each optionally followed by
		// ASC or DESC, like "name ASC, id DESC". Records are ordered by id by default.
		Order string
	}

	// NamePair is a record id with its display name.
	NamePair struct {
		ID   ID
		Name string
	}

	orderTerm struct {
		field string
		desc  bool
	}
)

// ErrInvalidOrder indicates a malformed [SearchOptions.Order].
var ErrInvalidOrder = errors.New("invalid order")

// Search returns the ids of the records of model matching d.
func (s *Store) Search(ctx context.Context, model string, d domain.Domain, opts SearchOptions) ([]ID, error) {
	recs, _, err := s.search(ctx, model, d, opts)
	if err != nil {
		return nil, err
	}
	ids := make([]ID, len(recs))
	for i, rec := range recs {
		ids[i] = rec[IDField].(ID)
	}
	return ids, nil
}

// Count returns how many records of model match d.
func (s *Store) Count(ctx context.Context, model string, d domain.Domain) (int, error) {
	recs, _, err := s.search(ctx, model, d, SearchOptions{})
	return len(recs), err
}

// SearchRead returns the matching records with the given fields and their id,
// or with every field if none is given. See [Store.Browse] for the values.
func (s *Store) SearchRead(ctx context.Context, model string, d domain.Domain, opts SearchOptions, fields ...string) ([]obj.O, error) {
	recs, v, err := s.search(ctx, model, d, opts)
	if err != nil {
		return nil, err
	}
	m, err := v.model(model)
	if err != nil {
		return nil, err
	}
	for _, name := range fields {
		if _, ok := m.field(name); !ok && name != IDField {
			return nil, fmt.Errorf("%w: %s has no field %q", domain.ErrUnknownField, model, name)
		}
	}
	res := make([]obj.O, len(recs))
	for i, rec := range recs {
		res[i] = export(v, m, rec)
		if len(fields) > 0 {
			res[i] = obj.Project(res[i], slices.Concat(fields, []string{IDField})...)
		}
	}
	return res, nil
}

// NameSearch returns the records of model whose name field matches name with
// op ([domain.ILike] if empty) also matching extra. An empty name matches all records.
func (s *Store) NameSearch(ctx context.Context, model, name string, extra domain.Domain, op domain.Operator, limit int) ([]NamePair, error) {
	m, err := s.view().model(model)
	if err != nil {
		return nil, err
	}
	if op == "" {
		op = domain.ILike
	}
	nameField := m.nameField()
	d := extra
	if name != "" {
		d, err = domain.AND(domain.Domain{domain.C(nameField, op, name)}, extra)
		if err != nil {
			return nil, err
		}
	}
	recs, _, err := s.search(ctx, model, d, SearchOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	res := make([]NamePair, len(recs))
	for i, rec := range recs {
		res[i] = NamePair{ID: rec[IDField].(ID)}
		if n, ok := rec[nameField].(string); ok {
			res[i].Name = n
		}
	}
	return res, nil
}

func (s *Store) search(ctx context.Context, model string, d domain.Domain, opts SearchOptions) (_ []obj.O, _ *view, err error) {
	start := time.Now()
	defer func() {
		sampleSearch(model, time.Since(start), err)
	}()

	ctx, log := s.begin(ctx, "search")
	v := s.view()
	m, err := v.model(model)
	if err != nil {
		return nil, nil, err
	}
	order, err := parseOrder(m, opts.Order)
	if err != nil {
		return nil, nil, err
	}
	p, err := domain.Compile(d)
	if err != nil {
		return nil, nil, err
	}

	rows := slices.Collect(maps.Values(v.table(model).records))
	matched, err := s.filter(ctx, p, &Resolver{v: v, model: m}, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("searching %s: %w", model, err)
	}
	slices.SortFunc(matched, func(a, b obj.O) int {
		return compareRecords(order, a, b)
	})
	total := len(matched)
	matched = page(matched, opts.Offset, opts.Limit)

	log.Debug("searched records", "model", model, "domain", d.String(), "matched", total, "returned", len(matched))
	return matched, v, nil
}

// filter matches rows against p concurrently, in chunks.
func (s *Store) filter(ctx context.Context, p *domain.Predicate, r *Resolver, rows []obj.O) ([]obj.O, error) {
	g, ctx := xerrgroup.WithContext[[]obj.O](ctx)
	g.SetLimit(s.parallelism)
	for chunk := range slices.Chunk(rows, s.chunkSize) {
		g.Go(func() ([]obj.O, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			var res []obj.O
			for _, rec := range chunk {
				ok, err := p.Match(rec, r)
				if err != nil {
					return nil, fmt.Errorf("record %v: %w", rec[IDField], err)
				}
				if ok {
					res = append(res, rec)
				}
			}
			return res, nil
		})
	}
	chunks, err := g.Wait()
	if err != nil {
		return nil, err
	}
	return slices.Concat(chunks...), nil
}

func page(recs []obj.O, offset, limit int) []obj.O {
	if offset >= len(recs) {
		return []obj.O{}
	}
	recs = recs[max(offset, 0):]
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}

func parseOrder(m Model, order string) ([]orderTerm, error) {
	var terms []orderTerm
	if strings.TrimSpace(order) != "" {
		for part := range strings.SplitSeq(order, ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 || len(fields) > 2 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, order)
			}
			term := orderTerm{field: fields[0]}
			if len(fields) == 2 {
				switch strings.ToUpper(fields[1]) {
				case "ASC":
				case "DESC":
					term.desc = true
				default:
					return nil, fmt.Errorf("%w: %q: unknown direction %q", ErrInvalidOrder, order, fields[1])
				}
			}
			if term.field != IDField {
				f, ok := m.field(term.field)
				if !ok || f.Type.Multi() {
					return nil, fmt.Errorf("%w: %q: can't order by %s.%s", ErrInvalidOrder, order, m.Name, term.field)
				}
			}
			terms = append(terms, term)
		}
	}
	return append(terms, orderTerm{field: IDField}), nil
}

func compareRecords(order []orderTerm, a, b obj.O) int {
	for _, term := range order {
		c := compareValues(a[term.field], b[term.field])
		if term.desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders stored values, NULL goes after any value.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
