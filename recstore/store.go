// Package recstore is an in-memory record store hosting search domains and
// relational commands.
//
// Records belong to registered models. Searches evaluate domains over the
// records of a model, resolving dotted field paths through relational fields,
// and writes on one2many and many2many fields take relational commands.
// Every write is atomic: it sees and publishes a whole snapshot of the store.
package recstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sync"

	"github.com/birdie-ai/ormkit/obj"
	"github.com/birdie-ai/ormkit/relcmd"
	"github.com/birdie-ai/ormkit/slog"
	"github.com/birdie-ai/ormkit/tracing"
	"github.com/birdie-ai/ormkit/xerrors"
)

type (
	// ID identifies a record of a model.
	ID = relcmd.ID

	// Store is an in-memory record store, safe for concurrent use.
	// Writes are serialized, searches run on the snapshot published by the last write.
	Store struct {
		mu          sync.RWMutex
		models      map[string]Model
		snap        *snapshot
		log         *slog.Logger
		parallelism int
		chunkSize   int
	}

	// Option configures a [Store].
	Option func(*Store)
)

var (
	// ErrUnknownModel indicates a model that is not registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrInvalidModel indicates an invalid model definition.
	ErrInvalidModel = errors.New("invalid model")
	// ErrRecordNotFound indicates a missing record, it also matches [relcmd.ErrNotFound].
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidValue indicates a value that can't be stored on a field.
	ErrInvalidValue = errors.New("invalid value")
)

// WithLogger sets the logger used by the store, the default logger otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithParallelism sets how many goroutines evaluate a search, GOMAXPROCS by default.
func WithParallelism(n int) Option {
	return func(s *Store) {
		s.parallelism = max(n, 1)
	}
}

// WithChunkSize sets how many records each search goroutine evaluates at a time.
func WithChunkSize(n int) Option {
	return func(s *Store) {
		s.chunkSize = max(n, 1)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		models:      map[string]Model{},
		snap:        &snapshot{tables: map[string]*table{}},
		log:         slog.Default(),
		parallelism: runtime.GOMAXPROCS(0),
		chunkSize:   256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register registers models. Relation targets must be registered already or
// be part of the same call, one2many inverses must be many2one fields of the
// target pointing back. Nothing is registered on error.
func (s *Store) Register(models ...Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := maps.Clone(s.models)
	var errs []error
	for _, m := range models {
		if err := m.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := all[m.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: model %q already registered", ErrInvalidModel, m.Name))
			continue
		}
		all[m.Name] = m
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, m := range models {
		for _, f := range m.Fields {
			if !f.Type.Relational() {
				continue
			}
			target, ok := all[f.Relation]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s.%s: relation %q", ErrUnknownModel, m.Name, f.Name, f.Relation))
				continue
			}
			if f.Type != One2many {
				continue
			}
			inv, ok := target.field(f.Inverse)
			if !ok || inv.Type != Many2one || inv.Relation != m.Name {
				errs = append(errs, fmt.Errorf("%w: %s.%s: inverse %s.%s must be a many2one to %q",
					ErrInvalidModel, m.Name, f.Name, f.Relation, f.Inverse, m.Name))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	tables := maps.Clone(s.snap.tables)
	for _, m := range models {
		tables[m.Name] = &table{records: map[ID]obj.O{}}
	}
	s.models = all
	s.snap = &snapshot{tables: tables}
	return nil
}

// Models returns the names of the registered models, sorted.
func (s *Store) Models() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.models))
}

// Create creates a record of model with vals and returns its id.
//
// Many2one fields take the id of the related record, one2many and many2many
// fields take relational commands (like [relcmd.Commands] or their JSON form),
// other fields take their scalar value. Missing fields are NULL.
func (s *Store) Create(ctx context.Context, model string, vals obj.O) (ID, error) {
	ctx, log := s.begin(ctx, "create")
	var id ID
	err := s.update(func(t *tx) error {
		var err error
		id, err = t.create(ctx, model, vals)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", model, err)
	}
	log.Debug("created record", "model", model, "id", id)
	return id, nil
}

// Write writes vals to every record of ids, as [Store.Create] does.
// The false value sets a field to NULL (or clears the links of x2many fields),
// except for boolean fields. Either all records are written or none.
func (s *Store) Write(ctx context.Context, model string, ids []ID, vals obj.O) error {
	ctx, log := s.begin(ctx, "write")
	err := s.update(func(t *tx) error {
		m, err := t.model(model)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := t.get(model, id); !ok {
				return notFound(model, id)
			}
			if err := t.update(ctx, m, id, vals); err != nil {
				return fmt.Errorf("%s(%d): %w", model, id, err)
			}
			if err := t.checkRequired(m, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", model, err)
	}
	log.Debug("wrote records", "model", model, "ids", ids)
	return nil
}

// Unlink deletes the records of ids. Many2one fields pointing at them become
// NULL and they are removed from many2many links. Records whose required
// many2one points at them are deleted as well. Either all are deleted or none.
func (s *Store) Unlink(ctx context.Context, model string, ids []ID) error {
	_, log := s.begin(ctx, "unlink")
	err := s.update(func(t *tx) error {
		return t.unlink(model, ids)
	})
	if err != nil {
		return fmt.Errorf("unlinking %s: %w", model, err)
	}
	log.Debug("unlinked records", "model", model, "ids", ids)
	return nil
}

// Browse returns the values of the record id, including its id.
// Many2one fields hold the related id or nil, x2many fields the list of related ids.
func (s *Store) Browse(model string, id ID) (obj.O, error) {
	v := s.view()
	m, err := v.model(model)
	if err != nil {
		return nil, err
	}
	rec, ok := v.get(model, id)
	if !ok {
		return nil, notFound(model, id)
	}
	return export(v, m, rec), nil
}

// Exists reports whether the record id of model exists.
func (s *Store) Exists(model string, id ID) (bool, error) {
	v := s.view()
	if _, err := v.model(model); err != nil {
		return false, err
	}
	_, ok := v.get(model, id)
	return ok, nil
}

// begin ensures ctx has a trace id and returns the logger of the operation, also set on ctx.
func (s *Store) begin(ctx context.Context, op string) (context.Context, *slog.Logger) {
	ctx, traceID := tracing.Ensure(ctx)
	log := s.log.With("trace_id", traceID, "op", op)
	return slog.NewContext(ctx, log), log
}

// update runs f on a new transaction, committing it if f succeeds.
func (s *Store) update(f func(*tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.newTx()
	if err := f(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) view() *view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &view{models: s.models, snap: s.snap}
}

func notFound(model string, id ID) error {
	return xerrors.Tag(fmt.Errorf("%w: %s(%d)", ErrRecordNotFound, model, id), relcmd.ErrNotFound)
}

// export returns a copy of rec with the derived fields of m.
func export(r reader, m Model, rec obj.O) obj.O {
	res := make(obj.O, len(m.Fields)+1)
	res[IDField] = rec[IDField]
	for _, f := range m.Fields {
		switch f.Type {
		case One2many:
			res[f.Name] = one2many(r, f, rec[IDField].(ID))
		case Many2many:
			res[f.Name] = slices.Clone(rec[f.Name].([]ID))
		default:
			res[f.Name] = rec[f.Name]
		}
	}
	return res
}
