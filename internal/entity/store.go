package entity

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/event"
)

// maxIDAttempts bounds how often Create asks for a fresh identifier when the
// generator returns one that is already taken.
const maxIDAttempts = 3

// Store owns the entity collection and is the subject of its dispatcher.
//
// Every mutating operation commits its change first and then notifies:
// by the time an observer runs, the mutation is visible through Get and List.
// An observer error is returned from the operation, but the mutation stays
// committed.
//
// Thread-safety: methods may be called from several goroutines without
// corrupting the collection. The lock is released before notification so
// observers may call back into the store, which means two mutations racing
// on different goroutines can be notified in the opposite order to the one
// they committed in. Callers that need notifications in commit order must
// serialize their mutations.
type Store struct {
	mu       sync.Mutex
	entities map[string]Entity
	order    []string // insertion/load order of entities' keys

	ids        IDGenerator
	dispatcher *event.Dispatcher
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the identifier generator used by Create.
//
// Default: RandomIDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithDispatcher uses d for notifications. The store becomes d's subject.
//
// Default: a new dispatcher owned by the store.
func WithDispatcher(d *event.Dispatcher) Option {
	return func(s *Store) {
		s.dispatcher = d
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities: make(map[string]Entity),
		ids:      RandomIDs{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = event.New(s)
	} else {
		s.dispatcher.SetSubject(s)
	}
	return s
}

// Dispatcher returns the dispatcher the store notifies through.
func (s *Store) Dispatcher() *event.Dispatcher {
	return s.dispatcher
}

// Attach registers o for the named events (wildcard when none are given).
func (s *Store) Attach(o event.Observer, names ...string) {
	s.dispatcher.Attach(o, names...)
}

// Detach removes one registration of o from each named event's bucket
// (wildcard when none are given).
func (s *Store) Detach(o event.Observer, names ...string) {
	s.dispatcher.Detach(o, names...)
}

// Load bootstraps the collection from src, replacing whatever it held.
//
// A source that does not exist yet is initialized with Seed(), and the seed
// records are loaded too. Records without an identifier fail the load with a
// *MalformedRecordError and leave the collection untouched. When an
// identifier repeats, the later record wins and keeps the earlier position.
//
// On success EventInit is fired with src.Name() as payload.
func (s *Store) Load(src Source) error {
	exists, err := src.Exists()
	if err != nil {
		return fmt.Errorf("load %s: %w", src.Name(), err)
	}

	var records []Record
	if exists {
		records, err = src.Read()
		if err != nil {
			return fmt.Errorf("load %s: %w", src.Name(), err)
		}
	} else {
		records = Seed()
		if err := src.Write(records); err != nil {
			return fmt.Errorf("seed %s: %w", src.Name(), err)
		}
		slog.Info("seeded bootstrap source", "source", src.Name(), "records", len(records))
	}

	entities := make(map[string]Entity, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return &MalformedRecordError{Source: src.Name(), Line: r.Line, Reason: "missing id"}
		}
		if _, dup := entities[r.ID]; !dup {
			order = append(order, r.ID)
		} else {
			slog.Warn("duplicate id in bootstrap source", "source", src.Name(), "id", r.ID, "line", r.Line)
		}
		entities[r.ID] = Entity{ID: r.ID, Attrs: withoutID(r.Attrs).Clone()}
	}

	s.mu.Lock()
	s.entities = entities
	s.order = order
	s.mu.Unlock()

	slog.Debug("loaded entities", "source", src.Name(), "count", len(order))
	return s.dispatcher.Notify(EventInit, src.Name())
}

// Create stores a new entity holding attrs under a freshly generated
// identifier and fires EventCreated. An "id" key in attrs is ignored.
func (s *Store) Create(attrs attr.Attributes) (Entity, error) {
	s.mu.Lock()
	id, err := s.newIDLocked()
	if err != nil {
		s.mu.Unlock()
		return Entity{}, fmt.Errorf("create: %w", err)
	}
	e := Entity{ID: id, Attrs: withoutID(attrs).Clone()}
	s.entities[id] = e
	s.order = append(s.order, id)
	s.mu.Unlock()

	out := e.Clone()
	return out, s.dispatcher.Notify(EventCreated, out.Clone())
}

// newIDLocked asks the generator for an identifier not yet in use.
// Caller must hold s.mu.
func (s *Store) newIDLocked() (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.ids.NewID()
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("generator returned an empty id")
		}
		if _, taken := s.entities[id]; !taken {
			return id, nil
		}
		slog.Warn("generated id already in use", "id", id, "attempt", attempt)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrIDCollision, maxIDAttempts)
}

// Update merges attrs into the entity identified by id and fires
// EventUpdated. Attributes not mentioned in attrs are kept; an "id" key is
// ignored. An unknown id returns ErrNotFound and fires nothing.
func (s *Store) Update(id string, attrs attr.Attributes) (Entity, error) {
	s.mu.Lock()
	current, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return Entity{}, fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	updated := Entity{ID: id, Attrs: current.Attrs.Merge(withoutID(attrs))}
	s.entities[id] = updated
	s.mu.Unlock()

	out := updated.Clone()
	return out, s.dispatcher.Notify(EventUpdated, out.Clone())
}

// Delete removes the entity identified by id and fires EventDeleted with the
// entity as it was just before removal. An unknown id returns ErrNotFound and
// fires nothing.
func (s *Store) Delete(id string) (Entity, error) {
	s.mu.Lock()
	removed, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return Entity{}, fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	delete(s.entities, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.mu.Unlock()

	return removed, s.dispatcher.Notify(EventDeleted, removed.Clone())
}

// Get returns a copy of the entity identified by id.
func (s *Store) Get(id string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// List returns copies of all entities in insertion/load order.
func (s *Store) List() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id].Clone())
	}
	return out
}

// Len returns the number of entities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// Save writes the collection to dst in List order.
func (s *Store) Save(dst Source) error {
	if err := dst.Write(RecordsOf(s.List())); err != nil {
		return fmt.Errorf("save %s: %w", dst.Name(), err)
	}
	return nil
}
