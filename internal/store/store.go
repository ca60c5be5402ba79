// Package store persists memory objects keyed by (category, key) on a single
// backing medium: a directory of JSON files, a SQLite database, or an
// S3-compatible bucket.
package store

import (
	"context"
	"time"

	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/observe"
)

// MemoryStore owns the persisted collection. Operations on the same
// (category, key) are totally ordered; different pairs run independently.
type MemoryStore struct {
	backend Backend
	locks   *keyLocks
	clock   func() time.Time
	obs     *observe.Observer
	bus     *events.EventBus
}

type Option func(*MemoryStore)

// WithClock sets the source of default timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithObserver(o *observe.Observer) Option {
	return func(s *MemoryStore) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithEventBus(bus *events.EventBus) Option {
	return func(s *MemoryStore) {
		s.bus = bus
	}
}

// New wraps a backend. The backend is fixed for the store's lifetime.
func New(backend Backend, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		backend: backend,
		locks:   newKeyLocks(),
		clock:   time.Now,
		obs:     observe.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put validates and persists the object for (category, key), replacing any
// previous one. Timestamp defaults to now when o.Timestamp is empty. A
// validation failure leaves the backend untouched.
func (s *MemoryStore) Put(ctx context.Context, category, key string, data memory.Payload, o memory.Overrides) (obj memory.Object, err error) {
	ctx, span := s.obs.StartSpan(ctx, "store.Put")
	defer func() { observe.EndSpan(span, err) }()

	obj = memory.Object{
		Data: data,
		Metadata: memory.Metadata{
			Timestamp:  o.Timestamp,
			Category:   category,
			Key:        key,
			Source:     o.Source,
			Tags:       memory.NormalizeTags(o.Tags),
			TTL:        o.TTL,
			Importance: o.Importance,
			Vectorized: o.Vectorized,
		},
	}
	if obj.Metadata.Timestamp == "" {
		obj.Metadata.Timestamp = memory.FormatTimestamp(s.clock())
	}

	if err := memory.Validate(obj); err != nil {
		s.obs.Log().Warn().Str("category", category).Str("key", key).Err(err).Msg("rejected memory object")
		return memory.Object{}, err
	}

	raw, err := memory.Encode(obj)
	if err != nil {
		return memory.Object{}, &IOError{Op: "encode", Category: category, Key: key, Err: err}
	}

	unlock := s.locks.lock(category, key)
	defer unlock()

	if err := s.backend.Write(ctx, category, key, raw); err != nil {
		return memory.Object{}, &IOError{Op: "write", Category: category, Key: key, Err: err}
	}

	s.obs.Log().Debug().Str("category", category).Str("key", key).Msg("stored memory object")
	s.bus.PublishKey(events.EventMemoryPut, category, key)
	return obj, nil
}

// Get returns the object for (category, key). found is false when absent.
func (s *MemoryStore) Get(ctx context.Context, category, key string) (obj memory.Object, found bool, err error) {
	ctx, span := s.obs.StartSpan(ctx, "store.Get")
	defer func() { observe.EndSpan(span, err) }()

	if category == "" || key == "" {
		return memory.Object{}, false, nil
	}

	unlock := s.locks.lock(category, key)
	raw, found, err := s.backend.Read(ctx, category, key)
	unlock()

	if err != nil {
		return memory.Object{}, false, &IOError{Op: "read", Category: category, Key: key, Err: err}
	}
	if !found {
		return memory.Object{}, false, nil
	}

	obj, err = memory.Decode(raw)
	if err != nil {
		return memory.Object{}, false, &IOError{Op: "decode", Category: category, Key: key, Err: err}
	}
	return obj, true, nil
}

// List returns the keys present in category. The order is unspecified and
// the slice may be iterated any number of times.
func (s *MemoryStore) List(ctx context.Context, category string) (keys []string, err error) {
	ctx, span := s.obs.StartSpan(ctx, "store.List")
	defer func() { observe.EndSpan(span, err) }()

	if category == "" {
		return nil, nil
	}

	keys, err = s.backend.Keys(ctx, category)
	if err != nil {
		return nil, &IOError{Op: "list", Category: category, Err: err}
	}
	return keys, nil
}

// Delete removes (category, key). Deleting an absent pair is not an error.
func (s *MemoryStore) Delete(ctx context.Context, category, key string) (err error) {
	ctx, span := s.obs.StartSpan(ctx, "store.Delete")
	defer func() { observe.EndSpan(span, err) }()

	if category == "" || key == "" {
		return nil
	}

	unlock := s.locks.lock(category, key)
	defer unlock()

	if err := s.backend.Remove(ctx, category, key); err != nil {
		return &IOError{Op: "delete", Category: category, Key: key, Err: err}
	}

	s.obs.Log().Debug().Str("category", category).Str("key", key).Msg("deleted memory object")
	s.bus.PublishKey(events.EventMemoryDeleted, category, key)
	return nil
}

// Categories lists every non-empty category.
func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, &IOError{Op: "categories", Err: err}
	}
	return cats, nil
}

func (s *MemoryStore) Close() error {
	return s.backend.Close()
}
