// Package cache fronts the documentation resolver with the memory store.
// Responses are kept in the "documentation" category under a key derived
// from the library identifier and topic, and served while they are fresh.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/observe"
)

const (
	// Category is the reserved category holding cached documentation.
	Category = "documentation"
	// SourceContext7 marks objects written from documentation responses.
	SourceContext7 = "context7"
	// DefaultFreshness is how long a cached response is served.
	DefaultFreshness = 24 * time.Hour
)

// Store is the part of the memory store the hook needs.
type Store interface {
	Get(ctx context.Context, category, key string) (memory.Object, bool, error)
	Put(ctx context.Context, category, key string, data memory.Payload, o memory.Overrides) (memory.Object, error)
}

// Request identifies one documentation lookup.
type Request struct {
	LibraryID    string `json:"libraryId"`
	Topic        string `json:"topic,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// Lookup is the outcome of PreRequest. Age and Data are only meaningful
// when Cached is true.
type Lookup struct {
	Cached bool           `json:"cached"`
	Age    time.Duration  `json:"age,omitempty"`
	Data   memory.Payload `json:"data"`
}

var keyPartEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// CompositeKey derives the storage key for a library topic. Colons and
// percent signs inside either part are escaped, so the "::" separator is
// unambiguous and distinct requests never share a key.
func CompositeKey(libraryID, topic string) string {
	return keyPartEscaper.Replace(libraryID) + "::" + keyPartEscaper.Replace(topic)
}

type Hook struct {
	store     Store
	freshness time.Duration
	clock     func() time.Time
	obs       *observe.Observer
	bus       *events.EventBus
}

type Option func(*Hook)

// WithFreshness sets the window within which a cached entry is served.
// Non-positive values keep the default.
func WithFreshness(d time.Duration) Option {
	return func(h *Hook) {
		if d > 0 {
			h.freshness = d
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(h *Hook) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func WithObserver(o *observe.Observer) Option {
	return func(h *Hook) {
		if o != nil {
			h.obs = o
		}
	}
}

func WithEventBus(bus *events.EventBus) Option {
	return func(h *Hook) {
		h.bus = bus
	}
}

func New(s Store, opts ...Option) *Hook {
	h := &Hook{
		store:     s,
		freshness: DefaultFreshness,
		clock:     time.Now,
		obs:       observe.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Freshness reports the configured freshness window.
func (h *Hook) Freshness() time.Duration {
	return h.freshness
}

// PreRequest reports whether a fresh cached response exists for req.
// A store failure yields a miss together with the error, so a nil error
// always means the lookup itself succeeded. Stale entries are left in place.
func (h *Hook) PreRequest(ctx context.Context, req Request) (lookup Lookup, err error) {
	ctx, span := h.obs.StartSpan(ctx, "cache.PreRequest")
	defer func() { observe.EndSpan(span, err) }()

	key := CompositeKey(req.LibraryID, req.Topic)

	if req.ForceRefresh {
		h.miss(key, "force_refresh")
		return Lookup{}, nil
	}

	obj, found, err := h.store.Get(ctx, Category, key)
	if err != nil {
		h.obs.Log().Warn().Str("key", key).Err(err).Msg("documentation cache lookup failed")
		h.miss(key, "lookup_failed")
		return Lookup{}, err
	}
	if !found {
		h.miss(key, "absent")
		return Lookup{}, nil
	}

	ts, ok := obj.Metadata.Time()
	if !ok {
		h.obs.Log().Warn().Str("key", key).Str("timestamp", obj.Metadata.Timestamp).Msg("cached documentation has unparseable timestamp")
		h.miss(key, "bad_timestamp")
		return Lookup{}, nil
	}

	age := h.clock().Sub(ts)
	if age < 0 {
		age = 0
	}
	if age > h.freshness {
		h.miss(key, "stale")
		return Lookup{}, nil
	}

	h.obs.Log().Debug().Str("key", key).Str("age", age.String()).Msg("documentation cache hit")
	h.bus.PublishWithData(events.EventCacheHit, Category, key, map[string]interface{}{"age": age})
	return Lookup{Cached: true, Age: age, Data: obj.Data}, nil
}

func (h *Hook) miss(key, reason string) {
	h.obs.Log().Debug().Str("key", key).Str("reason", reason).Msg("documentation cache miss")
	h.bus.PublishWithData(events.EventCacheMiss, Category, key, map[string]interface{}{"reason": reason})
}

// PostResponse stores a documentation response, replacing any previous
// entry for the same library topic. Store errors are returned unmodified.
func (h *Hook) PostResponse(ctx context.Context, req Request, content string) (obj memory.Object, err error) {
	ctx, span := h.obs.StartSpan(ctx, "cache.PostResponse")
	defer func() { observe.EndSpan(span, err) }()

	key := CompositeKey(req.LibraryID, req.Topic)
	obj, err = h.store.Put(ctx, Category, key, memory.String(content), memory.Overrides{
		Timestamp: memory.FormatTimestamp(h.clock()),
		Source:    SourceContext7,
	})
	if err != nil {
		return memory.Object{}, err
	}

	h.bus.PublishKey(events.EventCacheStored, Category, key)
	return obj, nil
}
