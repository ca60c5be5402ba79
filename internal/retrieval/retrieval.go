// Package retrieval answers read-only queries over one category of the
// store. It holds no state; every call lists and materializes the category.
package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/observe"
)

// Reader is the read side of the store.
type Reader interface {
	List(ctx context.Context, category string) ([]string, error)
	Get(ctx context.Context, category, key string) (memory.Object, bool, error)
}

// Result is one entry of a recency query.
type Result struct {
	Key      string         `json:"key"`
	Category string         `json:"category"`
	Data     memory.Payload `json:"data"`
}

type Engine struct {
	reader Reader
	obs    *observe.Observer
	bus    *events.EventBus
}

func New(reader Reader, obs *observe.Observer) *Engine {
	return &Engine{reader: reader, obs: observe.OrDiscard(obs)}
}

// SetEventBus publishes a retrieval.skipped event for every entry dropped
// from a result.
func (e *Engine) SetEventBus(bus *events.EventBus) {
	e.bus = bus
}

type entry struct {
	key string
	obj memory.Object
	ts  time.Time
}

// scan materializes every object of category. Entries that fail to load
// are logged and skipped; entries deleted since the listing are dropped.
// Only a failed listing is returned as an error.
func (e *Engine) scan(ctx context.Context, category string) ([]entry, error) {
	keys, err := e.reader.List(ctx, category)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, found, err := e.reader.Get(ctx, category, key)
		if err != nil {
			e.obs.Log().Warn().Str("category", category).Str("key", key).Err(err).Msg("skipping unreadable memory object")
			e.bus.PublishWithData(events.EventRetrievalSkipped, category, key, map[string]interface{}{"error": err.Error()})
			continue
		}
		if !found {
			continue
		}
		ts, _ := obj.Metadata.Time()
		entries = append(entries, entry{key: key, obj: obj, ts: ts})
	}
	return entries, nil
}

// GetMostRecent returns at most limit entries of category, newest first.
// Objects with a missing or unparseable timestamp sort as the oldest; ties
// keep the listing order.
func (e *Engine) GetMostRecent(ctx context.Context, category string, limit int) (results []Result, err error) {
	ctx, span := e.obs.StartSpan(ctx, "retrieval.GetMostRecent")
	defer func() { observe.EndSpan(span, err) }()

	if limit <= 0 {
		return []Result{}, nil
	}

	entries, err := e.scan(ctx, category)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ts.After(entries[j].ts)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	results = make([]Result, len(entries))
	for i, en := range entries {
		results[i] = Result{Key: en.key, Category: category, Data: en.obj.Data}
	}
	return results, nil
}

// FindByTags returns every object of category carrying all of tags. An
// empty tag set matches everything.
func (e *Engine) FindByTags(ctx context.Context, category string, tags []string) (matches []memory.Object, err error) {
	ctx, span := e.obs.StartSpan(ctx, "retrieval.FindByTags")
	defer func() { observe.EndSpan(span, err) }()

	entries, err := e.scan(ctx, category)
	if err != nil {
		return nil, err
	}

	matches = []memory.Object{}
	for _, en := range entries {
		if en.obj.Metadata.HasTags(tags) {
			matches = append(matches, en.obj)
		}
	}
	return matches, nil
}
