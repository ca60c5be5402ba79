package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/membank/internal/docs"
)

// FetchRequest asks for a library topic by identifier or, when no
// identifier is known, by library name.
type FetchRequest struct {
	LibraryID    string
	LibraryName  string
	Topic        string
	TokenBudget  int
	ForceRefresh bool
}

type FetchResult struct {
	LibraryID string        `json:"libraryId"`
	Topic     string        `json:"topic,omitempty"`
	Content   string        `json:"content"`
	Cached    bool          `json:"cached"`
	Age       time.Duration `json:"age,omitempty"`
}

// Fetcher runs the full cached documentation flow: resolve, look up,
// fetch on a miss, store.
type Fetcher struct {
	hook     *Hook
	resolver docs.Resolver
}

func NewFetcher(hook *Hook, resolver docs.Resolver) *Fetcher {
	return &Fetcher{hook: hook, resolver: resolver}
}

func (f *Fetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	id := req.LibraryID
	if id == "" {
		if req.LibraryName == "" {
			return FetchResult{}, fmt.Errorf("library id or name is required")
		}
		resolved, err := f.resolver.Resolve(ctx, req.LibraryName)
		if err != nil {
			return FetchResult{}, fmt.Errorf("failed to resolve library %s: %w", req.LibraryName, err)
		}
		id = resolved
	}

	creq := Request{LibraryID: id, Topic: req.Topic, ForceRefresh: req.ForceRefresh}
	lookup, err := f.hook.PreRequest(ctx, creq)
	if err != nil {
		// Already logged by the hook; fall through to the resolver.
		lookup = Lookup{}
	}
	if lookup.Cached {
		content, ok := lookup.Data.AsString()
		if ok {
			return FetchResult{LibraryID: id, Topic: req.Topic, Content: content, Cached: true, Age: lookup.Age}, nil
		}
		f.hook.obs.Log().Warn().Str("key", CompositeKey(id, req.Topic)).Str("kind", lookup.Data.Kind().String()).Msg("cached documentation is not text, refetching")
	}

	content, err := f.resolver.Fetch(ctx, docs.FetchRequest{LibraryID: id, Topic: req.Topic, TokenBudget: req.TokenBudget})
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to fetch documentation for %s from %s: %w", id, f.resolver.Name(), err)
	}
	f.hook.obs.Log().Debug().
		Str("resolver", f.resolver.Name()).
		Str("key", CompositeKey(id, req.Topic)).
		Int("bytes", len(content)).
		Msg("fetched documentation")

	// The response is still served when it cannot be cached.
	if _, err := f.hook.PostResponse(ctx, creq, content); err != nil {
		f.hook.obs.Log().Warn().Str("resolver", f.resolver.Name()).Str("key", CompositeKey(id, req.Topic)).Err(err).Msg("failed to cache documentation")
	}

	return FetchResult{LibraryID: id, Topic: req.Topic, Content: content}, nil
}
