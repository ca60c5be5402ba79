package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/membank/internal/cache"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/retrieval"
	"github.com/google/uuid"
)

// Store is the memory store surface the tools drive.
type Store interface {
	Put(ctx context.Context, category, key string, data memory.Payload, o memory.Overrides) (memory.Object, error)
	Get(ctx context.Context, category, key string) (memory.Object, bool, error)
	List(ctx context.Context, category string) ([]string, error)
	Delete(ctx context.Context, category, key string) error
}

// Deps wires the memory tools to the core components. Engine and Hook are
// required; the docs_fetch tool is registered only when Fetcher is set.
type Deps struct {
	Store   Store
	Engine  *retrieval.Engine
	Hook    *cache.Hook
	Fetcher *cache.Fetcher
}

type putArgs struct {
	Category   string          `json:"category"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	Source     string          `json:"source"`
	Tags       []string        `json:"tags"`
	TTL        *float64        `json:"ttl"`
	Importance *float64        `json:"importance"`
	Vectorized *bool           `json:"vectorized"`
}

type keyArgs struct {
	Category string `json:"category"`
	Key      string `json:"key"`
}

type recentArgs struct {
	Category string `json:"category"`
	Limit    *int   `json:"limit"`
}

type tagArgs struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type docsArgs struct {
	LibraryID    string `json:"libraryId"`
	LibraryName  string `json:"libraryName"`
	Topic        string `json:"topic"`
	Content      string `json:"content"`
	Tokens       int    `json:"tokens"`
	ForceRefresh bool   `json:"forceRefresh"`
}

const defaultRecentLimit = 10

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

func decodeArgs(call Call, v interface{}) error {
	if call.Args == "" {
		return fmt.Errorf("%s: arguments are required", call.Name)
	}
	if err := json.Unmarshal([]byte(call.Args), v); err != nil {
		return fmt.Errorf("%s: invalid arguments: %w", call.Name, err)
	}
	return nil
}

func encodeResult(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(raw), nil
}

// RegisterMemoryTools adds the memory and documentation tools to reg.
func RegisterMemoryTools(reg *Registry, deps Deps) error {
	if deps.Store == nil || deps.Engine == nil || deps.Hook == nil {
		return fmt.Errorf("store, retrieval engine and cache hook are required")
	}

	type entry struct {
		def  Definition
		exec Executor
	}
	categoryProp := prop("string", "Memory category")
	keyProp := prop("string", "Key within the category")

	entries := []entry{
		{Definition{
			Name:        "memory_put",
			Description: "Store a value under category/key, replacing any previous value. A key is generated when omitted.",
			Parameters: objectSchema([]string{"category", "data"}, map[string]interface{}{
				"category":   categoryProp,
				"key":        keyProp,
				"data":       map[string]interface{}{"description": "Any JSON value"},
				"source":     prop("string", "Origin of the value"),
				"tags":       map[string]interface{}{"type": "array", "items": prop("string", "Tag")},
				"ttl":        prop("number", "Lifetime in days"),
				"importance": prop("number", "Priority between 0 and 1"),
				"vectorized": prop("boolean", "Whether an embedding exists"),
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a putArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			data, err := memory.ParseJSON(a.Data)
			if err != nil {
				return "", fmt.Errorf("memory_put: %w", err)
			}
			if a.Key == "" {
				a.Key = uuid.NewString()
			}
			obj, err := deps.Store.Put(ctx, a.Category, a.Key, data, memory.Overrides{
				Source:     a.Source,
				Tags:       a.Tags,
				TTL:        a.TTL,
				Importance: a.Importance,
				Vectorized: a.Vectorized,
			})
			if err != nil {
				return "", err
			}
			return encodeResult(obj)
		}},
		{Definition{
			Name:        "memory_get",
			Description: "Fetch the object stored under category/key.",
			Parameters:  objectSchema([]string{"category", "key"}, map[string]interface{}{"category": categoryProp, "key": keyProp}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a keyArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			obj, found, err := deps.Store.Get(ctx, a.Category, a.Key)
			if err != nil {
				return "", err
			}
			if !found {
				return encodeResult(map[string]interface{}{"found": false})
			}
			return encodeResult(map[string]interface{}{"found": true, "object": obj})
		}},
		{Definition{
			Name:        "memory_list",
			Description: "List the keys of a category.",
			Parameters:  objectSchema([]string{"category"}, map[string]interface{}{"category": categoryProp}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a keyArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			keys, err := deps.Store.List(ctx, a.Category)
			if err != nil {
				return "", err
			}
			if keys == nil {
				keys = []string{}
			}
			return encodeResult(keys)
		}},
		{Definition{
			Name:        "memory_delete",
			Description: "Remove category/key. Deleting a missing key succeeds.",
			Parameters:  objectSchema([]string{"category", "key"}, map[string]interface{}{"category": categoryProp, "key": keyProp}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a keyArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			if err := deps.Store.Delete(ctx, a.Category, a.Key); err != nil {
				return "", err
			}
			return encodeResult(map[string]interface{}{"deleted": true})
		}},
		{Definition{
			Name:        "memory_recent",
			Description: "Return the newest entries of a category.",
			Parameters: objectSchema([]string{"category"}, map[string]interface{}{
				"category": categoryProp,
				"limit":    prop("integer", "Maximum number of entries (default 10)"),
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a recentArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			limit := defaultRecentLimit
			if a.Limit != nil {
				limit = *a.Limit
			}
			results, err := deps.Engine.GetMostRecent(ctx, a.Category, limit)
			if err != nil {
				return "", err
			}
			return encodeResult(results)
		}},
		{Definition{
			Name:        "memory_find_by_tags",
			Description: "Return every object of a category carrying all of the given tags.",
			Parameters: objectSchema([]string{"category", "tags"}, map[string]interface{}{
				"category": categoryProp,
				"tags":     map[string]interface{}{"type": "array", "items": prop("string", "Tag")},
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a tagArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			objs, err := deps.Engine.FindByTags(ctx, a.Category, a.Tags)
			if err != nil {
				return "", err
			}
			return encodeResult(objs)
		}},
		{Definition{
			Name:        "docs_lookup",
			Description: "Check the documentation cache for a fresh entry.",
			Parameters: objectSchema([]string{"libraryId"}, map[string]interface{}{
				"libraryId":    prop("string", "Library identifier, e.g. /facebook/react"),
				"topic":        prop("string", "Documentation topic"),
				"forceRefresh": prop("boolean", "Report a miss without consulting the cache"),
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a docsArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			lookup, err := deps.Hook.PreRequest(ctx, cache.Request{LibraryID: a.LibraryID, Topic: a.Topic, ForceRefresh: a.ForceRefresh})
			if err != nil {
				return "", err
			}
			return encodeResult(lookup)
		}},
		{Definition{
			Name:        "docs_store",
			Description: "Cache a documentation response.",
			Parameters: objectSchema([]string{"libraryId", "content"}, map[string]interface{}{
				"libraryId": prop("string", "Library identifier"),
				"topic":     prop("string", "Documentation topic"),
				"content":   prop("string", "Documentation text"),
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a docsArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			obj, err := deps.Hook.PostResponse(ctx, cache.Request{LibraryID: a.LibraryID, Topic: a.Topic}, a.Content)
			if err != nil {
				return "", err
			}
			return encodeResult(obj)
		}},
	}

	if deps.Fetcher != nil {
		entries = append(entries, entry{Definition{
			Name:        "docs_fetch",
			Description: "Return documentation for a library topic, from cache when fresh.",
			Parameters: objectSchema(nil, map[string]interface{}{
				"libraryId":    prop("string", "Library identifier"),
				"libraryName":  prop("string", "Library name, resolved when no identifier is given"),
				"topic":        prop("string", "Documentation topic"),
				"tokens":       prop("integer", "Token budget for the response"),
				"forceRefresh": prop("boolean", "Bypass the cache"),
			}),
		}, func(ctx context.Context, call Call) (string, error) {
			var a docsArgs
			if err := decodeArgs(call, &a); err != nil {
				return "", err
			}
			res, err := deps.Fetcher.Fetch(ctx, cache.FetchRequest{
				LibraryID:    a.LibraryID,
				LibraryName:  a.LibraryName,
				Topic:        a.Topic,
				TokenBudget:  a.Tokens,
				ForceRefresh: a.ForceRefresh,
			})
			if err != nil {
				return "", err
			}
			return encodeResult(res)
		}})
	}

	for _, e := range entries {
		if err := reg.Register(e.def, e.exec); err != nil {
			return err
		}
	}
	return nil
}
