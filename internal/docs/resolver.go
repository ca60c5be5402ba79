// Package docs talks to the upstream documentation service that the cache
// sits in front of.
package docs

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a library name cannot be resolved.
var ErrNotFound = errors.New("library not found")

// FetchRequest asks for the documentation of one library topic.
type FetchRequest struct {
	LibraryID   string `json:"libraryId"`
	Topic       string `json:"topic,omitempty"`
	TokenBudget int    `json:"tokens,omitempty"`
}

// Resolver defines the upstream documentation service.
type Resolver interface {
	// Resolve maps a human library name (e.g. "react") to an identifier
	// such as "/facebook/react".
	Resolve(ctx context.Context, libraryName string) (string, error)

	// Fetch returns the documentation text for a library topic.
	Fetch(ctx context.Context, req FetchRequest) (string, error)

	// Name returns the resolver identifier.
	Name() string
}
