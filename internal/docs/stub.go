package docs

import (
	"context"
	"fmt"
	"sync"
)

// StubResolver answers from fixed tables and records every call. Useful in
// tests and for offline runs.
type StubResolver struct {
	// Libraries maps library names to identifiers.
	Libraries map[string]string
	// Documents maps "<id>::<topic>" to documentation text.
	Documents map[string]string
	// Err, when set, is returned by every call.
	Err error

	mu       sync.Mutex
	resolves []string
	fetches  []FetchRequest
}

func NewStubResolver() *StubResolver {
	return &StubResolver{
		Libraries: map[string]string{
			"react": "/facebook/react",
			"go":    "/golang/go",
		},
		Documents: map[string]string{},
	}
}

func (s *StubResolver) Name() string {
	return "stub"
}

func (s *StubResolver) Resolve(ctx context.Context, libraryName string) (string, error) {
	s.mu.Lock()
	s.resolves = append(s.resolves, libraryName)
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	id, ok := s.Libraries[libraryName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, libraryName)
	}
	return id, nil
}

func (s *StubResolver) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	s.mu.Lock()
	s.fetches = append(s.fetches, req)
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if doc, ok := s.Documents[req.LibraryID+"::"+req.Topic]; ok {
		return doc, nil
	}
	return fmt.Sprintf("documentation for %s (topic %q)", req.LibraryID, req.Topic), nil
}

// Fetches returns a copy of every fetch request seen so far.
func (s *StubResolver) Fetches() []FetchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FetchRequest(nil), s.fetches...)
}

// Resolves returns every library name passed to Resolve.
func (s *StubResolver) Resolves() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resolves...)
}
