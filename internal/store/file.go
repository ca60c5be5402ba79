package store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const docExt = ".json"

// FileBackend keeps one JSON document per object at
// <root>/<category>/<key>.json.
type FileBackend struct {
	root string
}

// NewFileBackend creates root if needed.
func NewFileBackend(root string) (*FileBackend, error) {
	if root == "" {
		return nil, fmt.Errorf("memory root is required")
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("failed to create memory root: %w", err)
	}
	return &FileBackend{root: root}, nil
}

// Root returns the directory the backend writes under.
func (b *FileBackend) Root() string {
	return b.root
}

func (b *FileBackend) dir(category string) string {
	return filepath.Join(b.root, escapeSegment(category))
}

func (b *FileBackend) path(category, key string) string {
	return filepath.Join(b.dir(category), escapeSegment(key)+docExt)
}

func (b *FileBackend) Read(ctx context.Context, category, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(b.path(category, key)) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return raw, true, nil
}

// Write replaces the document atomically via a temp file and rename, so
// readers never observe a partial object.
func (b *FileBackend) Write(ctx context.Context, category, key string, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := b.dir(category)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create category dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close object: %w", err)
	}
	if err := os.Rename(tmpName, b.path(category, key)); err != nil {
		return fmt.Errorf("failed to commit object: %w", err)
	}
	return nil
}

func (b *FileBackend) Remove(ctx context.Context, category, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path(category, key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *FileBackend) Keys(ctx context.Context, category string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dir(category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		key, err := unescapeSegment(strings.TrimSuffix(name, docExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (b *FileBackend) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}

	var cats []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		cat, err := unescapeSegment(e.Name())
		if err != nil {
			continue
		}
		keys, err := b.Keys(ctx, cat)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			cats = append(cats, cat)
		}
	}
	return cats, nil
}

func (b *FileBackend) Close() error {
	return nil
}

// escapeSegment turns a category or key into a single safe path segment.
// A leading dot is escaped so "." and ".." never reach the filesystem.
func escapeSegment(s string) string {
	e := url.PathEscape(s)
	if strings.HasPrefix(e, ".") {
		e = "%2E" + e[1:]
	}
	return e
}

func unescapeSegment(s string) (string, error) {
	return url.PathUnescape(s)
}
