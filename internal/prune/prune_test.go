package prune

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	fb, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := store.New(fb)

	put := func(category, key string, age time.Duration, ttl *float64) {
		_, err := s.Put(ctx, category, key, memory.String(key), memory.Overrides{
			Timestamp: memory.FormatTimestamp(now.Add(-age)),
			TTL:       ttl,
		})
		require.NoError(t, err)
	}

	put("ideas", "expired", 10*24*time.Hour, memory.Float(7))
	put("ideas", "live", 2*24*time.Hour, memory.Float(7))
	put("ideas", "forever", 400*24*time.Hour, nil)
	put("documentation", "old-docs", 3*24*time.Hour, memory.Float(1))
	put("projects/archive", "deep", 30*24*time.Hour, memory.Float(0.5))

	// Expires exactly now, which is not yet past.
	put("ideas", "just-written", 0, memory.Float(0))
	return s
}

func exists(t *testing.T, s *store.MemoryStore, category, key string) bool {
	t.Helper()
	_, found, err := s.Get(context.Background(), category, key)
	require.NoError(t, err)
	return found
}

func TestSweep_DeletesOnlyExpired(t *testing.T) {
	s := seed(t)
	bus := events.NewEventBus()
	var pruned []string
	bus.Subscribe(events.EventPruneExpired, func(e events.Event) { pruned = append(pruned, e.Category+"/"+e.Key) })

	sw := New(s, nil, nil, bus)
	sw.Clock = func() time.Time { return now }

	report, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Scanned)
	assert.Empty(t, report.Failures)
	assert.ElementsMatch(t, []string{"ideas/expired", "documentation/old-docs", "projects/archive/deep"}, pruned)
	assert.Len(t, report.Expired, 3)

	assert.False(t, exists(t, s, "ideas", "expired"))
	assert.True(t, exists(t, s, "ideas", "live"))
	assert.True(t, exists(t, s, "ideas", "forever"))
	assert.True(t, exists(t, s, "ideas", "just-written"))
	assert.False(t, exists(t, s, "documentation", "old-docs"))
}

func TestSweep_Patterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{"exact", []string{"ideas"}, []string{"ideas"}},
		{"single segment", []string{"*"}, []string{"ideas", "documentation"}},
		{"nested", []string{"projects/**"}, []string{"projects/archive"}},
		{"several", []string{"ideas", "doc*"}, []string{"ideas", "documentation"}},
		{"none", []string{"nothing"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := New(seed(t), tt.patterns, nil, nil)
			sw.Clock = func() time.Time { return now }
			sw.DryRun = true

			report, err := sw.Sweep(context.Background())
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, report.Categories)
			} else {
				assert.ElementsMatch(t, tt.want, report.Categories)
			}
		})
	}
}

func TestSweep_DryRun(t *testing.T) {
	s := seed(t)
	sw := New(s, []string{"ideas"}, nil, nil)
	sw.Clock = func() time.Time { return now }
	sw.DryRun = true

	report, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Expired, 1)
	assert.Equal(t, "expired", report.Expired[0].Key)
	assert.True(t, now.Add(-3*24*time.Hour).Equal(report.Expired[0].ExpiredAt))
	assert.True(t, exists(t, s, "ideas", "expired"))
}

func TestSweep_InvalidPattern(t *testing.T) {
	sw := New(seed(t), []string{"[unterminated"}, nil, nil)
	_, err := sw.Sweep(context.Background())
	assert.Error(t, err)
	assert.Error(t, ValidatePatterns([]string{"ok", "[bad"}))
	assert.NoError(t, ValidatePatterns(DefaultPatterns))
}

// flakyStore fails deletes and one get.
type flakyStore struct {
	*store.MemoryStore
}

func (f flakyStore) Get(ctx context.Context, category, key string) (memory.Object, bool, error) {
	if key == "live" {
		return memory.Object{}, false, errors.New("unreadable")
	}
	return f.MemoryStore.Get(ctx, category, key)
}

func (f flakyStore) Delete(ctx context.Context, category, key string) error {
	return errors.New("read-only medium")
}

func TestSweep_RecordsFailures(t *testing.T) {
	s := seed(t)
	sw := New(flakyStore{s}, []string{"ideas"}, nil, nil)
	sw.Clock = func() time.Time { return now }

	report, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Expired)
	assert.Len(t, report.Failures, 2)
	assert.True(t, exists(t, s, "ideas", "expired"))
}
