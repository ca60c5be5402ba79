// Package prune enforces the ttl metadata field. The store itself never
// expires anything; a Sweeper run deletes objects whose lifetime is over.
package prune

import (
	"context"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/felixgeelhaar/membank/internal/events"
	"github.com/felixgeelhaar/membank/internal/memory"
	"github.com/felixgeelhaar/membank/internal/observe"
)

// DefaultPatterns selects every category.
var DefaultPatterns = []string{"**"}

// Store is the subset of the memory store a sweep needs.
type Store interface {
	Categories(ctx context.Context) ([]string, error)
	List(ctx context.Context, category string) ([]string, error)
	Get(ctx context.Context, category, key string) (memory.Object, bool, error)
	Delete(ctx context.Context, category, key string) error
}

// Expired describes one object past its ttl.
type Expired struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	ExpiredAt time.Time `json:"expiredAt"`
}

// Failure records an object the sweep could not inspect or delete.
type Failure struct {
	Category string `json:"category"`
	Key      string `json:"key,omitempty"`
	Error    string `json:"error"`
}

// Report summarizes one sweep.
type Report struct {
	DryRun     bool      `json:"dryRun"`
	Categories []string  `json:"categories"`
	Scanned    int       `json:"scanned"`
	Expired    []Expired `json:"expired"`
	Failures   []Failure `json:"failures,omitempty"`
}

type Sweeper struct {
	Store    Store
	Patterns []string
	Clock    func() time.Time
	// DryRun reports expired objects without deleting them.
	DryRun bool

	obs *observe.Observer
	bus *events.EventBus
}

func New(s Store, patterns []string, obs *observe.Observer, bus *events.EventBus) *Sweeper {
	return &Sweeper{
		Store:    s,
		Patterns: patterns,
		obs:      observe.OrDiscard(obs),
		bus:      bus,
	}
}

// ValidatePatterns reports the first malformed glob.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid category pattern %q", p)
		}
	}
	return nil
}

func (s *Sweeper) matches(category string) bool {
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, category)
		if err == nil && match {
			return true
		}
	}
	return false
}

// Sweep visits every matching category and deletes objects whose
// timestamp plus ttl days lies before now. Objects without a ttl or with
// an unparseable timestamp are kept. Per-object failures are recorded in
// the report; only a failed category listing aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (report Report, err error) {
	obs := observe.OrDiscard(s.obs)
	ctx, span := obs.StartSpan(ctx, "prune.Sweep")
	defer func() { observe.EndSpan(span, err) }()

	if err := ValidatePatterns(s.Patterns); err != nil {
		return Report{}, err
	}

	clock := s.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()

	report = Report{DryRun: s.DryRun, Categories: []string{}, Expired: []Expired{}}

	categories, err := s.Store.Categories(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list categories: %w", err)
	}

	for _, category := range categories {
		if !s.matches(category) {
			continue
		}
		report.Categories = append(report.Categories, category)

		keys, err := s.Store.List(ctx, category)
		if err != nil {
			obs.Log().Warn().Str("category", category).Err(err).Msg("skipping unlistable category")
			report.Failures = append(report.Failures, Failure{Category: category, Error: err.Error()})
			continue
		}

		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Scanned++

			obj, found, err := s.Store.Get(ctx, category, key)
			if err != nil {
				report.Failures = append(report.Failures, Failure{Category: category, Key: key, Error: err.Error()})
				continue
			}
			if !found {
				continue
			}

			expiresAt, ok := obj.Metadata.ExpiresAt()
			if !ok || !expiresAt.Before(now) {
				continue
			}

			if !s.DryRun {
				if err := s.Store.Delete(ctx, category, key); err != nil {
					report.Failures = append(report.Failures, Failure{Category: category, Key: key, Error: err.Error()})
					continue
				}
				s.bus.PublishWithData(events.EventPruneExpired, category, key, map[string]interface{}{"expiredAt": expiresAt})
			}
			obs.Log().Info().Str("category", category).Str("key", key).Msg("expired memory object")
			report.Expired = append(report.Expired, Expired{Category: category, Key: key, ExpiredAt: expiresAt})
		}
	}

	return report, nil
}
