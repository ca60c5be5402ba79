// Package memory defines the memory object persisted by the store and the
// schema rules every object must satisfy before it is written.
package memory

import (
	"time"
)

// Object is the persisted unit: an opaque payload plus its metadata.
type Object struct {
	Data     Payload  `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Metadata describes an object. Timestamp, Category and Key are required;
// the rest stay absent unless the caller supplies them.
type Metadata struct {
	Timestamp  string   `json:"timestamp"`
	Category   string   `json:"category"`
	Key        string   `json:"key"`
	Source     string   `json:"source,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	TTL        *float64 `json:"ttl,omitempty"`        // days after Timestamp
	Importance *float64 `json:"importance,omitempty"` // 0..1
	Vectorized *bool    `json:"vectorized,omitempty"`
}

// Overrides holds the metadata a caller may set on Put. Category and Key
// always come from the Put arguments.
type Overrides struct {
	Timestamp  string
	Source     string
	Tags       []string
	TTL        *float64
	Importance *float64
	Vectorized *bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp renders t the way the store writes timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses an ISO-8601 instant. The boolean is false when the
// value is empty or not parseable.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time returns the parsed write instant of the object.
func (m Metadata) Time() (time.Time, bool) {
	return ParseTimestamp(m.Timestamp)
}

// HasTags reports whether every tag in want is present on the object.
func (m Metadata) HasTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(m.Tags))
	for _, t := range m.Tags {
		have[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// ExpiresAt returns Timestamp + TTL days. ok is false when the object has no
// ttl or its timestamp cannot be parsed.
func (m Metadata) ExpiresAt() (time.Time, bool) {
	if m.TTL == nil {
		return time.Time{}, false
	}
	ts, ok := m.Time()
	if !ok {
		return time.Time{}, false
	}
	return ts.Add(time.Duration(*m.TTL * float64(24*time.Hour))), true
}

// NormalizeTags drops duplicate tags, keeping the first occurrence.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Float returns a pointer to v, for optional numeric metadata.
func Float(v float64) *float64 { return &v }

// Flag returns a pointer to v, for optional boolean metadata.
func Flag(v bool) *bool { return &v }
