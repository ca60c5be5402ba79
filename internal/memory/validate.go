package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrValidation matches every schema failure via errors.Is.
var ErrValidation = errors.New("schema violation")

// Violation names one offending field.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// ValidationError lists every violation found in one object.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the offending field names in order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fields
}

type violations []Violation

func (vs *violations) add(field, reason string) {
	*vs = append(*vs, Violation{Field: field, Reason: reason})
}

func (vs violations) err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// Validate checks an object's shape. It never fills in defaults.
func Validate(obj Object) error {
	var vs violations

	if !obj.Data.Valid() {
		vs.add("data", "required")
	} else if !obj.Data.finite() {
		vs.add("data", "number must be finite")
	}

	md := obj.Metadata
	checkTimestamp(&vs, md.Timestamp)
	if md.Category == "" {
		vs.add("metadata.category", "required")
	}
	if md.Key == "" {
		vs.add("metadata.key", "required")
	}
	for i, t := range md.Tags {
		if t == "" {
			vs.add(fmt.Sprintf("metadata.tags[%d]", i), "must be a non-empty string")
		}
	}
	if md.TTL != nil {
		checkTTL(&vs, *md.TTL)
	}
	if md.Importance != nil {
		checkImportance(&vs, *md.Importance)
	}

	return vs.err()
}

const timestampReason = "must be an ISO-8601 instant"

func checkTimestamp(vs *violations, ts string) {
	if ts == "" {
		vs.add("metadata.timestamp", "required")
	} else if _, ok := ParseTimestamp(ts); !ok {
		vs.add("metadata.timestamp", timestampReason)
	}
}

func checkTTL(vs *violations, ttl float64) {
	switch {
	case math.IsNaN(ttl) || math.IsInf(ttl, 0):
		vs.add("metadata.ttl", "must be a finite number")
	case ttl < 0:
		vs.add("metadata.ttl", "must not be negative")
	}
}

func checkImportance(vs *violations, importance float64) {
	if math.IsNaN(importance) || importance < 0 || importance > 1 {
		vs.add("metadata.importance", "must be a number in [0,1]")
	}
}

// ValidateDocument applies the schema to a raw JSON document, type-checking
// each field as found on the backing medium.
func ValidateDocument(raw []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return &ValidationError{Violations: []Violation{{Field: "$", Reason: "must be a JSON object"}}}
	}

	var vs violations

	switch doc["data"].(type) {
	case map[string]any, []any, string, float64, bool:
	case nil:
		vs.add("data", "required")
	default:
		vs.add("data", "unsupported type")
	}

	md, ok := doc["metadata"].(map[string]any)
	if !ok {
		if _, present := doc["metadata"]; present {
			vs.add("metadata", "must be an object")
		} else {
			vs.add("metadata", "required")
		}
		return vs.err()
	}

	for _, field := range []string{"timestamp", "category", "key"} {
		switch v := md[field].(type) {
		case string:
			if field == "timestamp" {
				checkTimestamp(&vs, v)
			} else if v == "" {
				vs.add("metadata."+field, "required")
			}
		case nil:
			vs.add("metadata."+field, "required")
		default:
			vs.add("metadata."+field, "must be a string")
		}
	}

	if v, present := md["source"]; present {
		if _, ok := v.(string); !ok {
			vs.add("metadata.source", "must be a string")
		}
	}
	if v, present := md["tags"]; present {
		items, ok := v.([]any)
		if !ok {
			vs.add("metadata.tags", "must be an array of strings")
		} else {
			for i, item := range items {
				if s, ok := item.(string); !ok || s == "" {
					vs.add(fmt.Sprintf("metadata.tags[%d]", i), "must be a non-empty string")
				}
			}
		}
	}
	if v, present := md["ttl"]; present {
		if f, ok := v.(float64); ok {
			checkTTL(&vs, f)
		} else {
			vs.add("metadata.ttl", "must be a number")
		}
	}
	if v, present := md["importance"]; present {
		if f, ok := v.(float64); ok {
			checkImportance(&vs, f)
		} else {
			vs.add("metadata.importance", "must be a number")
		}
	}
	if v, present := md["vectorized"]; present {
		if _, ok := v.(bool); !ok {
			vs.add("metadata.vectorized", "must be a boolean")
		}
	}

	return vs.err()
}

// Decode validates a raw document and decodes it into an Object.
func Decode(raw []byte) (Object, error) {
	if err := ValidateDocument(raw); err != nil {
		return Object{}, err
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Object{}, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

// Encode renders the persisted form of an object.
func Encode(obj Object) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return raw, nil
}
