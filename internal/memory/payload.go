package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind is the declared content kind of a payload.
type Kind int

const (
	KindInvalid Kind = iota
	KindMap
	KindString
	KindSequence
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// ErrUnsupportedPayload is returned when a value has no payload kind.
var ErrUnsupportedPayload = errors.New("unsupported payload value")

// Payload is the opaque data of a memory object. It holds exactly one of a
// map, string, sequence, number or boolean, always in canonical JSON shape
// (map[string]any, []any, float64) so that values survive a round trip
// through any backend unchanged.
type Payload struct {
	kind  Kind
	value any
}

func String(s string) Payload { return Payload{kind: KindString, value: s} }

func Number(f float64) Payload { return Payload{kind: KindNumber, value: f} }

func Bool(b bool) Payload { return Payload{kind: KindBool, value: b} }

// Map builds a map payload. Nested values are canonicalized.
func Map(m map[string]any) (Payload, error) {
	if m == nil {
		m = map[string]any{}
	}
	return FromValue(m)
}

// Sequence builds a sequence payload. Nested values are canonicalized.
func Sequence(items []any) (Payload, error) {
	if items == nil {
		items = []any{}
	}
	return FromValue(items)
}

// FromValue wraps any JSON-like Go value. nil is rejected.
func FromValue(v any) (Payload, error) {
	switch t := v.(type) {
	case nil:
		return Payload{}, fmt.Errorf("%w: nil", ErrUnsupportedPayload)
	case Payload:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
		}
		return Number(f), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
	}
	var p Payload
	if err := p.UnmarshalJSON(raw); err != nil {
		return Payload{}, err
	}
	if !p.Valid() {
		return Payload{}, fmt.Errorf("%w: %T", ErrUnsupportedPayload, v)
	}
	return p, nil
}

// ParseJSON decodes a JSON document into a payload.
func ParseJSON(raw []byte) (Payload, error) {
	var p Payload
	if err := p.UnmarshalJSON(raw); err != nil {
		return Payload{}, err
	}
	if !p.Valid() {
		return Payload{}, fmt.Errorf("%w: null", ErrUnsupportedPayload)
	}
	return p, nil
}

func (p Payload) Kind() Kind { return p.kind }

func (p Payload) Valid() bool { return p.kind != KindInvalid }

// Value returns the canonical Go value.
func (p Payload) Value() any { return p.value }

func (p Payload) AsString() (string, bool) {
	s, ok := p.value.(string)
	return s, ok && p.kind == KindString
}

func (p Payload) AsNumber() (float64, bool) {
	f, ok := p.value.(float64)
	return f, ok && p.kind == KindNumber
}

func (p Payload) AsBool() (bool, bool) {
	b, ok := p.value.(bool)
	return b, ok && p.kind == KindBool
}

func (p Payload) AsMap() (map[string]any, bool) {
	m, ok := p.value.(map[string]any)
	return m, ok && p.kind == KindMap
}

func (p Payload) AsSequence() ([]any, bool) {
	s, ok := p.value.([]any)
	return s, ok && p.kind == KindSequence
}

// finite reports whether a number payload is representable in JSON.
func (p Payload) finite() bool {
	f, ok := p.AsNumber()
	if !ok {
		return true
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(p.value)
}

func (p *Payload) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*p = Payload{}
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch t := v.(type) {
	case map[string]any:
		*p = Payload{kind: KindMap, value: t}
	case []any:
		*p = Payload{kind: KindSequence, value: t}
	case string:
		*p = String(t)
	case float64:
		*p = Number(t)
	case bool:
		*p = Bool(t)
	default:
		*p = Payload{}
	}
	return nil
}
