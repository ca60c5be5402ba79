package memory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_Kinds(t *testing.T) {
	m, err := Map(map[string]any{"count": 3, "nested": []int{1, 2}})
	require.NoError(t, err)
	seq, err := Sequence([]any{"a", 1, true})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload Payload
		kind    Kind
		want    any
	}{
		{"string", String("hello"), KindString, "hello"},
		{"number", Number(4.5), KindNumber, 4.5},
		{"bool", Bool(true), KindBool, true},
		{"map", m, KindMap, map[string]any{"count": 3.0, "nested": []any{1.0, 2.0}}},
		{"sequence", seq, KindSequence, []any{"a", 1.0, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.payload.Kind())
			assert.True(t, tt.payload.Valid())
			assert.Equal(t, tt.want, tt.payload.Value())
		})
	}
}

func TestPayload_FromValue(t *testing.T) {
	p, err := FromValue(7)
	require.NoError(t, err)
	f, ok := p.AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, err = FromValue(nil)
	assert.ErrorIs(t, err, ErrUnsupportedPayload)

	_, err = FromValue(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedPayload)

	type note struct {
		Title string `json:"title"`
	}
	p, err = FromValue(note{Title: "x"})
	require.NoError(t, err)
	got, ok := p.AsMap()
	require.True(t, ok)
	assert.Equal(t, "x", got["title"])
}

func TestPayload_JSON(t *testing.T) {
	obj := Object{
		Data: String("DOCS"),
		Metadata: Metadata{
			Timestamp: "2024-01-01T00:00:00Z",
			Category:  "documentation",
			Key:       "react::hooks",
			Tags:      []string{"a"},
			TTL:       Float(7),
		},
	}

	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":"DOCS","metadata":{"timestamp":"2024-01-01T00:00:00Z","category":"documentation","key":"react::hooks","tags":["a"],"ttl":7}}`, string(raw))

	var back Object
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, obj, back)

	var empty Object
	require.NoError(t, json.Unmarshal([]byte(`{"data":null,"metadata":{}}`), &empty))
	assert.False(t, empty.Data.Valid())

	_, err = ParseJSON([]byte("null"))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2024-03-01T10:00:00.123Z")
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, ok = ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	back, ok := ParseTimestamp(FormatTimestamp(now))
	require.True(t, ok)
	assert.True(t, now.Equal(back))
}

func TestMetadata_HasTags(t *testing.T) {
	md := Metadata{Tags: []string{"a", "b"}}
	assert.True(t, md.HasTags([]string{"a"}))
	assert.True(t, md.HasTags([]string{"b", "a"}))
	assert.True(t, md.HasTags(nil))
	assert.False(t, md.HasTags([]string{"a", "c"}))
	assert.False(t, Metadata{}.HasTags([]string{"a"}))
}

func TestMetadata_ExpiresAt(t *testing.T) {
	md := Metadata{Timestamp: "2024-01-01T00:00:00Z", TTL: Float(1.5)}
	exp, ok := md.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), exp.UTC())

	_, ok = Metadata{Timestamp: "2024-01-01T00:00:00Z"}.ExpiresAt()
	assert.False(t, ok)
	_, ok = Metadata{Timestamp: "garbage", TTL: Float(1)}.ExpiresAt()
	assert.False(t, ok)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NormalizeTags([]string{"a", "b", "a"}))
	assert.Nil(t, NormalizeTags(nil))
}
