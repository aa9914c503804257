package timeline

import (
	"bytes"
	"testing"
)

func TestCanonicalJSON(t *testing.T) {
	t.Run("key order does not matter", func(t *testing.T) {
		a, err := canonicalJSON(map[string]any{"b": 2, "a": 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := canonicalJSON(map[string]any{"a": 1, "b": 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("expected identical encodings, got %s vs %s", a, b)
		}
	})

	t.Run("struct and map encode alike", func(t *testing.T) {
		type doc struct {
			B int `json:"b"`
			A int `json:"a"`
		}
		fromStruct, err := canonicalJSON(doc{A: 1, B: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fromMap, err := canonicalJSON(map[string]any{"a": 1, "b": 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(fromStruct, fromMap) {
			t.Fatalf("expected identical encodings, got %s vs %s", fromStruct, fromMap)
		}
	})
}

func TestStateHash(t *testing.T) {
	a := stateHash([]byte(`{"a":1}`))
	b := stateHash([]byte(`{"a":1}`))
	c := stateHash([]byte(`{"a":2}`))
	if a != b {
		t.Fatalf("expected equal hashes for equal input")
	}
	if a == c {
		t.Fatalf("expected different hashes for different input")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha-256 hex digest, got %d chars", len(a))
	}
}
