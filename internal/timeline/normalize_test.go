package timeline

import (
	"errors"
	"testing"
)

func TestNormalizeOpType(t *testing.T) {
	t.Run("canonical verbs pass through", func(t *testing.T) {
		got, err := normalizeOpType("entity_create")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != OpEntityCreate {
			t.Fatalf("expected entity_create, got %q", got)
		}
	})

	t.Run("legacy aliases fold", func(t *testing.T) {
		cases := map[string]string{
			"entity_add":      OpEntityCreate,
			"entity_update":   OpEntityPatch,
			"entity_modify":   OpEntityPatch,
			"entity_remove":   OpEntityDelete,
			"relation_add":    OpRelationCreate,
			"relation_update": OpRelationPatch,
			"relation_remove": OpRelationDelete,
		}
		for alias, want := range cases {
			got, err := normalizeOpType(alias)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", alias, err)
			}
			if got != want {
				t.Fatalf("%s: expected %q, got %q", alias, want, got)
			}
		}
	})

	t.Run("case and whitespace normalize", func(t *testing.T) {
		got, err := normalizeOpType("  Entity Create ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != OpEntityCreate {
			t.Fatalf("expected entity_create, got %q", got)
		}
	})

	t.Run("unknown verb rejected", func(t *testing.T) {
		_, err := normalizeOpType("entity_destroy")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestCanonicalOpType(t *testing.T) {
	if got := canonicalOpType("relation_add"); got != OpRelationCreate {
		t.Fatalf("expected relation_create, got %q", got)
	}
	if got := canonicalOpType("entity_destroy"); got != "" {
		t.Fatalf("expected empty for unknown verb, got %q", got)
	}
}

func TestNormalizeEnums(t *testing.T) {
	t.Run("marker kind", func(t *testing.T) {
		if _, err := normalizeMarkerKind("Semantic"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := normalizeMarkerKind("approximate"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("placement status", func(t *testing.T) {
		if _, err := normalizePlacementStatus("placed"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := normalizePlacementStatus("floating"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("target kind", func(t *testing.T) {
		if _, err := normalizeTargetKind("World"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := normalizeTargetKind("faction"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("source", func(t *testing.T) {
		if _, err := normalizeSource("AI"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := normalizeSource("import"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestNormalizeType(t *testing.T) {
	if got := normalizeType("  Parent Of "); got != "parent_of" {
		t.Fatalf("expected parent_of, got %q", got)
	}
}
