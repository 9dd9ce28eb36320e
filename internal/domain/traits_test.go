package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeTraits_ValidShapes(t *testing.T) {
	traits, err := DecodeTraits(json.RawMessage(`{"plan":"pro","seats":5,"active":true,"address":{"city":"Pune"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if traits["plan"] != "pro" {
		t.Errorf("plan = %v, want pro", traits["plan"])
	}
	if traits["seats"] != json.Number("5") {
		t.Errorf("seats = %v (%T), want json.Number 5", traits["seats"], traits["seats"])
	}
	if traits["active"] != true {
		t.Errorf("active = %v, want true", traits["active"])
	}
	nested, ok := traits["address"].(map[string]any)
	if !ok || nested["city"] != "Pune" {
		t.Errorf("address = %v, want nested mapping with city", traits["address"])
	}
}

func TestDecodeTraits_Empty(t *testing.T) {
	traits, err := DecodeTraits(nil)
	if err != nil {
		t.Fatalf("nil payload should decode to empty bag: %v", err)
	}
	if len(traits) != 0 {
		t.Errorf("expected empty bag, got %v", traits)
	}
}

func TestDecodeTraits_RejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[1,2,3]`, `"hello"`, `42`, `true`, `{invalid`} {
		if _, err := DecodeTraits(json.RawMessage(raw)); err == nil {
			t.Errorf("payload %s should be rejected", raw)
		}
	}
}

func TestDecodeTraits_RejectsDisallowedValues(t *testing.T) {
	for _, raw := range []string{`{"tags":[1,2]}`, `{"x":null}`, `{"a":{"b":[true]}}`} {
		if _, err := DecodeTraits(json.RawMessage(raw)); err == nil {
			t.Errorf("payload %s should be rejected", raw)
		}
	}
}

func TestTraits_Merge(t *testing.T) {
	base := Traits{"a": json.Number("1"), "keep": "yes"}
	update := Traits{"b": json.Number("2"), "keep": "no"}

	merged := base.Merge(update)

	if merged["a"] != json.Number("1") {
		t.Errorf("a = %v, want 1", merged["a"])
	}
	if merged["b"] != json.Number("2") {
		t.Errorf("b = %v, want 2", merged["b"])
	}
	if merged["keep"] != "no" {
		t.Errorf("keep = %v, want overwrite to no", merged["keep"])
	}

	// Inputs untouched.
	if base["keep"] != "yes" {
		t.Errorf("merge mutated base: %v", base)
	}
	if len(base) != 2 || len(update) != 2 {
		t.Errorf("merge mutated inputs: base=%v update=%v", base, update)
	}
}

func TestTraits_JSON_EmptyBag(t *testing.T) {
	data, err := Traits(nil).JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("nil bag JSON = %s, want {}", data)
	}
}
