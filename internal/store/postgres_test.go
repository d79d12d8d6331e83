package store

import (
	"testing"

	"portgate/internal/model"
)

func TestPQStringArray(t *testing.T) {
	if v := pqStringArray(nil); v != nil {
		t.Fatalf("nil slice -> nil expected")
	}
	if v := pqStringArray([]string{}); v != nil {
		t.Fatalf("empty slice -> nil expected")
	}
	if v := pqStringArray([]string{"EMERGENCY", "NORMAL"}); v != `{"EMERGENCY","NORMAL"}` {
		t.Fatalf("unexpected array literal: %v", v)
	}
}

func TestFromJSONArray(t *testing.T) {
	got := fromJSONArray([]byte(`["EMERGENCY","LOW"]`))
	if len(got) != 2 || got[0] != "EMERGENCY" || got[1] != "LOW" {
		t.Fatalf("unexpected: %v", got)
	}
	if got := fromJSONArray(nil); got != nil {
		t.Fatalf("nil input -> nil expected, got %v", got)
	}
	if got := fromJSONArray([]byte(`[]`)); got != nil {
		t.Fatalf("empty array -> nil expected, got %v", got)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty -> nil expected")
	}
	if v := nullIfEmpty("x"); v != "x" {
		t.Fatalf("non-empty should pass through")
	}
}

func TestDropSlot(t *testing.T) {
	in := []model.TimeSlot{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out := dropSlot(in, "b")
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Fatalf("unexpected: %v", out)
	}
}
