package selection

import (
	"encoding/json"
	"testing"
)

func TestSelectionAbsenceInvariant(t *testing.T) {
	s := New()
	s.Set("a", 3)
	s.Set("a", 0)
	if s.Has("a") {
		t.Fatal("zero quantity must remove the key")
	}
	s.Set("b", -4)
	if s.Has("b") || s.Len() != 0 {
		t.Fatalf("non-positive quantity stored: %v", s.Entries())
	}
}

func TestSelectionInsertionOrder(t *testing.T) {
	s := New()
	s.Set("c", 1)
	s.Set("a", 2)
	s.Set("b", 3)
	s.Set("a", 5)
	assertOrder(t, s, "c", "a", "b")
	if s.Get("a") != 5 {
		t.Fatalf("expected updated quantity 5, got %d", s.Get("a"))
	}

	s.Delete("c")
	s.Set("c", 1)
	assertOrder(t, s, "a", "b", "c")
}

func TestSelectionJSONPreservesOrder(t *testing.T) {
	s := New()
	s.Set("zeta", 10)
	s.Set("alpha", 20)

	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"zeta":10,"alpha":20}` {
		t.Fatalf("unexpected encoding %s", raw)
	}

	var decoded Selection
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(s) {
		t.Fatalf("round trip mismatch: %v vs %v", decoded.Entries(), s.Entries())
	}
}

func TestSelectionUnmarshalDropsNonPositive(t *testing.T) {
	var s Selection
	if err := json.Unmarshal([]byte(`{"b":2,"neg":-1,"zero":0,"a":1}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	assertOrder(t, s, "b", "a")
}

func TestSelectionUnmarshalRejectsMalformed(t *testing.T) {
	for _, raw := range []string{`[]`, `{"a":"x"}`, `{"a":1.5}`, `{"a":`} {
		var s Selection
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestEmptySelectionEncodesAsObject(t *testing.T) {
	raw, err := json.Marshal(New())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{}` {
		t.Fatalf("expected {}, got %s", raw)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.Set("a", 1)
	clone := s.Clone()
	clone.Set("b", 2)
	clone.Set("a", 9)
	if s.Has("b") || s.Get("a") != 1 {
		t.Fatal("clone shares state with original")
	}
}

func assertOrder(t *testing.T, s Selection, want ...string) {
	t.Helper()
	entries := s.Entries()
	if len(entries) != len(want) {
		t.Fatalf("expected %v, got %v", want, entries)
	}
	for i, id := range want {
		if entries[i].SubProductID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, entries[i].SubProductID)
		}
	}
}
