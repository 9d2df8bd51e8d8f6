package permission

import "testing"

func TestSetOperations(t *testing.T) {
	var s Set
	if !s.IsEmpty() || s.Len() != 0 {
		t.Fatal("zero Set must be empty")
	}

	s = s.With(ChatRead).With(FileDelete).With(ChatRead)
	if s.Len() != 2 {
		t.Fatalf("expected 2 permissions, got %d", s.Len())
	}
	if !s.Has(ChatRead) || !s.Has(FileDelete) || s.Has(ChatWrite) {
		t.Fatalf("unexpected membership: %s", s)
	}

	s = s.Without(ChatRead)
	if s.Has(ChatRead) || s.Len() != 1 {
		t.Fatalf("Without failed: %s", s)
	}

	if s.With("bogus:perm") != s || s.Has("bogus:perm") {
		t.Fatal("unknown permission must be ignored")
	}
}

func TestSetContainsAndUnion(t *testing.T) {
	a := NewSet(ChatRead, ChatWrite)
	b := NewSet(ChatRead)

	if !a.Contains(b) || b.Contains(a) {
		t.Fatal("Contains is wrong")
	}
	if !a.Contains(0) {
		t.Fatal("every set contains the empty set")
	}
	if got := b.Union(NewSet(MemoryRead)); got != NewSet(ChatRead, MemoryRead) {
		t.Fatalf("Union = %s", got)
	}
	if FullSet().Len() != len(All()) {
		t.Fatalf("FullSet has %d permissions", FullSet().Len())
	}
}

func TestSetStringsCatalogOrder(t *testing.T) {
	s := NewSet(FileDelete, ChatRead, SystemAdmin)
	got := s.String()
	if got != "{chat:read,system:admin,file:delete}" {
		t.Fatalf("String() = %s", got)
	}
	if Set(0).Strings() != nil {
		t.Fatal("empty set must list nil")
	}
}
