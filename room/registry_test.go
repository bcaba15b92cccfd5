package room

import (
	"testing"
)

func TestRegistry_CodeFormatAndUniqueness(t *testing.T) {
	g := NewRegistry()
	b := &MockBroadcaster{}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r, err := g.Create(b)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		code := r.Code
		if len(code) != 4 {
			t.Fatalf("code %q is not 4 characters", code)
		}
		for j := 0; j < len(code); j++ {
			if code[j] < 'A' || code[j] > 'Z' {
				t.Fatalf("code %q contains %q outside A-Z", code, code[j])
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q among active rooms", code)
		}
		seen[code] = true
	}
}

func TestRegistry_GetIsCaseInsensitive(t *testing.T) {
	g := NewRegistry()
	r, err := g.Create(&MockBroadcaster{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := g.Get(r.Code)
	if err != nil || got != r {
		t.Fatalf("exact lookup failed: %v", err)
	}

	lower := make([]byte, len(r.Code))
	for i := 0; i < len(r.Code); i++ {
		lower[i] = r.Code[i] + ('a' - 'A')
	}
	got, err = g.Get(string(lower))
	if err != nil || got != r {
		t.Fatalf("lowercase lookup failed: %v", err)
	}
}

func TestRegistry_GetRejectsBadCodes(t *testing.T) {
	g := NewRegistry()

	for _, code := range []string{"", "ABC", "ABCDE", "AB1D", "AB D"} {
		if _, err := g.Get(code); err != ErrInvalidRoomCode {
			t.Errorf("Get(%q): expected ErrInvalidRoomCode, got %v", code, err)
		}
	}
	if _, err := g.Get("QQQQ"); err != ErrRoomNotFound {
		t.Errorf("unknown code: expected ErrRoomNotFound, got %v", err)
	}
}

func TestRegistry_RemoveFreesCode(t *testing.T) {
	g := NewRegistry()
	r, _ := g.Create(&MockBroadcaster{})

	g.Remove(r.Code)
	if _, err := g.Get(r.Code); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound after remove, got %v", err)
	}
	if g.Count() != 0 {
		t.Errorf("expected 0 active rooms, got %d", g.Count())
	}
}

func TestRegistry_Membership(t *testing.T) {
	g := NewRegistry()
	r, _ := g.Create(&MockBroadcaster{})

	if _, bound := g.RoomOf("s1"); bound {
		t.Fatal("fresh session should not be bound")
	}

	g.Bind("s1", r.Code)
	code, bound := g.RoomOf("s1")
	if !bound || code != r.Code {
		t.Fatalf("expected binding to %s, got %q (%v)", r.Code, code, bound)
	}

	got, err := g.RoomFor("s1")
	if err != nil || got != r {
		t.Fatalf("RoomFor failed: %v", err)
	}

	g.Unbind("s1")
	if _, err := g.RoomFor("s1"); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound after unbind, got %v", err)
	}
}
