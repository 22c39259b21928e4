package id

import "testing"

func TestUid_Shape(t *testing.T) {
	for i := 0; i < 100; i++ {
		uid := Uid()
		if len(uid) != UidLength {
			t.Fatalf("uid length = %d, want %d (%q)", len(uid), UidLength, uid)
		}
		if !IsValidUid(uid) {
			t.Fatalf("generated uid failed validation: %q", uid)
		}
	}
}

func TestUid_Distribution(t *testing.T) {
	// Not a collision proof, just a sanity check that the generator is
	// actually random and not returning a constant.
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		seen[Uid()] = true
	}
	if len(seen) < 990 {
		t.Fatalf("too many duplicate uids in 1000 draws: %d unique", len(seen))
	}
}

func TestShort(t *testing.T) {
	a, b := Short(), Short()
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("Short() lengths = %d, %d, want 16", len(a), len(b))
	}
	if a == b {
		t.Fatal("two Short() calls returned the same value")
	}
}

func TestIsValidUid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"6842F7ED", true},
		{"00000000", true},
		{"6842f7ed", false}, // lowercase
		{"6842F7E", false},  // too short
		{"6842F7EDA", false},
		{"6842F7EG", false}, // non-hex
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidUid(tt.in); got != tt.want {
			t.Errorf("IsValidUid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
