package registry

import (
	"errors"
	"testing"
)

func TestGetOrAssign(t *testing.T) {
	r := New()
	keys := []string{"B0001", "B0002", "B0001", "B0003", "B0002"}
	want := []int{0, 1, 0, 2, 1}

	for i, k := range keys {
		if got := r.GetOrAssign(k); got != want[i] {
			t.Errorf("GetOrAssign(%q) = %d, want %d", k, got, want[i])
		}
	}
	if r.Size() != 3 {
		t.Errorf("Size() = %d, want 3", r.Size())
	}
}

func TestDenseRoundTrip(t *testing.T) {
	r := New()
	for _, k := range []string{"u9", "u3", "u7", "u3", "u1"} {
		r.GetOrAssign(k)
	}

	seen := make(map[int]bool)
	for _, k := range r.Keys() {
		id, ok := r.LookupID(k)
		if !ok {
			t.Fatalf("LookupID(%q) not found", k)
		}
		back, ok := r.LookupKey(id)
		if !ok || back != k {
			t.Errorf("LookupKey(LookupID(%q)) = %q, %v", k, back, ok)
		}
		seen[id] = true
	}
	for id := 0; id < r.Size(); id++ {
		if !seen[id] {
			t.Errorf("id %d missing, ids must be contiguous", id)
		}
	}
}

func TestLookupMissing(t *testing.T) {
	r := New()
	r.GetOrAssign("a")

	if _, ok := r.LookupID("zzz"); ok {
		t.Error("LookupID(zzz) found, want not found")
	}
	for _, id := range []int{-1, 1, 100} {
		if _, ok := r.LookupKey(id); ok {
			t.Errorf("LookupKey(%d) found, want not found", id)
		}
	}
}

func TestFromKeys(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		wantErr error
	}{
		{name: "empty", keys: nil},
		{name: "ordered", keys: []string{"x", "y", "z"}},
		{name: "duplicate", keys: []string{"x", "y", "x"}, wantErr: ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := FromKeys(tt.keys)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FromKeys() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromKeys() error = %v", err)
			}
			for i, k := range tt.keys {
				if id, _ := r.LookupID(k); id != i {
					t.Errorf("LookupID(%q) = %d, want %d", k, id, i)
				}
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a := New()
	b := New()
	for _, k := range []string{"p1", "p2"} {
		a.GetOrAssign(k)
		b.GetOrAssign(k)
	}
	if !a.Equal(b) {
		t.Error("Equal() = false for identical registries")
	}

	b.GetOrAssign("p3")
	if a.Equal(b) {
		t.Error("Equal() = true for registries of different size")
	}

	c, _ := FromKeys([]string{"p2", "p1"})
	if a.Equal(c) {
		t.Error("Equal() = true for different id assignment")
	}
	if a.Equal(nil) {
		t.Error("Equal(nil) = true")
	}
}

func TestKeysIsCopy(t *testing.T) {
	r := New()
	r.GetOrAssign("a")
	keys := r.Keys()
	keys[0] = "mutated"
	if k, _ := r.LookupKey(0); k != "a" {
		t.Errorf("LookupKey(0) = %q after mutating Keys() copy", k)
	}
}
