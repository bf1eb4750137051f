package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reviewrec/internal/registry"
)

func newStores(t *testing.T) map[string]RegistryStore {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	bs, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { bs.Close() })

	return map[string]RegistryStore{"file": fs, "badger": bs}
}

func sampleRegistry(keys ...string) *registry.Registry {
	r := registry.New()
	for _, k := range keys {
		r.GetOrAssign(k)
	}
	return r
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			in := sampleRegistry("B003AI2VGA", "B00006HAXW", "key:with:colons", "")
			if err := s.Save(ctx, ProductsName, in); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			out, err := s.Load(ctx, ProductsName)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !in.Equal(out) {
				t.Errorf("Load() keys = %v, want %v", out.Keys(), in.Keys())
			}
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(ctx, UsersName); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load() error = %v, want ErrNotFound", err)
			}
			ok, err := s.Exists(ctx, UsersName)
			if err != nil || ok {
				t.Errorf("Exists() = %v, %v, want false, nil", ok, err)
			}
		})
	}
}

func TestSaveOverwritesSmaller(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(ctx, UsersName, sampleRegistry("a", "b", "c", "d")); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			small := sampleRegistry("z")
			if err := s.Save(ctx, UsersName, small); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			out, err := s.Load(ctx, UsersName)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !small.Equal(out) {
				t.Errorf("Load() keys = %v, want [z]", out.Keys())
			}
		})
	}
}

func TestSaveAllLoadAll(t *testing.T) {
	ctx := context.Background()
	names := NamesFor("/datos/movies.txt")
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := HasAll(ctx, s, names)
			if err != nil || ok {
				t.Fatalf("HasAll() = %v, %v before save", ok, err)
			}

			products := sampleRegistry("p1", "p2")
			users := sampleRegistry("u1")
			if err := SaveAll(ctx, s, names, products, users); err != nil {
				t.Fatalf("SaveAll() error = %v", err)
			}
			if ok, _ := HasAll(ctx, s, names); !ok {
				t.Fatal("HasAll() = false after SaveAll()")
			}

			p, u, err := LoadAll(ctx, s, names)
			if err != nil {
				t.Fatalf("LoadAll() error = %v", err)
			}
			if !p.Equal(products) || !u.Equal(users) {
				t.Errorf("LoadAll() = %v %v", p.Keys(), u.Keys())
			}
		})
	}
}

func TestNamesForSeparatesSources(t *testing.T) {
	ctx := context.Background()
	a := NamesFor("/datos/a.txt")
	b := NamesFor("/otros/b.txt")
	if a.Products != "products_a.txt" || a.Users != "users_a.txt" {
		t.Errorf("NamesFor(a.txt) = %+v", a)
	}

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := SaveAll(ctx, s, a, sampleRegistry("pa"), sampleRegistry("ua1", "ua2")); err != nil {
				t.Fatalf("SaveAll(a) error = %v", err)
			}
			if err := SaveAll(ctx, s, b, sampleRegistry("pb1", "pb2"), sampleRegistry("ub")); err != nil {
				t.Fatalf("SaveAll(b) error = %v", err)
			}

			_, users, err := LoadAll(ctx, s, a)
			if err != nil {
				t.Fatalf("LoadAll(a) error = %v", err)
			}
			if want := sampleRegistry("ua1", "ua2"); !users.Equal(want) {
				t.Errorf("LoadAll(a) users = %v, want %v", users.Keys(), want.Keys())
			}
			if ok, _ := HasAll(ctx, s, NamesFor("c.txt")); ok {
				t.Error("HasAll(c.txt) = true for a source never saved")
			}
		})
	}
}

func TestFileStoreSaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "maps")
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	// reemplazar el directorio por un archivo para que falle la escritura
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = s.Save(context.Background(), UsersName, sampleRegistry("u1"))
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("Save() error = %v, want *SaveError", err)
	}
	if se.Name != UsersName {
		t.Errorf("SaveError.Name = %q, want %q", se.Name, UsersName)
	}
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := os.WriteFile(filepath.Join(dir, UsersName+".gob"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), UsersName); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want decode error", err)
	}
}

func TestBadgerClosed(t *testing.T) {
	s, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err = s.Save(context.Background(), UsersName, sampleRegistry("u"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Save() after Close error = %v, want ErrClosed", err)
	}
	if _, err := s.Load(context.Background(), UsersName); !errors.Is(err, ErrClosed) {
		t.Errorf("Load() after Close error = %v, want ErrClosed", err)
	}
}
