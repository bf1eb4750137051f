package persist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"reviewrec/internal/registry"
	"reviewrec/pkg/codec"
)

// FileStore guarda cada registro como un snapshot gob en <dir>/<name>.gob.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".gob")
}

// Save escribe en un temporal y renombra, así un corte a mitad de escritura
// no deja un snapshot truncado.
func (s *FileStore) Save(ctx context.Context, name string, r *registry.Registry) error {
	if err := ctx.Err(); err != nil {
		return &SaveError{Name: name, Err: err}
	}
	if err := s.writeSnapshot(name, r); err != nil {
		return &SaveError{Name: name, Err: err}
	}
	return nil
}

func (s *FileStore) writeSnapshot(name string, r *registry.Registry) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	snap := codec.RegistrySnapshot{Name: name, Version: codec.SnapshotVersion, Keys: r.Keys()}
	if err := codec.Encode(w, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}

func (s *FileStore) Load(ctx context.Context, name string) (*registry.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap codec.RegistrySnapshot
	if err := codec.Decode(bufio.NewReader(f), &snap); err != nil {
		return nil, fmt.Errorf("persist: leyendo %s: %w", s.path(name), err)
	}
	if snap.Version != codec.SnapshotVersion {
		return nil, fmt.Errorf("persist: %s tiene versión %d, se esperaba %d", name, snap.Version, codec.SnapshotVersion)
	}
	return registry.FromKeys(snap.Keys)
}

func (s *FileStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) Close() error { return nil }
