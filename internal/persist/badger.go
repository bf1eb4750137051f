package persist

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"reviewrec/internal/registry"
)

// BadgerStore guarda los registros en badger:
//
//	reg/<name>/id/<id con ceros>  -> clave
//	reg/<name>/meta               -> cantidad de claves (uint64 big endian)
//
// meta se escribe al final, así un snapshot sin meta se trata como ausente.
type BadgerStore struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// OpenBadgerStore abre (o crea) la base en dir. Con dir vacío la base
// queda en memoria.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persist: abriendo badger en %q: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func idsPrefix(name string) []byte { return []byte("reg/" + name + "/id/") }
func metaKey(name string) []byte   { return []byte("reg/" + name + "/meta") }

func idKey(name string, id int) []byte {
	return []byte(fmt.Sprintf("reg/%s/id/%010d", name, id))
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *BadgerStore) Save(ctx context.Context, name string, r *registry.Registry) error {
	if err := s.checkOpen(); err != nil {
		return &SaveError{Name: name, Err: err}
	}
	if err := s.save(ctx, name, r); err != nil {
		return &SaveError{Name: name, Err: err}
	}
	return nil
}

func (s *BadgerStore) save(ctx context.Context, name string, r *registry.Registry) error {
	// primero invalidar el snapshot anterior
	if err := s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}
	if err := s.db.DropPrefix(idsPrefix(name)); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	keys := r.Keys()
	for id, k := range keys {
		if id%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := wb.Set(idKey(name, id), []byte(k)); err != nil {
			return err
		}
	}
	if err := wb.Flush(); err != nil {
		return err
	}

	count := make([]byte, 8)
	binary.BigEndian.PutUint64(count, uint64(len(keys)))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(name), count)
	})
}

func (s *BadgerStore) Load(ctx context.Context, name string) (*registry.Registry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) != 8 {
			return fmt.Errorf("persist: meta de %s corrupta", name)
		}
		want := binary.BigEndian.Uint64(raw)
		keys = make([]string, 0, want)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = idsPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if len(keys)%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			keys = append(keys, string(v))
		}
		if uint64(len(keys)) != want {
			return fmt.Errorf("persist: %s tiene %d claves, meta dice %d", name, len(keys), want)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registry.FromKeys(keys)
}

func (s *BadgerStore) Exists(_ context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
