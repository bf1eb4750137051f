package registry

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------
// Registro bidireccional clave <-> id denso
// ---------------------------------------------------------

var ErrDuplicateKey = errors.New("registry: clave duplicada")

// Registry asigna ids enteros densos (0, 1, 2, ...) a claves de texto en el
// orden en que aparecen por primera vez. No hay borrado.
//
// Un solo escritor durante la ingesta; después de construido se puede leer
// desde varias goroutines sin locks.
type Registry struct {
	ids  map[string]int
	keys []string
}

func New() *Registry {
	return &Registry{ids: make(map[string]int)}
}

// FromKeys reconstruye un registro a partir de las claves ordenadas por id.
func FromKeys(keys []string) (*Registry, error) {
	r := &Registry{
		ids:  make(map[string]int, len(keys)),
		keys: make([]string, 0, len(keys)),
	}
	for i, k := range keys {
		if _, ok := r.ids[k]; ok {
			return nil, fmt.Errorf("%w: %q (id %d)", ErrDuplicateKey, k, i)
		}
		r.ids[k] = i
		r.keys = append(r.keys, k)
	}
	return r, nil
}

// GetOrAssign devuelve el id de key, asignando el siguiente id libre si es nueva.
func (r *Registry) GetOrAssign(key string) int {
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := len(r.keys)
	r.ids[key] = id
	r.keys = append(r.keys, key)
	return id
}

func (r *Registry) LookupID(key string) (int, bool) {
	id, ok := r.ids[key]
	return id, ok
}

func (r *Registry) LookupKey(id int) (string, bool) {
	if id < 0 || id >= len(r.keys) {
		return "", false
	}
	return r.keys[id], true
}

func (r *Registry) Size() int {
	return len(r.keys)
}

// Keys devuelve una copia de las claves en orden de id: Keys()[i] tiene id i.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Equal compara los pares clave/id de ambos registros.
func (r *Registry) Equal(other *Registry) bool {
	if other == nil || len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k {
			return false
		}
	}
	return true
}
