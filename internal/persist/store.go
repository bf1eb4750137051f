// Package persist guarda y recupera los registros de usuarios y productos
// para que una segunda corrida sobre la misma fuente no tenga que volver a
// parsear el dump.
package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"reviewrec/internal/registry"
)

const (
	ProductsName = "products"
	UsersName    = "users"
)

// Names son los nombres bajo los que se guardan los registros de una fuente.
type Names struct {
	Products string
	Users    string
}

// NamesFor arma los nombres de los registros de sourcePath. Van con el
// nombre base de la fuente, igual que el dataset compacto, para que dos
// fuentes en el mismo directorio de datos no compartan registros.
func NamesFor(sourcePath string) Names {
	base := filepath.Base(sourcePath)
	return Names{
		Products: ProductsName + "_" + base,
		Users:    UsersName + "_" + base,
	}
}

var (
	ErrNotFound = errors.New("persist: registro no encontrado")
	ErrClosed   = errors.New("persist: store cerrado")
)

// RegistryStore es la capa de persistencia de registros. La codificación
// concreta depende de la implementación; lo único garantizado es que
// Load(Save(r)) es igual a r.
type RegistryStore interface {
	Save(ctx context.Context, name string, r *registry.Registry) error
	Load(ctx context.Context, name string) (*registry.Registry, error)
	Exists(ctx context.Context, name string) (bool, error)
	Close() error
}

// SaveError envuelve cualquier falla al guardar. El llamador decide si
// reintenta, ignora o aborta.
type SaveError struct {
	Name string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("persist: guardando registro %q: %v", e.Name, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// SaveAll guarda ambos registros. Intenta los dos aunque el primero falle y
// devuelve las fallas unidas.
func SaveAll(ctx context.Context, s RegistryStore, names Names, products, users *registry.Registry) error {
	return errors.Join(
		s.Save(ctx, names.Products, products),
		s.Save(ctx, names.Users, users),
	)
}

// LoadAll carga ambos registros. ErrNotFound si falta alguno.
func LoadAll(ctx context.Context, s RegistryStore, names Names) (products, users *registry.Registry, err error) {
	products, err = s.Load(ctx, names.Products)
	if err != nil {
		return nil, nil, err
	}
	users, err = s.Load(ctx, names.Users)
	if err != nil {
		return nil, nil, err
	}
	return products, users, nil
}

// HasAll indica si ambos registros están persistidos.
func HasAll(ctx context.Context, s RegistryStore, names Names) (bool, error) {
	for _, name := range []string{names.Products, names.Users} {
		ok, err := s.Exists(ctx, name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
