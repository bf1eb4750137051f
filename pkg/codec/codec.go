package codec

import (
	"encoding/gob"
	"io"
)

// -------------------- Tipos serializados --------------------

// RegistrySnapshot es la foto persistida de un registro: las claves
// ordenadas por id (Keys[i] tiene id i).
type RegistrySnapshot struct {
	Name    string
	Version int
	Keys    []string
}

const SnapshotVersion = 1

// -------------------- Utilidades --------------------

// Encode escribe v en w con gob.
func Encode(w io.Writer, v any) error {
	enc := gob.NewEncoder(w)
	return enc.Encode(v)
}

// Decode lee de r un valor gob en v.
func Decode(r io.Reader, v any) error {
	dec := gob.NewDecoder(r)
	return dec.Decode(v)
}
