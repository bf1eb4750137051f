package ratings

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
)

// ---------------------------------------------------------
// Dataset derivado: una línea "userId,productId,score" por review
// ---------------------------------------------------------

type Row struct {
	UserID    int
	ProductID int
	Score     float64
}

// Writer agrega filas al dataset compacto. Es de una sola escritura:
// no hay forma de reescribir ni borrar filas.
type Writer struct {
	w    *csv.Writer
	rows int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

func (w *Writer) WriteRow(r Row) error {
	rec := []string{
		strconv.Itoa(r.UserID),
		strconv.Itoa(r.ProductID),
		strconv.FormatFloat(r.Score, 'f', -1, 64),
	}
	if err := w.w.Write(rec); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// Rows devuelve cuántas filas se escribieron con este writer.
func (w *Writer) Rows() int64 {
	return w.rows
}

// FileWriter es un Writer respaldado por un archivo en disco.
type FileWriter struct {
	*Writer
	buf *bufio.Writer
	f   *os.File
}

// CreateFile crea (o trunca) el dataset en path.
func CreateFile(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileWriter{Writer: NewWriter(buf), buf: buf, f: f}, nil
}

// Close vacía el buffer y cierra el archivo.
func (fw *FileWriter) Close() error {
	ferr := fw.Flush()
	if ferr == nil {
		ferr = fw.buf.Flush()
	}
	cerr := fw.f.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// CountRows cuenta las líneas del dataset. Es el total de reviews.
func CountRows(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return countLines(f)
}

func countLines(r io.Reader) (int64, error) {
	buf := make([]byte, 64*1024)
	var n int64
	var last byte = '\n'
	for {
		c, err := r.Read(buf)
		if c > 0 {
			n += int64(bytes.Count(buf[:c], []byte{'\n'}))
			last = buf[c-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	// última línea sin salto final
	if last != '\n' {
		n++
	}
	return n, nil
}
