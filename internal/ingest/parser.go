package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"reviewrec/internal/ratings"
	"reviewrec/internal/registry"
)

// ---------------------------------------------------------
// Parser del dump de reviews (formato tipo Amazon)
// ---------------------------------------------------------

const (
	FieldProduct = "product/productId"
	FieldUser    = "review/userId"
	FieldScore   = "review/score"

	maxLineSize = 1 << 20
	ctxEvery    = 4096
)

// ErrIO marca fallas de lectura de la fuente o de escritura del dataset.
var ErrIO = errors.New("ingest: error de E/S")

// Mode decide cómo se asocian producto y usuario a cada línea de score.
type Mode int

const (
	// ModeLegacy mantiene el último producto y usuario vistos entre
	// registros: si un registro no trae producto o usuario, la fila usa
	// los del registro anterior.
	ModeLegacy Mode = iota

	// ModeStrict limpia producto y usuario en cada línea en blanco. Un
	// score sin ambos dentro del mismo registro es un registro malformado.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "legacy"
}

// RowWriter recibe las filas compactas. ratings.Writer lo implementa.
type RowWriter interface {
	WriteRow(ratings.Row) error
}

type Stats struct {
	Lines     int64
	Records   int64 // registros con al menos un campo reconocido
	Reviews   int64 // filas escritas
	Malformed int64 // scores sin producto o usuario, o campos reconocidos demasiado largos
	BadScores int64 // scores no numéricos o no finitos
	Oversize  int64 // líneas de más de maxLineSize bytes, descartadas
}

// Parser convierte el dump en filas (userId, productId, score) y va
// llenando ambos registros. No es seguro para uso concurrente.
type Parser struct {
	Products *registry.Registry
	Users    *registry.Registry
	Mode     Mode
}

func NewParser(products, users *registry.Registry, mode Mode) *Parser {
	return &Parser{Products: products, Users: users, Mode: mode}
}

// record guarda el producto y usuario en curso. -1 = sin asignar.
type record struct {
	product int
	user    int
	fields  int
}

func (r *record) reset() {
	r.product, r.user, r.fields = -1, -1, 0
}

// Parse lee src línea por línea y escribe una fila por cada score.
func (p *Parser) Parse(ctx context.Context, src io.Reader, sink RowWriter) (Stats, error) {
	var st Stats
	lr := newLineReader(src)

	var cur record
	cur.reset()

	for {
		raw, truncated, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return st, fmt.Errorf("%w: leyendo línea %d: %w", ErrIO, st.Lines+1, err)
		}
		st.Lines++
		if st.Lines%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}

		if truncated {
			st.Oversize++
			field, _, _ := bytes.Cut(raw, []byte(":"))
			if isField(string(field)) {
				st.Malformed++
			}
			continue
		}

		line := string(raw)
		if strings.TrimSpace(line) == "" {
			p.endRecord(&cur, &st)
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch field {
		case FieldProduct:
			cur.product = p.Products.GetOrAssign(value)
			cur.fields++
		case FieldUser:
			cur.user = p.Users.GetOrAssign(value)
			cur.fields++
		case FieldScore:
			cur.fields++
			if cur.product < 0 || cur.user < 0 {
				st.Malformed++
				continue
			}
			score, ok := parseScore(value)
			if !ok {
				st.BadScores++
				continue
			}
			row := ratings.Row{UserID: cur.user, ProductID: cur.product, Score: score}
			if err := sink.WriteRow(row); err != nil {
				return st, fmt.Errorf("%w: escribiendo fila %d: %w", ErrIO, st.Reviews+1, err)
			}
			st.Reviews++
		}
	}
	p.endRecord(&cur, &st)
	return st, nil
}

func isField(f string) bool {
	return f == FieldProduct || f == FieldUser || f == FieldScore
}

// parseScore acepta sólo números finitos: NaN o Inf romperían el orden de
// las recomendaciones.
func parseScore(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// lineReader lee líneas de cualquier largo. Guarda hasta maxLineSize bytes
// y descarta el resto, así un review/text enorme no corta la ingesta.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// next devuelve la próxima línea sin el fin de línea. La línea es válida
// hasta la siguiente llamada. truncated indica que se descartó parte.
func (lr *lineReader) next() (line []byte, truncated bool, err error) {
	lr.buf = lr.buf[:0]
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !truncated {
			if room := maxLineSize - len(lr.buf); len(chunk) > room {
				chunk, truncated = chunk[:room], true
			}
			lr.buf = append(lr.buf, chunk...)
		}
		switch {
		case err == nil:
			return trimEOL(lr.buf), truncated, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == io.EOF:
			if len(lr.buf) == 0 && !truncated {
				return nil, false, io.EOF
			}
			return trimEOL(lr.buf), truncated, nil
		default:
			return nil, false, err
		}
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

func (p *Parser) endRecord(cur *record, st *Stats) {
	if cur.fields > 0 {
		st.Records++
	}
	if p.Mode == ModeStrict {
		cur.reset()
		return
	}
	cur.fields = 0
}
