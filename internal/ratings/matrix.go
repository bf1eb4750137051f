package ratings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
)

// ---------------------------------------------------------
// Matriz dispersa de ratings (solo lectura)
// ---------------------------------------------------------

// Matrix es la vista (usuario, producto) -> score del dataset compacto.
// Nunca se materializa densa. Una vez cargada no se modifica, así que se
// puede consultar desde varias goroutines.
type Matrix struct {
	userRatings  map[int]map[int]float64
	productUsers map[int][]int
	users        []int
	rows         int
	maxUser      int
	maxProduct   int
}

// LoadMatrixFile carga el dataset "userId,productId,score" de path.
func LoadMatrixFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadMatrix(f)
}

// LoadMatrix lee filas "userId,productId,score". Si un par (usuario,
// producto) se repite, gana la última fila.
func LoadMatrix(r io.Reader) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.ReuseRecord = true

	b := newBuilder()
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("dataset línea %d: %w", line, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("dataset línea %d: %w", line, err)
		}
		b.add(row)
	}
	return b.build(), nil
}

// FromRows arma una matriz en memoria, útil para pruebas y herramientas.
func FromRows(rows []Row) *Matrix {
	b := newBuilder()
	for _, r := range rows {
		b.add(r)
	}
	return b.build()
}

func parseRow(rec []string) (Row, error) {
	u, err := strconv.Atoi(rec[0])
	if err != nil || u < 0 {
		return Row{}, fmt.Errorf("userId inválido %q", rec[0])
	}
	p, err := strconv.Atoi(rec[1])
	if err != nil || p < 0 {
		return Row{}, fmt.Errorf("productId inválido %q", rec[1])
	}
	s, err := strconv.ParseFloat(rec[2], 64)
	if err != nil || math.IsNaN(s) || math.IsInf(s, 0) {
		return Row{}, fmt.Errorf("score inválido %q", rec[2])
	}
	return Row{UserID: u, ProductID: p, Score: s}, nil
}

type builder struct {
	m *Matrix
}

func newBuilder() *builder {
	return &builder{m: &Matrix{
		userRatings:  make(map[int]map[int]float64),
		productUsers: make(map[int][]int),
		maxUser:      -1,
		maxProduct:   -1,
	}}
}

func (b *builder) add(r Row) {
	b.m.rows++
	b.m.maxUser = max(b.m.maxUser, r.UserID)
	b.m.maxProduct = max(b.m.maxProduct, r.ProductID)
	ur, ok := b.m.userRatings[r.UserID]
	if !ok {
		ur = make(map[int]float64)
		b.m.userRatings[r.UserID] = ur
	}
	if _, seen := ur[r.ProductID]; !seen {
		b.m.productUsers[r.ProductID] = append(b.m.productUsers[r.ProductID], r.UserID)
	}
	ur[r.ProductID] = r.Score
}

func (b *builder) build() *Matrix {
	m := b.m
	m.users = make([]int, 0, len(m.userRatings))
	for u := range m.userRatings {
		m.users = append(m.users, u)
	}
	sort.Ints(m.users)
	for _, us := range m.productUsers {
		sort.Ints(us)
	}
	return m
}

// Ratings devuelve los ratings del usuario. El mapa no se debe modificar.
func (m *Matrix) Ratings(user int) map[int]float64 {
	return m.userRatings[user]
}

func (m *Matrix) Rating(user, product int) (float64, bool) {
	s, ok := m.userRatings[user][product]
	return s, ok
}

// UsersOf devuelve los usuarios (ascendente) que calificaron el producto.
func (m *Matrix) UsersOf(product int) []int {
	return m.productUsers[product]
}

// Users devuelve todos los usuarios con al menos un rating, ascendente.
func (m *Matrix) Users() []int {
	return m.users
}

func (m *Matrix) NumUsers() int    { return len(m.userRatings) }
func (m *Matrix) NumProducts() int { return len(m.productUsers) }

// Len es la cantidad de filas leídas, incluyendo repetidas.
func (m *Matrix) Len() int { return m.rows }

// MaxIDs devuelve el mayor userId y productId vistos (-1 si está vacía).
func (m *Matrix) MaxIDs() (user, product int) {
	return m.maxUser, m.maxProduct
}
