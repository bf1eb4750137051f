package ratings

import (
	"math"
	"sort"
)

// ---------------------------------------------------------
// Resumen del dataset (para cmd/analisis)
// ---------------------------------------------------------

type Count struct {
	ID    int
	Count int
}

type Summary struct {
	Rows        int
	Users       int
	Products    int
	MeanScore   float64
	Histogram   map[float64]int // score -> cantidad de reviews
	TopProducts []Count         // más reseñados
	TopUsers    []Count         // más activos
}

// Summarize recorre la matriz una vez y arma el resumen. top limita el
// largo de TopProducts y TopUsers.
func Summarize(m *Matrix, top int) Summary {
	s := Summary{
		Rows:      m.Len(),
		Users:     m.NumUsers(),
		Products:  m.NumProducts(),
		Histogram: make(map[float64]int),
	}

	var sum float64
	var n int
	users := make([]Count, 0, m.NumUsers())
	for _, u := range m.Users() {
		r := m.Ratings(u)
		users = append(users, Count{ID: u, Count: len(r)})
		for _, score := range r {
			s.Histogram[score]++
			sum += score
			n++
		}
	}
	if n > 0 {
		s.MeanScore = sum / float64(n)
	}

	products := make([]Count, 0, len(m.productUsers))
	for p, us := range m.productUsers {
		products = append(products, Count{ID: p, Count: len(us)})
	}

	s.TopUsers = topCounts(users, top)
	s.TopProducts = topCounts(products, top)
	return s
}

// SortedScores devuelve las claves del histograma en orden ascendente.
func (s Summary) SortedScores() []float64 {
	out := make([]float64, 0, len(s.Histogram))
	for k := range s.Histogram {
		if !math.IsNaN(k) {
			out = append(out, k)
		}
	}
	sort.Float64s(out)
	return out
}

func topCounts(list []Count, k int) []Count {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].ID < list[j].ID
	})
	if k >= 0 && len(list) > k {
		return list[:k]
	}
	return list
}
