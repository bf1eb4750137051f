package knn

import (
	"math"
)

// ---------------------------------------------------------
// Estructuras reutilizables por el engine, la API y los ejecutables
// ---------------------------------------------------------

type Neighbor struct {
	UserID     int
	Similarity float64
}

type Recommended struct {
	ProductID int
	Predicted float64
}

const (
	// MinCoRated es la cantidad mínima de productos en común para que la
	// correlación tenga sentido.
	MinCoRated = 2

	DefaultThreshold = 0.1
	DefaultN         = 3
)

// ---------------------------------------------------------
// Similitud de Pearson sobre productos co-calificados
// ---------------------------------------------------------

// Pearson calcula la correlación entre dos usuarios usando solo los productos
// que ambos calificaron; las medias también se restringen a ese conjunto.
// ok es false con menos de MinCoRated productos en común o cuando alguno de
// los dos lados tiene varianza cero: eso es "sin correlación", no un error.
func Pearson(a, b map[int]float64) (sim float64, ok bool) {
	// recorrer el mapa más chico
	if len(b) < len(a) {
		a, b = b, a
	}

	var n int
	var sumA, sumB float64
	for p, ra := range a {
		if rb, found := b[p]; found {
			sumA += ra
			sumB += rb
			n++
		}
	}
	if n < MinCoRated {
		return 0, false
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var num, denA, denB float64
	for p, ra := range a {
		rb, found := b[p]
		if !found {
			continue
		}
		da := ra - meanA
		db := rb - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return 0, false
	}

	sim = num / (math.Sqrt(denA) * math.Sqrt(denB))
	if math.IsNaN(sim) {
		return 0, false
	}
	// errores de redondeo pueden dejar el valor apenas fuera de [-1, 1]
	return math.Max(-1, math.Min(1, sim)), true
}
