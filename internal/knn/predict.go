package knn

import (
	"context"
	"math"
	"sort"

	"reviewrec/internal/ratings"
)

// ---------------------------------------------------------
// Generar recomendaciones a partir del vecindario
// ---------------------------------------------------------

// PredictRatings estima un score para cada producto que algún vecino calificó
// y target no: promedio de los ratings de los vecinos ponderado por su
// similitud, sum(sim*r) / sum(|sim|).
func PredictRatings(m *ratings.Matrix, target int, neighbors []Neighbor) []Recommended {
	targetRatings := m.Ratings(target)

	scoreSum := make(map[int]float64)
	weightSum := make(map[int]float64)

	for _, nb := range neighbors {
		for product, r := range m.Ratings(nb.UserID) {
			if _, seen := targetRatings[product]; seen {
				continue
			}
			scoreSum[product] += nb.Similarity * r
			weightSum[product] += math.Abs(nb.Similarity)
		}
	}

	recs := make([]Recommended, 0, len(scoreSum))
	for product, s := range scoreSum {
		w := weightSum[product]
		if w == 0 {
			continue
		}
		recs = append(recs, Recommended{ProductID: product, Predicted: s / w})
	}
	return recs
}

// TopNRecommendations ordena por score estimado descendente (empates por
// ProductID ascendente) y corta en n.
func TopNRecommendations(recs []Recommended, n int) []Recommended {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Predicted != recs[j].Predicted {
			return recs[i].Predicted > recs[j].Predicted
		}
		return recs[i].ProductID < recs[j].ProductID
	})
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

// Recommend es el pipeline completo para un usuario: vecindario, predicción y
// top n. Devuelve también el vecindario usado.
func Recommend(ctx context.Context, m *ratings.Matrix, user, n int, opts Options) ([]Recommended, []Neighbor, error) {
	if n <= 0 {
		n = DefaultN
	}
	neighbors, err := Neighborhood(ctx, m, user, opts)
	if err != nil {
		return nil, nil, err
	}
	recs := PredictRatings(m, user, neighbors)
	return TopNRecommendations(recs, n), neighbors, nil
}
