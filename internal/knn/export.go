package knn

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ---------------------------------------------------------
// Guardado de resultados en CSV (para ejecutables)
// ---------------------------------------------------------

// KeyFunc traduce un id interno a su clave original.
type KeyFunc func(id int) string

func SaveNeighborsCSV(path, target string, neighbors []Neighbor, userKey KeyFunc) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"TargetUser", "NeighborUser", "Similarity"})
	for _, n := range neighbors {
		w.Write([]string{target, userKey(n.UserID), fmt.Sprintf("%.6f", n.Similarity)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func SaveRecommendationsCSV(path, target string, recs []Recommended, productKey KeyFunc) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"TargetUser", "ProductID", "PredictedScore"})
	for _, r := range recs {
		w.Write([]string{target, productKey(r.ProductID), fmt.Sprintf("%.4f", r.Predicted)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// SaveCSV escribe filas arbitrarias (speedup, resúmenes).
func SaveCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
