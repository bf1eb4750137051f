package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"reviewrec/internal/config"
	"reviewrec/internal/engine"
	"reviewrec/internal/knn"
	"reviewrec/internal/logging"
	"reviewrec/internal/ratings"
	"reviewrec/internal/registry"
)

const topK = 10

// Análisis del dataset compacto: distribución de scores, productos más
// reseñados y usuarios más activos. Resultados en <data>/analisis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuración inválida")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

	fmt.Println("Iniciando análisis del dataset de reviews...")

	eng, err := engine.OpenFromConfig(context.Background(), cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("no se pudo abrir el engine")
	}
	defer eng.Close()

	outDir := filepath.Join(cfg.Data.Dir, "analisis")
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		logging.Fatal().Err(err).Msg("creando carpeta de análisis")
	}

	s := ratings.Summarize(eng.Matrix(), topK)

	// el dataset en disco tiene que coincidir con la matriz cargada
	lines, err := ratings.CountRows(eng.DatasetFile())
	if err != nil {
		logging.Fatal().Err(err).Msg("contando líneas del dataset")
	}
	if lines != int64(s.Rows) {
		logging.Warn().Int64("lines", lines).Int("rows", s.Rows).Msg("el dataset tiene líneas que no son filas")
	}

	files := map[string][][]string{
		"analysis_summary.csv":             summaryRows(s),
		"analysis_rating_distribution.csv": distributionRows(s),
		"analysis_top_products.csv":        countRows("ProductID", "ReviewsCount", s.TopProducts, eng.Products()),
		"analysis_top_users.csv":           countRows("UserID", "ReviewsCount", s.TopUsers, eng.Users()),
	}
	for name, rows := range files {
		if err := knn.SaveCSV(filepath.Join(outDir, name), rows); err != nil {
			logging.Error().Err(err).Str("file", name).Msg("guardando análisis")
		}
	}

	fmt.Println("Análisis completo. Archivos guardados en", outDir)
}

func summaryRows(s ratings.Summary) [][]string {
	return [][]string{
		{"Metric", "Value"},
		{"Usuarios únicos", strconv.Itoa(s.Users)},
		{"Productos únicos", strconv.Itoa(s.Products)},
		{"Total de reviews", strconv.Itoa(s.Rows)},
		{"Score promedio", fmt.Sprintf("%.4f", s.MeanScore)},
	}
}

func distributionRows(s ratings.Summary) [][]string {
	rows := [][]string{{"Score", "Count"}}
	for _, score := range s.SortedScores() {
		rows = append(rows, []string{fmt.Sprintf("%.1f", score), strconv.Itoa(s.Histogram[score])})
	}
	return rows
}

func countRows(idHeader, countHeader string, list []ratings.Count, reg *registry.Registry) [][]string {
	rows := [][]string{{idHeader, countHeader}}
	for _, c := range list {
		key, _ := reg.LookupKey(c.ID)
		rows = append(rows, []string{key, strconv.Itoa(c.Count)})
	}
	return rows
}
