package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reviewrec/internal/config"
	"reviewrec/internal/engine"
	"reviewrec/internal/knn"
	"reviewrec/internal/logging"
)

const maxUsersSample = 100 // usuarios para la prueba de speedup

var workerCountsToTest = []int{1, 2, 4, 8, 16}

// Mide el speedup del cálculo de vecindarios variando la cantidad de workers
// y guarda vecinos y recomendaciones de la muestra en <data>/recommendation.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuración inválida")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

	ctx := context.Background()
	eng, err := engine.OpenFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("no se pudo abrir el engine")
	}
	defer eng.Close()

	outDir := filepath.Join(cfg.Data.Dir, "recommendation")
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		logging.Fatal().Err(err).Msg("creando carpeta de resultados")
	}

	m := eng.Matrix()
	users := m.Users()
	if len(users) == 0 {
		fmt.Println("No se encontraron usuarios.")
		return
	}
	sample := users[:min(maxUsersSample, len(users))]

	fmt.Printf("Vecindarios Pearson (umbral %.2f) para %d usuarios\n", cfg.KNN.Threshold, len(sample))

	speedup := [][]string{{"Workers", "ElapsedSeconds"}}
	for _, workers := range workerCountsToTest {
		opts := knn.Options{Threshold: cfg.KNN.Threshold, MaxNeighbors: cfg.KNN.MaxNeighbors, Workers: workers}

		start := time.Now()
		for _, u := range sample {
			if _, _, err := knn.Recommend(ctx, m, u, cfg.KNN.DefaultN, opts); err != nil {
				logging.Fatal().Err(err).Int("user", u).Msg("recomendación fallida")
			}
		}
		elapsed := time.Since(start).Seconds()
		speedup = append(speedup, []string{strconv.Itoa(workers), fmt.Sprintf("%.6f", elapsed)})
		fmt.Printf("Workers=%d completado en %.3fs\n", workers, elapsed)
	}
	if err := knn.SaveCSV(filepath.Join(outDir, "speedup.csv"), speedup); err != nil {
		logging.Error().Err(err).Msg("guardando speedup.csv")
	}

	userKey := keyFunc(eng.Users().LookupKey)
	productKey := keyFunc(eng.Products().LookupKey)
	opts := knn.Options{Threshold: cfg.KNN.Threshold, MaxNeighbors: cfg.KNN.MaxNeighbors, Workers: cfg.KNN.Workers}

	for _, u := range sample {
		target := userKey(u)
		recs, neighbors, err := knn.Recommend(ctx, m, u, cfg.KNN.DefaultN, opts)
		if err != nil {
			logging.Fatal().Err(err).Str("user", target).Msg("recomendación fallida")
		}
		name := sanitizeFilename(target)
		if err := knn.SaveNeighborsCSV(filepath.Join(outDir, "neighbors_user_"+name+".csv"), target, neighbors, userKey); err != nil {
			logging.Error().Err(err).Str("user", target).Msg("guardando vecinos")
		}
		if err := knn.SaveRecommendationsCSV(filepath.Join(outDir, "recommendations_user_"+name+".csv"), target, recs, productKey); err != nil {
			logging.Error().Err(err).Str("user", target).Msg("guardando recomendaciones")
		}
	}

	fmt.Println("Proceso completado. Resultados guardados en", outDir)
}

func keyFunc(lookup func(int) (string, bool)) knn.KeyFunc {
	return func(id int) string {
		k, _ := lookup(id)
		return k
	}
}

func sanitizeFilename(s string) string {
	out := strings.ReplaceAll(s, "/", "_")
	out = strings.ReplaceAll(out, "\\", "_")
	return out
}
