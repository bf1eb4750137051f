package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"reviewrec/internal/api"
	"reviewrec/internal/cache"
	"reviewrec/internal/config"
	"reviewrec/internal/engine"
	"reviewrec/internal/logging"
	"reviewrec/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuración inválida")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------------------------------------
	// Cargar o construir el sistema
	// --------------------------------------------------

	logging.Info().Str("source", cfg.Source.Path).Msg("Cargando reviews...")

	eng, err := engine.OpenFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("No se pudo construir el recomendador")
	}
	defer eng.Close()

	// --------------------------------------------------
	// Conexión a MongoDB y Redis (opcionales)
	// --------------------------------------------------

	var history api.History
	if cfg.Mongo.Enabled {
		store, err := database.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			logging.Fatal().Err(err).Msg("Error conectando a MongoDB")
		}
		defer store.Close(context.Background())
		history = store
		saveStartupLog(ctx, store, cfg, eng)
		logging.Info().Str("uri", cfg.Mongo.URI).Msg("Conexión a MongoDB lista")
	}

	var recCache *cache.RecCache
	if cfg.Redis.Enabled {
		recCache, err = cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.TTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Error conectando a Redis")
		}
		defer recCache.Close()
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Redis OK")
	}

	// --------------------------------------------------
	// Iniciar servidor HTTP
	// --------------------------------------------------

	h := api.NewHandler(eng, recCache, history, cfg.KNN.DefaultN, cfg.KNN.MaxN)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info().Str("port", cfg.Server.Port).Msg("API escuchando")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("servidor HTTP")
	}
}

// saveStartupLog deja constancia del arranque en la colección logs.
func saveStartupLog(ctx context.Context, store *database.Store, cfg *config.Config, eng *engine.Engine) {
	st := eng.Startup()
	doc := database.LogDocument{
		RunID:         uuid.NewString(),
		Source:        cfg.Source.Path,
		Warm:          st.Warm,
		Reviews:       eng.TotalReviews(),
		Users:         eng.TotalUsers(),
		Products:      eng.TotalProducts(),
		Malformed:     st.Stats.Malformed,
		LatencyMS:     st.Duration.Milliseconds(),
		TimestampUnix: time.Now().Unix(),
	}
	if st.PersistErr != nil {
		doc.PersistError = st.PersistErr.Error()
	}
	if err := store.SaveLog(ctx, doc); err != nil {
		logging.Warn().Err(err).Msg("Error guardando log de arranque")
	}
}
