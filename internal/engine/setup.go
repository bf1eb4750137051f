package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"reviewrec/internal/config"
	"reviewrec/internal/ingest"
	"reviewrec/internal/knn"
	"reviewrec/internal/persist"
)

// OpenStore abre el backend de registros configurado.
func OpenStore(cfg config.DataConfig) (persist.RegistryStore, error) {
	switch cfg.RegistryBackend {
	case "", "file":
		return persist.NewFileStore(filepath.Join(cfg.Dir, "maps"))
	case "badger":
		return persist.OpenBadgerStore(filepath.Join(cfg.Dir, "badger"))
	default:
		return nil, fmt.Errorf("engine: backend de registros desconocido %q", cfg.RegistryBackend)
	}
}

// OptionsFromConfig traduce la configuración a Options.
func OptionsFromConfig(cfg *config.Config, store persist.RegistryStore) Options {
	mode := ingest.ModeLegacy
	if cfg.Ingest.StrictRecords {
		mode = ingest.ModeStrict
	}
	return Options{
		SourcePath: cfg.Source.Path,
		DataDir:    cfg.Data.Dir,
		Store:      store,
		Mode:       mode,
		KNN: knn.Options{
			Threshold:    cfg.KNN.Threshold,
			MaxNeighbors: cfg.KNN.MaxNeighbors,
			Workers:      cfg.KNN.Workers,
		},
		DefaultN:       cfg.KNN.DefaultN,
		RequestTimeout: cfg.KNN.RequestTimeout,
	}
}

// OpenFromConfig abre el store y el engine. Si Open falla, cierra el store.
func OpenFromConfig(ctx context.Context, cfg *config.Config) (*Engine, error) {
	store, err := OpenStore(cfg.Data)
	if err != nil {
		return nil, err
	}
	e, err := Open(ctx, OptionsFromConfig(cfg, store))
	if err != nil {
		store.Close()
		return nil, err
	}
	return e, nil
}
