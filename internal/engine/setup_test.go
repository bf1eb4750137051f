package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reviewrec/internal/config"
	"reviewrec/internal/ingest"
)

func TestOpenFromConfigBackends(t *testing.T) {
	for _, backend := range []string{"file", "badger"} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			src := writeSource(t, dir, exampleSource)

			cfg := config.Default()
			cfg.Source.Path = src
			cfg.Data.Dir = filepath.Join(dir, "data")
			cfg.Data.RegistryBackend = backend

			e, err := OpenFromConfig(context.Background(), cfg)
			if err != nil {
				t.Fatalf("OpenFromConfig() error = %v", err)
			}
			if e.Startup().Warm {
				t.Error("first open was warm")
			}
			e.Close()

			e, err = OpenFromConfig(context.Background(), cfg)
			if err != nil {
				t.Fatalf("second OpenFromConfig() error = %v", err)
			}
			defer e.Close()
			if !e.Startup().Warm {
				t.Error("second open was not warm")
			}
			got, err := e.Recommend(context.Background(), "u1", 0)
			if err != nil || len(got) != 1 || got[0] != "p3" {
				t.Errorf("Recommend(u1) = %v, %v", got, err)
			}
		})
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	if _, err := OpenStore(config.DataConfig{Dir: t.TempDir(), RegistryBackend: "sqlite"}); err == nil {
		t.Error("OpenStore() error = nil for unknown backend")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.StrictRecords = true
	cfg.KNN.MaxNeighbors = 20

	opts := OptionsFromConfig(cfg, nil)
	if opts.Mode != ingest.ModeStrict {
		t.Errorf("Mode = %v, want strict", opts.Mode)
	}
	if opts.KNN.Threshold != 0.1 || opts.KNN.MaxNeighbors != 20 || opts.DefaultN != 3 {
		t.Errorf("Options = %+v", opts)
	}
}

func TestStrictModeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := "product/productId: p1\nreview/userId: u1\nreview/score: 4\n\nproduct/productId: p2\nreview/score: 2\n"
	if err := os.WriteFile(filepath.Join(dir, "movies.txt"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := testOptions(t, dir, nil)
	opts.Mode = ingest.ModeStrict

	e, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer e.Close()
	if e.TotalReviews() != 1 || e.Startup().Stats.Malformed != 1 {
		t.Errorf("reviews = %d malformed = %d, want 1 1", e.TotalReviews(), e.Startup().Stats.Malformed)
	}
}
