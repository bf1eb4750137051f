// Package engine arma el sistema completo: ingesta o arranque en caliente,
// totales y recomendaciones por clave de usuario.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reviewrec/internal/ingest"
	"reviewrec/internal/knn"
	"reviewrec/internal/logging"
	"reviewrec/internal/metrics"
	"reviewrec/internal/persist"
	"reviewrec/internal/ratings"
	"reviewrec/internal/registry"
)

var ErrUserNotFound = errors.New("engine: usuario no encontrado")

type Options struct {
	// SourcePath es el dump de reviews.
	SourcePath string

	// DataDir guarda el dataset compacto parsed_<fuente>.csv.
	DataDir string

	// Store persiste los registros. Engine.Close lo cierra.
	Store persist.RegistryStore

	Mode ingest.Mode
	KNN  knn.Options

	// DefaultN se usa cuando Recommend recibe n <= 0.
	DefaultN int

	// RequestTimeout acota cada Recommend. 0 = sin límite.
	RequestTimeout time.Duration
}

// Startup describe cómo arrancó el engine.
type Startup struct {
	Warm     bool
	Stats    ingest.Stats // vacío en arranque en caliente
	Duration time.Duration

	// PersistErr es la falla al guardar los registros en un arranque en frío
	// (*persist.SaveError). El engine funciona igual; PersistRegistries
	// permite reintentar.
	PersistErr error
}

type Recommendation struct {
	ProductKey string  `json:"product_id" bson:"product_id"`
	Score      float64 `json:"predicted" bson:"predicted"`
}

// Engine es seguro para llamadas concurrentes a Recommend: registros y
// matriz no cambian después de Open.
type Engine struct {
	opts        Options
	datasetPath string
	names       persist.Names
	products    *registry.Registry
	users       *registry.Registry
	matrix      *ratings.Matrix
	reviews     int64
	log         zerolog.Logger

	mu      sync.Mutex
	startup Startup
}

// DatasetPath devuelve dónde vive el dataset compacto para una fuente.
func DatasetPath(dataDir, sourcePath string) string {
	return filepath.Join(dataDir, "parsed_"+filepath.Base(sourcePath)+".csv")
}

// Open construye el engine. Si ya existen el dataset compacto y ambos
// registros, los carga sin parsear (arranque en caliente); si no, parsea la
// fuente, escribe el dataset y guarda los registros.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: falta Store")
	}
	if opts.DefaultN <= 0 {
		opts.DefaultN = knn.DefaultN
	}
	if opts.KNN.Workers <= 0 {
		opts.KNN.Workers = knn.DefaultOptions().Workers
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: creando %s: %w", opts.DataDir, err)
	}

	e := &Engine{
		opts:        opts,
		datasetPath: DatasetPath(opts.DataDir, opts.SourcePath),
		names:       persist.NamesFor(opts.SourcePath),
		log:         logging.With("engine"),
	}

	start := time.Now()
	warm, err := e.tryWarmStart(ctx)
	if err != nil {
		return nil, err
	}
	if !warm {
		if err := e.coldStart(ctx); err != nil {
			return nil, err
		}
	}

	if err := e.loadMatrix(); err != nil {
		return nil, err
	}
	e.startup.Warm = warm
	e.startup.Duration = time.Since(start)

	mode := "cold"
	if warm {
		mode = "warm"
	}
	metrics.StartupMode.WithLabelValues(mode).Inc()
	e.log.Info().
		Str("mode", mode).
		Int64("reviews", e.reviews).
		Int("users", e.users.Size()).
		Int("products", e.products.Size()).
		Dur("duration", e.startup.Duration).
		Msg("engine listo")

	return e, nil
}

func (e *Engine) tryWarmStart(ctx context.Context) (bool, error) {
	if !ratings.Exists(e.datasetPath) {
		return false, nil
	}
	ok, err := persist.HasAll(ctx, e.opts.Store, e.names)
	if err != nil {
		return false, fmt.Errorf("engine: revisando registros: %w", err)
	}
	if !ok {
		return false, nil
	}

	products, users, err := persist.LoadAll(ctx, e.opts.Store, e.names)
	if err != nil {
		// snapshot ilegible: se vuelve a parsear la fuente
		e.log.Warn().Err(err).Msg("no se pudieron cargar los registros, se parsea de nuevo")
		return false, nil
	}
	e.products, e.users = products, users
	return true, nil
}

func (e *Engine) coldStart(ctx context.Context) error {
	e.products = registry.New()
	e.users = registry.New()

	src, err := os.Open(e.opts.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: abriendo fuente: %w", ingest.ErrIO, err)
	}
	defer src.Close()

	// escribir a un temporal: un dataset a medias no debe habilitar el
	// arranque en caliente
	tmpPath := e.datasetPath + ".tmp"
	out, err := ratings.CreateFile(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: creando dataset: %w", ingest.ErrIO, err)
	}
	defer os.Remove(tmpPath)

	e.log.Info().Str("source", e.opts.SourcePath).Str("mode", e.opts.Mode.String()).Msg("parseando fuente")

	start := time.Now()
	parser := ingest.NewParser(e.products, e.users, e.opts.Mode)
	stats, err := parser.Parse(ctx, src, out)
	if err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: cerrando dataset: %w", ingest.ErrIO, err)
	}
	if err := os.Rename(tmpPath, e.datasetPath); err != nil {
		return fmt.Errorf("%w: %w", ingest.ErrIO, err)
	}

	e.log.Info().Int64("rows", out.Rows()).Str("dataset", e.datasetPath).Msg("dataset escrito")

	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	metrics.IngestedReviews.Add(float64(stats.Reviews))
	metrics.IngestSkipped.WithLabelValues("malformed").Add(float64(stats.Malformed))
	metrics.IngestSkipped.WithLabelValues("bad_score").Add(float64(stats.BadScores))
	metrics.IngestSkipped.WithLabelValues("oversize").Add(float64(stats.Oversize))
	e.startup.Stats = stats

	if stats.Malformed > 0 || stats.BadScores > 0 || stats.Oversize > 0 {
		e.log.Warn().
			Int64("malformed", stats.Malformed).
			Int64("bad_scores", stats.BadScores).
			Int64("oversize", stats.Oversize).
			Msg("scores descartados durante la ingesta")
	}

	e.startup.PersistErr = e.saveRegistries(ctx)
	return nil
}

func (e *Engine) saveRegistries(ctx context.Context) error {
	err := persist.SaveAll(ctx, e.opts.Store, e.names, e.products, e.users)
	if err != nil {
		metrics.PersistFailures.WithLabelValues("registry").Inc()
		e.log.Warn().Err(err).Msg("no se pudieron guardar los registros; la próxima corrida volverá a parsear")
	}
	return err
}

func (e *Engine) loadMatrix() error {
	m, err := ratings.LoadMatrixFile(e.datasetPath)
	if err != nil {
		return fmt.Errorf("engine: cargando dataset: %w", err)
	}
	maxUser, maxProduct := m.MaxIDs()
	if maxUser >= e.users.Size() || maxProduct >= e.products.Size() {
		return fmt.Errorf("engine: dataset %s no corresponde a los registros (ids %d/%d, registros %d/%d)",
			e.datasetPath, maxUser, maxProduct, e.users.Size(), e.products.Size())
	}
	e.matrix = m
	e.reviews = int64(m.Len())
	return nil
}

// PersistRegistries vuelve a guardar ambos registros. Sirve para reintentar
// después de un Startup().PersistErr.
func (e *Engine) PersistRegistries(ctx context.Context) error {
	err := e.saveRegistries(ctx)
	e.mu.Lock()
	e.startup.PersistErr = err
	e.mu.Unlock()
	return err
}

func (e *Engine) Startup() Startup {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startup
}

// TotalReviews es la cantidad de líneas del dataset compacto.
func (e *Engine) TotalReviews() int64 { return e.reviews }
func (e *Engine) TotalProducts() int  { return e.products.Size() }
func (e *Engine) TotalUsers() int     { return e.users.Size() }

func (e *Engine) Products() *registry.Registry { return e.products }
func (e *Engine) Users() *registry.Registry    { return e.users }
func (e *Engine) Matrix() *ratings.Matrix      { return e.matrix }
func (e *Engine) DatasetFile() string          { return e.datasetPath }

// Recommend devuelve hasta n claves de producto para userKey, ordenadas por
// score estimado. ErrUserNotFound si el usuario no existe; un slice vacío
// si no hay vecinos o candidatos.
func (e *Engine) Recommend(ctx context.Context, userKey string, n int) ([]string, error) {
	recs, err := e.RecommendScored(ctx, userKey, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ProductKey
	}
	return out, nil
}

func (e *Engine) RecommendScored(ctx context.Context, userKey string, n int) (recs []Recommendation, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrUserNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
		}
		metrics.RecommendDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	user, ok := e.users.LookupID(userKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, userKey)
	}
	if n <= 0 {
		n = e.opts.DefaultN
	}
	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}

	top, neighbors, err := knn.Recommend(ctx, e.matrix, user, n, e.opts.KNN)
	if err != nil {
		return nil, fmt.Errorf("engine: recomendando a %q: %w", userKey, err)
	}
	metrics.NeighborhoodSize.Observe(float64(len(neighbors)))

	recs = make([]Recommendation, 0, len(top))
	for _, r := range top {
		key, ok := e.products.LookupKey(r.ProductID)
		if !ok {
			return nil, fmt.Errorf("engine: producto %d sin clave", r.ProductID)
		}
		recs = append(recs, Recommendation{ProductKey: key, Score: r.Predicted})
	}
	return recs, nil
}

// Neighbors expone el vecindario de un usuario (para herramientas y debug).
func (e *Engine) Neighbors(ctx context.Context, userKey string) ([]knn.Neighbor, error) {
	user, ok := e.users.LookupID(userKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, userKey)
	}
	return knn.Neighborhood(ctx, e.matrix, user, e.opts.KNN)
}

func (e *Engine) Close() error {
	return e.opts.Store.Close()
}
