package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"reviewrec/internal/config"
	"reviewrec/internal/engine"
	"reviewrec/internal/logging"
)

const persistRetries = 3

// Uso: ingest [userKey ...]
// Parsea (o carga) la fuente configurada, muestra los totales y, si se pasan
// claves de usuario, imprime sus recomendaciones.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("configuración inválida")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: "console"})

	ctx := context.Background()
	fmt.Println("Iniciando ingesta de", cfg.Source.Path)

	eng, err := engine.OpenFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("ingesta fallida")
	}
	defer eng.Close()

	code := 0
	if err := ensurePersisted(ctx, eng); err != nil {
		logging.Error().Err(err).Msg("los registros no quedaron guardados; la próxima corrida volverá a parsear")
		code = 1
	}

	st := eng.Startup()
	mode := "frío (parseo completo)"
	if st.Warm {
		mode = "caliente (registros cargados)"
	}
	fmt.Println("Arranque:", mode, "en", st.Duration.Round(time.Millisecond))
	fmt.Println("Dataset:", eng.DatasetFile())
	fmt.Println("Total reviews:", eng.TotalReviews())
	fmt.Println("Total productos:", eng.TotalProducts())
	fmt.Println("Total usuarios:", eng.TotalUsers())
	if !st.Warm {
		fmt.Printf("Registros: %d, descartados: %d malformados, %d scores inválidos, %d líneas demasiado largas\n",
			st.Stats.Records, st.Stats.Malformed, st.Stats.BadScores, st.Stats.Oversize)
	}

	for _, user := range os.Args[1:] {
		recs, err := eng.Recommend(ctx, user, cfg.KNN.DefaultN)
		switch {
		case errors.Is(err, engine.ErrUserNotFound):
			fmt.Printf("%s: usuario no encontrado\n", user)
		case err != nil:
			fmt.Printf("%s: error: %v\n", user, err)
		case len(recs) == 0:
			fmt.Printf("%s: sin recomendaciones\n", user)
		default:
			fmt.Printf("%s: %s\n", user, strings.Join(recs, ", "))
		}
	}
	return code
}

// ensurePersisted reintenta guardar los registros si el arranque en frío no
// pudo hacerlo.
func ensurePersisted(ctx context.Context, eng *engine.Engine) error {
	err := eng.Startup().PersistErr
	for i := 1; err != nil && i <= persistRetries; i++ {
		time.Sleep(time.Duration(i) * 500 * time.Millisecond)
		logging.Warn().Err(err).Int("intento", i).Msg("reintentando guardar registros")
		err = eng.PersistRegistries(ctx)
	}
	return err
}
