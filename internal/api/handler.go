package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reviewrec/internal/cache"
	"reviewrec/internal/engine"
	"reviewrec/internal/logging"
	"reviewrec/internal/metrics"
	"reviewrec/pkg/database"
)

// Recommender es lo que la API necesita del engine.
type Recommender interface {
	RecommendScored(ctx context.Context, userKey string, n int) ([]engine.Recommendation, error)
	TotalReviews() int64
	TotalUsers() int
	TotalProducts() int
}

// History guarda y consulta recomendaciones servidas. Opcional.
type History interface {
	SaveRecommendation(ctx context.Context, doc database.RecommendationDocument) error
	RecentRecommendations(ctx context.Context, user string, limit int64) ([]database.RecommendationDocument, error)
	BreakerOpen() bool
}

type Handler struct {
	rec      Recommender
	cache    *cache.RecCache
	history  History
	defaultN int
	maxN     int

	// saveAsync dispara el guardado del historial sin bloquear la respuesta.
	saveAsync func(fn func())
}

func NewHandler(rec Recommender, c *cache.RecCache, h History, defaultN, maxN int) *Handler {
	return &Handler{
		rec:       rec,
		cache:     c,
		history:   h,
		defaultN:  defaultN,
		maxN:      maxN,
		saveAsync: func(fn func()) { go fn() },
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/recommend/{user}", h.Recommend)
	r.Get("/history/{user}", h.History)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type RecommendResponse struct {
	User      string                  `json:"user"`
	N         int                     `json:"n"`
	Products  []string                `json:"products"`
	Items     []engine.Recommendation `json:"items"`
	Cached    bool                    `json:"cached"`
	LatencyMS int64                   `json:"latency_ms"`
}

type StatsResponse struct {
	Reviews  int64 `json:"reviews"`
	Users    int   `json:"users"`
	Products int   `json:"products"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Health responde 200 mientras el engine esté arriba. El historial es
// opcional: si Mongo está cortado por el breaker se informa como degraded.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	history := "disabled"
	if h.history != nil {
		history = "ok"
		if h.history.BreakerOpen() {
			history = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "history": history})
}

func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Reviews:  h.rec.TotalReviews(),
		Users:    h.rec.TotalUsers(),
		Products: h.rec.TotalProducts(),
	})
}

// -----------------------------------------------------------
// ENDPOINT: GET /recommend/{user}?n=3
// -----------------------------------------------------------

func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "Debe especificar un usuario")
		return
	}

	n := h.defaultN
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > h.maxN {
			writeError(w, http.StatusBadRequest, "n debe estar entre 1 y "+strconv.Itoa(h.maxN))
			return
		}
		n = v
	}

	start := time.Now()
	log := logging.Logger()

	var items []engine.Recommendation
	cached, err := h.cache.GetJSON(r.Context(), user, n, &items)
	if err != nil {
		log.Warn().Err(err).Str("user", user).Msg("cache no disponible")
	}

	if !cached {
		items, err = h.rec.RecommendScored(r.Context(), user, n)
		switch {
		case errors.Is(err, engine.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "Usuario no encontrado")
			return
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "La recomendación excedió el tiempo límite")
			return
		case err != nil:
			log.Error().Err(err).Str("user", user).Msg("error en recomendación")
			writeError(w, http.StatusInternalServerError, "Error en recomendación")
			return
		}
		if err := h.cache.SetJSON(r.Context(), user, n, items); err != nil {
			log.Warn().Err(err).Str("user", user).Msg("no se pudo cachear")
		}
	}

	latency := time.Since(start)
	resp := RecommendResponse{
		User:      user,
		N:         n,
		Products:  make([]string, 0, len(items)),
		Items:     items,
		Cached:    cached,
		LatencyMS: latency.Milliseconds(),
	}
	if resp.Items == nil {
		resp.Items = []engine.Recommendation{}
	}
	for _, it := range items {
		resp.Products = append(resp.Products, it.ProductKey)
	}

	if h.history != nil {
		doc := database.NewRecommendationDocument(user, n, toItems(items), latency)
		h.saveAsync(func() { h.saveHistory(doc) })
	}

	writeJSON(w, http.StatusOK, resp)
}

func toItems(recs []engine.Recommendation) []database.RecommendedItem {
	items := make([]database.RecommendedItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, database.RecommendedItem{ProductID: r.ProductKey, Predicted: r.Score})
	}
	return items
}

func (h *Handler) saveHistory(doc database.RecommendationDocument) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.history.SaveRecommendation(ctx, doc)
	if err == nil {
		return
	}
	l := logging.Logger()
	if database.IsUnavailable(err) {
		l.Debug().Str("user", doc.UserID).Msg("historial cortado por el breaker, no se guarda")
		return
	}
	metrics.PersistFailures.WithLabelValues("mongo").Inc()
	l.Warn().Err(err).Str("user", doc.UserID).Msg("Error guardando recomendación")
}

// -----------------------------------------------------------
// ENDPOINT: GET /history/{user}?limit=10
// -----------------------------------------------------------

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "Historial deshabilitado")
		return
	}
	limit := int64(10)
	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.ParseInt(q, 10, 64)
		if err != nil || v < 1 || v > 100 {
			writeError(w, http.StatusBadRequest, "limit debe estar entre 1 y 100")
			return
		}
		limit = v
	}

	docs, err := h.history.RecentRecommendations(r.Context(), chi.URLParam(r, "user"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error leyendo historial")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
