package database

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------
// DOCUMENTO: Recomendación servida a un usuario
// Colección: recommendations
// -----------------------------------------------------------

type RecommendedItem struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Predicted float64 `bson:"predicted" json:"predicted"`
}

type RecommendationDocument struct {
	RequestID     string            `bson:"request_id" json:"request_id"`
	UserID        string            `bson:"user_id" json:"user_id"`
	N             int               `bson:"n" json:"n"`
	Recommended   []RecommendedItem `bson:"recommended" json:"recommended"`
	LatencyMS     int64             `bson:"latency_ms" json:"latency_ms"`
	TimestampUnix int64             `bson:"timestamp" json:"timestamp"`
}

func NewRecommendationDocument(user string, n int, items []RecommendedItem, latency time.Duration) RecommendationDocument {
	if items == nil {
		items = []RecommendedItem{}
	}
	return RecommendationDocument{
		RequestID:     uuid.NewString(),
		UserID:        user,
		N:             n,
		Recommended:   items,
		LatencyMS:     latency.Milliseconds(),
		TimestampUnix: time.Now().Unix(),
	}
}

// -----------------------------------------------------------
// DOCUMENTO: Log de arranque / ingesta
// Colección: logs
// -----------------------------------------------------------

type LogDocument struct {
	RunID         string `bson:"run_id" json:"run_id"`
	Source        string `bson:"source" json:"source"`
	Warm          bool   `bson:"warm" json:"warm"`
	Reviews       int64  `bson:"reviews" json:"reviews"`
	Users         int    `bson:"users" json:"users"`
	Products      int    `bson:"products" json:"products"`
	Malformed     int64  `bson:"malformed" json:"malformed"`
	PersistError  string `bson:"persist_error,omitempty" json:"persist_error,omitempty"`
	LatencyMS     int64  `bson:"latency_ms" json:"latency_ms"`
	TimestampUnix int64  `bson:"timestamp" json:"timestamp"`
}
