package database

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// -------------------------
// Cliente Mongo
// -------------------------

// collection es lo que usamos de *mongo.Collection.
type collection interface {
	InsertOne(ctx context.Context, doc any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// Store guarda el historial de recomendaciones y los logs de arranque.
// Las escrituras pasan por un circuit breaker: si Mongo se cae, se dejan de
// intentar por un rato en vez de acumular timeouts.
type Store struct {
	client  *mongo.Client
	recs    collection
	logs    collection
	breaker *gobreaker.CircuitBreaker[any]
}

func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Verificar conexión
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	s := newStore(db.Collection("recommendations"), db.Collection("logs"))
	s.client = client
	return s, nil
}

func newStore(recs, logs collection) *Store {
	return &Store{
		recs: recs,
		logs: logs,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "mongo",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (s *Store) insert(ctx context.Context, c collection, doc any) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return c.InsertOne(ctx, doc)
	})
	return err
}

func (s *Store) SaveRecommendation(ctx context.Context, doc RecommendationDocument) error {
	return s.insert(ctx, s.recs, doc)
}

func (s *Store) SaveLog(ctx context.Context, doc LogDocument) error {
	return s.insert(ctx, s.logs, doc)
}

// RecentRecommendations devuelve las últimas recomendaciones servidas a user.
func (s *Store) RecentRecommendations(ctx context.Context, user string, limit int64) ([]RecommendationDocument, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.recs.Find(ctx, bson.M{"user_id": user}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []RecommendationDocument{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BreakerOpen indica si las escrituras están cortadas por el breaker.
func (s *Store) BreakerOpen() bool {
	return s.breaker.State() == gobreaker.StateOpen
}

// IsUnavailable distingue el rechazo del breaker de un error de Mongo.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
