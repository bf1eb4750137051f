package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"reviewrec/internal/metrics"
)

// RecCache guarda listas de recomendaciones ya calculadas por (usuario, n).
// Un *RecCache nil es válido y no cachea nada.
type RecCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func New(client *redis.Client, ttl time.Duration) *RecCache {
	return &RecCache{client: client, ttl: ttl, prefix: "reviewrec:recs:"}
}

// Connect crea el cliente y verifica la conexión.
func Connect(ctx context.Context, addr, password string, ttl time.Duration) (*RecCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return New(client, ttl), nil
}

func (c *RecCache) key(user string, n int) string {
	return fmt.Sprintf("%s%s:%d", c.prefix, user, n)
}

// GetJSON lee la entrada de (user, n); si existe deserializa en dest.
func (c *RecCache) GetJSON(ctx context.Context, user string, n int, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}

	val, err := c.client.Get(ctx, c.key(user, n)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return false, err
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return true, nil
}

// SetJSON serializa value y lo guarda con el TTL configurado.
func (c *RecCache) SetJSON(ctx context.Context, user string, n int, value any) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(user, n), b, c.ttl).Err()
}

func (c *RecCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
