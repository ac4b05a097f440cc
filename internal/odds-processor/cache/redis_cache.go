package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/prediction-core-poc/pkg/contracts/events"
)

// RedisCache encapsula o cache de melhores preços por partida no Redis.
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável.
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis do melhor preço de uma partida.
func key(sport, matchKey string) string { return "match:best:" + sport + ":" + matchKey }

// SetBest armazena a partida canônica mesclada no Redis com TTL definido.
func (r *RedisCache) SetBest(ctx context.Context, sport, matchKey string, m events.Match) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(sport, matchKey), b, r.TTL).Err()
}
