package redis

import (
	"context"
	"errors"
	"time"

	"github.com/fluxoclean/controlplane/internal/exchange"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const exchangeKeyPrefix = "exchange:code:"

// ExchangeStore keeps one-time codes in Redis so any instance can redeem a
// code issued by another.
type ExchangeStore struct {
	client *Client
}

var _ exchange.Store = (*ExchangeStore)(nil)

// NewExchangeStore creates a store.
func NewExchangeStore(client *Client) *ExchangeStore {
	return &ExchangeStore{client: client}
}

// Put stores the token with SET NX EX.
func (s *ExchangeStore) Put(ctx context.Context, code, token string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "redis.ExchangePut",
		trace.WithAttributes(attribute.Int64("redis.ttl_ms", ttl.Milliseconds())))
	defer span.End()

	ok, err := s.client.rdb.SetNX(ctx, exchangeKeyPrefix+code, token, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !ok {
		return exchange.ErrCodeExists
	}
	return nil
}

// Take reads and deletes the token with GETDEL.
func (s *ExchangeStore) Take(ctx context.Context, code string) (string, error) {
	ctx, span := tracer.Start(ctx, "redis.ExchangeTake")
	defer span.End()

	token, err := s.client.rdb.GetDel(ctx, exchangeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", exchange.ErrCodeNotFound
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return token, nil
}
