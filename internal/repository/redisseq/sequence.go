// Package redisseq hands out document numbers from Redis counters.
package redisseq

import (
	"context"
	"fmt"

	"custody-backend/internal/logger"
	"custody-backend/internal/repository"

	"github.com/go-redis/redis/v8"
)

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// Sequence keeps one INCR counter per series under prefix.
type Sequence struct {
	client counter
	prefix string
}

var _ repository.SequenceRepository = (*Sequence)(nil)

func New(client *redis.Client, prefix string) *Sequence {
	return &Sequence{client: client, prefix: prefix}
}

func (s *Sequence) key(series string) string {
	return s.prefix + "seq:" + series
}

func (s *Sequence) Next(ctx context.Context, series string) (int64, error) {
	key := s.key(series)
	logger.ExternalServiceCall("redis", "INCR", "key", key)
	n, err := s.client.Incr(ctx, key).Result()
	logger.ExternalServiceResult("redis", "INCR", err, "key", key)
	if err != nil {
		return 0, fmt.Errorf("next %s number: %w", series, err)
	}
	return n, nil
}
