package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
	"examprep-marketplace/internal/infra/metrics"
	red "examprep-marketplace/internal/infra/redis"
)

var _ repository.BatchRepository = (*batchRepoCacheDecorator)(nil)

// batchRepoCacheDecorator caches catalog reads in Redis. Batches change
// rarely and are read on every checkout and every webhook confirmation.
type batchRepoCacheDecorator struct {
	inner repository.BatchRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewBatchRepoCacheDecorator(inner repository.BatchRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.BatchRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "BatchCache").Logger()
	return &batchRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

// lookup tries the cache first and falls through to the wrapped repo. A
// Redis outage must not break checkout; it is counted under its own label so
// the miss rate stays meaningful.
func (d *batchRepoCacheDecorator) lookup(ctx context.Context, key string, find func() (*model.Batch, error)) (*model.Batch, error) {
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var b model.Batch
		if json.Unmarshal([]byte(val), &b) == nil {
			metrics.IncCacheRequest("batch", "hit")
			return &b, nil
		}
		metrics.IncCacheRequest("batch", "miss")
	case err == redis.Nil:
		metrics.IncCacheRequest("batch", "miss")
	default:
		metrics.IncCacheRequest("batch", "error")
		d.log.Debug().Err(err).Str("key", key).Msg("cache lookup failed")
	}

	b, err := find()
	if err != nil {
		return nil, err
	}
	if b != nil {
		bytes, _ := json.Marshal(b)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return b, nil
}

func (d *batchRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	return d.lookup(ctx, fmt.Sprintf("batch:%s", id), func() (*model.Batch, error) {
		return d.inner.FindByID(ctx, tx, id)
	})
}

func (d *batchRepoCacheDecorator) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Batch, error) {
	return d.lookup(ctx, fmt.Sprintf("batch:slug:%s", slug), func() (*model.Batch, error) {
		return d.inner.FindBySlug(ctx, tx, slug)
	})
}
