//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

type fakeCache struct {
	store  map[string]string
	getErr error
	sets   int
}

func newFakeCache() *fakeCache { return &fakeCache{store: make(map[string]string)} }

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func (f *fakeCache) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	if v, ok := f.store[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.sets++
	if b, ok := value.([]byte); ok {
		f.store[key] = string(b)
	}
	return nil
}

func (f *fakeCache) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }

func (f *fakeCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeCache) Close() error { return nil }

type fakeBatchSource struct {
	batch *model.Batch
	calls int
}

func (f *fakeBatchSource) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	f.calls++
	if f.batch != nil && f.batch.ID == id {
		cp := *f.batch
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBatchSource) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Batch, error) {
	f.calls++
	if f.batch != nil && f.batch.Slug == slug {
		cp := *f.batch
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func TestBatchCache_MissThenHit(t *testing.T) {
	log := zerolog.Nop()
	cache := newFakeCache()
	source := &fakeBatchSource{batch: &model.Batch{ID: "batch-1", Slug: "jee-2025", Title: "JEE", Price: 499}}
	repo := NewBatchRepoCacheDecorator(source, cache, time.Hour, &log)

	b, err := repo.FindByID(context.Background(), nil, "batch-1")
	if err != nil || b.Title != "JEE" {
		t.Fatalf("first lookup: batch=%v err=%v", b, err)
	}
	if source.calls != 1 || cache.sets != 1 {
		t.Fatalf("miss path: source calls=%d sets=%d, want 1/1", source.calls, cache.sets)
	}

	b, err = repo.FindByID(context.Background(), nil, "batch-1")
	if err != nil || b.Title != "JEE" {
		t.Fatalf("second lookup: batch=%v err=%v", b, err)
	}
	if source.calls != 1 {
		t.Fatalf("hit path went to the database: calls=%d", source.calls)
	}
}

func TestBatchCache_OutageFallsThrough(t *testing.T) {
	log := zerolog.Nop()
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	source := &fakeBatchSource{batch: &model.Batch{ID: "batch-1", Slug: "jee-2025", Price: 499}}
	repo := NewBatchRepoCacheDecorator(source, cache, time.Hour, &log)

	b, err := repo.FindBySlug(context.Background(), nil, "jee-2025")
	if err != nil || b == nil {
		t.Fatalf("outage must not break the lookup: batch=%v err=%v", b, err)
	}
	if source.calls != 1 {
		t.Fatalf("source calls=%d, want 1", source.calls)
	}
}
