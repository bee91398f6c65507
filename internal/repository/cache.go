package repository

import (
	"context"
	"time"

	redisclient "github.com/holotutor/hub-server-go/internal/redis"
)

// CacheRepository is a generic TTL cache over the state store. Values are
// opaque JSON; the store is schema-agnostic.
type CacheRepository interface {
	Set(ctx context.Context, name string, value any, ttl time.Duration) error
	// Get decodes into dest, returning found=false on miss.
	Get(ctx context.Context, name string, dest any) (bool, error)
}

type cacheRepo struct {
	client *redisclient.Client
}

func NewCacheRepository(client *redisclient.Client) CacheRepository {
	return &cacheRepo{client: client}
}

func (r *cacheRepo) Set(ctx context.Context, name string, value any, ttl time.Duration) error {
	return setJSON(ctx, r.client.Client, CacheKey(name), value, ttl)
}

func (r *cacheRepo) Get(ctx context.Context, name string, dest any) (bool, error) {
	return getJSON(ctx, r.client.Client, CacheKey(name), dest)
}
