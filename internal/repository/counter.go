package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	redisclient "github.com/holotutor/hub-server-go/internal/redis"
)

// CounterRepository backs both the fixed-window rate guard (`rate:<client>`)
// and the cumulative usage budgets (`tokens:<service>`).
type CounterRepository interface {
	// IncrWindow atomically increments key and, on the first increment of a
	// window, sets the window's expiry. Returns the new count.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	// Add increments key by amount and refreshes the reset window.
	Add(ctx context.Context, key string, amount int64, window time.Duration) (int64, error)
	// Get returns the current count, 0 when absent.
	Get(ctx context.Context, key string) (int64, error)
}

type counterRepo struct {
	client *redisclient.Client
}

func NewCounterRepository(client *redisclient.Client) CounterRepository {
	return &counterRepo{client: client}
}

func (r *counterRepo) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (r *counterRepo) Add(ctx context.Context, key string, amount int64, window time.Duration) (int64, error) {
	count, err := r.client.IncrBy(ctx, key, amount).Result()
	if err != nil {
		return 0, err
	}
	if err := r.client.Expire(ctx, key, window).Err(); err != nil {
		return count, err
	}
	return count, nil
}

func (r *counterRepo) Get(ctx context.Context, key string) (int64, error) {
	raw, err := r.client.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}
