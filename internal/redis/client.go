package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
)

type Client struct {
	*redis.Client
}

// Connect dials the state store with bounded retries and exponential backoff.
// The process must not serve traffic without the store, so exhaustion is an
// error the caller treats as fatal.
func Connect(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	var lastErr error
	for attempt := 0; attempt < config.StoreConnectAttempts; attempt++ {
		if attempt > 0 {
			backoff := config.StoreConnectBackoff * time.Duration(1<<(attempt-1))
			log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("redis connect failed, retrying")
			time.Sleep(backoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.StorePingTimeout)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &Client{client}, nil
		}
	}

	client.Close()
	return nil, fmt.Errorf("ping redis after %d attempts: %w", config.StoreConnectAttempts, lastErr)
}

// Healthy is the runtime liveness probe: a ping with a short timeout.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, config.StorePingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("redis health check failed")
		return false
	}
	return true
}

func (c *Client) Close() error {
	return c.Client.Close()
}
