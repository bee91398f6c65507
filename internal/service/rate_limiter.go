package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/repository"
)

// RateLimiter is a fixed-window request limiter over the state store. The
// first increment in a window sets the window's expiry; a request is allowed
// while the count stays at or under the limit.
//
// Policy on store failure: fail open. Availability of the product is
// prioritized over strict limiting, so a broken store admits the request.
type RateLimiter struct {
	counters repository.CounterRepository
}

func NewRateLimiter(counters repository.CounterRepository) *RateLimiter {
	return &RateLimiter{counters: counters}
}

// Allow checks and consumes one unit of the identifier's window budget.
func (rl *RateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) bool {
	count, err := rl.counters.IncrWindow(ctx, repository.RateKey(identifier), window)
	if err != nil {
		log.Warn().
			Err(err).
			Str("identifier", identifier).
			Msg("rate limit check failed, allowing request")
		return true
	}
	return count <= int64(limit)
}

// UsageTracker accumulates consumption of a quota-limited external service.
// Unlike the per-client rate limiter the scope is global per service name and
// the reset window is monthly-scale.
type UsageTracker struct {
	counters repository.CounterRepository
}

func NewUsageTracker(counters repository.CounterRepository) *UsageTracker {
	return &UsageTracker{counters: counters}
}

// Add records consumed units and refreshes the reset window.
func (t *UsageTracker) Add(ctx context.Context, service string, units int64) {
	total, err := t.counters.Add(ctx, repository.UsageKey(service), units, config.UsageResetWindow)
	if err != nil {
		log.Error().Err(err).Str("service", service).Msg("failed to record usage")
		return
	}
	log.Debug().Str("service", service).Int64("total", total).Msg("usage recorded")
}

// Get returns the current usage, 0 when nothing is recorded or on store
// failure (a broken store must not block the reply path; the budget gate in
// the pipeline is what enforces fail-closed once a real count crosses it).
func (t *UsageTracker) Get(ctx context.Context, service string) int64 {
	count, err := t.counters.Get(ctx, repository.UsageKey(service))
	if err != nil {
		log.Error().Err(err).Str("service", service).Msg("failed to read usage")
		return 0
	}
	return count
}
