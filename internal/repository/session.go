package repository

import (
	"context"
	"sort"
	"time"

	"github.com/holotutor/hub-server-go/internal/model"
	redisclient "github.com/holotutor/hub-server-go/internal/redis"
)

type SessionRepository interface {
	// Append adds a record to the user's history and refreshes the key TTL.
	Append(ctx context.Context, userID string, record model.SessionRecord, ttl time.Duration) error
	// List returns a page of the user's records sorted by start time
	// descending. Sorting happens on every read; stored order is not trusted.
	List(ctx context.Context, userID string, offset, limit int) ([]model.SessionRecord, error)
}

type sessionRepo struct {
	client *redisclient.Client
}

func NewSessionRepository(client *redisclient.Client) SessionRepository {
	return &sessionRepo{client: client}
}

func (r *sessionRepo) Append(ctx context.Context, userID string, record model.SessionRecord, ttl time.Duration) error {
	var records []model.SessionRecord
	if _, err := getJSON(ctx, r.client.Client, SessionsKey(userID), &records); err != nil {
		return err
	}
	records = append(records, record)
	return setJSON(ctx, r.client.Client, SessionsKey(userID), records, ttl)
}

func (r *sessionRepo) List(ctx context.Context, userID string, offset, limit int) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	found, err := getJSON(ctx, r.client.Client, SessionsKey(userID), &records)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.SessionRecord{}, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt > records[j].StartedAt
	})

	if offset >= len(records) {
		return []model.SessionRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
