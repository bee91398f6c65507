package repository

import (
	"context"
	"time"

	"github.com/holotutor/hub-server-go/internal/model"
	redisclient "github.com/holotutor/hub-server-go/internal/redis"
)

type ConversationRepository interface {
	// Init writes an empty log with the conversation TTL.
	Init(ctx context.Context, roomID string, ttl time.Duration) error
	// Get returns the last limit messages in insertion order (limit <= 0 means
	// all). An absent log is an empty slice, not an error.
	Get(ctx context.Context, roomID string, limit int) ([]model.Message, error)
	// Append adds one message to the log. Read-modify-write: concurrent
	// appends are last-write-wins, accepted given short TTLs and low
	// per-room contention.
	Append(ctx context.Context, roomID string, msg model.Message, ttl time.Duration) error
}

type conversationRepo struct {
	client *redisclient.Client
}

func NewConversationRepository(client *redisclient.Client) ConversationRepository {
	return &conversationRepo{client: client}
}

func (r *conversationRepo) Init(ctx context.Context, roomID string, ttl time.Duration) error {
	return setJSON(ctx, r.client.Client, ConversationKey(roomID), []model.Message{}, ttl)
}

func (r *conversationRepo) Get(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	found, err := getJSON(ctx, r.client.Client, ConversationKey(roomID), &messages)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.Message{}, nil
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (r *conversationRepo) Append(ctx context.Context, roomID string, msg model.Message, ttl time.Duration) error {
	messages, err := r.Get(ctx, roomID, 0)
	if err != nil {
		return err
	}
	messages = append(messages, msg)
	return setJSON(ctx, r.client.Client, ConversationKey(roomID), messages, ttl)
}
