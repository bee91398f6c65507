package repository

import (
	"context"
	"time"

	"github.com/holotutor/hub-server-go/internal/model"
	redisclient "github.com/holotutor/hub-server-go/internal/redis"
)

type RoomRepository interface {
	// Put stores the room with the given TTL, overwriting any previous value.
	Put(ctx context.Context, room *model.Room, ttl time.Duration) error
	// Get returns (nil, nil) when the room is absent or expired.
	Get(ctx context.Context, roomID string) (*model.Room, error)
	Delete(ctx context.Context, roomID string) error
	// SetParticipants rewrites the participant list, keeping the room's TTL
	// policy (the full record is re-put with the given TTL). Concurrent
	// updates are last-write-wins.
	SetParticipants(ctx context.Context, roomID string, participants []string, ttl time.Duration) error
}

type roomRepo struct {
	client *redisclient.Client
}

func NewRoomRepository(client *redisclient.Client) RoomRepository {
	return &roomRepo{client: client}
}

func (r *roomRepo) Put(ctx context.Context, room *model.Room, ttl time.Duration) error {
	return setJSON(ctx, r.client.Client, RoomKey(room.RoomID), room, ttl)
}

func (r *roomRepo) Get(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	found, err := getJSON(ctx, r.client.Client, RoomKey(roomID), &room)
	if err != nil || !found {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Delete(ctx context.Context, roomID string) error {
	return r.client.Del(ctx, RoomKey(roomID)).Err()
}

func (r *roomRepo) SetParticipants(ctx context.Context, roomID string, participants []string, ttl time.Duration) error {
	room, err := r.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		// Room expired between read and write; nothing to update.
		return nil
	}
	room.Participants = participants
	return r.Put(ctx, room, ttl)
}
