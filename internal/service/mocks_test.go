package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/holotutor/hub-server-go/internal/model"
)

var errStoreDown = errors.New("store unavailable")

// In-memory fakes for repository interfaces. failing=true simulates a state
// store outage on every call.

type fakeCounterRepo struct {
	mu       sync.Mutex
	counts   map[string]int64
	expiries map[string]time.Time
	failing  bool
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{
		counts:   make(map[string]int64),
		expiries: make(map[string]time.Time),
	}
}

func (f *fakeCounterRepo) expire(key string) {
	if exp, ok := f.expiries[key]; ok && time.Now().After(exp) {
		delete(f.counts, key)
		delete(f.expiries, key)
	}
}

func (f *fakeCounterRepo) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errStoreDown
	}
	f.expire(key)
	f.counts[key]++
	if f.counts[key] == 1 {
		f.expiries[key] = time.Now().Add(window)
	}
	return f.counts[key], nil
}

func (f *fakeCounterRepo) Add(ctx context.Context, key string, amount int64, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errStoreDown
	}
	f.counts[key] += amount
	f.expiries[key] = time.Now().Add(window)
	return f.counts[key], nil
}

func (f *fakeCounterRepo) Get(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return 0, errStoreDown
	}
	f.expire(key)
	return f.counts[key], nil
}

type fakeRoomRepo struct {
	mu      sync.Mutex
	rooms   map[string]*model.Room
	failing bool
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]*model.Room)}
}

func (f *fakeRoomRepo) Put(ctx context.Context, room *model.Room, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	clone := *room
	clone.Participants = append([]string(nil), room.Participants...)
	f.rooms[room.RoomID] = &clone
	return nil
}

func (f *fakeRoomRepo) Get(ctx context.Context, roomID string) (*model.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errStoreDown
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, nil
	}
	clone := *room
	clone.Participants = append([]string(nil), room.Participants...)
	return &clone, nil
}

func (f *fakeRoomRepo) Delete(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, roomID)
	return nil
}

func (f *fakeRoomRepo) SetParticipants(ctx context.Context, roomID string, participants []string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	if room, ok := f.rooms[roomID]; ok {
		room.Participants = append([]string(nil), participants...)
	}
	return nil
}

type fakeConversationRepo struct {
	mu      sync.Mutex
	logs    map[string][]model.Message
	failing bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{logs: make(map[string][]model.Message)}
}

func (f *fakeConversationRepo) Init(ctx context.Context, roomID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	f.logs[roomID] = []model.Message{}
	return nil
}

func (f *fakeConversationRepo) Get(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errStoreDown
	}
	msgs := append([]model.Message(nil), f.logs[roomID]...)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeConversationRepo) Append(ctx context.Context, roomID string, msg model.Message, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	f.logs[roomID] = append(f.logs[roomID], msg)
	return nil
}

type fakeSessionRepo struct {
	mu      sync.Mutex
	records map[string][]model.SessionRecord
	failing bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{records: make(map[string][]model.SessionRecord)}
}

func (f *fakeSessionRepo) Append(ctx context.Context, userID string, record model.SessionRecord, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	f.records[userID] = append(f.records[userID], record)
	return nil
}

func (f *fakeSessionRepo) List(ctx context.Context, userID string, offset, limit int) ([]model.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errStoreDown
	}
	records := append([]model.SessionRecord(nil), f.records[userID]...)
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if records[j].StartedAt > records[i].StartedAt {
				records[i], records[j] = records[j], records[i]
			}
		}
	}
	if offset >= len(records) {
		return []model.SessionRecord{}, nil
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

type fakeCacheRepo struct {
	mu      sync.Mutex
	values  map[string][]byte
	failing bool
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: make(map[string][]byte)}
}

func (f *fakeCacheRepo) Set(ctx context.Context, name string, value any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[name] = raw
	return nil
}

func (f *fakeCacheRepo) Get(ctx context.Context, name string, dest any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return false, errStoreDown
	}
	raw, ok := f.values[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}
