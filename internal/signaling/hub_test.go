package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/model"
)

// fakeSocket scripts inbound frames and records outbound ones.
type fakeSocket struct {
	mu      sync.Mutex
	inbound chan []byte
	written []Frame
	closed  bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan []byte, 16)}
}

func (s *fakeSocket) WriteJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	s.mu.Lock()
	s.written = append(s.written, f)
	s.mu.Unlock()
	return nil
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	msg, ok := <-s.inbound
	if !ok {
		return 0, nil, errors.New("socket closed")
	}
	return 1, msg, nil
}

func (s *fakeSocket) SetReadLimit(limit int64) {}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.inbound)
	}
	return nil
}

func (s *fakeSocket) push(event string, data any) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(Frame{Event: event, Data: raw})
	s.inbound <- frame
}

func (s *fakeSocket) frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.written...)
}

func (s *fakeSocket) eventNames() []string {
	var names []string
	for _, f := range s.frames() {
		names = append(names, f.Event)
	}
	return names
}

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]*model.Room
}

func newMemRooms(rooms ...*model.Room) *memRooms {
	m := &memRooms{rooms: make(map[string]*model.Room)}
	for _, r := range rooms {
		m.rooms[r.RoomID] = r
	}
	return m
}

func (m *memRooms) Put(ctx context.Context, room *model.Room, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.RoomID] = room
	return nil
}

func (m *memRooms) Get(ctx context.Context, roomID string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	clone := *room
	clone.Participants = append([]string(nil), room.Participants...)
	return &clone, nil
}

func (m *memRooms) Delete(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

func (m *memRooms) SetParticipants(ctx context.Context, roomID string, participants []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		room.Participants = append([]string(nil), participants...)
	}
	return nil
}

func (m *memRooms) participants(roomID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rooms[roomID].Participants...)
}

type memConversations struct {
	mu   sync.Mutex
	logs map[string][]model.Message
}

func newMemConversations() *memConversations {
	return &memConversations{logs: make(map[string][]model.Message)}
}

func (m *memConversations) Init(ctx context.Context, roomID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[roomID] = []model.Message{}
	return nil
}

func (m *memConversations) Get(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Message(nil), m.logs[roomID]...), nil
}

func (m *memConversations) Append(ctx context.Context, roomID string, msg model.Message, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[roomID] = append(m.logs[roomID], msg)
	return nil
}

type stubLimiter struct {
	allow bool
}

func (l *stubLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) bool {
	return l.allow
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (s *recordingScheduler) Schedule(roomID, companionID, userMessage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, userMessage)
	return true
}

func (s *recordingScheduler) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scheduled...)
}

type hubFixture struct {
	hub       *Hub
	rooms     *memRooms
	convs     *memConversations
	limiter   *stubLimiter
	scheduler *recordingScheduler
}

func newHubFixture(rooms ...*model.Room) *hubFixture {
	fx := &hubFixture{
		rooms:     newMemRooms(rooms...),
		convs:     newMemConversations(),
		limiter:   &stubLimiter{allow: true},
		scheduler: &recordingScheduler{},
	}
	cfg := &config.Config{RoomTTLSeconds: 7200, ConversationTTLSeconds: 7200, RateLimitPerMinute: 100}
	fx.hub = NewHub(fx.rooms, fx.convs, fx.limiter, fx.scheduler, cfg)
	return fx
}

func activeRoom(id string) *model.Room {
	return &model.Room{RoomID: id, UserID: "owner", CompanionID: "ada", Status: model.RoomStatusActive, Participants: []string{}}
}

// connect registers a connection with the hub and returns its fake socket.
// done closes when the read loop exits.
func connect(fx *hubFixture) (*Conn, *fakeSocket, chan struct{}) {
	sock := newFakeSocket()
	conn := NewConn(sock)
	done := make(chan struct{})
	go func() {
		fx.hub.Run(context.Background(), conn)
		close(done)
	}()
	return conn, sock, done
}

func join(sock *fakeSocket, roomID, userID string) {
	sock.push(EventJoin, JoinPayload{RoomID: roomID, UserID: userID})
}

// settle waits until cond holds or the deadline passes.
func settle(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestHub_JoinRecordsParticipant(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool {
		p := fx.rooms.participants("room-1")
		return len(p) == 1 && p[0] == "alice"
	})

	// the joiner gets an ack with the membership snapshot
	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventJoined {
				var p PresencePayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, "room-1", p.RoomID)
				assert.Equal(t, []string{"alice"}, p.Participants)
				return true
			}
		}
		return false
	})

	sock.Close()
	<-done
}

func TestHub_MalformedFrameKeepsConnection(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	sock.inbound <- []byte(`{not json`)
	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventError {
				return true
			}
		}
		return false
	})

	// connection still works
	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	sock.Close()
	<-done
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	join(sock, "room-1", "alice")
	sock.push(EventLeave, nil)
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 0 })

	sock.Close()
	<-done
}

func TestHub_JoinUnknownRoom(t *testing.T) {
	fx := newHubFixture()
	_, sock, done := connect(fx)

	join(sock, "ghost", "alice")
	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventError {
				return true
			}
		}
		return false
	})

	sock.Close()
	<-done
}

func TestHub_DisconnectEqualsLeave(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sockA, doneA := connect(fx)
	_, sockB, doneB := connect(fx)

	join(sockA, "room-1", "alice")
	join(sockB, "room-1", "bob")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 2 })

	// drop alice's socket without a leave frame
	sockA.Close()
	<-doneA

	settle(t, func() bool {
		p := fx.rooms.participants("room-1")
		return len(p) == 1 && p[0] == "bob"
	})
	settle(t, func() bool {
		for _, f := range sockB.frames() {
			if f.Event == EventPeerLeft {
				return true
			}
		}
		return false
	})

	sockB.Close()
	<-doneB
}

func TestHub_HostFlagCarriedThroughPresence(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sockA, doneA := connect(fx)
	_, sockB, doneB := connect(fx)

	sockA.push(EventJoin, JoinPayload{RoomID: "room-1", UserID: "owner", IsHost: true})
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })
	sockB.push(EventJoin, JoinPayload{RoomID: "room-1", UserID: "bob"})
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 2 })

	// the host sees bob arrive without the host flag
	settle(t, func() bool {
		for _, f := range sockA.frames() {
			if f.Event == EventPeerJoined {
				var p PresencePayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, "bob", p.UserID)
				assert.False(t, p.IsHost)
				return true
			}
		}
		return false
	})

	// bob sees the host leave with the flag set
	sockA.Close()
	<-doneA
	settle(t, func() bool {
		for _, f := range sockB.frames() {
			if f.Event == EventPeerLeft {
				var p PresencePayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, "owner", p.UserID)
				assert.True(t, p.IsHost)
				return true
			}
		}
		return false
	})

	sockB.Close()
	<-doneB
}

func TestHub_OfferRelayedToPeersOnly(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	connA, sockA, doneA := connect(fx)
	_, sockB, doneB := connect(fx)

	join(sockA, "room-1", "alice")
	join(sockB, "room-1", "bob")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 2 })

	sockA.push(EventOffer, SignalPayload{RoomID: "room-1", SDP: json.RawMessage(`{"type":"offer"}`)})

	settle(t, func() bool {
		for _, f := range sockB.frames() {
			if f.Event == EventOffer {
				var p RelayPayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, connA.ID, p.From, "relay is tagged with the sender's connection id")
				return true
			}
		}
		return false
	})
	for _, name := range sockA.eventNames() {
		assert.NotEqual(t, EventOffer, name, "offer must not echo back to its sender")
	}

	sockA.Close()
	sockB.Close()
	<-doneA
	<-doneB
}

func TestHub_MalformedCandidateDroppedSilently(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	sock.inbound <- []byte(`{"event":"candidate","data":{"room_id":"room-1"}}`)
	sock.push(EventMessage, MessagePayload{RoomID: "room-1", Message: "still alive", Sender: "user"})

	settle(t, func() bool {
		msgs, _ := fx.convs.Get(context.Background(), "room-1", 0)
		return len(msgs) == 1
	})
	for _, f := range sock.frames() {
		assert.NotEqual(t, EventError, f.Event, "bad candidate must not produce an error event")
	}

	sock.Close()
	<-done
}

func TestHub_MessagePersistedAndBroadcastInclusive(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	sock.push(EventMessage, MessagePayload{RoomID: "room-1", Message: "what is a closure?", Sender: "user"})

	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventMessage {
				return true
			}
		}
		return false
	})
	msgs, _ := fx.convs.Get(context.Background(), "room-1", 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, []string{"what is a closure?"}, fx.scheduler.messages())

	sock.Close()
	<-done
}

func TestHub_AIMessageNotScheduled(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	sock.push(EventMessage, MessagePayload{RoomID: "room-1", Message: "A closure captures its scope.", Sender: "assistant"})

	settle(t, func() bool {
		msgs, _ := fx.convs.Get(context.Background(), "room-1", 0)
		return len(msgs) == 1
	})
	msgs, _ := fx.convs.Get(context.Background(), "room-1", 0)
	assert.Equal(t, model.SenderAI, msgs[0].Sender, "legacy sender label normalizes on write")
	assert.Empty(t, fx.scheduler.messages())

	sock.Close()
	<-done
}

func TestHub_RateLimitedMessageRejected(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	fx.limiter.allow = false
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	sock.push(EventMessage, MessagePayload{RoomID: "room-1", Message: "spam", Sender: "user"})

	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventError {
				var p ErrorPayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, "RATE_LIMIT_EXCEEDED", p.Code)
				return true
			}
		}
		return false
	})
	msgs, _ := fx.convs.Get(context.Background(), "room-1", 0)
	assert.Empty(t, msgs, "rejected message must not be persisted")

	sock.Close()
	<-done
}

func TestHub_BroadcastFromPipeline(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.rooms.participants("room-1")) == 1 })

	fx.hub.Broadcast("room-1", EventMessage, ChatPayload{Message: "here is a hint", Sender: "ai", Timestamp: 42})

	settle(t, func() bool {
		for _, f := range sock.frames() {
			if f.Event == EventMessage {
				var p ChatPayload
				require.NoError(t, json.Unmarshal(f.Data, &p))
				assert.Equal(t, "ai", p.Sender)
				return true
			}
		}
		return false
	})

	sock.Close()
	<-done
}

func TestHub_CloseRoomDisconnects(t *testing.T) {
	fx := newHubFixture(activeRoom("room-1"))
	_, sock, done := connect(fx)

	join(sock, "room-1", "alice")
	settle(t, func() bool { return len(fx.hub.RoomIDs()) == 1 })

	closed := fx.hub.CloseRoom("room-1")
	assert.Equal(t, 1, closed)
	<-done
	assert.Empty(t, fx.hub.RoomIDs())

	_ = sock
}
