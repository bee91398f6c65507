package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	apperrors "github.com/holotutor/hub-server-go/internal/errors"
	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
)

// Limiter gates client-originated chat traffic.
type Limiter interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) bool
}

// ResponseScheduler hands a student message to the AI pipeline. Schedule
// reports false when the pipeline queue is saturated.
type ResponseScheduler interface {
	Schedule(roomID, companionID, userMessage string) bool
}

// Hub routes signaling and chat frames between the connections of each room.
// Membership lives in two places: the in-memory connection registry here and
// the participants list in the state store. Every join and leave updates
// both.
type Hub struct {
	rooms         repository.RoomRepository
	conversations repository.ConversationRepository
	limiter       Limiter
	scheduler     ResponseScheduler
	cfg           *config.Config

	mu      sync.RWMutex
	conns   map[string]*Conn            // connID → conn
	byRoom  map[string]map[string]*Conn // roomID → connID → conn

	now func() int64
}

func NewHub(
	rooms repository.RoomRepository,
	conversations repository.ConversationRepository,
	limiter Limiter,
	scheduler ResponseScheduler,
	cfg *config.Config,
) *Hub {
	return &Hub{
		rooms:         rooms,
		conversations: conversations,
		limiter:       limiter,
		scheduler:     scheduler,
		cfg:           cfg,
		conns:         make(map[string]*Conn),
		byRoom:        make(map[string]map[string]*Conn),
		now:           func() int64 { return time.Now().Unix() },
	}
}

// Run serves one connection until its socket errors or closes, then tears
// down its membership exactly as an explicit leave would.
func (h *Hub) Run(ctx context.Context, c *Conn) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	log.Info().Str("conn_id", c.ID).Msg("connection opened")

	defer h.disconnect(ctx, c)

	for {
		frame, err := c.ReadFrame()
		if errors.Is(err, ErrMalformedFrame) {
			c.SendError(string(apperrors.ErrCodeValidation), "malformed frame")
			continue
		}
		if err != nil {
			return
		}
		h.dispatch(ctx, c, frame)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Conn, frame Frame) {
	switch frame.Event {
	case EventJoin:
		h.handleJoin(ctx, c, frame.Data)
	case EventLeave:
		h.handleLeave(ctx, c)
	case EventOffer, EventAnswer:
		h.handleSignal(c, frame.Event, frame.Data)
	case EventCandidate:
		h.handleCandidate(c, frame.Data)
	case EventMessage:
		h.handleMessage(ctx, c, frame.Data)
	default:
		c.SendError(string(apperrors.ErrCodeInvalidInput), "unknown event: "+frame.Event)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Conn, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.UserID == "" {
		c.SendError(string(apperrors.ErrCodeValidation), "join requires room_id and user_id")
		return
	}

	room, err := h.rooms.Get(ctx, p.RoomID)
	if err != nil {
		c.SendError(string(apperrors.ErrCodeStore), "room lookup failed")
		return
	}
	if room == nil || room.Status != model.RoomStatusActive {
		c.SendError(string(apperrors.ErrCodeNotFound), "room not found")
		return
	}

	if room.AddParticipant(p.UserID) {
		if err := h.rooms.SetParticipants(ctx, p.RoomID, room.Participants, h.cfg.RoomTTL()); err != nil {
			c.SendError(string(apperrors.ErrCodeStore), "failed to record membership")
			return
		}
	}

	h.mu.Lock()
	if c.RoomID != "" && c.RoomID != p.RoomID {
		h.mu.Unlock()
		h.handleLeave(ctx, c)
		h.mu.Lock()
	}
	c.RoomID = p.RoomID
	c.UserID = p.UserID
	c.IsHost = p.IsHost
	peers, ok := h.byRoom[p.RoomID]
	if !ok {
		peers = make(map[string]*Conn)
		h.byRoom[p.RoomID] = peers
	}
	peers[c.ID] = c
	h.mu.Unlock()

	log.Info().
		Str("room_id", p.RoomID).
		Str("user_id", p.UserID).
		Str("conn_id", c.ID).
		Msg("participant joined")

	presence := PresencePayload{
		RoomID:       p.RoomID,
		UserID:       p.UserID,
		IsHost:       p.IsHost,
		Participants: room.Participants,
	}
	if err := c.Send(EventJoined, presence); err != nil {
		log.Warn().Err(err).Str("conn_id", c.ID).Msg("join ack failed")
	}
	h.broadcast(p.RoomID, c.ID, EventPeerJoined, presence)
}

func (h *Hub) handleLeave(ctx context.Context, c *Conn) {
	h.mu.Lock()
	roomID, userID, isHost := c.RoomID, c.UserID, c.IsHost
	if roomID == "" {
		h.mu.Unlock()
		return
	}
	c.RoomID = ""
	if peers, ok := h.byRoom[roomID]; ok {
		delete(peers, c.ID)
		if len(peers) == 0 {
			delete(h.byRoom, roomID)
		}
	}
	h.mu.Unlock()

	room, err := h.rooms.Get(ctx, roomID)
	if err == nil && room != nil && room.RemoveParticipant(userID) {
		if err := h.rooms.SetParticipants(ctx, roomID, room.Participants, h.cfg.RoomTTL()); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to record departure")
		}
	}

	participants := []string{}
	if room != nil {
		participants = room.Participants
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("participant left")
	h.broadcast(roomID, c.ID, EventPeerLeft, PresencePayload{
		RoomID:       roomID,
		UserID:       userID,
		IsHost:       isHost,
		Participants: participants,
	})
}

// disconnect is socket teardown. Membership cleanup is identical to an
// explicit leave.
func (h *Hub) disconnect(ctx context.Context, c *Conn) {
	h.handleLeave(ctx, c)
	h.mu.Lock()
	delete(h.conns, c.ID)
	h.mu.Unlock()
	_ = c.Close()
	log.Info().Str("conn_id", c.ID).Msg("connection closed")
}

func (h *Hub) handleSignal(c *Conn, event string, data json.RawMessage) {
	var p SignalPayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.SDP) == 0 {
		c.SendError(string(apperrors.ErrCodeValidation), event+" requires sdp")
		return
	}
	roomID := h.connRoom(c)
	if roomID == "" {
		c.SendError(string(apperrors.ErrCodeValidation), "not in a room")
		return
	}
	h.broadcast(roomID, c.ID, event, RelayPayload{From: c.ID, SDP: p.SDP})
}

// handleCandidate drops malformed candidates silently. ICE gathering sends
// bursts of these and a broken one is not worth an error round-trip.
func (h *Hub) handleCandidate(c *Conn, data json.RawMessage) {
	var p CandidatePayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.Candidate) == 0 {
		return
	}
	roomID := h.connRoom(c)
	if roomID == "" {
		return
	}
	h.broadcast(roomID, c.ID, EventCandidate, RelayPayload{From: c.ID, Candidate: p.Candidate})
}

func (h *Hub) handleMessage(ctx context.Context, c *Conn, data json.RawMessage) {
	var p MessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Message == "" {
		c.SendError(string(apperrors.ErrCodeValidation), "message requires text")
		return
	}
	roomID := h.connRoom(c)
	if roomID == "" {
		c.SendError(string(apperrors.ErrCodeValidation), "not in a room")
		return
	}

	if !h.limiter.Allow(ctx, c.UserID, h.cfg.RateLimitPerMinute, config.RateLimitWindow) {
		c.SendError(string(apperrors.ErrCodeRateLimitExceeded), "message rate limit exceeded")
		return
	}

	msg := model.Message{
		Text:      p.Message,
		Sender:    model.NormalizeSender(p.Sender),
		Timestamp: h.now(),
	}
	if err := h.conversations.Append(ctx, roomID, msg, h.cfg.ConversationTTL()); err != nil {
		c.SendError(string(apperrors.ErrCodeStore), "failed to record message")
		return
	}

	// chat broadcasts include the sender so every participant renders the
	// same transcript
	h.broadcast(roomID, "", EventMessage, ChatPayload{
		Message:   msg.Text,
		Sender:    string(msg.Sender),
		Timestamp: msg.Timestamp,
	})

	if msg.Sender == model.SenderUser {
		companionID := h.roomCompanion(ctx, roomID)
		if companionID != "" && !h.scheduler.Schedule(roomID, companionID, msg.Text) {
			log.Warn().Str("room_id", roomID).Msg("response pipeline saturated, message dropped from queue")
		}
	}
}

func (h *Hub) roomCompanion(ctx context.Context, roomID string) string {
	room, err := h.rooms.Get(ctx, roomID)
	if err != nil || room == nil {
		return ""
	}
	return room.CompanionID
}

func (h *Hub) connRoom(c *Conn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.RoomID
}

// broadcast sends an event to every connection in the room. A non-empty
// excludeConnID skips the originator. Send failures only drop the one
// receiver.
func (h *Hub) broadcast(roomID, excludeConnID, event string, data any) {
	h.mu.RLock()
	receivers := make([]*Conn, 0, len(h.byRoom[roomID]))
	for id, peer := range h.byRoom[roomID] {
		if id == excludeConnID {
			continue
		}
		receivers = append(receivers, peer)
	}
	h.mu.RUnlock()

	for _, peer := range receivers {
		if err := peer.Send(event, data); err != nil {
			log.Warn().Err(err).Str("conn_id", peer.ID).Str("event", event).Msg("broadcast send failed")
		}
	}
}

// Broadcast delivers a server-originated event to a room. Used by the AI
// pipeline to push companion replies.
func (h *Hub) Broadcast(roomID, event string, data any) {
	h.broadcast(roomID, "", event, data)
}

// RoomIDs lists rooms that currently have live connections.
func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.byRoom))
	for id := range h.byRoom {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll disconnects every connection. Used at shutdown so in-flight
// websocket handlers return and the HTTP server can drain.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// CloseRoom disconnects every connection in a room. The read loops observe
// the closed sockets and run normal teardown.
func (h *Hub) CloseRoom(roomID string) int {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byRoom[roomID]))
	for _, c := range h.byRoom[roomID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
