package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	apperrors "github.com/holotutor/hub-server-go/internal/errors"
	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
)

const transcriptPreviewLen = 100

// RoomService owns the lifecycle of tutoring rooms and the session history
// derived from them.
type RoomService struct {
	rooms         repository.RoomRepository
	conversations repository.ConversationRepository
	sessions      repository.SessionRepository
	cfg           *config.Config

	now func() int64
}

func NewRoomService(
	rooms repository.RoomRepository,
	conversations repository.ConversationRepository,
	sessions repository.SessionRepository,
	cfg *config.Config,
) *RoomService {
	return &RoomService{
		rooms:         rooms,
		conversations: conversations,
		sessions:      sessions,
		cfg:           cfg,
		now:           func() int64 { return time.Now().Unix() },
	}
}

// CreateRoom provisions a new active room with an empty conversation log.
// Both keys carry their full TTL from this moment.
func (s *RoomService) CreateRoom(ctx context.Context, userID, companionID string) (*model.Room, error) {
	if userID == "" {
		return nil, apperrors.MissingRequired("user_id")
	}
	if companionID == "" {
		return nil, apperrors.MissingRequired("companion_id")
	}

	room := &model.Room{
		RoomID:       uuid.NewString(),
		UserID:       userID,
		CompanionID:  companionID,
		Status:       model.RoomStatusActive,
		CreatedAt:    s.now(),
		Participants: []string{},
	}
	if err := s.rooms.Put(ctx, room, s.cfg.RoomTTL()); err != nil {
		return nil, apperrors.Store(err)
	}
	if err := s.conversations.Init(ctx, room.RoomID, s.cfg.ConversationTTL()); err != nil {
		return nil, apperrors.Store(err)
	}

	log.Info().
		Str("room_id", room.RoomID).
		Str("user_id", userID).
		Str("companion_id", companionID).
		Msg("room created")
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	if room == nil {
		return nil, apperrors.NotFound("room")
	}
	return room, nil
}

// EndRoom closes an active room and appends the session record to the owning
// user's history. The record is written exactly once: ending an already ended
// room is a conflict, and an expired room is not found.
func (s *RoomService) EndRoom(ctx context.Context, roomID string) (*model.SessionRecord, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status == model.RoomStatusEnded {
		return nil, apperrors.Conflict("room already ended")
	}

	endedAt := s.now()
	room.Status = model.RoomStatusEnded
	room.EndedAt = &endedAt
	if err := s.rooms.Put(ctx, room, config.EndedRoomTTL); err != nil {
		return nil, apperrors.Store(err)
	}

	messages, err := s.conversations.Get(ctx, roomID, 0)
	if err != nil {
		// The room is already marked ended; a summary with an empty
		// transcript beats losing the session entirely.
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to read conversation for session summary")
		messages = nil
	}

	record := model.SessionRecord{
		SessionID:         uuid.NewString(),
		RoomID:            roomID,
		CompanionID:       room.CompanionID,
		StartedAt:         room.CreatedAt,
		EndedAt:           endedAt,
		DurationSeconds:   endedAt - room.CreatedAt,
		MessageCount:      len(messages),
		TranscriptPreview: transcriptPreview(messages),
	}
	if err := s.sessions.Append(ctx, room.UserID, record, s.cfg.SessionHistoryTTL()); err != nil {
		return nil, apperrors.Store(err)
	}

	log.Info().
		Str("room_id", roomID).
		Str("session_id", record.SessionID).
		Int64("duration_seconds", record.DurationSeconds).
		Int("message_count", record.MessageCount).
		Msg("room ended")
	return &record, nil
}

// Sessions lists a user's session history, most recent first.
func (s *RoomService) Sessions(ctx context.Context, userID string, offset, limit int) ([]model.SessionRecord, error) {
	if userID == "" {
		return nil, apperrors.MissingRequired("user_id")
	}
	records, err := s.sessions.List(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return records, nil
}

// Transcript returns the full conversation behind one of the user's sessions.
// The conversation key may have expired independently of the history entry,
// in which case the transcript is empty rather than an error.
func (s *RoomService) Transcript(ctx context.Context, userID, sessionID string) (*model.SessionRecord, []model.Message, error) {
	records, err := s.sessions.List(ctx, userID, 0, 0)
	if err != nil {
		return nil, nil, apperrors.Store(err)
	}
	for i := range records {
		if records[i].SessionID != sessionID {
			continue
		}
		messages, err := s.conversations.Get(ctx, records[i].RoomID, 0)
		if err != nil {
			return nil, nil, apperrors.Store(err)
		}
		if messages == nil {
			messages = []model.Message{}
		}
		return &records[i], messages, nil
	}
	return nil, nil, apperrors.NotFound("session")
}

// transcriptPreview is the first message's text capped at 100 characters, or
// empty for a silent session.
func transcriptPreview(messages []model.Message) string {
	if len(messages) == 0 {
		return ""
	}
	text := messages[0].Text
	if len(text) > transcriptPreviewLen {
		return text[:transcriptPreviewLen]
	}
	return text
}
