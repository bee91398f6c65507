package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	apperrors "github.com/holotutor/hub-server-go/internal/errors"
	"github.com/holotutor/hub-server-go/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
	cfg         *config.Config
}

func NewRoomHandler(roomService *service.RoomService, cfg *config.Config) *RoomHandler {
	return &RoomHandler{roomService: roomService, cfg: cfg}
}

func (h *RoomHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/rooms", h.CreateRoom)
	r.Get("/rooms/{roomID}", h.GetRoom)
	r.Delete("/rooms/{roomID}", h.EndRoom)
	r.Get("/webrtc/config", h.WebRTCConfig)

	return r
}

type createRoomRequest struct {
	UserID      string `json:"user_id"`
	CompanionID string `json:"companion_id"`
}

// POST /api/video/rooms
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	room, err := h.roomService.CreateRoom(r.Context(), req.UserID, req.CompanionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to create room")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

// GET /api/video/rooms/{roomID}
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DELETE /api/video/rooms/{roomID}
func (h *RoomHandler) EndRoom(w http.ResponseWriter, r *http.Request) {
	record, err := h.roomService.EndRoom(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		if !apperrors.IsNotFound(err) {
			log.Error().Err(err).Msg("failed to end room")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GET /api/video/webrtc/config
func (h *RoomHandler) WebRTCConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ice_servers": h.cfg.ICEServers(),
	})
}
