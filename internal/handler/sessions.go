package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holotutor/hub-server-go/internal/service"
)

type SessionHandler struct {
	roomService *service.RoomService
}

func NewSessionHandler(roomService *service.RoomService) *SessionHandler {
	return &SessionHandler{roomService: roomService}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{userID}", h.ListSessions)
	r.Get("/{userID}/{sessionID}/transcript", h.GetTranscript)

	return r
}

// GET /api/video/sessions/{userID}
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	records, err := h.roomService.Sessions(r.Context(), chi.URLParam(r, "userID"), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": records,
		"offset":   offset,
		"limit":    limit,
	})
}

// GET /api/video/sessions/{userID}/{sessionID}/transcript
func (h *SessionHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	record, messages, err := h.roomService.Transcript(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  record,
		"messages": messages,
	})
}
