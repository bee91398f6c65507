package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holotutor/hub-server-go/internal/service"
)

type CompanionHandler struct {
	companionService *service.CompanionService
}

func NewCompanionHandler(companionService *service.CompanionService) *CompanionHandler {
	return &CompanionHandler{companionService: companionService}
}

func (h *CompanionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListCompanions)
	r.Get("/{companionID}", h.GetCompanion)

	return r
}

// GET /api/companions
func (h *CompanionHandler) ListCompanions(w http.ResponseWriter, r *http.Request) {
	companions, err := h.companionService.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companions": companions})
}

// GET /api/companions/{companionID}
func (h *CompanionHandler) GetCompanion(w http.ResponseWriter, r *http.Request) {
	companion, err := h.companionService.Get(r.Context(), chi.URLParam(r, "companionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companion)
}
