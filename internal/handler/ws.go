package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	"github.com/holotutor/hub-server-go/internal/signaling"
)

// WSHandler upgrades signaling connections and hands them to the hub.
type WSHandler struct {
	hub      *signaling.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *signaling.Hub, cfg *config.Config) *WSHandler {
	allowed := make(map[string]bool)
	for _, origin := range cfg.Origins() {
		allowed[origin] = true
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin header
				return origin == "" || allowed[origin]
			},
		},
	}
}

// GET /ws
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	conn := signaling.NewConn(sock)
	h.hub.Run(r.Context(), conn)
}
