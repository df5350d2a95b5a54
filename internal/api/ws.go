package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/api/respond"
	"github.com/tribeapp/tribe-server/internal/api/validate"
	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/realtime"
)

// newUpgrader builds an upgrader that only admits cross-origin handshakes
// from the configured frontend origins. An empty list admits any origin,
// which suits local development.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WSHandler upgrades GET /v0/tribes/{tribeId}/ws?memberId= into a room
// connection.
type WSHandler struct {
	co       *realtime.Coordinator
	chatSvc  *chat.Service
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(co *realtime.Coordinator, chatSvc *chat.Service, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	return &WSHandler{co: co, chatSvc: chatSvc, upgrader: newUpgrader(allowedOrigins), log: log}
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tribeID := mux.Vars(r)["tribeId"]
	memberID := r.URL.Query().Get("memberId")
	if err := validate.ID("memberId", memberID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.co, h.chatSvc, conn, tribeID, memberID, h.log)
	if err := h.co.Join(r.Context(), client); err != nil {
		// The handshake succeeded, so refusal travels as a close frame.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "membership required"))
		_ = conn.Close()
		return
	}
	client.Start()
}
