package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tribeapp/tribe-server/internal/api/respond"
	"github.com/tribeapp/tribe-server/internal/api/validate"
	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/model"
)

// MessageHandler exposes the message pipeline over REST. The websocket path
// is the primary transport; these endpoints serve history, search and
// read-state for clients that are not connected.
type MessageHandler struct {
	svc *chat.Service
}

func NewMessageHandler(svc *chat.Service) *MessageHandler { return &MessageHandler{svc: svc} }

// SendMessage POST /v0/tribes/{tribeId}/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	tribeID := mux.Vars(r)["tribeId"]
	var req struct {
		MemberID string                 `json:"memberId"`
		Content  string                 `json:"content"`
		Type     string                 `json:"type"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.ID("memberId", req.MemberID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	typ := model.MessageType(req.Type)
	if req.Type == "" {
		typ = model.MessageText
	}
	msg, err := h.svc.Send(r.Context(), tribeID, req.MemberID, req.Content, typ, req.Metadata)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, msg)
}

// ListMessages GET /v0/tribes/{tribeId}/messages
// Query params: limit, offset, beforeId, afterId, type, senderId.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ListMessagesRequest{
		TribeID:  mux.Vars(r)["tribeId"],
		Limit:    intQuery(r, "limit", 50),
		Offset:   intQuery(r, "offset", 0),
		BeforeID: q.Get("beforeId"),
		AfterID:  q.Get("afterId"),
	}
	if v := q.Get("type"); v != "" {
		typ := model.MessageType(v)
		req.Type = &typ
	}
	if v := q.Get("senderId"); v != "" {
		sender := v
		req.SenderID = &sender
	}
	msgs, err := h.svc.List(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}

// GetMessage GET /v0/messages/{messageId}
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.svc.Get(r.Context(), mux.Vars(r)["messageId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, msg)
}

// DeleteMessage DELETE /v0/messages/{messageId}?memberId=
// Only the sender may delete; deleting an unknown or foreign message is a
// no-op reported as deleted=false.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("memberId")
	if err := validate.ID("memberId", memberID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	deleted, err := h.svc.Delete(r.Context(), mux.Vars(r)["messageId"], memberID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// SearchMessages GET /v0/tribes/{tribeId}/messages/search?q=
func (h *MessageHandler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respond.WriteBadRequest(w, "q is required")
		return
	}
	req := model.ListMessagesRequest{
		TribeID: mux.Vars(r)["tribeId"],
		Limit:   intQuery(r, "limit", 50),
		Offset:  intQuery(r, "offset", 0),
	}
	msgs, err := h.svc.Search(r.Context(), req.TribeID, query, req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}

// UnreadCount GET /v0/tribes/{tribeId}/members/{memberId}/unread
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := h.svc.UnreadCount(r.Context(), vars["tribeId"], vars["memberId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"unread": n})
}

// MarkRead POST /v0/tribes/{tribeId}/members/{memberId}/read
// Body {"messageIds": [...]} marks specific messages; {"all": true} marks
// the whole room.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		MessageIDs []string `json:"messageIds"`
		All        bool     `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	var err error
	if req.All {
		err = h.svc.MarkAllRead(r.Context(), vars["tribeId"], vars["memberId"])
	} else {
		err = h.svc.MarkRead(r.Context(), vars["tribeId"], vars["memberId"], req.MessageIDs)
	}
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
