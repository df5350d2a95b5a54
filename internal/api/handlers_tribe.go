package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tribeapp/tribe-server/internal/api/respond"
	"github.com/tribeapp/tribe-server/internal/api/validate"
	"github.com/tribeapp/tribe-server/internal/lifecycle"
	"github.com/tribeapp/tribe-server/internal/tribe"
)

// TribeHandler is a thin HTTP transport over the tribe service and the
// lifecycle engine.
type TribeHandler struct {
	svc    *tribe.Service
	engine *lifecycle.Engine
}

func NewTribeHandler(svc *tribe.Service, engine *lifecycle.Engine) *TribeHandler {
	return &TribeHandler{svc: svc, engine: engine}
}

// CreateTribe POST /v0/tribes
func (h *TribeHandler) CreateTribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		CreatorID  string `json:"creatorId"`
		Private    bool   `json:"private"`
		MinMembers int    `json:"minMembers"`
		MaxMembers int    `json:"maxMembers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.TribeName(req.Name); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.ID("creatorId", req.CreatorID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	out, err := h.svc.Create(r.Context(), req.Name, req.CreatorID, req.Private, req.MinMembers, req.MaxMembers)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetTribe GET /v0/tribes/{tribeId}
func (h *TribeHandler) GetTribe(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), mux.Vars(r)["tribeId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

// JoinTribe POST /v0/tribes/{tribeId}/members
func (h *TribeHandler) JoinTribe(w http.ResponseWriter, r *http.Request) {
	tribeID := mux.Vars(r)["tribeId"]
	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.ID("memberId", req.MemberID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	m, err := h.svc.Join(r.Context(), tribeID, req.MemberID)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, m)
}

// LeaveTribe DELETE /v0/tribes/{tribeId}/members/{memberId}
func (h *TribeHandler) LeaveTribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.Leave(r.Context(), vars["tribeId"], vars["memberId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers GET /v0/tribes/{tribeId}/members
func (h *TribeHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Members(r.Context(), mux.Vars(r)["tribeId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"members": members, "count": len(members)})
}

// ListActivity GET /v0/tribes/{tribeId}/activity
func (h *TribeHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	items, err := h.svc.RecentActivity(r.Context(), mux.Vars(r)["tribeId"], limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"activity": items, "count": len(items)})
}

// EvaluateTribe POST /v0/tribes/{tribeId}/evaluate
// Runs the lifecycle table against the tribe now instead of waiting for the
// next sweep. Returns the transition applied, or null when none fired.
func (h *TribeHandler) EvaluateTribe(w http.ResponseWriter, r *http.Request) {
	tr, err := h.engine.EvaluateTribe(r.Context(), mux.Vars(r)["tribeId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"transition": tr})
}
