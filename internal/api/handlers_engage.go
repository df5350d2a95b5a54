package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tribeapp/tribe-server/internal/api/respond"
	"github.com/tribeapp/tribe-server/internal/engage"
)

// EngageHandler exposes the recommender and prompt creation.
type EngageHandler struct {
	svc *engage.Service
}

func NewEngageHandler(svc *engage.Service) *EngageHandler { return &EngageHandler{svc: svc} }

// Recommend GET /v0/tribes/{tribeId}/engagements/recommend
func (h *EngageHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Recommend(r.Context(), mux.Vars(r)["tribeId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

// CreateEngagement POST /v0/tribes/{tribeId}/engagements
func (h *EngageHandler) CreateEngagement(w http.ResponseWriter, r *http.Request) {
	record, msg, err := h.svc.CreateEngagement(r.Context(), mux.Vars(r)["tribeId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"engagement": record,
		"message":    msg,
	})
}

// RecordResponse POST /v0/engagements/{engagementId}/responses
func (h *EngageHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RecordResponse(r.Context(), mux.Vars(r)["engagementId"]); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
