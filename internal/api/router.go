package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tribeapp/tribe-server/internal/api/recovery"
	"github.com/tribeapp/tribe-server/internal/chat"
	"github.com/tribeapp/tribe-server/internal/engage"
	"github.com/tribeapp/tribe-server/internal/lifecycle"
	"github.com/tribeapp/tribe-server/internal/realtime"
	"github.com/tribeapp/tribe-server/internal/tribe"
)

// Deps carries the services the router wires handlers onto.
type Deps struct {
	Tribes      *tribe.Service
	Chat        *chat.Service
	Engage      *engage.Service
	Engine      *lifecycle.Engine
	Coordinator *realtime.Coordinator
	IsHealthy   func() bool
	Components  func() map[string]bool
	// WSAllowedOrigins lists frontend origins admitted to the websocket
	// handshake; empty admits any origin.
	WSAllowedOrigins []string
	Log              zerolog.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler(d.IsHealthy, d.Components)
	tribeHandler := NewTribeHandler(d.Tribes, d.Engine)
	messageHandler := NewMessageHandler(d.Chat)
	engageHandler := NewEngageHandler(d.Engage)
	wsHandler := NewWSHandler(d.Coordinator, d.Chat, d.WSAllowedOrigins, d.Log)

	// Health
	router.HandleFunc("/v0/health", healthHandler.CheckHealth).Methods("GET")

	// Tribes and memberships
	router.HandleFunc("/v0/tribes", tribeHandler.CreateTribe).Methods("POST")
	router.HandleFunc("/v0/tribes/{tribeId}", tribeHandler.GetTribe).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/members", tribeHandler.JoinTribe).Methods("POST")
	router.HandleFunc("/v0/tribes/{tribeId}/members", tribeHandler.ListMembers).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/members/{memberId}", tribeHandler.LeaveTribe).Methods("DELETE")
	router.HandleFunc("/v0/tribes/{tribeId}/activity", tribeHandler.ListActivity).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/evaluate", tribeHandler.EvaluateTribe).Methods("POST")

	// Real-time room
	router.HandleFunc("/v0/tribes/{tribeId}/ws", wsHandler.ServeWS).Methods("GET")

	// Messages
	router.HandleFunc("/v0/tribes/{tribeId}/messages", messageHandler.SendMessage).Methods("POST")
	router.HandleFunc("/v0/tribes/{tribeId}/messages", messageHandler.ListMessages).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/messages/search", messageHandler.SearchMessages).Methods("GET")
	router.HandleFunc("/v0/messages/{messageId}", messageHandler.GetMessage).Methods("GET")
	router.HandleFunc("/v0/messages/{messageId}", messageHandler.DeleteMessage).Methods("DELETE")

	// Read state
	router.HandleFunc("/v0/tribes/{tribeId}/members/{memberId}/unread", messageHandler.UnreadCount).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/members/{memberId}/read", messageHandler.MarkRead).Methods("POST")

	// Engagement
	router.HandleFunc("/v0/tribes/{tribeId}/engagements/recommend", engageHandler.Recommend).Methods("GET")
	router.HandleFunc("/v0/tribes/{tribeId}/engagements", engageHandler.CreateEngagement).Methods("POST")
	router.HandleFunc("/v0/engagements/{engagementId}/responses", engageHandler.RecordResponse).Methods("POST")

	return router
}
