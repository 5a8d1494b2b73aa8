// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/connected-mate/cliparse"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/handlers"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/metrics"
	"github.com/danielhkuo/connected-mate/middleware"
	"github.com/danielhkuo/connected-mate/registry"
	"github.com/danielhkuo/connected-mate/tally"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, hub *events.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	if hub == nil {
		hub = events.NewHub()
	}

	// Domain services share the hub as their event publisher
	machine := lifecycle.NewMachine(db, cfg.JoinCodeSalt, hub)
	reg := registry.NewRegistry(db, cfg.TokenSalt, hub)
	t := tally.NewTally(db, hub)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(machine, t, cfg)
	participantHandler := handlers.NewParticipantHandler(machine, reg, t)
	voteHandler := handlers.NewVoteHandler(machine, reg, t)
	eventHandler := handlers.NewEventHandler(machine, hub)

	joinLimiter := middleware.NewRateLimiter(cfg.JoinRatePerMinute, cfg.JoinBurst, cfg.RateLimitSalt)
	joinLimiter.TrustProxy = cfg.TrustProxy

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Session management (host operations)
	mux.HandleFunc("POST /sessions", middleware.WithLogging(sessionHandler.CreateSession))
	mux.HandleFunc("GET /sessions", middleware.WithLogging(sessionHandler.ListSessions))
	mux.HandleFunc("GET /sessions/{id}", middleware.WithLogging(sessionHandler.GetSession))
	mux.HandleFunc("PATCH /sessions/{id}", middleware.WithLogging(sessionHandler.EditSession))
	mux.HandleFunc("POST /sessions/{id}/start", middleware.WithLogging(sessionHandler.StartSession))
	mux.HandleFunc("POST /sessions/{id}/end", middleware.WithLogging(sessionHandler.EndSession))
	mux.HandleFunc("GET /sessions/{id}/report", middleware.WithLogging(sessionHandler.GetReport))
	mux.HandleFunc("GET /sessions/{id}/participants", middleware.WithLogging(participantHandler.ListParticipants))
	mux.HandleFunc("DELETE /sessions/{id}/participants/{pid}", middleware.WithLogging(participantHandler.RemoveParticipant))

	// Joining (public, rate limited per client)
	mux.HandleFunc("POST /join/{code}", middleware.WithLogging(joinLimiter.Limit(participantHandler.Join)))

	// Participant operations
	mux.HandleFunc("GET /sessions/{id}/me", middleware.WithLogging(participantHandler.Me))
	mux.HandleFunc("POST /sessions/{id}/contributions", middleware.WithLogging(voteHandler.SubmitContribution))
	mux.HandleFunc("POST /sessions/{id}/votes", middleware.WithLogging(voteHandler.CastVote))
	mux.HandleFunc("DELETE /sessions/{id}/votes", middleware.WithLogging(voteHandler.RetractVote))

	// Public reads
	mux.HandleFunc("GET /sessions/{id}/contributions", middleware.WithLogging(voteHandler.ListContributions))
	mux.HandleFunc("GET /sessions/{id}/results", middleware.WithLogging(voteHandler.GetResults))
	mux.HandleFunc("GET /sessions/{id}/events", middleware.WithLogging(eventHandler.Subscribe))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("connected-mate API v1"))
	})

	return mux
}
