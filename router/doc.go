// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the connected-mate API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, hub)

A nil hub gets a fresh one. The hub is both the publisher the domain
services report to and the source for websocket subscribers.

# Endpoints

Operations:

	GET /health  - Liveness
	GET /metrics - Prometheus metrics

Session management (host, requires X-Host-ID):

	POST   /sessions                        - Create session
	GET    /sessions                        - List own sessions
	GET    /sessions/{id}                   - Session with legacy settings view
	PATCH  /sessions/{id}                   - Edit (draft only)
	POST   /sessions/{id}/start             - Open for voting
	POST   /sessions/{id}/end               - Close
	GET    /sessions/{id}/report            - Humanized summary
	GET    /sessions/{id}/participants      - Roster
	DELETE /sessions/{id}/participants/{pid} - Remove participant

Joining (public, rate limited per client IP):

	POST /join/{code} - Join, returns participant token

Participant (requires X-Participant-ID and X-Participant-Token):

	GET    /sessions/{id}/me            - Own identity and votes
	POST   /sessions/{id}/contributions - Submit contribution
	POST   /sessions/{id}/votes         - Cast vote
	DELETE /sessions/{id}/votes         - Retract vote

Public reads:

	GET /sessions/{id}/contributions - Contributions, oldest first
	GET /sessions/{id}/results       - Ranking
	GET /sessions/{id}/events        - Websocket event stream

# Handler Initialization

The router builds the domain services and hands them to the handlers:

	machine := lifecycle.NewMachine(db, cfg.JoinCodeSalt, hub)
	reg := registry.NewRegistry(db, cfg.TokenSalt, hub)
	t := tally.NewTally(db, hub)

Every route except /health and /metrics is wrapped in
middleware.WithLogging.
*/
package router
