// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the connected-mate API.

# Handler Types

Each handler is a struct over the domain services it needs:

  - SessionHandler: Session lifecycle (create, edit, start, end, report)
  - ParticipantHandler: Joining, self lookup, roster and removal
  - VoteHandler: Contributions, votes and results
  - EventHandler: Websocket subscription to a session's events

Handlers are created via constructor functions:

	sessionHandler := handlers.NewSessionHandler(machine, tally, cfg)

# Session Lifecycle

Sessions progress through three states: draft → active → ended

	POST  /sessions            → CreateSession (returns join_code and join_url)
	PATCH /sessions/{id}       → EditSession (draft only, 423 afterwards)
	POST  /sessions/{id}/start → StartSession
	POST  /sessions/{id}/end   → EndSession

Host operations require the X-Host-ID header, which the identity proxy in
front of the service sets for signed-in hosts.

# Participant Flow

Participants join through the session's code:

	POST /join/{code} → Join (returns participant_id and token)

The token is shown once. Participant operations send both the
X-Participant-ID and X-Participant-Token headers.

# Errors

Domain errors map to a status and a stable code in the JSON body:

	{"error": "Conflict", "code": "quota_exceeded", "message": "vote quota exhausted"}

Clients branch on code, never on message. Unknown errors are logged and
returned as a generic 500 with code internal_error.
*/
package handlers
