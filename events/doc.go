// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package events is the advisory realtime channel for host dashboards.

Components publish after a successful write:

	pub.Publish(events.Event{Type: events.SessionStarted, SessionID: id})

Events are hints to refresh. Delivery is best-effort and never the source
of truth; subscribers read the database for current state.

# Hub

Hub keeps per-session subscriber sets and serves them over websockets:

	GET /sessions/{id}/events → hub.ServeWS(w, r, id)

Publish never blocks: a subscriber whose buffer is full is dropped and its
connection closed.

# Other Publishers

  - Nop: discards everything
  - Recorder: keeps events in memory, used by tests
*/
package events
