// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package events

import (
	"sync"
	"time"
)

// Event types
const (
	SessionStarted      = "session.started"
	SessionEnded        = "session.ended"
	SessionUpdated      = "session.updated"
	ParticipantJoined   = "participant.joined"
	ParticipantRemoved  = "participant.removed"
	ContributionCreated = "contribution.created"
	VoteCast            = "vote.cast"
	VoteRetracted       = "vote.retracted"
)

// Event is a UI refresh hint. Consumers re-read the store for the truth.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events on a best-effort basis. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(Event) {}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
