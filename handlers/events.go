// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/metrics"
)

type EventHandler struct {
	machine *lifecycle.Machine
	hub     *events.Hub
}

func NewEventHandler(machine *lifecycle.Machine, hub *events.Hub) *EventHandler {
	return &EventHandler{machine: machine, hub: hub}
}

// Subscribe handles GET /sessions/{id}/events
func (h *EventHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	s, err := h.machine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.SubscriberOpened()
	defer metrics.SubscriberClosed()

	h.hub.ServeWS(w, r, s.ID)
}
