// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/metrics"
	"github.com/danielhkuo/connected-mate/middleware"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/registry"
	"github.com/danielhkuo/connected-mate/tally"
)

type ParticipantHandler struct {
	machine  *lifecycle.Machine
	registry *registry.Registry
	tally    *tally.Tally
}

func NewParticipantHandler(machine *lifecycle.Machine, reg *registry.Registry, t *tally.Tally) *ParticipantHandler {
	return &ParticipantHandler{machine: machine, registry: reg, tally: t}
}

// Join handles POST /join/{code}
func (h *ParticipantHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.registry.JoinByCode(r.Context(), r.PathValue("code"), req)
	metrics.RecordJoin(outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.JoinResponse{
		SessionID:     res.Participant.SessionID,
		ParticipantID: res.Participant.ID,
		Token:         res.Token,
		Identity:      res.Identity,
	})
}

// Me handles GET /sessions/{id}/me
func (h *ParticipantHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParticipant(w, r, h.registry)
	if !ok {
		return
	}

	ctx := r.Context()
	s, err := h.machine.Get(ctx, p.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := h.registry.Identity(ctx, p)
	if err != nil {
		writeError(w, err)
		return
	}
	votes, err := h.tally.VotesBy(ctx, p.SessionID, p.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	remaining := s.Settings.MaxVotesPerParticipant - len(votes)
	if remaining < 0 {
		remaining = 0
	}
	p.VotesCast = len(votes)

	middleware.JSONResponse(w, http.StatusOK, models.MeResponse{
		Participant:    p,
		Identity:       id,
		Votes:          votes,
		VotesRemaining: remaining,
	})
}

// ListParticipants handles GET /sessions/{id}/participants
func (h *ParticipantHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	s, err := h.machine.GetForHost(ctx, r.PathValue("id"), hostID)
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := h.registry.List(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"session_id":   s.ID,
		"participants": views,
		"count":        len(views),
		"capacity":     s.Settings.MaxParticipants,
	})
}

// RemoveParticipant handles DELETE /sessions/{id}/participants/{pid}
func (h *ParticipantHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	err := h.registry.Remove(r.Context(), r.PathValue("id"), hostID, r.PathValue("pid"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
