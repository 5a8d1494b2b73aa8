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

type VoteHandler struct {
	machine  *lifecycle.Machine
	registry *registry.Registry
	tally    *tally.Tally
}

func NewVoteHandler(machine *lifecycle.Machine, reg *registry.Registry, t *tally.Tally) *VoteHandler {
	return &VoteHandler{machine: machine, registry: reg, tally: t}
}

// CastVote handles POST /sessions/{id}/votes
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParticipant(w, r, h.registry)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	v, err := h.tally.Cast(r.Context(), p.SessionID, p.ID, req.Target, req.Reason)
	metrics.RecordVote("cast", outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CastVoteResponse{VoteID: v.ID})
}

// RetractVote handles DELETE /sessions/{id}/votes
func (h *VoteHandler) RetractVote(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParticipant(w, r, h.registry)
	if !ok {
		return
	}

	var target models.Target
	if err := middleware.DecodeAndValidate(w, r, &target); err != nil {
		writeError(w, err)
		return
	}

	err := h.tally.Retract(r.Context(), p.SessionID, p.ID, target)
	metrics.RecordVote("retract", outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetResults handles GET /sessions/{id}/results
func (h *VoteHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.machine.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	rankings, err := h.tally.Rank(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		SessionID: s.ID,
		Status:    s.Status,
		Rankings:  rankings,
	})
}

// SubmitContribution handles POST /sessions/{id}/contributions
func (h *VoteHandler) SubmitContribution(w http.ResponseWriter, r *http.Request) {
	p, ok := requireParticipant(w, r, h.registry)
	if !ok {
		return
	}

	var req models.SubmitContributionRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.tally.Submit(r.Context(), p.SessionID, p.ID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, c)
}

// ListContributions handles GET /sessions/{id}/contributions
func (h *VoteHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.machine.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	contributions, err := h.tally.Contributions(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"session_id":    s.ID,
		"contributions": contributions,
	})
}
