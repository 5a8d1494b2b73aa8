// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/connected-mate/cliparse"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/metrics"
	"github.com/danielhkuo/connected-mate/middleware"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/tally"
)

type SessionHandler struct {
	machine *lifecycle.Machine
	tally   *tally.Tally
	cfg     cliparse.Config
}

func NewSessionHandler(machine *lifecycle.Machine, t *tally.Tally, cfg cliparse.Config) *SessionHandler {
	return &SessionHandler{machine: machine, tally: t, cfg: cfg}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	settings := lifecycle.MergeSettings(models.DefaultSettings(), req.Settings)
	s, err := h.machine.Create(r.Context(), hostID, req.Title, settings)
	metrics.RecordTransition("create", outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID: s.ID,
		JoinCode:  s.JoinCode,
		JoinURL:   h.cfg.BaseURL + "/join/" + s.JoinCode,
	})
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	sessions, err := h.machine.ListForHost(r.Context(), hostID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// GetSession handles GET /sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	s, err := h.machine.GetForHost(r.Context(), r.PathValue("id"), hostID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, sessionResponse(s))
}

// EditSession handles PATCH /sessions/{id}
func (h *SessionHandler) EditSession(w http.ResponseWriter, r *http.Request) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	var req models.EditSessionRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	s, err := h.machine.Edit(r.Context(), r.PathValue("id"), hostID, req)
	metrics.RecordTransition("edit", outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, sessionResponse(s))
}

// StartSession handles POST /sessions/{id}/start
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", h.machine.Start)
}

// EndSession handles POST /sessions/{id}/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "end", h.machine.End)
}

type transitionFunc func(ctx context.Context, sessionID, hostID string) (models.Session, error)

func (h *SessionHandler) transition(w http.ResponseWriter, r *http.Request, name string, fn transitionFunc) {
	hostID, ok := requireHost(w, r)
	if !ok {
		return
	}

	s, err := fn(r.Context(), r.PathValue("id"), hostID)
	metrics.RecordTransition(name, outcome(err))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, sessionResponse(s))
}

// GetReport handles GET /sessions/{id}/report
func (h *SessionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.tally.Summarize(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	rankings, err := h.tally.Rank(ctx, s.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.machine.Clock()
	report := models.SessionReport{
		SessionID:     s.ID,
		Title:         s.Title,
		Status:        s.Status,
		Participants:  s.ParticipantCount,
		Contributions: stats.Contributions,
		Votes:         stats.Votes,
		Created:       humanize.RelTime(s.CreatedAt, now, "ago", "from now"),
	}
	if s.StartedAt != nil {
		report.Started = humanize.RelTime(*s.StartedAt, now, "ago", "from now")

		end := now
		if s.EndedAt != nil {
			end = *s.EndedAt
			report.Ended = humanize.RelTime(end, now, "ago", "from now")
		}
		report.Duration = strings.TrimSpace(humanize.RelTime(*s.StartedAt, end, "", ""))
	}
	if len(rankings) > 0 {
		report.TopTarget = &rankings[0]
	}

	slog.Debug("session report built", "session_id", s.ID, "votes", stats.Votes)
	middleware.JSONResponse(w, http.StatusOK, report)
}

func sessionResponse(s models.Session) models.SessionResponse {
	return models.SessionResponse{
		Session:        s,
		LegacySettings: s.Settings.LegacyView(),
	}
}
