// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/testutil"
)

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)

	maxVotes := 5
	req := models.CreateSessionRequest{
		Title: "Friday Retro",
		Settings: &models.SettingsRequest{
			MaxVotesPerParticipant: &maxVotes,
		},
	}
	w := serve(env.sessions.CreateSession, hostRequest("POST", "/sessions", req))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CreateSessionResponse
	testutil.AssertJSON(t, w, &resp)

	if resp.SessionID == "" || resp.JoinCode == "" {
		t.Fatal("Expected session_id and join_code in response")
	}
	if resp.JoinURL != env.cfg.BaseURL+"/join/"+resp.JoinCode {
		t.Errorf("Unexpected join URL %q", resp.JoinURL)
	}

	s, err := env.machine.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("Failed to load created session: %v", err)
	}
	if s.Status != models.StatusDraft {
		t.Errorf("Expected draft, got %s", s.Status)
	}
	if s.Settings.MaxVotesPerParticipant != 5 {
		t.Errorf("Expected quota 5, got %d", s.Settings.MaxVotesPerParticipant)
	}
	if s.Settings.MaxParticipants != models.DefaultMaxParticipants {
		t.Errorf("Expected default capacity, got %d", s.Settings.MaxParticipants)
	}
}

func TestCreateSession_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing host header",
			req:        testutil.MakeRequest("POST", "/sessions", models.CreateSessionRequest{Title: "t"}, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   codeMissingHost,
		},
		{
			name:       "missing title",
			req:        hostRequest("POST", "/sessions", models.CreateSessionRequest{}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_failed",
		},
		{
			name: "invalid JSON",
			req: func() *http.Request {
				r := httptest.NewRequest("POST", "/sessions", bytes.NewReader([]byte("invalid json")))
				r.Header.Set(HeaderHostID, testutil.TestHostID)
				return r
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(env.sessions.CreateSession, tt.req)
			testutil.AssertStatus(t, w, tt.wantStatus)
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("Expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t)
	settings := testutil.TestSettings(models.AnonymitySemiAnonymous, 10, 3)
	sessionID, _ := env.session(t, models.StatusDraft, settings)

	t.Run("owning host", func(t *testing.T) {
		w := serve(env.sessions.GetSession, hostRequest("GET", "/sessions/"+sessionID, nil), "id", sessionID)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.SessionResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Session.ID != sessionID {
			t.Errorf("Expected session %s, got %s", sessionID, resp.Session.ID)
		}
		if resp.LegacySettings["anonymityLevel"] != models.AnonymitySemiAnonymous {
			t.Errorf("Expected legacy anonymityLevel, got %v", resp.LegacySettings["anonymityLevel"])
		}
	})

	t.Run("other host", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/sessions/"+sessionID, nil, map[string]string{HeaderHostID: "someone-else"})
		w := serve(env.sessions.GetSession, req, "id", sessionID)
		testutil.AssertStatus(t, w, http.StatusForbidden)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := serve(env.sessions.GetSession, hostRequest("GET", "/sessions/nope", nil), "id", "nope")
		testutil.AssertStatus(t, w, http.StatusNotFound)
		if code := errorCode(t, w); code != "session_not_found" {
			t.Errorf("Expected session_not_found, got %q", code)
		}
	})
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)
	settings := models.DefaultSettings()
	env.session(t, models.StatusDraft, settings)
	env.session(t, models.StatusActive, settings)

	w := serve(env.sessions.ListSessions, hostRequest("GET", "/sessions", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Sessions []models.Session `json:"sessions"`
	}
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(resp.Sessions))
	}
}

func TestSessionTransitions(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.session(t, models.StatusDraft, models.DefaultSettings())

	start := func() *httptest.ResponseRecorder {
		return serve(env.sessions.StartSession, hostRequest("POST", "/sessions/"+sessionID+"/start", nil), "id", sessionID)
	}
	end := func() *httptest.ResponseRecorder {
		return serve(env.sessions.EndSession, hostRequest("POST", "/sessions/"+sessionID+"/end", nil), "id", sessionID)
	}

	// Cannot end a draft
	w := end()
	testutil.AssertStatus(t, w, http.StatusConflict)
	if code := errorCode(t, w); code != "invalid_transition" {
		t.Errorf("Expected invalid_transition, got %q", code)
	}

	w = start()
	testutil.AssertStatus(t, w, http.StatusOK)
	var resp models.SessionResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Session.Status != models.StatusActive || resp.Session.StartedAt == nil {
		t.Errorf("Expected active session with started_at, got %+v", resp.Session)
	}

	// Starting twice is refused
	testutil.AssertStatus(t, start(), http.StatusConflict)

	testutil.AssertStatus(t, end(), http.StatusOK)
	testutil.AssertStatus(t, end(), http.StatusConflict)

	got := env.events.Types()
	want := []string{events.SessionStarted, events.SessionEnded}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected events %v, got %v", want, got)
	}
}

func TestEditSession(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.session(t, models.StatusDraft, models.DefaultSettings())

	title := "Renamed"
	level := "semi"
	edit := models.EditSessionRequest{
		Title:    &title,
		Settings: &models.SettingsRequest{AnonymityLevel: &level},
	}

	// "semi" is not a valid wire value; the validator catches it first
	w := serve(env.sessions.EditSession, hostRequest("PATCH", "/sessions/"+sessionID, edit), "id", sessionID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	level = models.AnonymityNonAnonymous
	w = serve(env.sessions.EditSession, hostRequest("PATCH", "/sessions/"+sessionID, edit), "id", sessionID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SessionResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Session.Title != "Renamed" {
		t.Errorf("Expected title Renamed, got %q", resp.Session.Title)
	}
	if resp.Session.Settings.AnonymityLevel != models.AnonymityNonAnonymous {
		t.Errorf("Expected non-anonymous, got %q", resp.Session.Settings.AnonymityLevel)
	}

	// Locked once the session is live
	serve(env.sessions.StartSession, hostRequest("POST", "/sessions/"+sessionID+"/start", nil), "id", sessionID)
	w = serve(env.sessions.EditSession, hostRequest("PATCH", "/sessions/"+sessionID, edit), "id", sessionID)
	testutil.AssertStatus(t, w, http.StatusLocked)
	if code := errorCode(t, w); code != "session_locked" {
		t.Errorf("Expected session_locked, got %q", code)
	}
}

func TestEditSession_LevelLockedAfterDraftJoin(t *testing.T) {
	env := newTestEnv(t)
	sessionID, code := env.session(t, models.StatusDraft, testutil.TestSettings(models.AnonymitySemiAnonymous, 5, 3))
	env.join(t, code, models.JoinRequest{Nickname: "Ace", RealName: "Alice Smith"})

	level := models.AnonymityNonAnonymous
	edit := models.EditSessionRequest{Settings: &models.SettingsRequest{AnonymityLevel: &level}}
	w := serve(env.sessions.EditSession, hostRequest("PATCH", "/sessions/"+sessionID, edit), "id", sessionID)
	testutil.AssertStatus(t, w, http.StatusLocked)
	if code := errorCode(t, w); code != "session_locked" {
		t.Errorf("Expected session_locked, got %q", code)
	}
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.machine.Create(ctx, testutil.TestHostID, "Report", testutil.TestSettings(models.AnonymityAnonymous, 10, 3))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Draft: nothing started yet
	w := serve(env.sessions.GetReport, hostRequest("GET", "/sessions/"+s.ID+"/report", nil), "id", s.ID)
	testutil.AssertStatus(t, w, http.StatusOK)
	var draft models.SessionReport
	testutil.AssertJSON(t, w, &draft)
	if draft.Started != "" || draft.Duration != "" || draft.TopTarget != nil {
		t.Errorf("Expected an empty draft report, got %+v", draft)
	}

	if _, err := env.machine.Start(ctx, s.ID, testutil.TestHostID); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	alice := env.join(t, s.JoinCode, models.JoinRequest{})
	bob := env.join(t, s.JoinCode, models.JoinRequest{})
	if _, err := env.tally.Cast(ctx, s.ID, alice.ParticipantID, models.Target{Kind: models.TargetParticipant, ID: bob.ParticipantID}, ""); err != nil {
		t.Fatalf("Failed to cast: %v", err)
	}
	if _, err := env.machine.End(ctx, s.ID, testutil.TestHostID); err != nil {
		t.Fatalf("Failed to end: %v", err)
	}

	w = serve(env.sessions.GetReport, hostRequest("GET", "/sessions/"+s.ID+"/report", nil), "id", s.ID)
	testutil.AssertStatus(t, w, http.StatusOK)

	var report models.SessionReport
	testutil.AssertJSON(t, w, &report)

	if report.Status != models.StatusEnded {
		t.Errorf("Expected ended, got %s", report.Status)
	}
	if report.Participants != 2 || report.Votes != 1 {
		t.Errorf("Expected 2 participants and 1 vote, got %d and %d", report.Participants, report.Votes)
	}
	if report.Started == "" || report.Ended == "" || report.Duration == "" {
		t.Errorf("Expected humanized times, got %+v", report)
	}
	if report.TopTarget == nil || report.TopTarget.Target.ID != bob.ParticipantID {
		t.Errorf("Expected bob as top target, got %+v", report.TopTarget)
	}
}
