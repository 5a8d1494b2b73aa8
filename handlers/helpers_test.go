// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/connected-mate/cliparse"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/registry"
	"github.com/danielhkuo/connected-mate/tally"
	"github.com/danielhkuo/connected-mate/testutil"
)

// testEnv wires every handler against one in-memory database
type testEnv struct {
	db  *sql.DB
	cfg cliparse.Config

	events   *events.Recorder
	machine  *lifecycle.Machine
	registry *registry.Registry
	tally    *tally.Tally

	sessions     *SessionHandler
	participants *ParticipantHandler
	votes        *VoteHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     testutil.SetupTestDB(t),
		cfg:    testutil.GetTestConfig(),
		events: &events.Recorder{},
	}

	clock := testutil.NewFakeClock()
	env.machine = lifecycle.NewMachine(env.db, env.cfg.JoinCodeSalt, env.events)
	env.machine.Clock = clock.Now
	env.registry = registry.NewRegistry(env.db, env.cfg.TokenSalt, env.events)
	env.registry.Clock = clock.Now
	env.tally = tally.NewTally(env.db, env.events)
	env.tally.Clock = clock.Now

	env.sessions = NewSessionHandler(env.machine, env.tally, env.cfg)
	env.participants = NewParticipantHandler(env.machine, env.registry, env.tally)
	env.votes = NewVoteHandler(env.machine, env.registry, env.tally)
	return env
}

// session inserts a session owned by testutil.TestHostID
func (env *testEnv) session(t *testing.T, status string, settings models.SessionSettings) (sessionID, joinCode string) {
	t.Helper()
	return testutil.CreateTestSession(t, env.db, env.cfg, status, settings)
}

// join admits a participant through the handler and returns the response
func (env *testEnv) join(t *testing.T, joinCode string, req models.JoinRequest) models.JoinResponse {
	t.Helper()

	w := serve(env.participants.Join, testutil.MakeRequest("POST", "/join/"+joinCode, req, nil), "code", joinCode)
	if w.Code != http.StatusCreated {
		t.Fatalf("Join failed: %d - %s", w.Code, w.Body.String())
	}

	var resp models.JoinResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

// serve runs h with the given path values set, as the mux would
func serve(h http.HandlerFunc, req *http.Request, pathValues ...string) *httptest.ResponseRecorder {
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// hostRequest builds a request carrying the test host's identity
func hostRequest(method, path string, body interface{}) *http.Request {
	return testutil.MakeRequest(method, path, body, map[string]string{
		HeaderHostID: testutil.TestHostID,
	})
}

// participantRequest builds a request carrying a participant's credentials
func participantRequest(method, path string, body interface{}, participantID, token string) *http.Request {
	return testutil.MakeRequest(method, path, body, map[string]string{
		HeaderParticipantID:    participantID,
		HeaderParticipantToken: token,
	})
}

// errorCode decodes an error response and returns its code
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error response: %v (body %q)", err, w.Body.String())
	}
	return resp.Code
}
