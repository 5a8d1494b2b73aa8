// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/cliparse"
	"github.com/danielhkuo/connected-mate/db"
	"github.com/danielhkuo/connected-mate/models"
)

// TestHostID is the host identifier used by fixtures
const TestHostID = "host-test-1"

// SetupTestDB opens a private in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	conn, err := db.Open(ctx, db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// PostgresURLEnv names the variable holding a Postgres URL for the tests
// that need real row locking. Those tests skip when it is unset.
const PostgresURLEnv = "TEST_POSTGRES_URL"

// SetupPostgresDB creates a throwaway schema in the database named by
// TEST_POSTGRES_URL, points a fresh pool at it and drops it on cleanup.
// The URL must be in postgres:// form.
func SetupPostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	raw := os.Getenv(PostgresURLEnv)
	if raw == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	ctx := context.Background()
	admin, err := db.Open(ctx, db.TypePostgres, raw)
	if err != nil {
		t.Fatalf("Failed to open postgres: %v", err)
	}

	suffix, err := auth.GenerateID(6)
	if err != nil {
		t.Fatalf("Failed to generate schema name: %v", err)
	}
	schema := "mate_test_" + suffix
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("Failed to create schema %s: %v", schema, err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Invalid %s: %v", PostgresURLEnv, err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	conn, err := db.Open(ctx, db.TypePostgres, u.String())
	if err != nil {
		t.Fatalf("Failed to open postgres schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		conn.Close()
		if _, err := admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("Failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return conn
}

// ForEachBackend runs fn against SQLite and, when TEST_POSTGRES_URL is set,
// against Postgres. SQLite runs on a single connection, so only the Postgres
// run has concurrent transactions contend for row locks.
func ForEachBackend(t *testing.T, fn func(t *testing.T, conn *sql.DB)) {
	t.Run(db.TypeSQLite, func(t *testing.T) { fn(t, SetupTestDB(t)) })
	t.Run(db.TypePostgres, func(t *testing.T) { fn(t, SetupPostgresDB(t)) })
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              3318,
		DatabaseURL:       ":memory:",
		DatabaseType:      db.TypeSQLite,
		TokenSalt:         "test-token-salt",
		JoinCodeSalt:      "test-code-salt",
		RateLimitSalt:     "test-rate-limit-salt",
		BaseURL:           "https://mate.test",
		LogLevel:          "error",
		LogFormat:         "text",
		JoinRatePerMinute: 6000,
		JoinBurst:         1000,
	}
}

// FakeClock hands out strictly increasing times so ordering by timestamp
// is deterministic in tests
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewFakeClock() *FakeClock {
	return &FakeClock{
		now:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		step: time.Second,
	}
}

// Now returns the current fake time, then advances it by one step
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// TestSettings returns default settings with the given capacity and quota
func TestSettings(level string, maxParticipants, maxVotes int) models.SessionSettings {
	s := models.DefaultSettings()
	s.AnonymityLevel = level
	s.MaxParticipants = maxParticipants
	s.MaxVotesPerParticipant = maxVotes
	return s
}

// CreateTestSession inserts a session directly and returns its ID and join code
// status should be "draft", "active", or "ended"
func CreateTestSession(t *testing.T, conn *sql.DB, cfg cliparse.Config, status string, settings models.SessionSettings) (sessionID, joinCode string) {
	t.Helper()

	sessionID = auth.NewID()
	joinCode = auth.GenerateJoinCode(sessionID, cfg.JoinCodeSalt)
	now := time.Now().UTC()

	var startedAt, endedAt *time.Time
	if status == models.StatusActive || status == models.StatusEnded {
		startedAt = &now
	}
	if status == models.StatusEnded {
		endedAt = &now
	}

	_, err := conn.Exec(`
		INSERT INTO live_session (id, title, host_id, status, join_code,
			anonymity_level, max_participants, max_votes_per_participant,
			require_vote_reason, default_color, default_emoji,
			participant_count, created_at, started_at, ended_at)
		VALUES ($1, 'Test Session', $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13)
	`, sessionID, TestHostID, status, joinCode,
		settings.AnonymityLevel, settings.MaxParticipants, settings.MaxVotesPerParticipant,
		settings.RequireVoteReason, settings.DefaultColor, settings.DefaultEmoji,
		now, startedAt, endedAt)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return sessionID, joinCode
}

// AddTestParticipant inserts a participant, bumps the session's count, and
// returns the participant ID and bearer token
func AddTestParticipant(t *testing.T, conn *sql.DB, cfg cliparse.Config, sessionID, realName, nickname string, joinedAt time.Time) (participantID, token string) {
	t.Helper()

	participantID = auth.NewID()
	token, _ = auth.GenerateParticipantToken()
	anonID, _ := auth.GenerateID(8)

	_, err := conn.Exec(`
		INSERT INTO participant (id, session_id, real_name, nickname, anonymous_id,
			token_hash, joined_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, participantID, sessionID, realName, nickname, "Participant-"+anonID,
		auth.HashToken(token, cfg.TokenSalt), joinedAt, joinedAt)
	if err != nil {
		t.Fatalf("Failed to create test participant: %v", err)
	}

	_, err = conn.Exec(`UPDATE live_session SET participant_count = participant_count + 1 WHERE id = $1`, sessionID)
	if err != nil {
		t.Fatalf("Failed to bump participant count: %v", err)
	}

	return participantID, token
}

// AddTestContribution inserts a contribution and returns its ID
func AddTestContribution(t *testing.T, conn *sql.DB, sessionID, participantID, body string, createdAt time.Time) string {
	t.Helper()

	id := auth.NewID()
	_, err := conn.Exec(`
		INSERT INTO contribution (id, session_id, participant_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, sessionID, participantID, body, createdAt)
	if err != nil {
		t.Fatalf("Failed to create test contribution: %v", err)
	}

	return id
}

// SessionStatus reads the stored status of a session
func SessionStatus(t *testing.T, conn *sql.DB, sessionID string) string {
	t.Helper()

	var status string
	if err := conn.QueryRow(`SELECT status FROM live_session WHERE id = $1`, sessionID).Scan(&status); err != nil {
		t.Fatalf("Failed to read session status: %v", err)
	}
	return status
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
