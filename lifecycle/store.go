// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danielhkuo/connected-mate/models"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx
type Queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionColumns = `id, title, host_id, status, join_code,
	anonymity_level, max_participants, max_votes_per_participant,
	require_vote_reason, default_color, default_emoji,
	participant_count, created_at, started_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID, &s.Title, &s.HostID, &s.Status, &s.JoinCode,
		&s.Settings.AnonymityLevel, &s.Settings.MaxParticipants, &s.Settings.MaxVotesPerParticipant,
		&s.Settings.RequireVoteReason, &s.Settings.DefaultColor, &s.Settings.DefaultEmoji,
		&s.ParticipantCount, &s.CreatedAt, &s.StartedAt, &s.EndedAt,
	)
	return s, err
}

// Load reads a session fresh from the store. Status gating always goes
// through here or through a guarded update, never through a cached copy.
func Load(ctx context.Context, q Queryer, sessionID string) (models.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM live_session WHERE id = $1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return s, nil
}

// LoadByCode resolves a join code to its session
func LoadByCode(ctx context.Context, q Queryer, code string) (models.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM live_session WHERE join_code = $1`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session by code: %w", err)
	}
	return s, nil
}
