// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/db"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
)

var (
	ErrSessionNotVoting = errors.New("session is not accepting votes")
	ErrQuotaExceeded    = errors.New("vote quota exhausted")
	ErrDuplicateVote    = errors.New("already voted for this target")
	ErrReasonRequired   = errors.New("a reason is required for every vote")
	ErrUnknownTarget    = errors.New("vote target does not exist in this session")
	ErrUnknownVoter     = errors.New("voter is not a participant of this session")
	ErrVoteNotFound     = errors.New("vote not found")
	ErrSessionNotActive = errors.New("session is not accepting contributions")
	ErrEmptyBody        = errors.New("contribution body is empty")
)

// Tally records votes and contributions and ranks vote targets
type Tally struct {
	db  *sql.DB
	pub events.Publisher

	// Clock returns the current time; replaced in tests
	Clock func() time.Time
}

func NewTally(db *sql.DB, pub events.Publisher) *Tally {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Tally{
		db:    db,
		pub:   pub,
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

// Cast records one vote. The insert and the quota check share a
// transaction, so a rejected cast leaves no trace.
func (t *Tally) Cast(ctx context.Context, sessionID, voterID string, target models.Target, reason string) (models.Vote, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := lifecycle.Load(ctx, tx, sessionID)
	if err != nil {
		return models.Vote{}, err
	}
	if s.Status != models.StatusActive {
		return models.Vote{}, ErrSessionNotVoting
	}

	reason = strings.TrimSpace(reason)
	if s.Settings.RequireVoteReason && reason == "" {
		return models.Vote{}, ErrReasonRequired
	}

	if err := checkVoter(ctx, tx, sessionID, voterID); err != nil {
		return models.Vote{}, err
	}
	if err := checkTarget(ctx, tx, sessionID, target); err != nil {
		return models.Vote{}, err
	}

	v := models.Vote{
		ID:        auth.NewID(),
		SessionID: sessionID,
		VoterID:   voterID,
		Target:    target,
		Reason:    reason,
		CreatedAt: t.Clock(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vote (id, session_id, voter_id, target_kind, target_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.SessionID, v.VoterID, v.Target.Kind, v.Target.ID, v.Reason, v.CreatedAt)
	if db.IsUniqueViolation(err) {
		return models.Vote{}, ErrDuplicateVote
	}
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to insert vote: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE participant
		SET votes_cast = votes_cast + 1
		WHERE id = $1 AND session_id = $2 AND votes_cast < $3
			AND EXISTS (SELECT 1 FROM live_session WHERE id = $2 AND status = 'active')
	`, voterID, sessionID, s.Settings.MaxVotesPerParticipant)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to count vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.Vote{}, refusal(ctx, tx, sessionID, ErrQuotaExceeded)
	}

	if err := tx.Commit(); err != nil {
		return models.Vote{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	slog.Info("vote cast", "session_id", sessionID, "target_kind", target.Kind)
	t.pub.Publish(events.Event{Type: events.VoteCast, SessionID: sessionID, Data: target, At: v.CreatedAt})
	return v, nil
}

// Retract deletes a vote and frees its quota slot. It is refused only when
// the session is not active, never on quota grounds.
func (t *Tally) Retract(ctx context.Context, sessionID, voterID string, target models.Target) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM vote
		WHERE session_id = $1 AND voter_id = $2 AND target_kind = $3 AND target_id = $4
			AND EXISTS (SELECT 1 FROM live_session WHERE id = $1 AND status = 'active')
	`, sessionID, voterID, target.Kind, target.ID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return refusal(ctx, tx, sessionID, ErrVoteNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE participant SET votes_cast = votes_cast - 1
		WHERE id = $1 AND votes_cast > 0
	`, voterID)
	if err != nil {
		return fmt.Errorf("failed to refund vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit retraction: %w", err)
	}

	slog.Info("vote retracted", "session_id", sessionID, "target_kind", target.Kind)
	t.pub.Publish(events.Event{Type: events.VoteRetracted, SessionID: sessionID, Data: target, At: t.Clock()})
	return nil
}

// refusal reports ErrSessionNotVoting when the session stopped being active,
// and otherwise the fallback
func refusal(ctx context.Context, q lifecycle.Queryer, sessionID string, fallback error) error {
	s, err := lifecycle.Load(ctx, q, sessionID)
	if err != nil {
		return err
	}
	if s.Status != models.StatusActive {
		return ErrSessionNotVoting
	}
	return fallback
}

func checkVoter(ctx context.Context, q lifecycle.Queryer, sessionID, voterID string) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM participant WHERE id = $1 AND session_id = $2`, voterID, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownVoter
	}
	if err != nil {
		return fmt.Errorf("failed to load voter: %w", err)
	}
	return nil
}

func checkTarget(ctx context.Context, q lifecycle.Queryer, sessionID string, target models.Target) error {
	var query string
	switch target.Kind {
	case models.TargetParticipant:
		query = `SELECT 1 FROM participant WHERE id = $1 AND session_id = $2`
	case models.TargetContribution:
		query = `SELECT 1 FROM contribution WHERE id = $1 AND session_id = $2`
	default:
		return fmt.Errorf("%w: kind %q", ErrUnknownTarget, target.Kind)
	}

	var one int
	err := q.QueryRowContext(ctx, query, target.ID, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownTarget
	}
	if err != nil {
		return fmt.Errorf("failed to load vote target: %w", err)
	}
	return nil
}

// VotesBy lists the votes a participant currently has outstanding
func (t *Tally) VotesBy(ctx context.Context, sessionID, voterID string) ([]models.Vote, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, session_id, voter_id, target_kind, target_id, reason, created_at
		FROM vote
		WHERE session_id = $1 AND voter_id = $2
		ORDER BY created_at, id
	`, sessionID, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.SessionID, &v.VoterID, &v.Target.Kind, &v.Target.ID, &v.Reason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
