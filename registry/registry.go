// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/identity"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
)

var (
	ErrSessionNotJoinable  = errors.New("session is not accepting participants")
	ErrSessionFull         = errors.New("session is full")
	ErrCapacityExceeded    = fmt.Errorf("%w: participant capacity reached", ErrSessionFull)
	ErrParticipantNotFound = errors.New("participant not found")
)

// dummyHash is compared against when a participant does not exist, so an
// unknown ID costs the same as a wrong token
var dummyHash = auth.HashToken("", "connected-mate")

// JoinResult is what a new participant gets back. Token is shown once.
type JoinResult struct {
	Participant models.Participant
	Token       string
	Identity    models.Identity
}

// Registry admits participants into sessions and authenticates them
type Registry struct {
	db        *sql.DB
	tokenSalt string
	pub       events.Publisher

	// Clock returns the current time; replaced in tests
	Clock func() time.Time
}

func NewRegistry(db *sql.DB, tokenSalt string, pub events.Publisher) *Registry {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Registry{
		db:        db,
		tokenSalt: tokenSalt,
		pub:       pub,
		Clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Join admits a participant into the session with the given ID
func (r *Registry) Join(ctx context.Context, sessionID string, req models.JoinRequest) (JoinResult, error) {
	return r.join(ctx, req, func(q lifecycle.Queryer) (models.Session, error) {
		return lifecycle.Load(ctx, q, sessionID)
	})
}

// JoinByCode admits a participant through a session's join code
func (r *Registry) JoinByCode(ctx context.Context, code string, req models.JoinRequest) (JoinResult, error) {
	return r.join(ctx, req, func(q lifecycle.Queryer) (models.Session, error) {
		return lifecycle.LoadByCode(ctx, q, strings.TrimSpace(code))
	})
}

func (r *Registry) join(ctx context.Context, req models.JoinRequest, load func(lifecycle.Queryer) (models.Session, error)) (JoinResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := load(tx)
	if errors.Is(err, lifecycle.ErrSessionNotFound) {
		return JoinResult{}, ErrSessionNotJoinable
	}
	if err != nil {
		return JoinResult{}, err
	}
	if s.Status == models.StatusEnded {
		return JoinResult{}, ErrSessionNotJoinable
	}

	p := models.Participant{
		ID:        auth.NewID(),
		SessionID: s.ID,
		RealName:  strings.TrimSpace(req.RealName),
		Nickname:  strings.TrimSpace(req.Nickname),
		Emoji:     strings.TrimSpace(req.Emoji),
		Color:     strings.TrimSpace(req.Color),
	}
	p.AnonymousID, err = identity.NewAnonymousID(p.RealName, p.Nickname)
	if err != nil {
		return JoinResult{}, err
	}

	// Reject before taking a slot
	ident, err := identity.Resolve(s.Settings.AnonymityLevel, identity.DefaultsFrom(s.Settings), p)
	if err != nil {
		return JoinResult{}, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE live_session
		SET participant_count = participant_count + 1
		WHERE id = $1
			AND status IN ('draft', 'active')
			AND participant_count < max_participants
	`, s.ID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to reserve participant slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return JoinResult{}, classifyRefusal(ctx, tx, s.ID)
	}

	token, err := auth.GenerateParticipantToken()
	if err != nil {
		return JoinResult{}, err
	}
	p.TokenHash = auth.HashToken(token, r.tokenSalt)
	p.JoinedAt = r.Clock()
	p.LastActiveAt = p.JoinedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO participant (id, session_id, real_name, nickname, emoji, color,
			anonymous_id, token_hash, votes_cast, joined_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
	`, p.ID, p.SessionID, p.RealName, p.Nickname, p.Emoji, p.Color,
		p.AnonymousID, p.TokenHash, p.JoinedAt, p.LastActiveAt)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return JoinResult{}, fmt.Errorf("failed to commit join: %w", err)
	}

	slog.Info("participant joined", "session_id", s.ID, "participant_id", p.ID)
	r.pub.Publish(events.Event{
		Type:      events.ParticipantJoined,
		SessionID: s.ID,
		Data:      models.ParticipantView{ID: p.ID, Identity: ident, JoinedAt: p.JoinedAt},
		At:        p.JoinedAt,
	})

	return JoinResult{Participant: p, Token: token, Identity: ident}, nil
}

// classifyRefusal explains why the guarded slot update matched nothing
func classifyRefusal(ctx context.Context, tx *sql.Tx, sessionID string) error {
	s, err := lifecycle.Load(ctx, tx, sessionID)
	if errors.Is(err, lifecycle.ErrSessionNotFound) {
		return ErrSessionNotJoinable
	}
	if err != nil {
		return err
	}

	switch {
	case s.Status == models.StatusEnded:
		return ErrSessionNotJoinable
	case s.ParticipantCount == s.Settings.MaxParticipants:
		return ErrCapacityExceeded
	case s.ParticipantCount > s.Settings.MaxParticipants:
		// Capacity was lowered in draft below the number already joined
		return ErrSessionFull
	default:
		return fmt.Errorf("%w: session is %s", ErrSessionNotJoinable, s.Status)
	}
}

const participantColumns = `id, session_id, real_name, nickname, emoji, color,
	anonymous_id, token_hash, votes_cast, joined_at, last_active_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.SessionID, &p.RealName, &p.Nickname, &p.Emoji, &p.Color,
		&p.AnonymousID, &p.TokenHash, &p.VotesCast, &p.JoinedAt, &p.LastActiveAt)
	return p, err
}

// Lookup authenticates a participant by ID and bearer token. Every failure
// looks the same to the caller: ErrInvalidToken.
func (r *Registry) Lookup(ctx context.Context, participantID, token string) (models.Participant, error) {
	p, err := scanParticipant(r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participant WHERE id = $1`, participantID))
	if errors.Is(err, sql.ErrNoRows) {
		_ = auth.ValidateToken(token, dummyHash, r.tokenSalt)
		return models.Participant{}, auth.ErrInvalidToken
	}
	if err != nil {
		return models.Participant{}, fmt.Errorf("failed to load participant: %w", err)
	}

	if err := auth.ValidateToken(token, p.TokenHash, r.tokenSalt); err != nil {
		return models.Participant{}, auth.ErrInvalidToken
	}

	now := r.Clock()
	if _, err := r.db.ExecContext(ctx,
		`UPDATE participant SET last_active_at = $1 WHERE id = $2`, now, p.ID); err != nil {
		// Not worth failing the request over
		slog.Warn("failed to touch participant", "participant_id", p.ID, "error", err)
	} else {
		p.LastActiveAt = now
	}

	return p, nil
}

// LookupInSession is Lookup plus a check that the participant belongs to
// sessionID. A participant of another session gets ErrInvalidToken.
func (r *Registry) LookupInSession(ctx context.Context, sessionID, participantID, token string) (models.Participant, error) {
	p, err := r.Lookup(ctx, participantID, token)
	if err != nil {
		return models.Participant{}, err
	}
	if p.SessionID != sessionID {
		return models.Participant{}, auth.ErrInvalidToken
	}
	return p, nil
}

// Identity resolves how the participant appears in their session
func (r *Registry) Identity(ctx context.Context, p models.Participant) (models.Identity, error) {
	s, err := lifecycle.Load(ctx, r.db, p.SessionID)
	if err != nil {
		return models.Identity{}, err
	}
	return identity.Resolve(s.Settings.AnonymityLevel, identity.DefaultsFrom(s.Settings), p)
}

// List returns the session's participants in join order with the identity
// each one shows to others
func (r *Registry) List(ctx context.Context, sessionID string) ([]models.ParticipantView, error) {
	s, err := lifecycle.Load(ctx, r.db, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participant WHERE session_id = $1 ORDER BY joined_at, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	defaults := identity.DefaultsFrom(s.Settings)
	views := []models.ParticipantView{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}

		ident, err := identity.Resolve(s.Settings.AnonymityLevel, defaults, p)
		if err != nil {
			return nil, err
		}

		views = append(views, models.ParticipantView{
			ID:        p.ID,
			Identity:  ident,
			VotesCast: p.VotesCast,
			JoinedAt:  p.JoinedAt,
		})
	}
	return views, rows.Err()
}

// Remove takes a participant out of a session on the host's behalf. Their
// votes, the votes they received and their contributions go with them, and
// their capacity slot is freed.
func (r *Registry) Remove(ctx context.Context, sessionID, hostID, participantID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := lifecycle.Load(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if s.HostID != hostID {
		return lifecycle.ErrNotSessionHost
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM participant WHERE id = $1 AND session_id = $2`, participantID, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrParticipantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load participant: %w", err)
	}

	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM vote WHERE session_id = $1 AND (voter_id = $2 OR (target_kind = $3 AND target_id = $2))`,
			[]any{sessionID, participantID, models.TargetParticipant}},
		{`DELETE FROM vote WHERE session_id = $1 AND target_kind = $2 AND target_id IN (SELECT id FROM contribution WHERE participant_id = $3)`,
			[]any{sessionID, models.TargetContribution, participantID}},
		{`DELETE FROM contribution WHERE participant_id = $1`,
			[]any{participantID}},
		{`DELETE FROM participant WHERE id = $1`,
			[]any{participantID}},
		{`UPDATE live_session SET participant_count = participant_count - 1 WHERE id = $1 AND participant_count > 0`,
			[]any{sessionID}},
		{`UPDATE participant SET votes_cast = (SELECT COUNT(*) FROM vote WHERE vote.voter_id = participant.id) WHERE session_id = $1`,
			[]any{sessionID}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal: %w", err)
	}

	slog.Info("participant removed", "session_id", sessionID, "participant_id", participantID)
	r.pub.Publish(events.Event{
		Type:      events.ParticipantRemoved,
		SessionID: sessionID,
		Data:      map[string]string{"participant_id": participantID},
		At:        r.Clock(),
	})
	return nil
}
