// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/identity"
	"github.com/danielhkuo/connected-mate/models"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotSessionHost    = errors.New("caller is not the session host")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSessionLocked     = errors.New("session settings are locked once started")
	ErrInvalidSettings   = errors.New("invalid session settings")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Machine owns session status and timestamps. Every transition is a
// single guarded UPDATE, so concurrent callers cannot both win.
type Machine struct {
	db       *sql.DB
	codeSalt string
	pub      events.Publisher

	// Clock returns the current time; replaced in tests
	Clock func() time.Time
}

func NewMachine(db *sql.DB, joinCodeSalt string, pub events.Publisher) *Machine {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Machine{
		db:       db,
		codeSalt: joinCodeSalt,
		pub:      pub,
		Clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new draft session owned by hostID
func (m *Machine) Create(ctx context.Context, hostID, title string, settings models.SessionSettings) (models.Session, error) {
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return models.Session{}, ErrNotSessionHost
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Session{}, fmt.Errorf("%w: title is required", ErrInvalidSettings)
	}
	if err := ValidateSettings(settings); err != nil {
		return models.Session{}, err
	}

	s := models.Session{
		ID:        auth.NewID(),
		Title:     title,
		HostID:    hostID,
		Status:    models.StatusDraft,
		Settings:  settings,
		CreatedAt: m.Clock(),
	}
	s.JoinCode = auth.GenerateJoinCode(s.ID, m.codeSalt)

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO live_session (id, title, host_id, status, join_code,
			anonymity_level, max_participants, max_votes_per_participant,
			require_vote_reason, default_color, default_emoji,
			participant_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12)
	`, s.ID, s.Title, s.HostID, s.Status, s.JoinCode,
		settings.AnonymityLevel, settings.MaxParticipants, settings.MaxVotesPerParticipant,
		settings.RequireVoteReason, settings.DefaultColor, settings.DefaultEmoji,
		s.CreatedAt)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to insert session: %w", err)
	}

	slog.Info("session created", "session_id", s.ID, "host_id", hostID)
	return s, nil
}

// Get reads a session without any ownership check
func (m *Machine) Get(ctx context.Context, sessionID string) (models.Session, error) {
	return Load(ctx, m.db, sessionID)
}

// GetForHost reads a session and checks it belongs to hostID
func (m *Machine) GetForHost(ctx context.Context, sessionID, hostID string) (models.Session, error) {
	s, err := Load(ctx, m.db, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if s.HostID != hostID {
		return models.Session{}, ErrNotSessionHost
	}
	return s, nil
}

// ListForHost returns the host's sessions, newest first
func (m *Machine) ListForHost(ctx context.Context, hostID string) ([]models.Session, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM live_session WHERE host_id = $1 ORDER BY created_at DESC, id`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Start moves a session from draft to active and stamps started_at
func (m *Machine) Start(ctx context.Context, sessionID, hostID string) (models.Session, error) {
	now := m.Clock()
	res, err := m.db.ExecContext(ctx, `
		UPDATE live_session
		SET status = $1, started_at = $2
		WHERE id = $3 AND host_id = $4 AND status = $5
	`, models.StatusActive, now, sessionID, hostID, models.StatusDraft)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to start session: %w", err)
	}

	if err := m.checkApplied(ctx, res, sessionID, hostID); err != nil {
		return models.Session{}, err
	}

	slog.Info("session started", "session_id", sessionID)
	m.pub.Publish(events.Event{Type: events.SessionStarted, SessionID: sessionID, At: now})
	return Load(ctx, m.db, sessionID)
}

// End moves a session from active to ended and stamps ended_at
func (m *Machine) End(ctx context.Context, sessionID, hostID string) (models.Session, error) {
	now := m.Clock()
	res, err := m.db.ExecContext(ctx, `
		UPDATE live_session
		SET status = $1, ended_at = $2
		WHERE id = $3 AND host_id = $4 AND status = $5
	`, models.StatusEnded, now, sessionID, hostID, models.StatusActive)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to end session: %w", err)
	}

	if err := m.checkApplied(ctx, res, sessionID, hostID); err != nil {
		return models.Session{}, err
	}

	slog.Info("session ended", "session_id", sessionID)
	m.pub.Publish(events.Event{Type: events.SessionEnded, SessionID: sessionID, At: now})
	return Load(ctx, m.db, sessionID)
}

// checkApplied turns a guarded update that matched nothing into the
// reason it matched nothing.
func (m *Machine) checkApplied(ctx context.Context, res sql.Result, sessionID, hostID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	s, err := Load(ctx, m.db, sessionID)
	if err != nil {
		return err
	}
	if s.HostID != hostID {
		return ErrNotSessionHost
	}
	return fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.Status)
}

// Edit applies title and settings changes while the session is a draft.
// Participants who joined under one set of rules are never reinterpreted
// under another, so any edit after start is ErrSessionLocked, and so is an
// anonymity level change once anyone has joined the draft.
func (m *Machine) Edit(ctx context.Context, sessionID, hostID string, edit models.EditSessionRequest) (models.Session, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := Load(ctx, tx, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if s.HostID != hostID {
		return models.Session{}, ErrNotSessionHost
	}
	if s.Status != models.StatusDraft {
		return models.Session{}, ErrSessionLocked
	}

	if edit.Title != nil {
		s.Title = strings.TrimSpace(*edit.Title)
		if s.Title == "" {
			return models.Session{}, fmt.Errorf("%w: title is required", ErrInvalidSettings)
		}
	}
	level := s.Settings.AnonymityLevel
	s.Settings = MergeSettings(s.Settings, edit.Settings)
	if err := ValidateSettings(s.Settings); err != nil {
		return models.Session{}, err
	}
	if s.Settings.AnonymityLevel != level && s.ParticipantCount > 0 {
		return models.Session{}, fmt.Errorf("%w: anonymity level is fixed once participants have joined", ErrSessionLocked)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE live_session
		SET title = $1, anonymity_level = $2, max_participants = $3,
			max_votes_per_participant = $4, require_vote_reason = $5,
			default_color = $6, default_emoji = $7
		WHERE id = $8 AND status = $9
			AND (anonymity_level = $10 OR participant_count = 0)
	`, s.Title, s.Settings.AnonymityLevel, s.Settings.MaxParticipants,
		s.Settings.MaxVotesPerParticipant, s.Settings.RequireVoteReason,
		s.Settings.DefaultColor, s.Settings.DefaultEmoji,
		sessionID, models.StatusDraft, s.Settings.AnonymityLevel)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// Started, or joined under the old level, between our read and the update
		return models.Session{}, ErrSessionLocked
	}

	if err := tx.Commit(); err != nil {
		return models.Session{}, fmt.Errorf("failed to commit session edit: %w", err)
	}

	slog.Info("session edited", "session_id", sessionID)
	m.pub.Publish(events.Event{Type: events.SessionUpdated, SessionID: sessionID, At: m.Clock()})
	return s, nil
}

// MergeSettings overlays the non-nil fields of req onto base
func MergeSettings(base models.SessionSettings, req *models.SettingsRequest) models.SessionSettings {
	if req == nil {
		return base
	}
	if req.AnonymityLevel != nil {
		// Unknown input is kept as-is so ValidateSettings can reject it
		base.AnonymityLevel = *req.AnonymityLevel
		if level, err := identity.ParseLevel(*req.AnonymityLevel); err == nil {
			base.AnonymityLevel = level
		}
	}
	if req.MaxParticipants != nil {
		base.MaxParticipants = *req.MaxParticipants
	}
	if req.MaxVotesPerParticipant != nil {
		base.MaxVotesPerParticipant = *req.MaxVotesPerParticipant
	}
	if req.RequireVoteReason != nil {
		base.RequireVoteReason = *req.RequireVoteReason
	}
	if req.DefaultColor != nil {
		base.DefaultColor = *req.DefaultColor
	}
	if req.DefaultEmoji != nil {
		base.DefaultEmoji = *req.DefaultEmoji
	}
	return base
}

// ValidateSettings checks settings before they are stored
func ValidateSettings(s models.SessionSettings) error {
	switch s.AnonymityLevel {
	case models.AnonymityAnonymous, models.AnonymitySemiAnonymous, models.AnonymityNonAnonymous:
	default:
		return fmt.Errorf("%w: anonymity level %q", ErrInvalidSettings, s.AnonymityLevel)
	}
	if s.MaxParticipants < 1 {
		return fmt.Errorf("%w: max participants must be at least 1", ErrInvalidSettings)
	}
	if s.MaxVotesPerParticipant < 1 {
		return fmt.Errorf("%w: max votes per participant must be at least 1", ErrInvalidSettings)
	}
	if !hexColor.MatchString(s.DefaultColor) {
		return fmt.Errorf("%w: default color %q", ErrInvalidSettings, s.DefaultColor)
	}
	if s.DefaultEmoji == "" {
		return fmt.Errorf("%w: default emoji is required", ErrInvalidSettings)
	}
	return nil
}
