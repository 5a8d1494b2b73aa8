// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
)

// Submit stores a participant's contribution while the session is active
func (t *Tally) Submit(ctx context.Context, sessionID, participantID, body string) (models.Contribution, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Contribution{}, ErrEmptyBody
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Contribution{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, err := lifecycle.Load(ctx, tx, sessionID)
	if err != nil {
		return models.Contribution{}, err
	}
	if s.Status != models.StatusActive {
		return models.Contribution{}, ErrSessionNotActive
	}
	if err := checkVoter(ctx, tx, sessionID, participantID); err != nil {
		return models.Contribution{}, err
	}

	c := models.Contribution{
		ID:            auth.NewID(),
		SessionID:     sessionID,
		ParticipantID: participantID,
		Body:          body,
		CreatedAt:     t.Clock(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contribution (id, session_id, participant_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.SessionID, c.ParticipantID, c.Body, c.CreatedAt)
	if err != nil {
		return models.Contribution{}, fmt.Errorf("failed to insert contribution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Contribution{}, fmt.Errorf("failed to commit contribution: %w", err)
	}

	slog.Info("contribution submitted", "session_id", sessionID, "contribution_id", c.ID)
	t.pub.Publish(events.Event{Type: events.ContributionCreated, SessionID: sessionID, Data: c, At: c.CreatedAt})
	return c, nil
}

// Contributions lists a session's contributions, oldest first
func (t *Tally) Contributions(ctx context.Context, sessionID string) ([]models.Contribution, error) {
	if _, err := lifecycle.Load(ctx, t.db, sessionID); err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT id, session_id, participant_id, body, created_at
		FROM contribution
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	contributions := []models.Contribution{}
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ParticipantID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}
