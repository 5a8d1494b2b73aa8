// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
// The DDL sticks to types and syntax both Postgres and SQLite accept.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Sessions
CREATE TABLE IF NOT EXISTS live_session (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    host_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active', 'ended')),
    join_code TEXT NOT NULL UNIQUE,
    anonymity_level TEXT NOT NULL CHECK (anonymity_level IN ('anonymous', 'semi-anonymous', 'non-anonymous')),
    max_participants INTEGER NOT NULL CHECK (max_participants > 0),
    max_votes_per_participant INTEGER NOT NULL CHECK (max_votes_per_participant > 0),
    require_vote_reason BOOLEAN NOT NULL DEFAULT FALSE,
    default_color TEXT NOT NULL,
    default_emoji TEXT NOT NULL,
    participant_count INTEGER NOT NULL DEFAULT 0 CHECK (participant_count >= 0),
    created_at TIMESTAMP NOT NULL,
    started_at TIMESTAMP,
    ended_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_live_session_host ON live_session(host_id);
CREATE INDEX IF NOT EXISTS idx_live_session_status ON live_session(status);

-- Participants
CREATE TABLE IF NOT EXISTS participant (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES live_session(id) ON DELETE CASCADE,
    real_name TEXT NOT NULL DEFAULT '',
    nickname TEXT NOT NULL DEFAULT '',
    emoji TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT '',
    anonymous_id TEXT NOT NULL,
    token_hash TEXT NOT NULL,
    votes_cast INTEGER NOT NULL DEFAULT 0 CHECK (votes_cast >= 0),
    joined_at TIMESTAMP NOT NULL,
    last_active_at TIMESTAMP NOT NULL,
    UNIQUE (session_id, anonymous_id)
);

CREATE INDEX IF NOT EXISTS idx_participant_session ON participant(session_id);

-- Contributions
CREATE TABLE IF NOT EXISTS contribution (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES live_session(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL REFERENCES participant(id) ON DELETE CASCADE,
    body TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contribution_session ON contribution(session_id);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES live_session(id) ON DELETE CASCADE,
    voter_id TEXT NOT NULL REFERENCES participant(id) ON DELETE CASCADE,
    target_kind TEXT NOT NULL CHECK (target_kind IN ('participant', 'contribution')),
    target_id TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE (session_id, voter_id, target_kind, target_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_session ON vote(session_id);
CREATE INDEX IF NOT EXISTS idx_vote_target ON vote(target_kind, target_id);
`
