// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Session status constants
const (
	StatusDraft  = "draft"
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Anonymity levels
const (
	AnonymityAnonymous     = "anonymous"
	AnonymitySemiAnonymous = "semi-anonymous"
	AnonymityNonAnonymous  = "non-anonymous"
)

// Vote target kinds
const (
	TargetParticipant  = "participant"
	TargetContribution = "contribution"
)

// Settings defaults
const (
	DefaultMaxParticipants        = 50
	DefaultMaxVotesPerParticipant = 3
	DefaultColor                  = "#6366f1"
	DefaultEmoji                  = "🙂"
)

// Domain types

// SessionSettings is the one canonical configuration of a session.
type SessionSettings struct {
	AnonymityLevel         string `json:"anonymity_level"`
	MaxParticipants        int    `json:"max_participants"`
	MaxVotesPerParticipant int    `json:"max_votes_per_participant"`
	RequireVoteReason      bool   `json:"require_vote_reason"`
	DefaultColor           string `json:"default_color"`
	DefaultEmoji           string `json:"default_emoji"`
}

// DefaultSettings returns the settings a session gets when the host omits them.
func DefaultSettings() SessionSettings {
	return SessionSettings{
		AnonymityLevel:         AnonymityAnonymous,
		MaxParticipants:        DefaultMaxParticipants,
		MaxVotesPerParticipant: DefaultMaxVotesPerParticipant,
		DefaultColor:           DefaultColor,
		DefaultEmoji:           DefaultEmoji,
	}
}

// LegacyView flattens the settings into the loosely keyed shape older
// dashboards read. It is derived on the way out and never stored.
func (s SessionSettings) LegacyView() map[string]any {
	return map[string]any{
		"anonymity_level":           s.AnonymityLevel,
		"anonymityLevel":            s.AnonymityLevel,
		"max_participants":          s.MaxParticipants,
		"max_votes_per_participant": s.MaxVotesPerParticipant,
		"require_vote_reason":       s.RequireVoteReason,
		"default_color":             s.DefaultColor,
		"default_emoji":             s.DefaultEmoji,
	}
}

type Session struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	HostID           string          `json:"host_id"`
	Status           string          `json:"status"`
	JoinCode         string          `json:"join_code"`
	Settings         SessionSettings `json:"settings"`
	ParticipantCount int             `json:"participant_count"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
}

type Participant struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	RealName     string    `json:"-"` // Exposed only through Identity
	Nickname     string    `json:"-"` // Exposed only through Identity
	Emoji        string    `json:"emoji,omitempty"`
	Color        string    `json:"color,omitempty"`
	AnonymousID  string    `json:"-"`
	TokenHash    string    `json:"-"` // Never expose in JSON
	VotesCast    int       `json:"votes_cast"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Identity is what other people see of a participant.
type Identity struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

type Contribution struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// Target identifies what a vote is cast on.
type Target struct {
	Kind string `json:"target_kind" validate:"required,oneof=participant contribution"`
	ID   string `json:"target_id" validate:"required"`
}

type Vote struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	VoterID   string    `json:"voter_id"`
	Target    Target    `json:"target"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ranking is one row of a session's tally.
type Ranking struct {
	Target    Target    `json:"target"`
	Votes     int       `json:"votes"`
	Rank      int       `json:"rank"` // 1-indexed ranking
	CreatedAt time.Time `json:"created_at"`
}

// Request types

type CreateSessionRequest struct {
	Title    string           `json:"title" validate:"required,max=200"`
	Settings *SettingsRequest `json:"settings,omitempty"`
}

// SettingsRequest carries optional overrides; nil fields keep their value.
type SettingsRequest struct {
	AnonymityLevel         *string `json:"anonymity_level,omitempty" validate:"omitempty,oneof=anonymous semi-anonymous non-anonymous"`
	MaxParticipants        *int    `json:"max_participants,omitempty" validate:"omitempty,min=1,max=10000"`
	MaxVotesPerParticipant *int    `json:"max_votes_per_participant,omitempty" validate:"omitempty,min=1,max=100"`
	RequireVoteReason      *bool   `json:"require_vote_reason,omitempty"`
	DefaultColor           *string `json:"default_color,omitempty" validate:"omitempty,hexcolor"`
	DefaultEmoji           *string `json:"default_emoji,omitempty" validate:"omitempty,max=16"`
}

type EditSessionRequest struct {
	Title    *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Settings *SettingsRequest `json:"settings,omitempty"`
}

type JoinRequest struct {
	RealName string `json:"real_name" validate:"max=100"`
	Nickname string `json:"nickname" validate:"max=50"`
	Emoji    string `json:"emoji" validate:"max=16"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
}

type SubmitContributionRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

type CastVoteRequest struct {
	Target
	Reason string `json:"reason" validate:"max=500"`
}

// Response types

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
	JoinURL   string `json:"join_url"`
}

type SessionResponse struct {
	Session        Session        `json:"session"`
	LegacySettings map[string]any `json:"legacy_settings"`
}

type JoinResponse struct {
	SessionID     string   `json:"session_id"`
	ParticipantID string   `json:"participant_id"`
	Token         string   `json:"token"`
	Identity      Identity `json:"identity"`
}

type ParticipantView struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	VotesCast int       `json:"votes_cast"`
	JoinedAt  time.Time `json:"joined_at"`
}

type MeResponse struct {
	Participant    Participant `json:"participant"`
	Identity       Identity    `json:"identity"`
	Votes          []Vote      `json:"votes"`
	VotesRemaining int         `json:"votes_remaining"`
}

type CastVoteResponse struct {
	VoteID string `json:"vote_id"`
}

type ResultsResponse struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Rankings  []Ranking `json:"rankings"`
}

type SessionReport struct {
	SessionID     string   `json:"session_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Participants  int      `json:"participants"`
	Contributions int      `json:"contributions"`
	Votes         int      `json:"votes"`
	Created       string   `json:"created"`
	Started       string   `json:"started,omitempty"`
	Ended         string   `json:"ended,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	TopTarget     *Ranking `json:"top_target,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
