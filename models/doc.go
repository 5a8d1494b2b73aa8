// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Session: lifecycle state, join code, settings, timestamps
  - SessionSettings: the single typed configuration of a session
  - Participant: stored participant attributes (never serialized directly
    with names; see Identity)
  - Identity: the resolved label, color and emoji shown to others
  - Contribution: content submitted during a session, votable
  - Vote: one voter's vote on one Target
  - Target: participant or contribution being voted on
  - Ranking: tally row with 1-indexed rank

# Request Types

  - CreateSessionRequest, EditSessionRequest, SettingsRequest
  - JoinRequest
  - SubmitContributionRequest
  - CastVoteRequest

Request types carry go-playground/validator tags; handlers validate them
through middleware.DecodeAndValidate.

# Constants

Status values:

	StatusDraft  = "draft"
	StatusActive = "active"
	StatusEnded  = "ended"

Anonymity levels:

	AnonymityAnonymous     = "anonymous"
	AnonymitySemiAnonymous = "semi-anonymous"
	AnonymityNonAnonymous  = "non-anonymous"

Target kinds:

	TargetParticipant  = "participant"
	TargetContribution = "contribution"
*/
package models
