// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/identity"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/metrics"
	"github.com/danielhkuo/connected-mate/middleware"
	"github.com/danielhkuo/connected-mate/registry"
	"github.com/danielhkuo/connected-mate/tally"
)

// Codes that do not come from a domain error
const (
	codeMissingHost = "missing_host"
	codeInternal    = "internal_error"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// domainErrors is checked in order; ErrCapacityExceeded wraps
// ErrSessionFull, so it must come first.
var domainErrors = []errorMapping{
	{lifecycle.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{lifecycle.ErrNotSessionHost, http.StatusForbidden, "not_session_host"},
	{lifecycle.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{lifecycle.ErrSessionLocked, http.StatusLocked, "session_locked"},
	{lifecycle.ErrInvalidSettings, http.StatusBadRequest, "invalid_settings"},

	{registry.ErrSessionNotJoinable, http.StatusGone, "session_not_joinable"},
	{registry.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{registry.ErrSessionFull, http.StatusConflict, "session_full"},
	{registry.ErrParticipantNotFound, http.StatusNotFound, "participant_not_found"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},

	{identity.ErrMissingNickname, http.StatusUnprocessableEntity, "missing_nickname"},
	{identity.ErrMissingIdentity, http.StatusUnprocessableEntity, "missing_identity"},
	{identity.ErrUnknownAnonymityLevel, http.StatusBadRequest, "unknown_anonymity_level"},

	{tally.ErrSessionNotVoting, http.StatusConflict, "session_not_voting"},
	{tally.ErrQuotaExceeded, http.StatusConflict, "quota_exceeded"},
	{tally.ErrDuplicateVote, http.StatusConflict, "duplicate_vote"},
	{tally.ErrReasonRequired, http.StatusUnprocessableEntity, "reason_required"},
	{tally.ErrUnknownTarget, http.StatusUnprocessableEntity, "unknown_target"},
	{tally.ErrUnknownVoter, http.StatusForbidden, "unknown_voter"},
	{tally.ErrVoteNotFound, http.StatusNotFound, "vote_not_found"},
	{tally.ErrSessionNotActive, http.StatusConflict, "session_not_active"},
	{tally.ErrEmptyBody, http.StatusBadRequest, "empty_body"},

	{middleware.ErrInvalidJSON, http.StatusBadRequest, "invalid_json"},
}

// writeError maps err to its status and code, writes the response and
// returns the code for metrics. Unknown errors are logged and become a
// generic 500.
func writeError(w http.ResponseWriter, err error) string {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			middleware.CodedErrorResponse(w, m.status, m.code, err.Error())
			return m.code
		}
	}

	var ve *middleware.ValidationError
	if errors.As(err, &ve) {
		middleware.CodedErrorResponse(w, http.StatusBadRequest, "validation_failed", ve.Error())
		return "validation_failed"
	}

	slog.Error("request failed", "error", err)
	middleware.CodedErrorResponse(w, http.StatusInternalServerError, codeInternal, "Internal error")
	return codeInternal
}

// outcome is the metrics label for err
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return codeInternal
}
