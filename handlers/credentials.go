// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/middleware"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/registry"
)

// Request headers
const (
	HeaderHostID           = "X-Host-ID"
	HeaderParticipantID    = "X-Participant-ID"
	HeaderParticipantToken = "X-Participant-Token"
)

// requireHost returns the verified host ID set by the upstream identity
// proxy, or writes 401 and returns false
func requireHost(w http.ResponseWriter, r *http.Request) (string, bool) {
	hostID := strings.TrimSpace(r.Header.Get(HeaderHostID))
	if hostID == "" {
		middleware.CodedErrorResponse(w, http.StatusUnauthorized, codeMissingHost, HeaderHostID+" header required")
		return "", false
	}
	return hostID, true
}

// requireParticipant authenticates the caller as a participant of the
// session in the path, or writes the error and returns false
func requireParticipant(w http.ResponseWriter, r *http.Request, reg *registry.Registry) (models.Participant, bool) {
	id := r.Header.Get(HeaderParticipantID)
	token := r.Header.Get(HeaderParticipantToken)
	if id == "" || token == "" {
		writeError(w, auth.ErrInvalidToken)
		return models.Participant{}, false
	}

	p, err := reg.LookupInSession(r.Context(), r.PathValue("id"), id, token)
	if err != nil {
		writeError(w, err)
		return models.Participant{}, false
	}
	return p, true
}
