// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danielhkuo/connected-mate/auth"
	"github.com/danielhkuo/connected-mate/models"
)

var (
	ErrMissingNickname       = errors.New("nickname required in semi-anonymous sessions")
	ErrMissingIdentity       = errors.New("participant has no identity for this anonymity level")
	ErrUnknownAnonymityLevel = errors.New("unknown anonymity level")
)

// Defaults are the session-wide visuals used when a participant has none.
type Defaults struct {
	Color string
	Emoji string
}

// DefaultsFrom picks the visual defaults out of session settings
func DefaultsFrom(s models.SessionSettings) Defaults {
	return Defaults{Color: s.DefaultColor, Emoji: s.DefaultEmoji}
}

// Resolve maps an anonymity level and a participant record to the identity
// everyone else sees. The level alone decides which field becomes the
// label; which fields happen to be populated never does.
func Resolve(level string, defaults Defaults, p models.Participant) (models.Identity, error) {
	var label string

	switch level {
	case models.AnonymityAnonymous:
		label = strings.TrimSpace(p.AnonymousID)
		if label == "" {
			return models.Identity{}, ErrMissingIdentity
		}
	case models.AnonymitySemiAnonymous:
		label = strings.TrimSpace(p.Nickname)
		if label == "" {
			return models.Identity{}, ErrMissingNickname
		}
	case models.AnonymityNonAnonymous:
		label = strings.TrimSpace(p.RealName)
		if label == "" {
			return models.Identity{}, ErrMissingIdentity
		}
	default:
		return models.Identity{}, fmt.Errorf("%w: %q", ErrUnknownAnonymityLevel, level)
	}

	id := models.Identity{
		Label: label,
		Color: defaults.Color,
		Emoji: defaults.Emoji,
	}
	if p.Color != "" {
		id.Color = p.Color
	}
	if p.Emoji != "" {
		id.Emoji = p.Emoji
	}
	return id, nil
}

// ParseLevel normalizes user input into one of the anonymity constants
func ParseLevel(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.AnonymityAnonymous:
		return models.AnonymityAnonymous, nil
	case models.AnonymitySemiAnonymous, "semi_anonymous", "semi":
		return models.AnonymitySemiAnonymous, nil
	case models.AnonymityNonAnonymous, "non_anonymous", "named":
		return models.AnonymityNonAnonymous, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnonymityLevel, s)
}

// anonymousPrefix keeps generated labels recognizable in host dashboards
const anonymousPrefix = "Participant-"

// anonymousIDBytes is the size of the random suffix. Labels are unique per
// session, so a short suffix would surface as a failed insert.
const anonymousIDBytes = 8

// NewAnonymousID returns an opaque random label. It never equals any of
// the excluded strings, which callers pass the participant's real name and
// nickname through.
func NewAnonymousID(exclude ...string) (string, error) {
	for {
		suffix, err := auth.GenerateID(anonymousIDBytes)
		if err != nil {
			return "", err
		}
		candidate := anonymousPrefix + suffix

		clash := false
		for _, ex := range exclude {
			if strings.EqualFold(strings.TrimSpace(ex), candidate) {
				clash = true
				break
			}
		}
		if !clash {
			return candidate, nil
		}
	}
}
