// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package identity derives what a participant is shown as.

Resolve is a pure function of the session's anonymity level, the session's
visual defaults and the stored participant:

	id, err := identity.Resolve(session.Settings.AnonymityLevel,
		identity.DefaultsFrom(session.Settings), participant)

	anonymous       label = generated anonymous id, always
	semi-anonymous  label = nickname, else ErrMissingNickname
	non-anonymous   label = real name, else ErrMissingIdentity

The real name is never used outside non-anonymous sessions, even when it
is stored. Color and emoji come from the participant when set and from
the session defaults otherwise.

NewAnonymousID generates the opaque label stored at join time.
*/
package identity
