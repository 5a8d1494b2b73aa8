// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package lifecycle owns the status of a live session.

# States

A session moves through three states, and only forward:

	draft ──Start──▶ active ──End──▶ ended

Drafts accept edits and preview joins. Active sessions accept joins,
contributions and votes. Ended sessions are read-only; their results stay
available for reporting.

# Guarded Updates

Every transition is one conditional UPDATE that names the status it expects:

	UPDATE live_session SET status = 'active', started_at = $now
	WHERE id = $id AND host_id = $host AND status = 'draft'

When no row matches, the session is re-read to tell the caller why:
ErrSessionNotFound, ErrNotSessionHost or ErrInvalidTransition. Two hosts
racing to start the same session therefore produce exactly one winner, and
started_at and ended_at are written exactly once.

# Settings

SessionSettings is the one typed settings value for a session. Edit merges
a partial SettingsRequest onto it while the session is a draft and returns
ErrSessionLocked afterwards. The anonymity level is also locked once anyone
has joined the draft. ValidateSettings rejects anything the store
would refuse.

# Reading Sessions

Load and LoadByCode read through a Queryer, so the registry and tally can
check status inside their own transactions.
*/
package lifecycle
