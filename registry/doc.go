// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry admits participants into sessions and authenticates them.

# Joining

Join and JoinByCode run in one transaction:

 1. Load the session; unknown or ended sessions are ErrSessionNotJoinable.
 2. Resolve the joiner's identity under the session's anonymity level, so
    a semi-anonymous session without a nickname fails before a slot is taken.
 3. Reserve a slot with a guarded counter update.
 4. Insert the participant with the HMAC of a fresh bearer token.

The slot update is:

	UPDATE live_session SET participant_count = participant_count + 1
	WHERE id = $1 AND status IN ('draft', 'active')
	  AND participant_count < max_participants

When the update matches nothing the session is re-read inside the same
transaction. A count equal to the limit is ErrCapacityExceeded; a count above
it (the host lowered capacity in draft) is ErrSessionFull, which
ErrCapacityExceeded also wraps.

Every participant gets an anonymous ID at join, including those who join a
draft as a preview. The session's anonymity level cannot change once anyone
has joined, so List and Identity always resolve under the level the
participant joined with.

# Tokens

The token is returned once and never stored. Lookup compares the HMAC in
constant time and returns auth.ErrInvalidToken for an unknown participant
and for a wrong token alike.

# Moderation

Remove deletes a participant, the votes they cast and received, and their
contributions, then frees their slot and recomputes every remaining voter's
votes_cast from the vote table.
*/
package registry
