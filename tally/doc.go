// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tally records votes and contributions and ranks vote targets.

# Casting

A vote names a target by kind (participant or contribution) and ID. Cast
checks, in order:

 1. The session is active, else ErrSessionNotVoting.
 2. A reason is present when the session requires one, else ErrReasonRequired.
 3. The voter and the target both belong to the session.
 4. The vote is new, else ErrDuplicateVote (unique constraint on
    session, voter, target kind and target ID).
 5. The voter has quota left, else ErrQuotaExceeded.

Steps 4 and 5 run in the same transaction. The quota check is a guarded
counter update, so concurrent casts by one voter cannot overshoot
max_votes_per_participant:

	UPDATE participant SET votes_cast = votes_cast + 1
	WHERE id = $1 AND votes_cast < $max AND <session is active>

# Retracting

Retract deletes the vote and refunds the counter. It only requires an
active session; quota never blocks it.

# Ranking

Rank counts votes per target and orders by:

 1. Votes (descending)
 2. When the target appeared: join time or contribution time (ascending)
 3. Target kind, then ID

Ranks are 1-indexed positions in that order. Targets nobody voted for are
not listed. Rank works in every status, including ended.

# Contributions

Submit stores a participant's contribution while the session is active;
anything else is ErrSessionNotActive. Contributions lists them oldest first.
*/
package tally
