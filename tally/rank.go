// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
)

// Rank counts the votes on every voted target in a session. Works in any
// status so ended sessions can still be reported on.
func (t *Tally) Rank(ctx context.Context, sessionID string) ([]models.Ranking, error) {
	if _, err := lifecycle.Load(ctx, t.db, sessionID); err != nil {
		return nil, err
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT target_kind, target_id, COUNT(*)
		FROM vote
		WHERE session_id = $1
		GROUP BY target_kind, target_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	rankings := []models.Ranking{}
	for rows.Next() {
		var r models.Ranking
		if err := rows.Scan(&r.Target.Kind, &r.Target.ID, &r.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		rankings = append(rankings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	created, err := t.targetTimes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range rankings {
		rankings[i].CreatedAt = created[rankings[i].Target]
	}

	SortRankings(rankings)
	return rankings, nil
}

// SortRankings orders by votes descending, then by the target's creation or
// join time, then by kind and ID, and assigns 1-indexed ranks. The order
// never depends on how the store returned the rows.
func SortRankings(rankings []models.Ranking) {
	sort.Slice(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]

		// 1. More votes wins
		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}

		// 2. Earlier contribution or join wins
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		// 3. Stable tie-breaking by kind, then ID
		if a.Target.Kind != b.Target.Kind {
			return a.Target.Kind < b.Target.Kind
		}
		return a.Target.ID < b.Target.ID
	})

	for i := range rankings {
		rankings[i].Rank = i + 1
	}
}

// targetTimes maps every possible target in the session to the time it
// came into being
func (t *Tally) targetTimes(ctx context.Context, sessionID string) (map[models.Target]time.Time, error) {
	times := make(map[models.Target]time.Time)

	queries := []struct {
		kind  string
		query string
	}{
		{models.TargetParticipant, `SELECT id, joined_at FROM participant WHERE session_id = $1`},
		{models.TargetContribution, `SELECT id, created_at FROM contribution WHERE session_id = $1`},
	}

	for _, q := range queries {
		rows, err := t.db.QueryContext(ctx, q.query, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s times: %w", q.kind, err)
		}
		for rows.Next() {
			var id string
			var at time.Time
			if err := rows.Scan(&id, &at); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s time: %w", q.kind, err)
			}
			times[models.Target{Kind: q.kind, ID: id}] = at
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	return times, nil
}

// Stats are the headline numbers of a session
type Stats struct {
	Contributions int
	Votes         int
}

// Summarize counts a session's contributions and outstanding votes
func (t *Tally) Summarize(ctx context.Context, sessionID string) (Stats, error) {
	var st Stats
	err := t.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM contribution WHERE session_id = $1),
			(SELECT COUNT(*) FROM vote WHERE session_id = $1)
	`, sessionID).Scan(&st.Contributions, &st.Votes)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to summarize session: %w", err)
	}
	return st, nil
}
