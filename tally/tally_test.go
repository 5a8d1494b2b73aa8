// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tally

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/connected-mate/cliparse"
	"github.com/danielhkuo/connected-mate/events"
	"github.com/danielhkuo/connected-mate/lifecycle"
	"github.com/danielhkuo/connected-mate/models"
	"github.com/danielhkuo/connected-mate/registry"
	"github.com/danielhkuo/connected-mate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db    *sql.DB
	cfg   cliparse.Config
	tally *Tally
	rec   *events.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureOn(t, testutil.SetupTestDB(t))
}

func newFixtureOn(t *testing.T, conn *sql.DB) fixture {
	t.Helper()
	rec := &events.Recorder{}
	tl := NewTally(conn, rec)
	tl.Clock = testutil.NewFakeClock().Now
	return fixture{db: conn, cfg: testutil.GetTestConfig(), tally: tl, rec: rec}
}

// activeSession creates an active session with n participants who joined
// one minute apart, and returns the session and participant IDs
func (f fixture) activeSession(t *testing.T, settings models.SessionSettings, n int) (string, []string) {
	t.Helper()
	sessionID, _ := testutil.CreateTestSession(t, f.db, f.cfg, models.StatusActive, settings)
	ids := make([]string, n)
	for i := range ids {
		ids[i], _ = testutil.AddTestParticipant(t, f.db, f.cfg, sessionID, "", "", t0.Add(time.Duration(i)*time.Minute))
	}
	return sessionID, ids
}

func votesCast(t *testing.T, conn *sql.DB, participantID string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow(`SELECT votes_cast FROM participant WHERE id = $1`, participantID).Scan(&n))
	return n
}

func on(id string) models.Target {
	return models.Target{Kind: models.TargetParticipant, ID: id}
}

func TestCast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID, p := f.activeSession(t, models.DefaultSettings(), 2)

	v, err := f.tally.Cast(ctx, sessionID, p[0], on(p[1]), "  great energy ")
	require.NoError(t, err)
	assert.Equal(t, "great energy", v.Reason)
	assert.Equal(t, 1, votesCast(t, f.db, p[0]))
	assert.Equal(t, []string{events.VoteCast}, f.rec.Types())

	votes, err := f.tally.VotesBy(ctx, sessionID, p[0])
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, on(p[1]), votes[0].Target)
}

func TestCast_QuotaConcurrent(t *testing.T) {
	testutil.ForEachBackend(t, func(t *testing.T, conn *sql.DB) {
		f := newFixtureOn(t, conn)
		ctx := context.Background()
		sessionID, p := f.activeSession(t, testutil.TestSettings(models.AnonymityAnonymous, 10, 3), 5)
		voter := p[0]

		var ok, quota atomic.Int32
		var wg sync.WaitGroup
		for _, target := range p[1:] {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				_, err := f.tally.Cast(ctx, sessionID, voter, on(target), "")
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrQuotaExceeded):
					quota.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(target)
		}
		wg.Wait()

		assert.Equal(t, int32(3), ok.Load())
		assert.Equal(t, int32(1), quota.Load())
		assert.Equal(t, 3, votesCast(t, f.db, voter))

		votes, err := f.tally.VotesBy(ctx, sessionID, voter)
		require.NoError(t, err)
		require.Len(t, votes, 3, "the refused cast left no row behind")

		// Retracting frees a slot for the target that was refused
		voted := map[string]bool{}
		for _, v := range votes {
			voted[v.Target.ID] = true
		}
		var refused string
		for _, target := range p[1:] {
			if !voted[target] {
				refused = target
			}
		}
		require.NotEmpty(t, refused)

		require.NoError(t, f.tally.Retract(ctx, sessionID, voter, votes[0].Target))
		assert.Equal(t, 2, votesCast(t, f.db, voter))

		_, err = f.tally.Cast(ctx, sessionID, voter, on(refused), "")
		require.NoError(t, err)
		assert.Equal(t, 3, votesCast(t, f.db, voter))
	})
}

func TestCast_DuplicateCountedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID, p := f.activeSession(t, models.DefaultSettings(), 2)

	_, err := f.tally.Cast(ctx, sessionID, p[0], on(p[1]), "")
	require.NoError(t, err)

	_, err = f.tally.Cast(ctx, sessionID, p[0], on(p[1]), "again")
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Equal(t, 1, votesCast(t, f.db, p[0]))

	rankings, err := f.tally.Rank(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, 1, rankings[0].Votes)
}

func TestCast_Refusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	strict := models.DefaultSettings()
	strict.RequireVoteReason = true
	sessionID, p := f.activeSession(t, strict, 2)

	_, err := f.tally.Cast(ctx, sessionID, p[0], on(p[1]), "   ")
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = f.tally.Cast(ctx, sessionID, p[0], on("ghost"), "why not")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, err = f.tally.Cast(ctx, sessionID, p[0], models.Target{Kind: "session", ID: sessionID}, "why not")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, err = f.tally.Cast(ctx, sessionID, "stranger", on(p[1]), "why not")
	assert.ErrorIs(t, err, ErrUnknownVoter)

	_, err = f.tally.Cast(ctx, "missing", p[0], on(p[1]), "why not")
	assert.ErrorIs(t, err, lifecycle.ErrSessionNotFound)

	// A participant of another session is not a valid target here
	otherID, other := f.activeSession(t, models.DefaultSettings(), 1)
	_, err = f.tally.Cast(ctx, sessionID, p[0], on(other[0]), "why not")
	assert.ErrorIs(t, err, ErrUnknownTarget)
	_, err = f.tally.Cast(ctx, otherID, other[0], on(p[1]), "")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	assert.Equal(t, 0, votesCast(t, f.db, p[0]))
	assert.Empty(t, f.rec.Types())
}

func TestCast_OnlyWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []string{models.StatusDraft, models.StatusEnded} {
		t.Run(status, func(t *testing.T) {
			sessionID, _ := testutil.CreateTestSession(t, f.db, f.cfg, status, models.DefaultSettings())
			a, _ := testutil.AddTestParticipant(t, f.db, f.cfg, sessionID, "", "", t0)
			b, _ := testutil.AddTestParticipant(t, f.db, f.cfg, sessionID, "", "", t0.Add(time.Minute))

			_, err := f.tally.Cast(ctx, sessionID, a, on(b), "")
			assert.ErrorIs(t, err, ErrSessionNotVoting)

			err = f.tally.Retract(ctx, sessionID, a, on(b))
			assert.ErrorIs(t, err, ErrSessionNotVoting)
		})
	}
}

func TestRetract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID, p := f.activeSession(t, models.DefaultSettings(), 2)

	err := f.tally.Retract(ctx, sessionID, p[0], on(p[1]))
	assert.ErrorIs(t, err, ErrVoteNotFound)

	_, err = f.tally.Cast(ctx, sessionID, p[0], on(p[1]), "")
	require.NoError(t, err)

	// Someone else cannot retract p[0]'s vote
	err = f.tally.Retract(ctx, sessionID, p[1], on(p[1]))
	assert.ErrorIs(t, err, ErrVoteNotFound)

	require.NoError(t, f.tally.Retract(ctx, sessionID, p[0], on(p[1])))
	assert.Equal(t, 0, votesCast(t, f.db, p[0]))
	assert.Equal(t, []string{events.VoteCast, events.VoteRetracted}, f.rec.Types())

	rankings, err := f.tally.Rank(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, rankings)
}

func TestRank_Ordering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID, p := f.activeSession(t, models.DefaultSettings(), 4)

	// p[3] joined last but gets two votes; p[2] and p[1] tie on one each
	// and p[1] joined first. The contribution is the newest target of all.
	contrib := testutil.AddTestContribution(t, f.db, sessionID, p[0], "idea", t0.Add(time.Hour))

	casts := []struct {
		voter  string
		target models.Target
	}{
		{p[0], on(p[3])},
		{p[1], on(p[3])},
		{p[0], on(p[2])},
		{p[3], on(p[1])},
		{p[2], models.Target{Kind: models.TargetContribution, ID: contrib}},
	}
	for _, c := range casts {
		_, err := f.tally.Cast(ctx, sessionID, c.voter, c.target, "")
		require.NoError(t, err)
	}

	rankings, err := f.tally.Rank(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, rankings, 4)

	assert.Equal(t, on(p[3]), rankings[0].Target)
	assert.Equal(t, 2, rankings[0].Votes)
	assert.Equal(t, on(p[1]), rankings[1].Target)
	assert.Equal(t, on(p[2]), rankings[2].Target)
	assert.Equal(t, contrib, rankings[3].Target.ID)
	for i, r := range rankings {
		assert.Equal(t, i+1, r.Rank)
	}

	st, err := f.tally.Summarize(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, Stats{Contributions: 1, Votes: 5}, st)
}

func TestSortRankings_IndependentOfInputOrder(t *testing.T) {
	build := func() []models.Ranking {
		return []models.Ranking{
			{Target: on("c"), Votes: 1, CreatedAt: t0},
			{Target: on("a"), Votes: 1, CreatedAt: t0},
			{Target: on("z"), Votes: 3, CreatedAt: t0.Add(time.Hour)},
			{Target: models.Target{Kind: models.TargetContribution, ID: "b"}, Votes: 1, CreatedAt: t0},
			{Target: on("y"), Votes: 1, CreatedAt: t0.Add(-time.Minute)},
		}
	}

	forward := build()
	SortRankings(forward)

	reversed := build()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	SortRankings(reversed)

	assert.Equal(t, forward, reversed)

	var order []string
	for _, r := range forward {
		order = append(order, r.Target.ID)
	}
	assert.Equal(t, []string{"z", "y", "b", "a", "c"}, order)
}

func TestRank_MissingSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.tally.Rank(context.Background(), "missing")
	assert.ErrorIs(t, err, lifecycle.ErrSessionNotFound)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID, p := f.activeSession(t, models.DefaultSettings(), 1)

	first, err := f.tally.Submit(ctx, sessionID, p[0], "  Ship it  ")
	require.NoError(t, err)
	assert.Equal(t, "Ship it", first.Body)
	second, err := f.tally.Submit(ctx, sessionID, p[0], "Then celebrate")
	require.NoError(t, err)

	_, err = f.tally.Submit(ctx, sessionID, p[0], "   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = f.tally.Submit(ctx, sessionID, "stranger", "hello")
	assert.ErrorIs(t, err, ErrUnknownVoter)

	list, err := f.tally.Contributions(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	draftID, _ := testutil.CreateTestSession(t, f.db, f.cfg, models.StatusDraft, models.DefaultSettings())
	draftP, _ := testutil.AddTestParticipant(t, f.db, f.cfg, draftID, "", "", t0)
	_, err = f.tally.Submit(ctx, draftID, draftP, "too early")
	assert.ErrorIs(t, err, ErrSessionNotActive)

	assert.Equal(t, []string{events.ContributionCreated, events.ContributionCreated}, f.rec.Types())
}

// A whole session from creation to reporting
func TestScenario_EndToEnd(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	ctx := context.Background()
	clock := testutil.NewFakeClock()

	machine := lifecycle.NewMachine(conn, cfg.JoinCodeSalt, nil)
	machine.Clock = clock.Now
	reg := registry.NewRegistry(conn, cfg.TokenSalt, nil)
	reg.Clock = clock.Now
	tl := NewTally(conn, nil)
	tl.Clock = clock.Now

	settings := models.DefaultSettings()
	settings.MaxParticipants = 2
	s, err := machine.Create(ctx, testutil.TestHostID, "Scenario", settings)
	require.NoError(t, err)

	_, err = machine.Start(ctx, s.ID, testutil.TestHostID)
	require.NoError(t, err)

	alice, err := reg.JoinByCode(ctx, s.JoinCode, models.JoinRequest{})
	require.NoError(t, err)
	bob, err := reg.JoinByCode(ctx, s.JoinCode, models.JoinRequest{})
	require.NoError(t, err)
	_, err = reg.JoinByCode(ctx, s.JoinCode, models.JoinRequest{})
	assert.ErrorIs(t, err, registry.ErrCapacityExceeded)

	_, err = tl.Cast(ctx, s.ID, alice.Participant.ID, on(bob.Participant.ID), "")
	require.NoError(t, err)
	_, err = tl.Cast(ctx, s.ID, bob.Participant.ID, on(alice.Participant.ID), "")
	require.NoError(t, err)

	rankings, err := tl.Rank(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, on(alice.Participant.ID), rankings[0].Target, "tie goes to the earlier join")
	assert.Equal(t, on(bob.Participant.ID), rankings[1].Target)
	assert.Equal(t, 1, rankings[0].Votes)
	assert.Equal(t, 1, rankings[1].Votes)

	_, err = machine.End(ctx, s.ID, testutil.TestHostID)
	require.NoError(t, err)

	_, err = tl.Cast(ctx, s.ID, alice.Participant.ID, models.Target{Kind: models.TargetParticipant, ID: alice.Participant.ID}, "")
	assert.ErrorIs(t, err, ErrSessionNotVoting)

	// Results survive the end of the session
	after, err := tl.Rank(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	for i := range after {
		assert.Equal(t, rankings[i].Target, after[i].Target)
		assert.Equal(t, rankings[i].Votes, after[i].Votes)
		assert.Equal(t, rankings[i].Rank, after[i].Rank)
	}
}
