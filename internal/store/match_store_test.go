package store

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMatches(t *testing.T) {
	db := setupTestDB(t)
	tournaments := NewTournamentStore(db)
	rounds := NewRoundStore(db)
	store := NewMatchStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, tournaments, tournament)
	round := newTestRound(tournament.ID, 1)
	require.NoError(t, rounds.CreateRound(ctx, nil, round))

	bye := newTestMatch(round, 2, "c", nil)
	bye.WinnerID = utils.Ptr("c")
	matches := []bracket.Match{
		newTestMatch(round, 1, "a", utils.Ptr("b")),
		bye,
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Commit())

	fetched, err := store.ListMatchesByRound(ctx, nil, round.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 2)

	assert.Equal(t, matches[0].ID, fetched[0].ID)
	assert.Equal(t, "a", fetched[0].SlotA)
	assert.Equal(t, "b", utils.OrZero(fetched[0].SlotB))
	assert.Nil(t, fetched[0].WinnerID)
	assert.False(t, fetched[0].IsBye())

	assert.Equal(t, bye.ID, fetched[1].ID)
	assert.True(t, fetched[1].IsBye())
	assert.Equal(t, "c", utils.OrZero(fetched[1].WinnerID))

	byTournament, err := store.ListMatchesByTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, byTournament, 2)

	assert.NoError(t, store.CreateMatches(ctx, nil, nil))
}

func TestMatchUpdateAndRecordResult(t *testing.T) {
	db := setupTestDB(t)
	tournaments := NewTournamentStore(db)
	rounds := NewRoundStore(db)
	store := NewMatchStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, tournaments, tournament)
	round := newTestRound(tournament.ID, 1)
	require.NoError(t, rounds.CreateRound(ctx, nil, round))
	match := newTestMatch(round, 1, "a", utils.Ptr("b"))
	require.NoError(t, store.CreateMatch(ctx, nil, &match))

	match.ScoreA = utils.Ptr(3)
	require.NoError(t, store.UpdateMatch(ctx, nil, &match))

	decided := match
	decided.WinnerID = utils.Ptr("b")
	decided.LoserID = utils.Ptr("a")
	decided.ScoreA = utils.Ptr(1)
	decided.ScoreB = utils.Ptr(2)

	ok, err := store.RecordResult(ctx, nil, &decided)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already decided, second write loses
	decided.WinnerID = utils.Ptr("a")
	ok, err = store.RecordResult(ctx, nil, &decided)
	require.NoError(t, err)
	assert.False(t, ok)

	fetched, err := store.GetMatch(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", utils.OrZero(fetched.WinnerID))
	assert.Equal(t, "a", utils.OrZero(fetched.LoserID))
	assert.Equal(t, 1, utils.OrZero(fetched.ScoreA))
	assert.Equal(t, 2, utils.OrZero(fetched.ScoreB))

	missing := newTestMatch(round, 9, "x", nil)
	assert.ErrorIs(t, store.UpdateMatch(ctx, nil, &missing), bracket.ErrNotFound)
	_, err = store.GetMatch(ctx, nil, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestDeleteMatches(t *testing.T) {
	db := setupTestDB(t)
	tournaments := NewTournamentStore(db)
	rounds := NewRoundStore(db)
	store := NewMatchStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, tournaments, tournament)
	round := newTestRound(tournament.ID, 1)
	require.NoError(t, rounds.CreateRound(ctx, nil, round))

	matches := []bracket.Match{
		newTestMatch(round, 1, "a", utils.Ptr("b")),
		newTestMatch(round, 2, "c", utils.Ptr("d")),
		newTestMatch(round, 3, "e", nil),
	}
	require.NoError(t, store.CreateMatches(ctx, nil, matches))

	require.NoError(t, store.DeleteMatch(ctx, nil, matches[0].ID))
	assert.ErrorIs(t, store.DeleteMatch(ctx, nil, matches[0].ID), bracket.ErrNotFound)

	deleted, err := store.DeleteMatchesByRound(ctx, nil, round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestTeamStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewTeamStore(db)
	ctx := context.Background()

	exists, err := store.TeamExists(ctx, "red")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateTeam(ctx, "red", "Red Team"))
	assert.ErrorIs(t, store.CreateTeam(ctx, "red", "Red Again"), bracket.ErrDuplicate)

	exists, err = store.TeamExists(ctx, "red")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.DeleteTeam(ctx, "red"))
	assert.ErrorIs(t, store.DeleteTeam(ctx, "red"), bracket.ErrNotFound)
}
