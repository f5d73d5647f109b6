package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file backed SQLite database in a temp dir and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "store.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	database, err := sqlx.Connect("sqlite3", dsn)
	require.NoError(t, err, "Failed to connect to test DB")

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations/sqlite3",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func newTestTournament(maxTeams int) *bracket.Tournament {
	now := time.Now().UTC()
	return &bracket.Tournament{
		ID:           uuid.New(),
		Name:         "Test Tournament",
		Description:  "store test",
		Format:       bracket.FormatSolo,
		Visibility:   bracket.VisibilityPublic,
		Status:       bracket.TournamentOngoing,
		MaxTeams:     maxTeams,
		CashPrize:    100,
		OrganizerIDs: bracket.IDList{"organizer-1", "organizer-2"},
		StartDate:    now,
		CreatedAt:    now,
	}
}

func insertTournament(t *testing.T, store *TournamentStore, tournament *bracket.Tournament) {
	t.Helper()
	require.NoError(t, store.CreateTournament(context.Background(), nil, tournament))
}

func TestCreateTournament(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTestTournament(8)
	tournament.GameID = utils.Ptr("chess")
	tournament.MinRankRequirement = utils.Ptr(2)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateTournament(ctx, tx, tournament))
	require.NoError(t, tx.Commit())

	fetched, err := store.GetTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, tournament.Format, fetched.Format)
	assert.Equal(t, tournament.Status, fetched.Status)
	assert.Equal(t, tournament.MaxTeams, fetched.MaxTeams)
	assert.Equal(t, "chess", utils.OrZero(fetched.GameID))
	assert.Equal(t, 2, utils.OrZero(fetched.MinRankRequirement))
	assert.Nil(t, fetched.MaxRankRequirement)
	assert.Equal(t, bracket.IDList{"organizer-1", "organizer-2"}, fetched.OrganizerIDs)
	assert.Nil(t, fetched.FinishDate)
	assert.Empty(t, fetched.ParticipatingIDs)
	assert.WithinDuration(t, tournament.StartDate, fetched.StartDate, time.Second)
}

func TestGetTournamentNotFound(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)

	_, err := store.GetTournament(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestLockTournament(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTestTournament(2)
	insertTournament(t, store, tournament)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, store.LockTournament(ctx, tx, tournament.ID))
	_, err = store.AddParticipant(ctx, tx, tournament.ID, "p1", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.ErrorIs(t, store.LockTournament(ctx, nil, uuid.New()), bracket.ErrNotFound)
}

func TestParticipantsKeepJoinOrder(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, store, tournament)

	for _, id := range []string{"carol", "alice", "bob"} {
		_, err := store.AddParticipant(ctx, nil, tournament.ID, id, time.Now().UTC())
		require.NoError(t, err)
	}

	_, err := store.AddParticipant(ctx, nil, tournament.ID, "alice", time.Now().UTC())
	assert.ErrorIs(t, err, bracket.ErrDuplicate)

	require.NoError(t, store.RemoveParticipant(ctx, nil, tournament.ID, "alice"))
	assert.ErrorIs(t, store.RemoveParticipant(ctx, nil, tournament.ID, "alice"), bracket.ErrNotFound)

	p, err := store.AddParticipant(ctx, nil, tournament.ID, "dave", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 4, p.Position)

	fetched, err := store.GetTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "dave"}, fetched.ParticipatingIDs)
}

func TestUpdateAndFinishTournament(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, store, tournament)

	tournament.Name = "Renamed"
	tournament.Visibility = bracket.VisibilityPrivate
	tournament.Rank = "B"
	require.NoError(t, store.UpdateTournament(ctx, nil, tournament))

	missing := newTestTournament(4)
	assert.ErrorIs(t, store.UpdateTournament(ctx, nil, missing), bracket.ErrNotFound)

	finishedAt := time.Now().UTC()
	require.NoError(t, store.FinishTournament(ctx, nil, tournament.ID, utils.Ptr("alice"), finishedAt))
	assert.ErrorIs(t, store.FinishTournament(ctx, nil, tournament.ID, nil, finishedAt), bracket.ErrNotFound)

	fetched, err := store.GetTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fetched.Name)
	assert.Equal(t, bracket.VisibilityPrivate, fetched.Visibility)
	assert.Equal(t, "B", fetched.Rank)
	assert.Equal(t, bracket.TournamentFinished, fetched.Status)
	assert.Equal(t, "alice", utils.OrZero(fetched.ChampionID))
	require.NotNil(t, fetched.FinishDate)
	assert.WithinDuration(t, finishedAt, *fetched.FinishDate, time.Second)
}

func TestListTournamentsByStatus(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	ongoing := newTestTournament(4)
	finished := newTestTournament(4)
	insertTournament(t, store, ongoing)
	insertTournament(t, store, finished)
	require.NoError(t, store.FinishTournament(ctx, nil, finished.ID, nil, time.Now().UTC()))

	all, err := store.ListTournaments(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := bracket.TournamentFinished
	onlyFinished, err := store.ListTournaments(ctx, nil, &status)
	require.NoError(t, err)
	require.Len(t, onlyFinished, 1)
	assert.Equal(t, finished.ID, onlyFinished[0].ID)
}

func TestDeleteTournament(t *testing.T) {
	db := setupTestDB(t)
	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTestTournament(4)
	insertTournament(t, store, tournament)
	_, err := store.AddParticipant(ctx, nil, tournament.ID, "alice", time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, store.DeleteTournament(ctx, nil, tournament.ID))
	assert.ErrorIs(t, store.DeleteTournament(ctx, nil, tournament.ID), bracket.ErrNotFound)

	participants, err := store.ListParticipants(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, participants)
}
