package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/metrics"
	"github.com/AdamBeresnev/op-knockout/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file backed SQLite database in a temp dir and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "service.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
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

type testEnv struct {
	db      *sqlx.DB
	stores  Stores
	teams   *store.TeamStore
	metrics *metrics.Metrics
	engine  *BracketService
	svc     *TournamentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStores(t, func(s Stores) Stores { return s })
}

// newTestEnvWithStores lets a test wrap the repositories the services use.
func newTestEnvWithStores(t *testing.T, wrap func(Stores) Stores) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	stores := wrap(NewStores(db))
	teams := store.NewTeamStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := Options{
		Logger:  logger,
		Metrics: metrics.New(prometheus.NewRegistry()),
	}
	registry := NewParticipantRegistry(teams, 4, logger)
	engine := NewBracketService(db, stores, registry, opts)

	return &testEnv{
		db:      db,
		stores:  stores,
		teams:   teams,
		metrics: opts.Metrics,
		engine:  engine,
		svc:     NewTournamentService(db, stores, engine, opts),
	}
}

// replica returns a second service over the same database with its own
// in-process locks, like another server instance would have.
func (e *testEnv) replica() *TournamentService {
	return NewTournamentService(e.db, e.stores, e.engine, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func soloInput(maxTeams int) CreateInput {
	return CreateInput{
		Name:         "Friday Cup",
		Description:  "weekly knockout",
		Format:       bracket.FormatSolo,
		Visibility:   bracket.VisibilityPublic,
		MaxTeams:     maxTeams,
		OrganizerIDs: []string{"organizer-1"},
	}
}

// createWithPlayers creates a solo tournament and joins the players in order.
func (e *testEnv) createWithPlayers(t *testing.T, maxTeams int, players ...string) *bracket.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament, err := e.svc.CreateTournament(ctx, soloInput(maxTeams))
	require.NoError(t, err)
	for _, p := range players {
		require.NoError(t, e.svc.JoinTournament(ctx, tournament.ID, p))
	}
	return tournament
}

func players(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("player-%d", i+1)
	}
	return ids
}

func (e *testEnv) roundMatches(t *testing.T, tournamentID uuid.UUID, number int) (bracket.Round, []bracket.Match) {
	t.Helper()
	ctx := context.Background()

	rounds, err := e.svc.GetRounds(ctx, tournamentID)
	require.NoError(t, err)
	for _, r := range rounds {
		if r.RoundNumber == number {
			matches, err := e.svc.GetMatches(ctx, r.ID)
			require.NoError(t, err)
			return r, matches
		}
	}
	require.FailNowf(t, "round missing", "tournament %s has no round %d", tournamentID, number)
	return bracket.Round{}, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
