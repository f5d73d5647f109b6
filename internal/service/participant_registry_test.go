package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTeams struct {
	mu      sync.Mutex
	known   map[string]bool
	failOn  string
	lookups int
}

func (s *stubTeams) TeamExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if id == s.failOn {
		return false, errors.New("team directory unavailable")
	}
	return s.known[id], nil
}

func TestResolveSeedsSolo(t *testing.T) {
	teams := &stubTeams{}
	registry := NewParticipantRegistry(teams, 2, nil)

	tournament := &bracket.Tournament{Format: bracket.FormatSolo, ParticipatingIDs: []string{"p2", "p1", "p3"}}
	seeds, err := registry.ResolveSeeds(context.Background(), tournament)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1", "p3"}, seeds)
	assert.Zero(t, teams.lookups, "players are never looked up")

	seeds[0] = "changed"
	assert.Equal(t, "p2", tournament.ParticipatingIDs[0])
}

func TestResolveSeedsDropsStaleTeams(t *testing.T) {
	teams := &stubTeams{known: map[string]bool{"t1": true, "t3": true, "t4": true, "t6": true}}
	registry := NewParticipantRegistry(teams, 3, nil)

	tournament := &bracket.Tournament{
		Format:           bracket.FormatTeam,
		ParticipatingIDs: []string{"t1", "t2", "t3", "t4", "t5", "t6"},
	}
	seeds, err := registry.ResolveSeeds(context.Background(), tournament)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"t1", "t3", "t4", "t6"}, seeds); diff != "" {
		t.Errorf("seeds mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, teams.lookups)
}

func TestResolveSeedsLookupFailure(t *testing.T) {
	teams := &stubTeams{known: map[string]bool{"t1": true}, failOn: "t2"}
	registry := NewParticipantRegistry(teams, 1, nil)

	tournament := &bracket.Tournament{Format: bracket.FormatTeam, ParticipatingIDs: []string{"t1", "t2"}}
	_, err := registry.ResolveSeeds(context.Background(), tournament)
	assert.ErrorContains(t, err, "team directory unavailable")
}

func TestResolveSeedsInvalidFormat(t *testing.T) {
	registry := NewParticipantRegistry(&stubTeams{}, 1, nil)

	_, err := registry.ResolveSeeds(context.Background(), &bracket.Tournament{Format: "duo"})
	assert.ErrorIs(t, err, bracket.ErrInvalidFormat)
}

func TestResolveSeedsWithoutDirectory(t *testing.T) {
	registry := NewParticipantRegistry(nil, 1, nil)

	_, err := registry.ResolveSeeds(context.Background(), &bracket.Tournament{
		Format:           bracket.FormatTeam,
		ParticipatingIDs: []string{"t1"},
	})
	assert.Error(t, err)
}

func TestTeamTournamentSkipsDeletedTeams(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"red", "blue", "green"} {
		require.NoError(t, env.teams.CreateTeam(ctx, id, id+" team"))
	}

	in := soloInput(4)
	in.Format = bracket.FormatTeam
	tournament, err := env.svc.CreateTournament(ctx, in)
	require.NoError(t, err)
	for _, id := range []string{"red", "blue", "green"} {
		require.NoError(t, env.svc.JoinTournament(ctx, tournament.ID, id))
	}

	require.NoError(t, env.teams.DeleteTeam(ctx, "blue"))

	_, err = env.svc.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	round, matches := env.roundMatches(t, tournament.ID, 1)
	assert.Equal(t, "Final", round.Name)
	require.Len(t, matches, 1)
	assert.Equal(t, "red", matches[0].SlotA)
	assert.Equal(t, "green", *matches[0].SlotB)
}

func TestTeamTournamentAllButOneDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.teams.CreateTeam(ctx, "red", "red team"))

	in := soloInput(4)
	in.Format = bracket.FormatTeam
	tournament, err := env.svc.CreateTournament(ctx, in)
	require.NoError(t, err)
	require.NoError(t, env.svc.JoinTournament(ctx, tournament.ID, "red"))
	require.NoError(t, env.svc.JoinTournament(ctx, tournament.ID, "ghost"))

	_, err = env.svc.GenerateBracket(ctx, tournament.ID)
	assert.ErrorIs(t, err, bracket.ErrInsufficientParticipants)
}
