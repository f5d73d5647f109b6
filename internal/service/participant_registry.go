package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"golang.org/x/sync/errgroup"
)

// ParticipantRegistry turns a tournament's membership list into the seed list
// used for round one. Seeds keep join order.
type ParticipantRegistry struct {
	teams       TeamDirectory
	concurrency int
	logger      *slog.Logger
}

func NewParticipantRegistry(teams TeamDirectory, concurrency int, logger *slog.Logger) *ParticipantRegistry {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ParticipantRegistry{teams: teams, concurrency: concurrency, logger: logger}
}

// ResolveSeeds returns player IDs verbatim for solo tournaments. For team
// tournaments every team is looked up and teams that no longer exist are dropped.
func (r *ParticipantRegistry) ResolveSeeds(ctx context.Context, tournament *bracket.Tournament) ([]string, error) {
	switch tournament.Format {
	case bracket.FormatSolo:
		seeds := make([]string, len(tournament.ParticipatingIDs))
		copy(seeds, tournament.ParticipatingIDs)
		return seeds, nil
	case bracket.FormatTeam:
		return r.resolveTeams(ctx, tournament)
	}
	return nil, fmt.Errorf("%w: %q", bracket.ErrInvalidFormat, tournament.Format)
}

func (r *ParticipantRegistry) resolveTeams(ctx context.Context, tournament *bracket.Tournament) ([]string, error) {
	if r.teams == nil {
		return nil, fmt.Errorf("no team directory configured for team tournament %s", tournament.ID)
	}

	ids := tournament.ParticipatingIDs
	exists := make([]bool, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			ok, err := r.teams.TeamExists(gCtx, id)
			if err != nil {
				return fmt.Errorf("look up team %s: %w", id, err)
			}
			exists[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seeds := make([]string, 0, len(ids))
	for i, id := range ids {
		if !exists[i] {
			r.logger.WarnContext(ctx, "dropping stale team from seeds",
				"tournament_id", tournament.ID, "team_id", id)
			continue
		}
		seeds = append(seeds, id)
	}
	return seeds, nil
}
