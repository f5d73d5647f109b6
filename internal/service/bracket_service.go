package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BracketService builds single elimination rounds. It decides pairings and
// completion but never changes tournament status, that is left to TournamentService.
type BracketService struct {
	db       *sqlx.DB
	stores   Stores
	registry *ParticipantRegistry
	opts     Options
}

func NewBracketService(db *sqlx.DB, stores Stores, registry *ParticipantRegistry, opts Options) *BracketService {
	return &BracketService{db: db, stores: stores, registry: registry, opts: opts.withDefaults()}
}

// Advance is the outcome of a completed round: either the next round or the champion.
type Advance struct {
	Round      *bracket.Round
	Matches    []bracket.Match
	ChampionID *string
}

func (a *Advance) Complete() bool {
	return a.ChampionID != nil
}

type pairing struct {
	A string
	B *string
}

// pairSeeds pairs consecutive entries. With an odd count the last entry gets a bye.
func pairSeeds(seeds []string) []pairing {
	pairs := make([]pairing, 0, (len(seeds)+1)/2)
	for i := 0; i < len(seeds); i += 2 {
		p := pairing{A: seeds[i]}
		if i+1 < len(seeds) {
			b := seeds[i+1]
			p.B = &b
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func roundName(number int, pairs []pairing) string {
	if len(pairs) == 1 && pairs[0].B != nil {
		return "Final"
	}
	return fmt.Sprintf("Round %d", number)
}

// buildRound lays out a round and its matches. Byes are decided on creation.
func buildRound(tournamentID uuid.UUID, number int, seeds []string, now time.Time) (*bracket.Round, []bracket.Match) {
	pairs := pairSeeds(seeds)

	round := &bracket.Round{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		RoundNumber:  number,
		Name:         roundName(number, pairs),
		Type:         bracket.Knockout,
		CreatedAt:    now,
		MatchIDs:     make([]uuid.UUID, 0, len(pairs)),
	}

	matches := make([]bracket.Match, 0, len(pairs))
	for i, p := range pairs {
		m := bracket.Match{
			ID:           uuid.New(),
			RoundID:      round.ID,
			TournamentID: tournamentID,
			MatchOrder:   i + 1,
			SlotA:        p.A,
			SlotB:        p.B,
			CreatedAt:    now,
		}
		if m.IsBye() {
			winner := p.A
			m.WinnerID = &winner
		}
		matches = append(matches, m)
		round.MatchIDs = append(round.MatchIDs, m.ID)
	}
	return round, matches
}

// GenerateBracket creates round one from the tournament's seeds.
func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID uuid.UUID) (round *bracket.Round, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "BracketService.GenerateBracket",
		trace.WithAttributes(attribute.String("tournament.id", tournamentID.String())))
	defer func() { endSpan(span, err) }()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != bracket.TournamentOngoing {
		return nil, fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, tournamentID, tournament.Status)
	}

	_, err = s.stores.Rounds.LatestRound(ctx, nil, tournamentID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: bracket already generated for tournament %s", bracket.ErrInvalidState, tournamentID)
	case !errors.Is(err, bracket.ErrNotFound):
		return nil, err
	}

	seeds, err := s.registry.ResolveSeeds(ctx, tournament)
	if err != nil {
		return nil, err
	}
	if len(seeds) < 2 {
		return nil, fmt.Errorf("%w: tournament %s has %d", bracket.ErrInsufficientParticipants, tournamentID, len(seeds))
	}

	round, matches := buildRound(tournamentID, 1, seeds, s.opts.Now())
	if err := s.persistRound(ctx, round, matches); err != nil {
		return nil, err
	}

	s.opts.Metrics.BracketGenerated()
	s.opts.Logger.InfoContext(ctx, "bracket generated",
		"tournament_id", tournamentID, "seeds", len(seeds), "matches", len(matches))
	return round, nil
}

// AdvanceRound closes the latest round. See advance for the rules.
func (s *BracketService) AdvanceRound(ctx context.Context, tournamentID uuid.UUID) (*Advance, error) {
	return s.advance(ctx, tournamentID, 0)
}

// advance pairs the winners of the latest round into the next one, or reports
// the champion when a single winner is left. A non-zero fromRound makes the call
// conditional: if the latest round is not fromRound somebody already advanced it
// and ErrInvalidState is returned without touching storage.
func (s *BracketService) advance(ctx context.Context, tournamentID uuid.UUID, fromRound int) (result *Advance, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "BracketService.AdvanceRound",
		trace.WithAttributes(
			attribute.String("tournament.id", tournamentID.String()),
			attribute.Int("round.from", fromRound),
		))
	defer func() { endSpan(span, err) }()

	latest, err := s.stores.Rounds.LatestRound(ctx, nil, tournamentID)
	if errors.Is(err, bracket.ErrNotFound) {
		return nil, fmt.Errorf("tournament %s: %w", tournamentID, bracket.ErrNoBracket)
	}
	if err != nil {
		return nil, err
	}
	if fromRound != 0 && latest.RoundNumber != fromRound {
		return nil, fmt.Errorf("%w: round %d already advanced, latest is %d",
			bracket.ErrInvalidState, fromRound, latest.RoundNumber)
	}

	matches, err := s.stores.Matches.ListMatchesByRound(ctx, nil, latest.ID)
	if err != nil {
		return nil, err
	}

	winners := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.WinnerID == nil {
			return nil, fmt.Errorf("round %d of tournament %s: %w", latest.RoundNumber, tournamentID, bracket.ErrIncompleteRound)
		}
		winners = append(winners, *m.WinnerID)
	}

	if len(winners) == 1 {
		champion := winners[0]
		s.opts.Logger.InfoContext(ctx, "champion decided",
			"tournament_id", tournamentID, "champion_id", champion, "round", latest.RoundNumber)
		return &Advance{ChampionID: &champion}, nil
	}

	next, nextMatches := buildRound(tournamentID, latest.RoundNumber+1, winners, s.opts.Now())
	if err := s.persistRound(ctx, next, nextMatches); err != nil {
		return nil, err
	}

	s.opts.Metrics.RoundCreated()
	s.opts.Logger.InfoContext(ctx, "round advanced",
		"tournament_id", tournamentID, "round", next.RoundNumber, "matches", len(nextMatches))
	return &Advance{Round: next, Matches: nextMatches}, nil
}

// persistRound writes the round and its matches in one transaction. Losing the
// (tournament, round number) uniqueness race surfaces as ErrInvalidState.
func (s *BracketService) persistRound(ctx context.Context, round *bracket.Round, matches []bracket.Match) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.stores.Rounds.CreateRound(ctx, tx, round); err != nil {
		if errors.Is(err, bracket.ErrDuplicate) {
			return fmt.Errorf("%w: round %d of tournament %s already exists",
				bracket.ErrInvalidState, round.RoundNumber, round.TournamentID)
		}
		return err
	}
	if err := s.stores.Matches.CreateMatches(ctx, tx, matches); err != nil {
		return err
	}
	return tx.Commit()
}
