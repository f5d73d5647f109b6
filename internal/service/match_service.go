package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MatchScore struct {
	A int `json:"a"`
	B int `json:"b"`
}

// SubmitMatchResult records the winner of a match. When it was the last open
// match of the latest round the next round is generated, or the tournament is
// finished with the winner as champion. Resubmitting the recorded winner only
// retries the advance, so a round left behind by a failed advance can be completed.
func (s *TournamentService) SubmitMatchResult(ctx context.Context, matchID uuid.UUID, winnerID string, score *MatchScore) (match *bracket.Match, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.SubmitMatchResult",
		trace.WithAttributes(attribute.String("match.id", matchID.String())))
	defer func() {
		s.opts.Metrics.MatchResult(matchOutcome(err))
		endSpan(span, err)
	}()

	match, err = s.stores.Matches.GetMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(match.TournamentID)
	defer unlock()

	// re-read under the lock, the first read only told us which tournament to lock
	match, err = s.stores.Matches.GetMatch(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasSlot(winnerID) {
		return nil, fmt.Errorf("%q in match %s: %w", winnerID, matchID, bracket.ErrInvalidWinner)
	}
	if score != nil && (score.A < 0 || score.B < 0) {
		return nil, validationError("scores must not be negative")
	}

	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.IsFinished() {
		return nil, fmt.Errorf("tournament %s: %w", tournament.ID, bracket.ErrAlreadyFinished)
	}

	if match.IsDecided() {
		return s.resubmitted(ctx, match, winnerID)
	}

	match.WinnerID = &winnerID
	match.LoserID = match.Opponent(winnerID)
	if score != nil {
		match.ScoreA = &score.A
		match.ScoreB = &score.B
	}

	recorded, err := s.stores.Matches.RecordResult(ctx, nil, match)
	if err != nil {
		return nil, fmt.Errorf("failed to record result: %w", err)
	}
	if !recorded {
		current, err := s.stores.Matches.GetMatch(ctx, nil, matchID)
		if err != nil {
			return nil, err
		}
		return s.resubmitted(ctx, current, winnerID)
	}

	s.opts.Logger.InfoContext(ctx, "match result recorded",
		"tournament_id", match.TournamentID, "match_id", matchID, "winner_id", winnerID)

	if err := s.advanceAfterResult(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// advanceAfterResult runs the implicit advance once every match of the match's
// round is decided. Losing the race to another advance is not an error.
func (s *TournamentService) advanceAfterResult(ctx context.Context, match *bracket.Match) error {
	round, err := s.stores.Rounds.GetRound(ctx, nil, match.RoundID)
	if err != nil {
		return err
	}

	matches, err := s.stores.Matches.ListMatchesByRound(ctx, nil, round.ID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if !m.IsDecided() {
			return nil
		}
	}

	result, err := s.engine.advance(ctx, match.TournamentID, round.RoundNumber)
	if errors.Is(err, bracket.ErrInvalidState) {
		s.opts.Logger.DebugContext(ctx, "round already advanced",
			"tournament_id", match.TournamentID, "round", round.RoundNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to advance round %d: %w", round.RoundNumber, err)
	}

	if result.Complete() {
		err := s.finishLocked(ctx, match.TournamentID, result.ChampionID, "champion")
		if err != nil && !errors.Is(err, bracket.ErrAlreadyFinished) {
			return err
		}
	}
	return nil
}

// resubmitted handles a result for a match that already has a winner. The same
// winner reruns the implicit advance, which is a no-op once the round has moved on.
func (s *TournamentService) resubmitted(ctx context.Context, match *bracket.Match, winnerID string) (*bracket.Match, error) {
	if match.WinnerID == nil || *match.WinnerID != winnerID {
		return nil, fmt.Errorf("%w: match %s already has a winner", bracket.ErrInvalidState, match.ID)
	}
	if err := s.advanceAfterResult(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func matchOutcome(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, bracket.ErrNotFound):
		return "not_found"
	case errors.Is(err, bracket.ErrInvalidWinner):
		return "invalid_winner"
	case errors.Is(err, bracket.ErrAlreadyFinished):
		return "finished"
	case errors.Is(err, bracket.ErrInvalidState):
		return "already_decided"
	case errors.Is(err, bracket.ErrValidation):
		return "invalid"
	}
	return "error"
}
