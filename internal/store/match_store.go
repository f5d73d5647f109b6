package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

const (
	createMatchQuery = `
		INSERT INTO matches (id, round_id, tournament_id, match_order, slot_a, slot_b, score_a, score_b, winner_id, loser_id, created_at)
		VALUES (:id, :round_id, :tournament_id, :match_order, :slot_a, :slot_b, :score_a, :score_b, :winner_id, :loser_id, :created_at)`
	updateMatchQuery = `
		UPDATE matches SET
			slot_a = :slot_a,
			slot_b = :slot_b,
			score_a = :score_a,
			score_b = :score_b,
			winner_id = :winner_id,
			loser_id = :loser_id
		WHERE id = :id`
	recordResultQuery = `
		UPDATE matches SET winner_id = ?, loser_id = ?, score_a = ?, score_b = ?
		WHERE id = ? AND winner_id IS NULL`
	getMatchQuery           = "SELECT * FROM matches WHERE id = ?"
	listRoundMatchesQuery   = "SELECT * FROM matches WHERE round_id = ? ORDER BY match_order ASC"
	deleteMatchQuery        = "DELETE FROM matches WHERE id = ?"
	deleteRoundMatchesQuery = "DELETE FROM matches WHERE round_id = ?"
	listTournamentMatches   = `
		SELECT m.* FROM matches m
		JOIN rounds r ON r.id = m.round_id
		WHERE m.tournament_id = ?
		ORDER BY r.round_number ASC, m.match_order ASC`
)

func (s *MatchStore) CreateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), createMatchQuery, match)
	return translateError(err, "create match")
}

// CreateMatches inserts all matches with a single batch statement.
func (s *MatchStore) CreateMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), createMatchQuery, matches)
	return translateError(err, "create matches")
}

func (s *MatchStore) GetMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error) {
	e := executor(s.db, q)

	var match bracket.Match
	if err := sqlx.GetContext(ctx, e, &match, e.Rebind(getMatchQuery), id); err != nil {
		return nil, translateError(err, fmt.Sprintf("get match %s", id))
	}
	return &match, nil
}

func (s *MatchStore) ListMatchesByRound(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) ([]bracket.Match, error) {
	e := executor(s.db, q)

	matches := []bracket.Match{}
	err := sqlx.SelectContext(ctx, e, &matches, e.Rebind(listRoundMatchesQuery), roundID)
	return matches, translateError(err, "list round matches")
}

func (s *MatchStore) ListMatchesByTournament(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error) {
	e := executor(s.db, q)

	matches := []bracket.Match{}
	err := sqlx.SelectContext(ctx, e, &matches, e.Rebind(listTournamentMatches), tournamentID)
	return matches, translateError(err, "list tournament matches")
}

func (s *MatchStore) UpdateMatch(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) error {
	res, err := sqlx.NamedExecContext(ctx, executor(s.db, q), updateMatchQuery, match)
	if err != nil {
		return translateError(err, "update match")
	}
	return requireAffected(res, fmt.Sprintf("update match %s", match.ID))
}

// RecordResult sets the winner only while the match is still undecided. It returns
// false without error when another writer decided the match first.
func (s *MatchStore) RecordResult(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) (bool, error) {
	e := executor(s.db, q)
	res, err := e.ExecContext(ctx, e.Rebind(recordResultQuery),
		match.WinnerID, match.LoserID, match.ScoreA, match.ScoreB, match.ID)
	if err != nil {
		return false, translateError(err, "record match result")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MatchStore) DeleteMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	e := executor(s.db, q)
	res, err := e.ExecContext(ctx, e.Rebind(deleteMatchQuery), id)
	if err != nil {
		return translateError(err, "delete match")
	}
	return requireAffected(res, fmt.Sprintf("delete match %s", id))
}

func (s *MatchStore) DeleteMatchesByRound(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) (int64, error) {
	e := executor(s.db, q)
	res, err := e.ExecContext(ctx, e.Rebind(deleteRoundMatchesQuery), roundID)
	if err != nil {
		return 0, translateError(err, "delete round matches")
	}
	return res.RowsAffected()
}
