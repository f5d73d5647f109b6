package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type RoundStore struct {
	db *sqlx.DB
}

func NewRoundStore(db *sqlx.DB) *RoundStore {
	return &RoundStore{db: db}
}

const (
	createRoundQuery = `
		INSERT INTO rounds (id, tournament_id, round_number, name, round_type, created_at)
		VALUES (:id, :tournament_id, :round_number, :name, :round_type, :created_at)`
	getRoundQuery      = "SELECT * FROM rounds WHERE id = ?"
	listRoundsQuery    = "SELECT * FROM rounds WHERE tournament_id = ? ORDER BY round_number ASC"
	latestRoundQuery   = "SELECT * FROM rounds WHERE tournament_id = ? ORDER BY round_number DESC LIMIT 1"
	roundMatchIDsQuery = "SELECT id FROM matches WHERE round_id = ? ORDER BY match_order ASC"
	deleteRoundQuery   = "DELETE FROM rounds WHERE id = ?"

	listTournamentMatchIDsQuery = "SELECT id, round_id FROM matches WHERE tournament_id = ? ORDER BY match_order ASC"
)

type roundMatchRow struct {
	ID      uuid.UUID `db:"id"`
	RoundID uuid.UUID `db:"round_id"`
}

// CreateRound fails with ErrDuplicate when the tournament already has a round with the same number.
func (s *RoundStore) CreateRound(ctx context.Context, q sqlx.ExtContext, round *bracket.Round) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), createRoundQuery, round)
	return translateError(err, fmt.Sprintf("create round %d", round.RoundNumber))
}

func (s *RoundStore) GetRound(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Round, error) {
	e := executor(s.db, q)

	var round bracket.Round
	if err := sqlx.GetContext(ctx, e, &round, e.Rebind(getRoundQuery), id); err != nil {
		return nil, translateError(err, fmt.Sprintf("get round %s", id))
	}
	if err := s.attachMatchIDs(ctx, e, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

// LatestRound returns the round with the highest number, or ErrNotFound when the
// tournament has no bracket yet.
func (s *RoundStore) LatestRound(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (*bracket.Round, error) {
	e := executor(s.db, q)

	var round bracket.Round
	if err := sqlx.GetContext(ctx, e, &round, e.Rebind(latestRoundQuery), tournamentID); err != nil {
		return nil, translateError(err, fmt.Sprintf("latest round of %s", tournamentID))
	}
	if err := s.attachMatchIDs(ctx, e, &round); err != nil {
		return nil, err
	}
	return &round, nil
}

func (s *RoundStore) ListRounds(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Round, error) {
	e := executor(s.db, q)

	rounds := []bracket.Round{}
	if err := sqlx.SelectContext(ctx, e, &rounds, e.Rebind(listRoundsQuery), tournamentID); err != nil {
		return nil, translateError(err, "list rounds")
	}
	if len(rounds) == 0 {
		return rounds, nil
	}

	var rows []roundMatchRow
	if err := sqlx.SelectContext(ctx, e, &rows, e.Rebind(listTournamentMatchIDsQuery), tournamentID); err != nil {
		return nil, translateError(err, "list round matches")
	}

	byRound := make(map[uuid.UUID][]uuid.UUID, len(rounds))
	for _, r := range rows {
		byRound[r.RoundID] = append(byRound[r.RoundID], r.ID)
	}
	for i := range rounds {
		rounds[i].MatchIDs = byRound[rounds[i].ID]
		if rounds[i].MatchIDs == nil {
			rounds[i].MatchIDs = []uuid.UUID{}
		}
	}
	return rounds, nil
}

// DeleteRound removes the round and every match that belongs to it.
// Pass a transaction to make both deletes atomic.
func (s *RoundStore) DeleteRound(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	e := executor(s.db, q)

	if _, err := e.ExecContext(ctx, e.Rebind(deleteRoundMatchesQuery), id); err != nil {
		return translateError(err, "delete round matches")
	}

	res, err := e.ExecContext(ctx, e.Rebind(deleteRoundQuery), id)
	if err != nil {
		return translateError(err, "delete round")
	}
	return requireAffected(res, fmt.Sprintf("delete round %s", id))
}

func (s *RoundStore) attachMatchIDs(ctx context.Context, e sqlx.ExtContext, round *bracket.Round) error {
	round.MatchIDs = []uuid.UUID{}
	if err := sqlx.SelectContext(ctx, e, &round.MatchIDs, e.Rebind(roundMatchIDsQuery), round.ID); err != nil {
		return translateError(err, "list round match ids")
	}
	return nil
}
