package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, name, description, game_id, format, visibility, status, max_teams, cash_prize,
			min_rank_requirement, max_rank_requirement, trust_factor_requirement, reputation, rank, organizer_ids,
			champion_id, start_date, finish_date, created_at)
		VALUES (:id, :name, :description, :game_id, :format, :visibility, :status, :max_teams, :cash_prize,
			:min_rank_requirement, :max_rank_requirement, :trust_factor_requirement, :reputation, :rank, :organizer_ids,
			:champion_id, :start_date, :finish_date, :created_at)`
	updateTournamentQuery = `
		UPDATE tournaments SET
			name = :name,
			description = :description,
			game_id = :game_id,
			visibility = :visibility,
			max_teams = :max_teams,
			cash_prize = :cash_prize,
			min_rank_requirement = :min_rank_requirement,
			max_rank_requirement = :max_rank_requirement,
			trust_factor_requirement = :trust_factor_requirement,
			reputation = :reputation,
			rank = :rank,
			organizer_ids = :organizer_ids
		WHERE id = :id`
	finishTournamentQuery = `
		UPDATE tournaments SET status = ?, finish_date = ?, champion_id = ?
		WHERE id = ? AND status = ?`
	getTournamentQuery      = "SELECT * FROM tournaments WHERE id = ?"
	lockTournamentQuery     = "SELECT id FROM tournaments WHERE id = ?"
	listTournamentsQuery    = "SELECT * FROM tournaments ORDER BY created_at DESC"
	listTournamentsByStatus = "SELECT * FROM tournaments WHERE status = ? ORDER BY created_at DESC"
	deleteTournamentQuery   = "DELETE FROM tournaments WHERE id = ?"
	listParticipantsQuery   = "SELECT * FROM tournament_participants WHERE tournament_id = ? ORDER BY position ASC"
	addParticipantQuery     = `
		INSERT INTO tournament_participants (tournament_id, participant_id, position, joined_at)
		VALUES (:tournament_id, :participant_id, :position, :joined_at)`
	removeParticipantQuery  = "DELETE FROM tournament_participants WHERE tournament_id = ? AND participant_id = ?"
	deleteParticipantsQuery = "DELETE FROM tournament_participants WHERE tournament_id = ?"
	nextParticipantPosition = "SELECT COALESCE(MAX(position), 0) + 1 FROM tournament_participants WHERE tournament_id = ?"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, executor(s.db, q), createTournamentQuery, tournament)
	return translateError(err, "create tournament")
}

// GetTournament loads the tournament together with its participants in join order.
func (s *TournamentStore) GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error) {
	e := executor(s.db, q)

	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, e, &tournament, e.Rebind(getTournamentQuery), id); err != nil {
		return nil, translateError(err, fmt.Sprintf("get tournament %s", id))
	}

	participants, err := s.ListParticipants(ctx, q, id)
	if err != nil {
		return nil, err
	}

	tournament.ParticipatingIDs = make([]string, 0, len(participants))
	for _, p := range participants {
		tournament.ParticipatingIDs = append(tournament.ParticipatingIDs, p.ParticipantID)
	}
	return &tournament, nil
}

// LockTournament takes a row lock on the tournament until q's transaction ends.
// SQLite has no row locks; there the write lock of an immediate transaction
// already serializes the caller.
func (s *TournamentStore) LockTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	e := executor(s.db, q)

	query := lockTournamentQuery
	if e.DriverName() != "sqlite3" {
		query += " FOR UPDATE"
	}
	var locked uuid.UUID
	if err := sqlx.GetContext(ctx, e, &locked, e.Rebind(query), id); err != nil {
		return translateError(err, fmt.Sprintf("lock tournament %s", id))
	}
	return nil
}

// ListTournaments returns tournaments newest first. Participant lists are not loaded.
func (s *TournamentStore) ListTournaments(ctx context.Context, q sqlx.ExtContext, status *bracket.TournamentStatus) ([]bracket.Tournament, error) {
	e := executor(s.db, q)

	tournaments := []bracket.Tournament{}
	var err error
	if status != nil {
		err = sqlx.SelectContext(ctx, e, &tournaments, e.Rebind(listTournamentsByStatus), *status)
	} else {
		err = sqlx.SelectContext(ctx, e, &tournaments, listTournamentsQuery)
	}
	return tournaments, translateError(err, "list tournaments")
}

func (s *TournamentStore) UpdateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error {
	res, err := sqlx.NamedExecContext(ctx, executor(s.db, q), updateTournamentQuery, tournament)
	if err != nil {
		return translateError(err, "update tournament")
	}
	return requireAffected(res, fmt.Sprintf("update tournament %s", tournament.ID))
}

// FinishTournament moves an ONGOING tournament to FINISHED. A tournament that is
// missing or already finished yields ErrNotFound, so callers should check status first.
func (s *TournamentStore) FinishTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, championID *string, at time.Time) error {
	e := executor(s.db, q)
	res, err := e.ExecContext(ctx, e.Rebind(finishTournamentQuery),
		bracket.TournamentFinished, at, championID, id, bracket.TournamentOngoing)
	if err != nil {
		return translateError(err, "finish tournament")
	}
	return requireAffected(res, fmt.Sprintf("finish tournament %s", id))
}

func (s *TournamentStore) DeleteTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error {
	e := executor(s.db, q)

	if _, err := e.ExecContext(ctx, e.Rebind(deleteParticipantsQuery), id); err != nil {
		return translateError(err, "delete participants")
	}

	res, err := e.ExecContext(ctx, e.Rebind(deleteTournamentQuery), id)
	if err != nil {
		return translateError(err, "delete tournament")
	}
	return requireAffected(res, fmt.Sprintf("delete tournament %s", id))
}

func (s *TournamentStore) ListParticipants(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	e := executor(s.db, q)

	participants := []bracket.Participant{}
	err := sqlx.SelectContext(ctx, e, &participants, e.Rebind(listParticipantsQuery), tournamentID)
	return participants, translateError(err, "list participants")
}

// AddParticipant appends participantID after the current last position.
// Joining twice fails with ErrDuplicate.
func (s *TournamentStore) AddParticipant(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, participantID string, at time.Time) (*bracket.Participant, error) {
	e := executor(s.db, q)

	var position int
	if err := sqlx.GetContext(ctx, e, &position, e.Rebind(nextParticipantPosition), tournamentID); err != nil {
		return nil, translateError(err, "next participant position")
	}

	p := &bracket.Participant{
		TournamentID:  tournamentID,
		ParticipantID: participantID,
		Position:      position,
		JoinedAt:      at,
	}
	if _, err := sqlx.NamedExecContext(ctx, e, addParticipantQuery, p); err != nil {
		return nil, translateError(err, fmt.Sprintf("add participant %s", participantID))
	}
	return p, nil
}

func (s *TournamentStore) RemoveParticipant(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, participantID string) error {
	e := executor(s.db, q)
	res, err := e.ExecContext(ctx, e.Rebind(removeParticipantQuery), tournamentID, participantID)
	if err != nil {
		return translateError(err, "remove participant")
	}
	return requireAffected(res, fmt.Sprintf("remove participant %s", participantID))
}
