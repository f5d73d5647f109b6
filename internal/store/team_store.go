package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// TeamStore answers team existence questions for team-format seeding.
// Team management itself lives outside this service; CreateTeam exists for seeding.
type TeamStore struct {
	db *sqlx.DB
}

const (
	teamExistsQuery = "SELECT COUNT(*) FROM teams WHERE id = ?"
	createTeamQuery = "INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)"
	deleteTeamQuery = "DELETE FROM teams WHERE id = ?"
)

func NewTeamStore(db *sqlx.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) TeamExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(teamExistsQuery), id); err != nil {
		return false, translateError(err, "team exists")
	}
	return count > 0, nil
}

func (s *TeamStore) CreateTeam(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(createTeamQuery), id, name, time.Now().UTC())
	return translateError(err, "create team")
}

func (s *TeamStore) DeleteTeam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(deleteTeamQuery), id)
	if err != nil {
		return translateError(err, "delete team")
	}
	return requireAffected(res, "delete team "+id)
}
