package bracket

import (
	"time"

	"github.com/google/uuid"
)

type RoundType string

const (
	Knockout RoundType = "knockout"
)

type Round struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	RoundNumber  int       `db:"round_number" json:"roundNumber"`
	Name         string    `db:"name" json:"name"`
	Type         RoundType `db:"round_type" json:"type"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`

	// Creation order of the round's matches
	MatchIDs []uuid.UUID `db:"-" json:"matchIds"`
}
