package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one membership row. Position is the join order and doubles as the seed.
type Participant struct {
	TournamentID  uuid.UUID `db:"tournament_id"`
	ParticipantID string    `db:"participant_id"`
	Position      int       `db:"position"`
	JoinedAt      time.Time `db:"joined_at"`
}
