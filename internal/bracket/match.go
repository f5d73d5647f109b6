package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RoundID      uuid.UUID `db:"round_id" json:"roundId"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`

	// Position inside the round, which is also the bracket-tree order for the next round
	MatchOrder int `db:"match_order" json:"matchOrder"`

	SlotA string  `db:"slot_a" json:"slotA"`
	SlotB *string `db:"slot_b" json:"slotB,omitempty"`

	ScoreA *int `db:"score_a" json:"scoreA,omitempty"`
	ScoreB *int `db:"score_b" json:"scoreB,omitempty"`

	WinnerID *string `db:"winner_id" json:"winnerId,omitempty"`
	LoserID  *string `db:"loser_id" json:"loserId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

func (m *Match) IsBye() bool {
	return m.SlotB == nil
}

func (m *Match) IsDecided() bool {
	return m.WinnerID != nil
}

func (m *Match) HasSlot(id string) bool {
	return m.SlotA == id || (m.SlotB != nil && *m.SlotB == id)
}

// Opponent returns the other slot of the match, or nil for a bye.
func (m *Match) Opponent(id string) *string {
	if m.SlotB == nil {
		return nil
	}
	if m.SlotA == id {
		other := *m.SlotB
		return &other
	}
	other := m.SlotA
	return &other
}
