package bracket

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentOngoing  TournamentStatus = "ONGOING"
	TournamentFinished TournamentStatus = "FINISHED"
)

// Format decides what a participant ID refers to: a player for solo, a team for team.
type Format string

const (
	FormatSolo Format = "solo"
	FormatTeam Format = "team"
)

func (f Format) Valid() bool {
	return f == FormatSolo || f == FormatTeam
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

type Tournament struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	Description string           `db:"description" json:"description"`
	GameID      *string          `db:"game_id" json:"gameId,omitempty"`
	Format      Format           `db:"format" json:"format"`
	Visibility  Visibility       `db:"visibility" json:"visibility"`
	Status      TournamentStatus `db:"status" json:"status"`

	// Maximum number of participant slots, players or teams alike
	MaxTeams  int     `db:"max_teams" json:"maxTeams"`
	CashPrize float64 `db:"cash_prize" json:"cashPrize"`

	MinRankRequirement     *int `db:"min_rank_requirement" json:"minRankRequirement,omitempty"`
	MaxRankRequirement     *int `db:"max_rank_requirement" json:"maxRankRequirement,omitempty"`
	TrustFactorRequirement *int `db:"trust_factor_requirement" json:"trustFactorRequirement,omitempty"`

	Reputation float64 `db:"reputation" json:"reputation"`
	Rank       string  `db:"rank" json:"rank"`

	OrganizerIDs IDList  `db:"organizer_ids" json:"organizerIds"`
	ChampionID   *string `db:"champion_id" json:"championId,omitempty"`

	StartDate  time.Time  `db:"start_date" json:"startDate"`
	FinishDate *time.Time `db:"finish_date" json:"finishDate,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`

	// Join order; loaded from the membership table, not a column
	ParticipatingIDs []string `db:"-" json:"participatingIds"`
}

func (t *Tournament) IsFinished() bool {
	return t.Status == TournamentFinished
}

func (t *Tournament) HasParticipant(id string) bool {
	for _, p := range t.ParticipatingIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (t *Tournament) IsFull() bool {
	return len(t.ParticipatingIDs) >= t.MaxTeams
}

// IDList is an ordered list of identities stored as a JSON array column.
type IDList []string

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into IDList", src)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("decode id list: %w", err)
	}
	*l = ids
	return nil
}
