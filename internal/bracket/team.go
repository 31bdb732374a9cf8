package bracket

import "github.com/google/uuid"

type TeamStatus string

const (
	TeamSignedUp   TeamStatus = "signed_up"
	TeamCompeting  TeamStatus = "competing"
	TeamAdvanced   TeamStatus = "advanced"
	TeamEliminated TeamStatus = "eliminated"
	TeamChampion   TeamStatus = "champion"
)

type Team struct {
	EntityMeta

	TournamentID uuid.UUID  `db:"tournament_id" json:"tournamentId"`
	Name         string     `db:"name" json:"name"`
	Seed         int        `db:"seed" json:"seed"`
	Status       TeamStatus `db:"status" json:"status"`

	// 0 is the group stage, n is bracket round n
	EliminatedInRound *int `db:"eliminated_in_round" json:"eliminatedInRound,omitempty"`
	Placement         *int `db:"placement" json:"placement,omitempty"`
}
