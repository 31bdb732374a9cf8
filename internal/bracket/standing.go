package bracket

import "github.com/google/uuid"

type StandingType string

const (
	StandingGroup   StandingType = "group"
	StandingBracket StandingType = "bracket"
)

type Standing struct {
	EntityMeta

	TournamentID uuid.UUID    `db:"tournament_id" json:"tournamentId"`
	Type         StandingType `db:"type" json:"type"`
	Name         string       `db:"name" json:"name"`
	Position     int          `db:"position" json:"position"`
	MaxTeams     int          `db:"max_teams" json:"maxTeams"`
	Finished     bool         `db:"finished" json:"finished"`
}

// StandingTeam is a roster row. Slot is the team's seed within the standing.
type StandingTeam struct {
	StandingID uuid.UUID `db:"standing_id" json:"standingId"`
	TeamID     uuid.UUID `db:"team_id" json:"teamId"`
	Slot       int       `db:"slot" json:"slot"`
}
