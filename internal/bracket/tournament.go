package bracket

import (
	"time"
)

type Format string

const (
	BracketOnly      Format = "bracket_only"
	GroupsOnly       Format = "groups_only"
	GroupsAndBracket Format = "groups_and_bracket"
)

func (f Format) Valid() bool {
	switch f {
	case BracketOnly, GroupsOnly, GroupsAndBracket:
		return true
	}
	return false
}

func (f Format) HasGroups() bool {
	return f == GroupsOnly || f == GroupsAndBracket
}

func (f Format) HasBracket() bool {
	return f == BracketOnly || f == GroupsAndBracket
}

type TournamentStatus string

const (
	StatusSetup             TournamentStatus = "setup"
	StatusSeedingGroups     TournamentStatus = "seeding_groups"
	StatusGroupsInProgress  TournamentStatus = "groups_in_progress"
	StatusGroupsCompleted   TournamentStatus = "groups_completed"
	StatusSeedingBracket    TournamentStatus = "seeding_bracket"
	StatusBracketInProgress TournamentStatus = "bracket_in_progress"
	StatusFinished          TournamentStatus = "finished"
	StatusCancelled         TournamentStatus = "cancelled"
)

type Tournament struct {
	EntityMeta

	Name     string           `db:"name" json:"name"`
	Slug     string           `db:"slug" json:"slug"`
	MaxTeams int              `db:"max_teams" json:"maxTeams"`
	Format   Format           `db:"format" json:"format"`
	Status   TournamentStatus `db:"status" json:"status"`

	RegistrationOpen     bool       `db:"registration_open" json:"registrationOpen"`
	RegistrationClosesAt *time.Time `db:"registration_closes_at" json:"registrationClosesAt,omitempty"`

	// Group stage settings, zero for BracketOnly
	GroupCount      int `db:"group_count" json:"groupCount"`
	AdvancePerGroup int `db:"advance_per_group" json:"advancePerGroup"`
	GroupBestOf     int `db:"group_best_of" json:"groupBestOf"`

	BracketBestOf int `db:"bracket_best_of" json:"bracketBestOf"`

	// Optimistic concurrency token, bumped by every status write
	Version int `db:"version" json:"version"`
}

// InProgress reports whether games can currently be recorded.
func (t *Tournament) InProgress() bool {
	return t.Status == StatusGroupsInProgress || t.Status == StatusBracketInProgress
}
