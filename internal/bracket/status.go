package bracket

import "fmt"

var groupStages = map[TournamentStatus][]TournamentStatus{
	StatusSetup:            {StatusSeedingGroups},
	StatusSeedingGroups:    {StatusGroupsInProgress},
	StatusGroupsInProgress: {StatusGroupsCompleted},
}

var bracketStages = map[TournamentStatus][]TournamentStatus{
	StatusSeedingBracket:    {StatusBracketInProgress},
	StatusBracketInProgress: {StatusFinished},
}

// lifecycles lists the forward moves per format. Cancellation is handled
// separately since it is legal from every non-terminal state.
var lifecycles = map[Format]map[TournamentStatus][]TournamentStatus{
	BracketOnly: merge(bracketStages, map[TournamentStatus][]TournamentStatus{
		StatusSetup: {StatusSeedingBracket},
	}),
	GroupsOnly: merge(groupStages, map[TournamentStatus][]TournamentStatus{
		StatusGroupsCompleted: {StatusFinished},
	}),
	GroupsAndBracket: merge(groupStages, bracketStages, map[TournamentStatus][]TournamentStatus{
		StatusGroupsCompleted: {StatusSeedingBracket},
	}),
}

func merge(parts ...map[TournamentStatus][]TournamentStatus) map[TournamentStatus][]TournamentStatus {
	out := make(map[TournamentStatus][]TournamentStatus)
	for _, p := range parts {
		for from, to := range p {
			out[from] = append(out[from], to...)
		}
	}
	return out
}

func (s TournamentStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// AllowsRegistration reports whether teams may still sign up.
func (s TournamentStatus) AllowsRegistration() bool {
	return s == StatusSetup
}

func CanTransition(format Format, from, to TournamentStatus) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range lifecycles[format][from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t *Tournament) TransitionTo(to TournamentStatus) error {
	if !CanTransition(t.Format, t.Status, to) {
		return fmt.Errorf("%w: tournament %s cannot move from %s to %s", ErrConflict, t.Format, t.Status, to)
	}
	t.Status = to
	return nil
}
