package bracket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name     string
		format   Format
		from, to TournamentStatus
		allowed  bool
	}{
		{"groups start from setup", GroupsAndBracket, StatusSetup, StatusSeedingGroups, true},
		{"bracket only skips groups", BracketOnly, StatusSetup, StatusSeedingBracket, true},
		{"bracket only cannot seed groups", BracketOnly, StatusSetup, StatusSeedingGroups, false},
		{"groups and bracket cannot skip groups", GroupsAndBracket, StatusSetup, StatusSeedingBracket, false},
		{"groups only finishes after groups", GroupsOnly, StatusGroupsCompleted, StatusFinished, true},
		{"groups only has no bracket", GroupsOnly, StatusGroupsCompleted, StatusSeedingBracket, false},
		{"groups and bracket seeds bracket after groups", GroupsAndBracket, StatusGroupsCompleted, StatusSeedingBracket, true},
		{"groups and bracket cannot finish after groups", GroupsAndBracket, StatusGroupsCompleted, StatusFinished, false},
		{"no going back", GroupsAndBracket, StatusGroupsInProgress, StatusSeedingGroups, false},
		{"no self transition", BracketOnly, StatusBracketInProgress, StatusBracketInProgress, false},
		{"cancel in progress", BracketOnly, StatusBracketInProgress, StatusCancelled, true},
		{"cancel from setup", GroupsOnly, StatusSetup, StatusCancelled, true},
		{"finished is terminal", BracketOnly, StatusFinished, StatusCancelled, false},
		{"cancelled is terminal", GroupsOnly, StatusCancelled, StatusSetup, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.format, tc.from, tc.to))
		})
	}
}

func TestTransitionTo(t *testing.T) {
	tournament := &Tournament{Format: BracketOnly, Status: StatusSetup}

	require.NoError(t, tournament.TransitionTo(StatusSeedingBracket))
	require.NoError(t, tournament.TransitionTo(StatusBracketInProgress))
	require.NoError(t, tournament.TransitionTo(StatusFinished))
	assert.Equal(t, StatusFinished, tournament.Status)

	err := tournament.TransitionTo(StatusSeedingBracket)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, KindConflict, Kind(err))
	assert.Equal(t, StatusFinished, tournament.Status, "failed transition must not change the status")
}

func TestAllowsRegistration(t *testing.T) {
	assert.True(t, StatusSetup.AllowsRegistration())
	assert.False(t, StatusSeedingGroups.AllowsRegistration())
	assert.False(t, StatusCancelled.AllowsRegistration())
}
