package service

import (
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startedBracket creates a BracketOnly tournament with n teams and starts it.
func startedBracket(t *testing.T, env *testEnv, n, bestOf int) (*bracket.Tournament, []bracket.Team, []bracket.Match) {
	t.Helper()
	tournament := env.create(t, CreateTournamentInput{MaxTeams: n, Format: bracket.BracketOnly, BracketBestOf: bestOf})
	teams := env.register(t, tournament.ID, n)

	result, err := env.tournaments.StartBracket(env.ctx, StartRequest{TournamentID: tournament.ID})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	standings := env.standings(t, tournament.ID, bracket.StandingBracket)
	require.Len(t, standings, 1)
	matches, err := env.store.GetMatchesByStanding(env.ctx, nil, standings[0].ID)
	require.NoError(t, err)
	return tournament, teams, matches
}

func matchAt(t *testing.T, matches []bracket.Match, round, order int) bracket.Match {
	t.Helper()
	for _, m := range matches {
		if m.Round == round && m.Order == order {
			return m
		}
	}
	t.Fatalf("no match at round %d order %d", round, order)
	return bracket.Match{}
}

func (env *testEnv) games(t *testing.T, matchID uuid.UUID) []bracket.Game {
	t.Helper()
	games, err := env.store.GetGamesByMatch(env.ctx, nil, matchID)
	require.NoError(t, err)
	return games
}

func (env *testEnv) record(t *testing.T, tournamentID, gameID uuid.UUID, a, b int) *GameProcessResult {
	t.Helper()
	result, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{
		TournamentID: tournamentID,
		GameID:       gameID,
		ScoreA:       a,
		ScoreB:       b,
	})
	require.NoError(t, err)
	return result
}

// A best of three ends once a team has two wins; the third game is refused.
func TestBestOfThreeStopsAtTwoWins(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 4, 3)
	first := matchAt(t, matches, 1, 1)
	games := env.games(t, first.ID)
	require.Len(t, games, 3)

	result := env.record(t, tournament.ID, games[0].ID, 15, 10)
	require.True(t, result.Success, result.Message)
	assert.False(t, result.MatchFinished)
	assert.Nil(t, result.NewTournamentStatus)

	result = env.record(t, tournament.ID, games[1].ID, 15, 12)
	require.True(t, result.Success, result.Message)
	assert.True(t, result.MatchFinished)
	assert.Equal(t, teams[0].ID, *result.MatchWinnerID)
	assert.Equal(t, teams[3].ID, *result.MatchLoserID)
	assert.False(t, result.StandingFinished)
	assert.Nil(t, result.NewTournamentStatus)

	result = env.record(t, tournament.ID, games[2].ID, 15, 3)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, bracket.ErrConflict)
	assert.Nil(t, env.games(t, first.ID)[2].WinnerID)

	final, err := env.store.GetMatch(env.ctx, nil, matchAt(t, matches, 2, 1).ID)
	require.NoError(t, err)
	require.NotNil(t, final.TeamAID)
	assert.Equal(t, teams[0].ID, *final.TeamAID)
	assert.Nil(t, final.TeamBID)

	byID := env.teamsByID(t, tournament.ID)
	assert.Equal(t, bracket.TeamAdvanced, byID[teams[0].ID].Status)
	assert.Equal(t, bracket.TeamEliminated, byID[teams[3].ID].Status)
	require.NotNil(t, byID[teams[3].ID].EliminatedInRound)
	assert.Equal(t, 1, *byID[teams[3].ID].EliminatedInRound)
}

func TestRecordGameRejections(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 4, 3)
	first := matchAt(t, matches, 1, 1)
	games := env.games(t, first.ID)
	finalGames := env.games(t, matchAt(t, matches, 2, 1).ID)

	t.Run("tie", func(t *testing.T) {
		result := env.record(t, tournament.ID, games[0].ID, 7, 7)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("negative score", func(t *testing.T) {
		result := env.record(t, tournament.ID, games[0].ID, -1, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("out of order", func(t *testing.T) {
		result := env.record(t, tournament.ID, games[1].ID, 10, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("teams not known yet", func(t *testing.T) {
		result := env.record(t, tournament.ID, finalGames[0].ID, 10, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("winner disagrees with score", func(t *testing.T) {
		result, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{
			TournamentID: tournament.ID,
			GameID:       games[0].ID,
			ScoreA:       10,
			ScoreB:       3,
			WinnerID:     &teams[3].ID,
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("winner outside the match", func(t *testing.T) {
		result, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{
			TournamentID: tournament.ID,
			GameID:       games[0].ID,
			ScoreA:       10,
			ScoreB:       3,
			WinnerID:     &teams[1].ID,
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	t.Run("unknown game", func(t *testing.T) {
		result := env.record(t, tournament.ID, uuid.New(), 10, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrNotFound)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		_, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{
			TournamentID: uuid.New(),
			GameID:       games[0].ID,
			ScoreA:       10,
			ScoreB:       3,
		})
		assert.ErrorIs(t, err, bracket.ErrNotFound)
	})

	t.Run("game of another tournament", func(t *testing.T) {
		other, _, _ := startedBracket(t, env, 2, 1)
		result := env.record(t, other.ID, games[0].ID, 10, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrValidation)
	})

	for _, g := range env.games(t, first.ID) {
		assert.False(t, g.Scored(), "rejected results must not be stored")
	}

	t.Run("claimed winner agrees", func(t *testing.T) {
		result, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{
			TournamentID: tournament.ID,
			GameID:       games[0].ID,
			ScoreA:       3,
			ScoreB:       10,
			WinnerID:     &teams[3].ID,
		})
		require.NoError(t, err)
		assert.True(t, result.Success, result.Message)

		stored := env.games(t, first.ID)[0]
		require.NotNil(t, stored.WinnerID)
		assert.Equal(t, teams[3].ID, *stored.WinnerID)
		assert.Equal(t, testActor, stored.ModifiedBy)
		assert.NotNil(t, stored.RecordedAt)
	})

	t.Run("already recorded", func(t *testing.T) {
		result := env.record(t, tournament.ID, games[0].ID, 10, 3)
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err, bracket.ErrConflict)
	})
}

func TestBracketOnlyRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 4, 1)
	require.Len(t, matches, 3)

	_, _, err := env.tournaments.GetFinalStandings(env.ctx, tournament.ID)
	assert.ErrorIs(t, err, bracket.ErrConflict)

	env.playMatch(t, tournament.ID, matchAt(t, matches, 1, 1), teams[0].ID)
	result := env.playMatch(t, tournament.ID, matchAt(t, matches, 1, 2), teams[2].ID)
	assert.False(t, result.StandingFinished)

	final, err := env.store.GetMatch(env.ctx, nil, matchAt(t, matches, 2, 1).ID)
	require.NoError(t, err)
	require.True(t, final.Ready())
	assert.Equal(t, teams[0].ID, *final.TeamAID)
	assert.Equal(t, teams[2].ID, *final.TeamBID)

	result = env.playMatch(t, tournament.ID, *final, teams[2].ID)
	assert.True(t, result.StandingFinished)
	assert.True(t, result.TournamentFinished)
	require.NotNil(t, result.NewTournamentStatus)
	assert.Equal(t, bracket.StatusFinished, *result.NewTournamentStatus)

	// seed 3 upsets seed 1 in the final; both semi-final losers share third
	require.Len(t, result.FinalStandings, 4)
	got := make(map[uuid.UUID]int)
	for _, p := range result.FinalStandings {
		got[p.TeamID] = p.Placement
	}
	assert.Equal(t, map[uuid.UUID]int{
		teams[2].ID: 1,
		teams[0].ID: 2,
		teams[1].ID: 3,
		teams[3].ID: 3,
	}, got)
	assert.Equal(t, []int{1, 2, 3, 3}, placements(result.FinalStandings))
	assert.Equal(t, bracket.TeamChampion, result.FinalStandings[0].Status)
	assert.Equal(t, teams[2].ID, result.FinalStandings[0].TeamID)

	stored, standings, err := env.tournaments.GetFinalStandings(env.ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StatusFinished, stored.Status)
	assert.Equal(t, result.FinalStandings, standings)

	brackets := env.standings(t, tournament.ID, bracket.StandingBracket)
	require.Len(t, brackets, 1)
	assert.True(t, brackets[0].Finished)
}

func placements(ps []bracket.Placement) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Placement
	}
	return out
}

// Eight teams in two groups of four, two advancing from each: the last
// group game opens a four team bracket seeded 1v4 and 2v3.
func TestGroupsAndBracket(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.create(t, CreateTournamentInput{
		MaxTeams:        8,
		Format:          bracket.GroupsAndBracket,
		GroupCount:      2,
		AdvancePerGroup: 2,
	})
	teams := env.register(t, tournament.ID, 8)

	start, err := env.tournaments.StartGroups(env.ctx, StartRequest{TournamentID: tournament.ID})
	require.NoError(t, err)
	require.True(t, start.Success, start.Message)

	groups := env.standings(t, tournament.ID, bracket.StandingGroup)
	require.Len(t, groups, 2)

	result := env.playStanding(t, tournament.ID, groups[0].ID)
	assert.True(t, result.StandingFinished)
	assert.False(t, result.AllGroupsFinished)
	assert.Empty(t, env.standings(t, tournament.ID, bracket.StandingBracket))

	result = env.playStanding(t, tournament.ID, groups[1].ID)
	assert.True(t, result.StandingFinished)
	assert.True(t, result.AllGroupsFinished)
	assert.False(t, result.TournamentFinished)
	require.NotNil(t, result.NewTournamentStatus)
	assert.Equal(t, bracket.StatusBracketInProgress, *result.NewTournamentStatus)

	brackets := env.standings(t, tournament.ID, bracket.StandingBracket)
	require.Len(t, brackets, 1)

	// group winners are seeds 1 and 2, runners-up seeds 3 and 4
	roster, err := env.store.GetStandingTeams(env.ctx, nil, brackets[0].ID)
	require.NoError(t, err)
	require.Len(t, roster, 4)
	for i, team := range roster {
		assert.Equal(t, teams[i].ID, team.ID)
		assert.Equal(t, bracket.TeamCompeting, team.Status)
	}

	matches, err := env.store.GetMatchesByStanding(env.ctx, nil, brackets[0].ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	top, bottom := matchAt(t, matches, 1, 1), matchAt(t, matches, 1, 2)
	assert.Equal(t, teams[0].ID, *top.TeamAID)
	assert.Equal(t, teams[3].ID, *top.TeamBID)
	assert.Equal(t, teams[1].ID, *bottom.TeamAID)
	assert.Equal(t, teams[2].ID, *bottom.TeamBID)

	byID := env.teamsByID(t, tournament.ID)
	for _, team := range teams[4:] {
		assert.Equal(t, bracket.TeamEliminated, byID[team.ID].Status)
		require.NotNil(t, byID[team.ID].EliminatedInRound)
		assert.Zero(t, *byID[team.ID].EliminatedInRound)
	}

	result = env.playStanding(t, tournament.ID, brackets[0].ID)
	assert.True(t, result.TournamentFinished)
	require.Len(t, result.FinalStandings, 8)
	assert.Equal(t, []int{1, 2, 3, 3, 5, 5, 7, 7}, placements(result.FinalStandings))
	for i, p := range result.FinalStandings {
		assert.Equal(t, teams[i].ID, p.TeamID)
	}
}

func TestGroupsOnlyFinish(t *testing.T) {
	env := newTestEnv(t)
	tournament := env.create(t, CreateTournamentInput{MaxTeams: 4, Format: bracket.GroupsOnly, GroupCount: 1})
	teams := env.register(t, tournament.ID, 4)

	start, err := env.tournaments.StartGroups(env.ctx, StartRequest{TournamentID: tournament.ID})
	require.NoError(t, err)
	require.True(t, start.Success, start.Message)

	groups := env.standings(t, tournament.ID, bracket.StandingGroup)
	require.Len(t, groups, 1)

	env.events.reset()
	result := env.playStanding(t, tournament.ID, groups[0].ID)
	assert.True(t, result.AllGroupsFinished)
	assert.True(t, result.TournamentFinished)
	require.NotNil(t, result.NewTournamentStatus)
	assert.Equal(t, bracket.StatusFinished, *result.NewTournamentStatus)

	assert.Equal(t, []int{1, 2, 3, 4}, placements(result.FinalStandings))
	for i, p := range result.FinalStandings {
		assert.Equal(t, teams[i].ID, p.TeamID)
	}
	assert.Equal(t, bracket.TeamChampion, result.FinalStandings[0].Status)
	assert.Equal(t, bracket.TeamEliminated, result.FinalStandings[3].Status)

	seen := env.events.seen()
	assert.Contains(t, seen, events.GroupsFinished)
	assert.Equal(t, events.TournamentFinished, seen[len(seen)-1])
	assert.Empty(t, env.standings(t, tournament.ID, bracket.StandingBracket))

	assert.Equal(t, bracket.StatusFinished, env.tournament(t, tournament.ID).Status)
}

func TestEventsFollowCommit(t *testing.T) {
	env := newTestEnv(t)
	tournament, _, matches := startedBracket(t, env, 2, 1)
	assert.Equal(t, []events.Kind{events.TournamentStarted}, env.events.seen())
	env.events.reset()

	games := env.games(t, matches[0].ID)
	result := env.record(t, tournament.ID, games[0].ID, 4, 4)
	require.False(t, result.Success)
	assert.Empty(t, env.events.seen(), "failed runs publish nothing")

	result = env.record(t, tournament.ID, games[0].ID, 4, 2)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, []events.Kind{
		events.MatchFinished,
		events.StandingFinished,
		events.TournamentFinished,
	}, env.events.seen())

	// results are refused once the tournament is over
	result = env.record(t, tournament.ID, games[0].ID, 4, 2)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, bracket.ErrConflict)
}

// Finishing a match writes the tournament row so concurrent stage
// completions conflict on the version instead of passing each other by.
func TestMatchFinishBumpsTournamentVersion(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 4, 3)
	started := env.tournament(t, tournament.ID).Version
	games := env.games(t, matchAt(t, matches, 1, 1).ID)

	result := env.record(t, tournament.ID, games[0].ID, 15, 10)
	require.True(t, result.Success, result.Message)
	assert.Equal(t, started, env.tournament(t, tournament.ID).Version, "an undecided match leaves the tournament alone")

	result = env.record(t, tournament.ID, games[1].ID, 15, 10)
	require.True(t, result.Success, result.Message)
	require.True(t, result.MatchFinished)
	assert.Equal(t, started+1, env.tournament(t, tournament.ID).Version)

	_, err := env.tournaments.CancelTournament(env.ctx, tournament.ID, &started)
	assert.ErrorIs(t, err, bracket.ErrConflict)

	env.playMatch(t, tournament.ID, matchAt(t, matches, 1, 2), teams[1].ID)
	final, err := env.store.GetMatch(env.ctx, nil, matchAt(t, matches, 2, 1).ID)
	require.NoError(t, err)
	assert.True(t, final.Ready())
	assert.Equal(t, started+2, env.tournament(t, tournament.ID).Version)
}

func TestEventsCarryRunClock(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 2, 1)
	env.events.reset()

	decided := time.Date(2026, 5, 2, 20, 15, 0, 0, time.UTC)
	env.matches.now = func() time.Time { return decided }

	env.playMatch(t, tournament.ID, matchAt(t, matches, 1, 1), teams[0].ID)

	assert.Equal(t, []events.Kind{events.MatchFinished, events.StandingFinished, events.TournamentFinished}, env.events.seen())
	for _, at := range env.events.times() {
		assert.True(t, at.Equal(decided), "event stamped %s", at)
	}
}

func TestRecordGameFindsTournamentFromGame(t *testing.T) {
	env := newTestEnv(t)
	tournament, teams, matches := startedBracket(t, env, 2, 1)
	other, _, _ := startedBracket(t, env, 2, 1)
	game := env.games(t, matches[0].ID)[0]

	_, err := env.matches.RecordGameResult(env.ctx, GameResultRequest{GameID: uuid.New(), ScoreA: 3, ScoreB: 1})
	assert.ErrorIs(t, err, bracket.ErrNotFound)

	result := env.record(t, other.ID, game.ID, 3, 1)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, bracket.ErrValidation)

	result = env.record(t, uuid.Nil, game.ID, 3, 1)
	require.True(t, result.Success, result.Message)
	assert.True(t, result.TournamentFinished)
	assert.Equal(t, teams[0].ID, *result.MatchWinnerID)
	assert.Equal(t, bracket.StatusFinished, env.tournament(t, tournament.ID).Status)
}
