package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// advancingTeams returns the teams entering the bracket, best first.
// Without a group stage that is every registered team in seed order; after
// groups it is the advanced teams ranked by group rank, wins, game
// differential, point differential and seed.
func (e *engine) advancingTeams(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) ([]bracket.Team, error) {
	teams, err := e.store.GetTeams(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	if !t.Format.HasGroups() {
		return teams, nil
	}

	rows, err := e.groupTables(ctx, tx, t.ID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]bracket.Team, len(teams))
	for _, team := range teams {
		byID[team.ID] = team
	}

	var advancing []bracket.Team
	for _, row := range rows {
		if team, ok := byID[row.TeamID]; ok && team.Status == bracket.TeamAdvanced {
			advancing = append(advancing, team)
		}
	}
	return advancing, nil
}

// groupTables ranks every group of the tournament and merges the tables.
func (e *engine) groupTables(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.GroupRow, error) {
	standings, err := e.store.GetStandings(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get standings: %w", err)
	}

	var tables [][]bracket.GroupRow
	for _, standing := range standings {
		if standing.Type != bracket.StandingGroup {
			continue
		}
		table, err := e.rankStanding(ctx, tx, standing.ID)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return bracket.MergeTables(tables...), nil
}

func (e *engine) rankStanding(ctx context.Context, tx *sqlx.Tx, standingID uuid.UUID) ([]bracket.GroupRow, error) {
	roster, err := e.store.GetStandingTeams(ctx, tx, standingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group roster: %w", err)
	}
	matches, err := e.store.GetMatchesByStanding(ctx, tx, standingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group matches: %w", err)
	}
	games, err := e.store.GetGamesByStanding(ctx, tx, standingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group games: %w", err)
	}
	return bracket.RankGroup(roster, matches, games), nil
}

// checkBracketSize rejects team counts that would need byes.
func checkBracketSize(n int) error {
	if n < 2 || !bracket.IsPowerOfTwo(n) {
		return fmt.Errorf("%w: a bracket needs a power of two number of teams (2, 4, 8, ...), got %d", bracket.ErrValidation, n)
	}
	return nil
}

// generateSingleElimBracket lays out the full elimination tree for size
// teams. Matches come back final first, each linked to the match its winner
// moves on to.
func generateSingleElimBracket(standingID uuid.UUID, size, bestOf int, meta func() bracket.EntityMeta) []bracket.Match {
	var matches []bracket.Match

	totalRounds := bracket.Rounds(size)
	nextRoundMatchIDs := make(map[int]uuid.UUID)

	// Significantly easier to start from the last round and work backwards
	for r := totalRounds; r >= 1; r-- {
		matchesInCurrentRound := 1 << (totalRounds - r)
		currentRoundMatchIDs := make(map[int]uuid.UUID)

		for i := 0; i < matchesInCurrentRound; i++ {
			matchOrder := i + 1
			m := bracket.Match{
				EntityMeta: meta(),
				StandingID: standingID,
				Round:      r,
				Order:      matchOrder,
				BestOf:     bestOf,
			}

			if r < totalRounds {
				parentID := nextRoundMatchIDs[(matchOrder+1)/2]
				m.NextMatchID = &parentID
				if matchOrder%2 != 0 {
					m.NextSlot = utils.Ptr(1)
				} else {
					m.NextSlot = utils.Ptr(2)
				}
			}

			matches = append(matches, m)
			currentRoundMatchIDs[matchOrder] = m.ID
		}
		nextRoundMatchIDs = currentRoundMatchIDs
	}

	return matches
}

func placeholderGames(matches []bracket.Match, meta func() bracket.EntityMeta) []bracket.Game {
	var games []bracket.Game
	for _, m := range matches {
		for n := 1; n <= m.BestOf; n++ {
			games = append(games, bracket.Game{EntityMeta: meta(), MatchID: m.ID, Number: n})
		}
	}
	return games
}

// buildBracket creates the bracket standing, its roster, the elimination
// tree with the seeded round one and the placeholder games. teams must be
// ordered best first and pairs must come from bracket.SeedPairs(len(teams)).
func (e *engine) buildBracket(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament, teams []bracket.Team, pairs [][2]int, actor string, now time.Time) (*bracket.Standing, error) {
	meta := func() bracket.EntityMeta { return bracket.NewMeta(actor, now) }

	standing := &bracket.Standing{
		EntityMeta:   meta(),
		TournamentID: t.ID,
		Type:         bracket.StandingBracket,
		Name:         "Bracket",
		MaxTeams:     len(teams),
	}
	if err := e.store.CreateStanding(ctx, tx, standing); err != nil {
		return nil, fmt.Errorf("failed to create bracket standing: %w", err)
	}

	roster := make([]bracket.StandingTeam, len(teams))
	for i, team := range teams {
		roster[i] = bracket.StandingTeam{StandingID: standing.ID, TeamID: team.ID, Slot: i + 1}
	}
	if err := e.store.CreateStandingTeams(ctx, tx, roster); err != nil {
		return nil, fmt.Errorf("failed to create bracket roster: %w", err)
	}

	matches := generateSingleElimBracket(standing.ID, len(teams), t.BracketBestOf, meta)
	for i := range matches {
		m := &matches[i]
		if m.Round != 1 {
			continue
		}
		pair := pairs[m.Order-1]
		a, b := teams[pair[0]].ID, teams[pair[1]].ID
		m.TeamAID, m.TeamBID = &a, &b
	}
	if err := e.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create bracket matches: %w", err)
	}
	if err := e.store.CreateGames(ctx, tx, placeholderGames(matches, meta)); err != nil {
		return nil, fmt.Errorf("failed to create bracket games: %w", err)
	}

	return standing, nil
}

// setTeamStatus moves teams to status and persists them.
func (e *engine) setTeamStatus(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team, status bracket.TeamStatus, actor string, now time.Time) error {
	ptrs := make([]*bracket.Team, len(teams))
	for i := range teams {
		teams[i].Status = status
		teams[i].Touch(actor, now)
		ptrs[i] = &teams[i]
	}
	if err := e.store.UpdateTeams(ctx, tx, ptrs...); err != nil {
		return fmt.Errorf("failed to update team status: %w", err)
	}
	return nil
}
