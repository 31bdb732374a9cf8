package bracket

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

// GroupRow is one line of a group table.
type GroupRow struct {
	TeamID uuid.UUID `json:"teamId"`
	Seed   int       `json:"seed"`

	Played int `json:"played"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	GamesWon      int `json:"gamesWon"`
	GamesLost     int `json:"gamesLost"`
	PointsFor     int `json:"pointsFor"`
	PointsAgainst int `json:"pointsAgainst"`

	// 1-based position inside the group
	Rank int `json:"rank"`
}

func (r GroupRow) GameDiff() int  { return r.GamesWon - r.GamesLost }
func (r GroupRow) PointDiff() int { return r.PointsFor - r.PointsAgainst }

// CompareRows orders by wins, game differential and point differential (all
// descending), then by seed.
func CompareRows(a, b GroupRow) int {
	if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
		return c
	}
	if c := cmp.Compare(b.GameDiff(), a.GameDiff()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.PointDiff(), a.PointDiff()); c != 0 {
		return c
	}
	return cmp.Compare(a.Seed, b.Seed)
}

// RankGroup builds the ranked table of a group from its roster and the games
// of its finished matches.
func RankGroup(teams []Team, matches []Match, games []Game) []GroupRow {
	rows := make(map[uuid.UUID]*GroupRow, len(teams))
	for _, t := range teams {
		rows[t.ID] = &GroupRow{TeamID: t.ID, Seed: t.Seed}
	}

	byMatch := make(map[uuid.UUID][]Game)
	for _, g := range games {
		byMatch[g.MatchID] = append(byMatch[g.MatchID], g)
	}

	for _, m := range matches {
		if !m.Finished || !m.Ready() {
			continue
		}
		a, b := rows[*m.TeamAID], rows[*m.TeamBID]
		if a == nil || b == nil {
			continue
		}
		a.Played++
		b.Played++
		if m.IsWinner(a.TeamID) {
			a.Wins++
			b.Losses++
		} else {
			b.Wins++
			a.Losses++
		}
		for _, g := range byMatch[m.ID] {
			if !g.Scored() {
				continue
			}
			a.PointsFor += g.ScoreA
			a.PointsAgainst += g.ScoreB
			b.PointsFor += g.ScoreB
			b.PointsAgainst += g.ScoreA
			if *g.WinnerID == a.TeamID {
				a.GamesWon++
				b.GamesLost++
			} else {
				b.GamesWon++
				a.GamesLost++
			}
		}
	}

	table := make([]GroupRow, 0, len(rows))
	for _, t := range teams {
		table = append(table, *rows[t.ID])
	}
	slices.SortFunc(table, CompareRows)
	for i := range table {
		table[i].Rank = i + 1
	}
	return table
}

// MergeTables orders rows from several groups by their group rank first and
// their record second, e.g. all group winners ahead of all runners-up.
func MergeTables(tables ...[]GroupRow) []GroupRow {
	var merged []GroupRow
	for _, t := range tables {
		merged = append(merged, t...)
	}
	slices.SortStableFunc(merged, func(a, b GroupRow) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return CompareRows(a, b)
	})
	return merged
}
