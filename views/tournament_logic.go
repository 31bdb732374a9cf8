package views

import (
	"sort"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
)

type BracketData struct {
	Rounds    map[int][]bracket.Match
	RoundNums []int
	TeamMap   map[uuid.UUID]bracket.Team
}

// PrepareBracketData groups the matches of one bracket standing by round.
func PrepareBracketData(teams []bracket.Team, matches []bracket.Match) BracketData {
	teamMap := make(map[uuid.UUID]bracket.Team)
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	rounds := make(map[int][]bracket.Match)
	var roundNums []int
	for _, m := range matches {
		if _, exists := rounds[m.Round]; !exists {
			roundNums = append(roundNums, m.Round)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	sort.Ints(roundNums)
	sortRounds(rounds, roundNums)

	return BracketData{
		Rounds:    rounds,
		RoundNums: roundNums,
		TeamMap:   teamMap,
	}
}

func (d BracketData) TeamName(id *uuid.UUID) string {
	if id == nil {
		return "TBD"
	}
	if t, ok := d.TeamMap[*id]; ok {
		return t.Name
	}
	return "Unknown"
}

// LastRound is the number of the final round, 0 for an empty bracket.
func (d BracketData) LastRound() int {
	if len(d.RoundNums) == 0 {
		return 0
	}
	return d.RoundNums[len(d.RoundNums)-1]
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].Order < rounds[r][j].Order
		})
	}
}
