package bracket

import (
	"cmp"
	"math"
	"slices"

	"github.com/google/uuid"
)

type Placement struct {
	TeamID            uuid.UUID  `json:"teamId"`
	TeamName          string     `json:"teamName"`
	Placement         int        `json:"placement"`
	Status            TeamStatus `json:"status"`
	EliminatedInRound *int       `json:"eliminatedInRound,omitempty"`
}

// AssignPlacements uses standard competition ranking: every team of a tier
// shares one placement and the next tier starts after all teams placed so far.
// Team.Placement is updated in place.
func AssignPlacements(tiers [][]*Team) []Placement {
	var out []Placement
	next := 1
	for _, tier := range tiers {
		for _, t := range tier {
			p := next
			t.Placement = &p
			out = append(out, Placement{
				TeamID:            t.ID,
				TeamName:          t.Name,
				Placement:         p,
				Status:            t.Status,
				EliminatedInRound: t.EliminatedInRound,
			})
		}
		next += len(tier)
	}
	return out
}

// BracketTiers groups bracket teams by how far they got: the champion first,
// then one tier per elimination round, latest round first. Inside a tier teams
// are listed by bracket slot, then by registration seed.
func BracketTiers(teams []*Team, slots map[uuid.UUID]int) [][]*Team {
	byRound := make(map[int][]*Team)
	var champions []*Team
	for _, t := range teams {
		if t.Status == TeamChampion {
			champions = append(champions, t)
			continue
		}
		round := math.MinInt
		if t.EliminatedInRound != nil {
			round = *t.EliminatedInRound
		}
		byRound[round] = append(byRound[round], t)
	}

	rounds := make([]int, 0, len(byRound))
	for r := range byRound {
		rounds = append(rounds, r)
	}
	slices.Sort(rounds)
	slices.Reverse(rounds)

	bySlot := func(a, b *Team) int {
		if c := cmp.Compare(slots[a.ID], slots[b.ID]); c != 0 {
			return c
		}
		return cmp.Compare(a.Seed, b.Seed)
	}

	var tiers [][]*Team
	if len(champions) > 0 {
		tiers = append(tiers, champions)
	}
	for _, r := range rounds {
		tier := byRound[r]
		slices.SortFunc(tier, bySlot)
		tiers = append(tiers, tier)
	}
	return tiers
}

// GroupTiers turns merged group rows into tiers. With shared set, teams holding
// the same group rank share a tier; otherwise every row is its own tier.
func GroupTiers(rows []GroupRow, teams map[uuid.UUID]*Team, shared bool) [][]*Team {
	var tiers [][]*Team
	lastRank := 0
	for _, row := range rows {
		t, ok := teams[row.TeamID]
		if !ok {
			continue
		}
		if shared && len(tiers) > 0 && row.Rank == lastRank {
			tiers[len(tiers)-1] = append(tiers[len(tiers)-1], t)
			continue
		}
		tiers = append(tiers, []*Team{t})
		lastRank = row.Rank
	}
	return tiers
}
