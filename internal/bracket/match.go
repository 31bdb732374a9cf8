package bracket

import (
	"github.com/google/uuid"
)

type Match struct {
	EntityMeta

	StandingID uuid.UUID `db:"standing_id" json:"standingId"`

	// Position in the standing for reconstructing the view
	Round int `db:"round" json:"round"`
	Order int `db:"match_order" json:"order"`

	TeamAID *uuid.UUID `db:"team_a_id" json:"teamAId,omitempty"`
	TeamBID *uuid.UUID `db:"team_b_id" json:"teamBId,omitempty"`

	BestOf   int        `db:"best_of" json:"bestOf"`
	Finished bool       `db:"finished" json:"finished"`
	WinnerID *uuid.UUID `db:"winner_id" json:"winnerId,omitempty"`
	LoserID  *uuid.UUID `db:"loser_id" json:"loserId,omitempty"`

	NextMatchID *uuid.UUID `db:"next_match_id" json:"nextMatchId,omitempty"`
	NextSlot    *int       `db:"next_slot" json:"nextSlot,omitempty"`
}

func (m *Match) HasTeam(id uuid.UUID) bool {
	return (m.TeamAID != nil && *m.TeamAID == id) || (m.TeamBID != nil && *m.TeamBID == id)
}

func (m *Match) Ready() bool {
	return m.TeamAID != nil && m.TeamBID != nil
}

// WinsNeeded is the smallest win count that exceeds BestOf/2.
func (m *Match) WinsNeeded() int {
	return m.BestOf/2 + 1
}

func (m *Match) IsWinner(id uuid.UUID) bool {
	return m.Finished && m.WinnerID != nil && *m.WinnerID == id
}

// Tally counts game wins per side over the match's scored games.
func (m *Match) Tally(games []Game) (winsA, winsB, played int) {
	for _, g := range games {
		if g.MatchID != m.ID || g.WinnerID == nil {
			continue
		}
		played++
		switch {
		case m.TeamAID != nil && *g.WinnerID == *m.TeamAID:
			winsA++
		case m.TeamBID != nil && *g.WinnerID == *m.TeamBID:
			winsB++
		}
	}
	return winsA, winsB, played
}

// Decide finishes the match if the recorded games settle it. It returns true
// only on the call that finishes the match; a finished match never changes.
func (m *Match) Decide(games []Game) bool {
	if m.Finished || !m.Ready() {
		return false
	}

	winsA, winsB, played := m.Tally(games)
	need := m.WinsNeeded()

	var winner, loser *uuid.UUID
	switch {
	case winsA >= need:
		winner, loser = m.TeamAID, m.TeamBID
	case winsB >= need:
		winner, loser = m.TeamBID, m.TeamAID
	case played >= m.BestOf && winsA != winsB:
		if winsA > winsB {
			winner, loser = m.TeamAID, m.TeamBID
		} else {
			winner, loser = m.TeamBID, m.TeamAID
		}
	default:
		return false
	}

	w, l := *winner, *loser
	m.WinnerID, m.LoserID = &w, &l
	m.Finished = true
	return true
}
