package bracket

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Game struct {
	EntityMeta

	MatchID uuid.UUID `db:"match_id" json:"matchId"`
	Number  int       `db:"number" json:"number"`

	ScoreA int `db:"score_a" json:"scoreA"`
	ScoreB int `db:"score_b" json:"scoreB"`

	WinnerID   *uuid.UUID `db:"winner_id" json:"winnerId,omitempty"`
	RecordedAt *time.Time `db:"recorded_at" json:"recordedAt,omitempty"`
}

func (g *Game) Scored() bool {
	return g.WinnerID != nil
}

// Score records the result of g within m. The winner is derived from the
// scores; a claimed winner must be one of the match teams and agree with them.
func (g *Game) Score(m *Match, scoreA, scoreB int, claimed *uuid.UUID, now time.Time) error {
	if g.Scored() {
		return fmt.Errorf("%w: game %d has already been recorded", ErrConflict, g.Number)
	}
	if !m.Ready() {
		return fmt.Errorf("%w: match is still waiting for its teams", ErrValidation)
	}
	if scoreA < 0 || scoreB < 0 {
		return fmt.Errorf("%w: scores cannot be negative", ErrValidation)
	}
	if scoreA == scoreB {
		return fmt.Errorf("%w: a game cannot end in a tie (%d-%d)", ErrValidation, scoreA, scoreB)
	}

	winner := *m.TeamAID
	if scoreB > scoreA {
		winner = *m.TeamBID
	}
	if claimed != nil {
		if !m.HasTeam(*claimed) {
			return fmt.Errorf("%w: team %s is not playing in this match", ErrValidation, claimed)
		}
		if *claimed != winner {
			return fmt.Errorf("%w: winner %s does not match the score %d-%d", ErrValidation, claimed, scoreA, scoreB)
		}
	}

	recorded := now.UTC()
	g.ScoreA, g.ScoreB = scoreA, scoreB
	g.WinnerID = &winner
	g.RecordedAt = &recorded
	return nil
}
