package views

import (
	"fmt"
	"strings"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
)

func statusLabel(s bracket.TournamentStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func resultLabel(p bracket.Placement) string {
	switch {
	case p.Status == bracket.TeamChampion:
		return "Champion"
	case p.EliminatedInRound == nil:
		return ""
	case *p.EliminatedInRound == 0:
		return "Out in the groups"
	default:
		return fmt.Sprintf("Out in round %d", *p.EliminatedInRound)
	}
}
