package views

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
)

func Actor(ctx context.Context) string {
	return middleware.ActorFromContext(ctx)
}

// RoundLabel names a bracket round counted from the first round.
func RoundLabel(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return "Final"
	case 1:
		return "Semi-finals"
	case 2:
		return "Quarter-finals"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
