package service

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type StartRequest struct {
	TournamentID    uuid.UUID `json:"tournamentId"`
	ExpectedVersion *int      `json:"expectedVersion,omitempty"`
}

// StartResult is returned by both start pipelines. Err keeps the domain error
// behind a non-success result so callers can map it.
type StartResult struct {
	Success          bool                     `json:"success"`
	Message          string                   `json:"message"`
	TournamentStatus bracket.TournamentStatus `json:"tournamentStatus"`
	Version          int                      `json:"version"`
	Err              error                    `json:"-"`
}

// GameResultRequest scores one game. TournamentID may be left zero, in which
// case it is looked up from the game; when set it must own the game.
type GameResultRequest struct {
	TournamentID uuid.UUID  `json:"tournamentId"`
	GameID       uuid.UUID  `json:"gameId"`
	ScoreA       int        `json:"scoreA"`
	ScoreB       int        `json:"scoreB"`
	WinnerID     *uuid.UUID `json:"winnerId,omitempty"`
}

type GameProcessResult struct {
	Success             bool                      `json:"success"`
	MatchFinished       bool                      `json:"matchFinished"`
	MatchWinnerID       *uuid.UUID                `json:"matchWinnerId,omitempty"`
	MatchLoserID        *uuid.UUID                `json:"matchLoserId,omitempty"`
	StandingFinished    bool                      `json:"standingFinished"`
	AllGroupsFinished   bool                      `json:"allGroupsFinished"`
	TournamentFinished  bool                      `json:"tournamentFinished"`
	NewTournamentStatus *bracket.TournamentStatus `json:"newTournamentStatus,omitempty"`
	FinalStandings      []bracket.Placement       `json:"finalStandings,omitempty"`
	Message             string                    `json:"message,omitempty"`
	Err                 error                     `json:"-"`
}

type TournamentOverview struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Teams      []bracket.Team      `json:"teams"`
	Standings  []bracket.Standing  `json:"standings"`
	Matches    []bracket.Match     `json:"matches"`
	Games      []bracket.Game      `json:"games"`
}

// finalStandings lists the placed teams of a tournament. Teams sharing a
// placement are listed by bracket slot, then by registration seed.
func (e *engine) finalStandings(ctx context.Context, tx *sqlx.Tx, t *bracket.Tournament) ([]bracket.Placement, error) {
	teams, err := e.store.GetTeams(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	slots := make(map[uuid.UUID]int)
	standings, err := e.store.GetStandings(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get standings: %w", err)
	}
	for _, s := range standings {
		if s.Type != bracket.StandingBracket {
			continue
		}
		roster, err := e.store.GetRoster(ctx, tx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get bracket roster: %w", err)
		}
		for _, r := range roster {
			slots[r.TeamID] = r.Slot
		}
	}
	slot := func(id uuid.UUID) int {
		if s, ok := slots[id]; ok {
			return s
		}
		return math.MaxInt
	}

	placed := slices.DeleteFunc(teams, func(team bracket.Team) bool { return team.Placement == nil })
	slices.SortFunc(placed, func(a, b bracket.Team) int {
		if c := cmp.Compare(*a.Placement, *b.Placement); c != 0 {
			return c
		}
		if c := cmp.Compare(slot(a.ID), slot(b.ID)); c != 0 {
			return c
		}
		return cmp.Compare(a.Seed, b.Seed)
	})

	out := make([]bracket.Placement, len(placed))
	for i, team := range placed {
		out[i] = bracket.Placement{
			TeamID:            team.ID,
			TeamName:          team.Name,
			Placement:         *team.Placement,
			Status:            team.Status,
			EliminatedInRound: team.EliminatedInRound,
		}
	}
	return out, nil
}
