package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// groupsRun is the state of one Start-Groups run.
type groupsRun struct {
	pipeline.Status

	req   StartRequest
	tx    *sqlx.Tx
	actor string
	now   time.Time

	tournament *bracket.Tournament
	teams      []bracket.Team
	groups     [][]bracket.Team
	events     events.Queue
}

func (s *TournamentService) newStartGroupsPipeline() *pipeline.Pipeline[*groupsRun] {
	return pipeline.New[*groupsRun]("start-groups", pipeline.Propagate, s.logger).Add(
		pipeline.StepFunc("load_tournament", s.loadForGroups),
		pipeline.StepFunc("load_teams", s.loadGroupTeams),
		pipeline.StepFunc("partition_teams", s.partitionTeams),
		pipeline.StepFunc("create_groups", s.createGroups),
		pipeline.StepFunc("begin_group_play", s.beginGroupPlay),
		pipeline.StepFunc("persist_tournament", s.persistGroupsStart),
	)
}

// StartGroups seeds the group stage: teams are spread over the groups, every
// group gets its round robin schedule and the tournament moves to
// groups_in_progress. Nothing is persisted unless every step succeeds.
func (s *TournamentService) StartGroups(ctx context.Context, req StartRequest) (*StartResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := &groupsRun{
		Status: pipeline.Ok(),
		req:    req,
		tx:     tx,
		actor:  middleware.ActorFromContext(ctx),
		now:    s.now(),
	}
	if err := s.startGroups.Run(ctx, run); err != nil {
		return s.startFailed(ctx, tx, req.TournamentID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group start: %w", err)
	}
	s.publish(ctx, &run.events)

	return &StartResult{
		Success:          true,
		Message:          fmt.Sprintf("group stage started with %d groups", len(run.groups)),
		TournamentStatus: run.tournament.Status,
		Version:          run.tournament.Version,
	}, nil
}

// startFailed rolls back and turns rule violations into a non-success
// result. Missing tournaments and internal faults are returned as errors.
func (s *TournamentService) startFailed(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, err error) (*StartResult, error) {
	_ = tx.Rollback()
	if !bracket.IsDomain(err) {
		return nil, err
	}

	result := &StartResult{Success: false, Message: err.Error(), Err: err}
	if t, getErr := s.store.GetTournament(ctx, nil, tournamentID); getErr == nil {
		result.TournamentStatus = t.Status
		result.Version = t.Version
	}
	return result, nil
}

func (s *TournamentService) loadForGroups(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	t, err := s.store.GetTournament(ctx, run.tx, run.req.TournamentID)
	if err != nil {
		return pipeline.Fatal, err
	}
	if err := checkVersion(t, run.req.ExpectedVersion); err != nil {
		return pipeline.Stop, err
	}
	if !t.Format.HasGroups() {
		return pipeline.Stop, fmt.Errorf("%w: format %s has no group stage", bracket.ErrValidation, t.Format)
	}
	if err := t.TransitionTo(bracket.StatusSeedingGroups); err != nil {
		return pipeline.Stop, err
	}
	run.tournament = t
	return pipeline.Continue, nil
}

func (s *TournamentService) loadGroupTeams(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	t := run.tournament
	teams, err := s.store.GetTeams(ctx, run.tx, t.ID)
	if err != nil {
		return pipeline.Stop, fmt.Errorf("failed to get teams: %w", err)
	}

	n := len(teams)
	if n < 2*t.GroupCount {
		return pipeline.Stop, fmt.Errorf("%w: %d groups need at least %d teams, got %d",
			bracket.ErrValidation, t.GroupCount, 2*t.GroupCount, n)
	}
	if n > t.MaxTeams {
		return pipeline.Stop, fmt.Errorf("%w: %d teams registered but the limit is %d", bracket.ErrValidation, n, t.MaxTeams)
	}
	if t.Format == bracket.GroupsAndBracket {
		if err := checkBracketSize(t.GroupCount * t.AdvancePerGroup); err != nil {
			return pipeline.Stop, err
		}
		if smallest := n / t.GroupCount; t.AdvancePerGroup > smallest {
			return pipeline.Stop, fmt.Errorf("%w: %d teams advance per group but the smallest group has %d",
				bracket.ErrValidation, t.AdvancePerGroup, smallest)
		}
	}

	run.teams = teams
	return pipeline.Continue, nil
}

// partitionTeams deals teams out in seed order, team i going to group i mod N.
func (s *TournamentService) partitionTeams(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	groups := make([][]bracket.Team, run.tournament.GroupCount)
	for i, team := range run.teams {
		groups[i%len(groups)] = append(groups[i%len(groups)], team)
	}
	run.groups = groups
	return pipeline.Continue, nil
}

func groupName(i int) string {
	if i < 26 {
		return "Group " + string(rune('A'+i))
	}
	return fmt.Sprintf("Group %d", i+1)
}

func (s *TournamentService) createGroups(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	t := run.tournament
	meta := func() bracket.EntityMeta { return bracket.NewMeta(run.actor, run.now) }

	for gi, group := range run.groups {
		standing := &bracket.Standing{
			EntityMeta:   meta(),
			TournamentID: t.ID,
			Type:         bracket.StandingGroup,
			Name:         groupName(gi),
			Position:     gi + 1,
			MaxTeams:     len(group),
		}
		if err := s.store.CreateStanding(ctx, run.tx, standing); err != nil {
			return pipeline.Stop, fmt.Errorf("failed to create %s: %w", standing.Name, err)
		}

		roster := make([]bracket.StandingTeam, len(group))
		for i, team := range group {
			roster[i] = bracket.StandingTeam{StandingID: standing.ID, TeamID: team.ID, Slot: i + 1}
		}
		if err := s.store.CreateStandingTeams(ctx, run.tx, roster); err != nil {
			return pipeline.Stop, fmt.Errorf("failed to create %s roster: %w", standing.Name, err)
		}

		var matches []bracket.Match
		orderInRound := make(map[int]int)
		for _, f := range bracket.RoundRobin(len(group)) {
			orderInRound[f.Round]++
			a, b := group[f.A].ID, group[f.B].ID
			matches = append(matches, bracket.Match{
				EntityMeta: meta(),
				StandingID: standing.ID,
				Round:      f.Round,
				Order:      orderInRound[f.Round],
				TeamAID:    &a,
				TeamBID:    &b,
				BestOf:     t.GroupBestOf,
			})
		}
		if err := s.store.CreateMatches(ctx, run.tx, matches); err != nil {
			return pipeline.Stop, fmt.Errorf("failed to create %s matches: %w", standing.Name, err)
		}
		if err := s.store.CreateGames(ctx, run.tx, placeholderGames(matches, meta)); err != nil {
			return pipeline.Stop, fmt.Errorf("failed to create %s games: %w", standing.Name, err)
		}
	}
	return pipeline.Continue, nil
}

func (s *TournamentService) beginGroupPlay(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	t := run.tournament
	if err := t.TransitionTo(bracket.StatusGroupsInProgress); err != nil {
		return pipeline.Stop, err
	}
	t.RegistrationOpen = false
	t.Touch(run.actor, run.now)

	if err := s.setTeamStatus(ctx, run.tx, run.teams, bracket.TeamCompeting, run.actor, run.now); err != nil {
		return pipeline.Stop, err
	}
	return pipeline.Continue, nil
}

func (s *TournamentService) persistGroupsStart(ctx context.Context, run *groupsRun) (pipeline.Outcome, error) {
	if err := s.store.UpdateTournament(ctx, run.tx, run.tournament); err != nil {
		return pipeline.Stop, err
	}
	run.events.Push(events.TournamentStarted, run.tournament.ID, nil, nil, run.now)
	return pipeline.Continue, nil
}
