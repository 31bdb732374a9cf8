package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/pipeline"
	"github.com/jmoiron/sqlx"
)

// bracketRun is the state of one Start-Bracket run.
type bracketRun struct {
	pipeline.Status

	req   StartRequest
	tx    *sqlx.Tx
	actor string
	now   time.Time

	tournament *bracket.Tournament
	teams      []bracket.Team
	pairs      [][2]int
	standing   *bracket.Standing
	events     events.Queue
}

func (s *TournamentService) newStartBracketPipeline() *pipeline.Pipeline[*bracketRun] {
	return pipeline.New[*bracketRun]("start-bracket", pipeline.Propagate, s.logger).Add(
		pipeline.StepFunc("load_tournament", s.loadForBracket),
		pipeline.StepFunc("gather_teams", s.gatherBracketTeams),
		pipeline.StepFunc("check_bracket_size", s.checkBracketTeams),
		pipeline.StepFunc("seed_teams", s.seedBracket),
		pipeline.StepFunc("create_bracket", s.createBracket),
		pipeline.StepFunc("begin_bracket_play", s.beginBracketPlay),
		pipeline.StepFunc("persist_tournament", s.persistBracketStart),
	)
}

// StartBracket seeds the elimination bracket from the registered teams, or
// from the teams that advanced out of the groups.
func (s *TournamentService) StartBracket(ctx context.Context, req StartRequest) (*StartResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run := &bracketRun{
		Status: pipeline.Ok(),
		req:    req,
		tx:     tx,
		actor:  middleware.ActorFromContext(ctx),
		now:    s.now(),
	}
	if err := s.startBracket.Run(ctx, run); err != nil {
		return s.startFailed(ctx, tx, req.TournamentID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bracket start: %w", err)
	}
	s.publish(ctx, &run.events)

	return &StartResult{
		Success:          true,
		Message:          fmt.Sprintf("bracket started with %d teams", len(run.teams)),
		TournamentStatus: run.tournament.Status,
		Version:          run.tournament.Version,
	}, nil
}

func (s *TournamentService) loadForBracket(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	t, err := s.store.GetTournament(ctx, run.tx, run.req.TournamentID)
	if err != nil {
		return pipeline.Fatal, err
	}
	if err := checkVersion(t, run.req.ExpectedVersion); err != nil {
		return pipeline.Stop, err
	}
	if !t.Format.HasBracket() {
		return pipeline.Stop, fmt.Errorf("%w: format %s has no bracket stage", bracket.ErrValidation, t.Format)
	}
	if err := t.TransitionTo(bracket.StatusSeedingBracket); err != nil {
		return pipeline.Stop, err
	}
	run.tournament = t
	return pipeline.Continue, nil
}

func (s *TournamentService) gatherBracketTeams(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	teams, err := s.advancingTeams(ctx, run.tx, run.tournament)
	if err != nil {
		return pipeline.Stop, err
	}
	run.teams = teams
	return pipeline.Continue, nil
}

func (s *TournamentService) checkBracketTeams(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	if err := checkBracketSize(len(run.teams)); err != nil {
		return pipeline.Stop, err
	}
	return pipeline.Continue, nil
}

func (s *TournamentService) seedBracket(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	pairs, err := bracket.SeedPairs(len(run.teams))
	if err != nil {
		return pipeline.Stop, err
	}
	run.pairs = pairs
	return pipeline.Continue, nil
}

func (s *TournamentService) createBracket(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	standing, err := s.buildBracket(ctx, run.tx, run.tournament, run.teams, run.pairs, run.actor, run.now)
	if err != nil {
		return pipeline.Stop, err
	}
	run.standing = standing
	return pipeline.Continue, nil
}

func (s *TournamentService) beginBracketPlay(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	t := run.tournament
	if err := t.TransitionTo(bracket.StatusBracketInProgress); err != nil {
		return pipeline.Stop, err
	}
	t.RegistrationOpen = false
	t.Touch(run.actor, run.now)

	if err := s.setTeamStatus(ctx, run.tx, run.teams, bracket.TeamCompeting, run.actor, run.now); err != nil {
		return pipeline.Stop, err
	}
	return pipeline.Continue, nil
}

func (s *TournamentService) persistBracketStart(ctx context.Context, run *bracketRun) (pipeline.Outcome, error) {
	if err := s.store.UpdateTournament(ctx, run.tx, run.tournament); err != nil {
		return pipeline.Stop, err
	}
	run.events.Push(events.TournamentStarted, run.tournament.ID, &run.standing.ID, nil, run.now)
	return pipeline.Continue, nil
}
