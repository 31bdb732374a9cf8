package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/pipeline"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/AdamBeresnev/op-tournaments/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MatchService records game results and cascades them up to the tournament.
type MatchService struct {
	*engine
	gameResult *pipeline.Pipeline[*gameRun]
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, dispatcher *events.Dispatcher, logger *slog.Logger) *MatchService {
	s := &MatchService{engine: newEngine(db, store, dispatcher, logger)}
	s.gameResult = pipeline.New[*gameRun]("game-result", pipeline.Contain, s.logger).Add(
		pipeline.StepFunc("load_context", s.loadGameContext),
		pipeline.StepFunc("score_game", s.scoreGame),
		pipeline.StepFunc("check_match", s.checkMatch),
		pipeline.StepFunc("check_standing", s.checkStanding),
		pipeline.StepFunc("check_tournament", s.checkTournament),
		pipeline.StepFunc("build_response", s.buildResponse),
	)
	return s
}

// gameRun is the state of one Game-Result run.
type gameRun struct {
	pipeline.Status

	req   GameResultRequest
	tx    *sqlx.Tx
	actor string
	now   time.Time

	tournament *bracket.Tournament
	standing   *bracket.Standing
	match      *bracket.Match
	game       *bracket.Game
	games      []bracket.Game

	matchFinished      bool
	standingFinished   bool
	allGroupsFinished  bool
	tournamentFinished bool
	statusBefore       bracket.TournamentStatus
	finalStandings     []bracket.Placement
	notice             string

	events events.Queue
	result *GameProcessResult
}

// RecordGameResult scores one game and cascades the consequences: match,
// standing and tournament completion, an automatic bracket start after the
// groups and final placements. It only returns an error when the tournament
// does not exist, or the game when no tournament was given; every other
// failure comes back as a non-success result.
func (s *MatchService) RecordGameResult(ctx context.Context, req GameResultRequest) (*GameProcessResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return failedResult(fmt.Errorf("failed to begin transaction: %w", err)), nil
	}
	defer tx.Rollback()

	if req.TournamentID == uuid.Nil {
		id, err := s.store.GetGameTournamentID(ctx, tx, req.GameID)
		if err != nil {
			if bracket.Kind(err) == bracket.KindNotFound {
				return nil, err
			}
			return failedResult(fmt.Errorf("failed to resolve tournament: %w", err)), nil
		}
		req.TournamentID = id
	}

	run := &gameRun{
		Status: pipeline.Ok(),
		req:    req,
		tx:     tx,
		actor:  middleware.ActorFromContext(ctx),
		now:    s.now(),
	}

	if err := s.gameResult.Run(ctx, run); err != nil {
		if bracket.Kind(err) == bracket.KindNotFound {
			return nil, err
		}
		return failedResult(err), nil
	}

	if !run.Succeeded() {
		// a failed run never keeps part of its cascade
		if bracket.Kind(run.Err) == bracket.KindUnexpected {
			s.logger.ErrorContext(ctx, "game result failed", slog.Any("error", run.Err))
		}
		return resultFrom(run), nil
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "failed to commit game result", slog.Any("error", err))
		return failedResult(fmt.Errorf("failed to save game result: %w", err)), nil
	}
	s.publish(ctx, &run.events)

	if run.result == nil {
		run.result = resultFrom(run)
	}
	return run.result, nil
}

func failedResult(err error) *GameProcessResult {
	return &GameProcessResult{Success: false, Message: err.Error(), Err: err}
}

func resultFrom(run *gameRun) *GameProcessResult {
	if !run.Succeeded() {
		return &GameProcessResult{Success: false, Message: run.Message, Err: run.Err}
	}

	r := &GameProcessResult{
		Success:            true,
		Message:            run.notice,
		MatchFinished:      run.matchFinished,
		StandingFinished:   run.standingFinished,
		AllGroupsFinished:  run.allGroupsFinished,
		TournamentFinished: run.tournamentFinished,
		FinalStandings:     run.finalStandings,
	}
	if run.matchFinished {
		r.MatchWinnerID = run.match.WinnerID
		r.MatchLoserID = run.match.LoserID
	}
	if run.tournament.Status != run.statusBefore {
		r.NewTournamentStatus = utils.Ptr(run.tournament.Status)
	}
	return r
}

func (s *MatchService) loadGameContext(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	t, err := s.store.GetTournament(ctx, run.tx, run.req.TournamentID)
	if err != nil {
		return pipeline.Fatal, err
	}
	run.tournament = t
	run.statusBefore = t.Status

	if !t.InProgress() {
		return pipeline.Stop, fmt.Errorf("%w: tournament is %s, results can only be recorded while a stage is in progress",
			bracket.ErrConflict, t.Status)
	}

	game, err := s.store.GetGame(ctx, run.tx, run.req.GameID)
	if err != nil {
		return pipeline.Stop, err
	}
	match, err := s.store.GetMatch(ctx, run.tx, game.MatchID)
	if err != nil {
		return pipeline.Stop, err
	}
	standing, err := s.store.GetStanding(ctx, run.tx, match.StandingID)
	if err != nil {
		return pipeline.Stop, err
	}
	if standing.TournamentID != t.ID {
		return pipeline.Stop, fmt.Errorf("%w: game %s does not belong to tournament %s", bracket.ErrValidation, game.ID, t.ID)
	}

	run.game, run.match, run.standing = game, match, standing
	return pipeline.Continue, nil
}

func (s *MatchService) scoreGame(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	if run.match.Finished {
		return pipeline.Stop, fmt.Errorf("%w: match is already finished", bracket.ErrConflict)
	}

	games, err := s.store.GetGamesByMatch(ctx, run.tx, run.match.ID)
	if err != nil {
		return pipeline.Stop, fmt.Errorf("failed to get match games: %w", err)
	}
	for _, g := range games {
		if g.Number < run.game.Number && !g.Scored() {
			return pipeline.Stop, fmt.Errorf("%w: game %d must be recorded before game %d",
				bracket.ErrValidation, g.Number, run.game.Number)
		}
	}

	if err := run.game.Score(run.match, run.req.ScoreA, run.req.ScoreB, run.req.WinnerID, run.now); err != nil {
		return pipeline.Stop, err
	}
	run.game.Touch(run.actor, run.now)
	if err := s.store.RecordGame(ctx, run.tx, run.game); err != nil {
		return pipeline.Stop, err
	}

	for i := range games {
		if games[i].ID == run.game.ID {
			games[i] = *run.game
		}
	}
	run.games = games
	return pipeline.Continue, nil
}

func (s *MatchService) checkMatch(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	m := run.match
	if !m.Decide(run.games) {
		return pipeline.Continue, nil
	}
	m.Touch(run.actor, run.now)
	if err := s.store.FinishMatch(ctx, run.tx, m); err != nil {
		return pipeline.Stop, err
	}
	run.matchFinished = true

	if run.standing.Type == bracket.StandingBracket {
		if err := s.advanceBracketWinner(ctx, run); err != nil {
			return pipeline.Stop, err
		}
	}

	run.events.Push(events.MatchFinished, run.tournament.ID, &run.standing.ID, &m.ID, run.now)
	return pipeline.Continue, nil
}

// advanceBracketWinner eliminates the loser and moves the winner into the
// next match slot.
func (s *MatchService) advanceBracketWinner(ctx context.Context, run *gameRun) error {
	m := run.match

	loser, err := s.store.GetTeam(ctx, run.tx, *m.LoserID)
	if err != nil {
		return err
	}
	winner, err := s.store.GetTeam(ctx, run.tx, *m.WinnerID)
	if err != nil {
		return err
	}
	loser.Status = bracket.TeamEliminated
	loser.EliminatedInRound = utils.Ptr(m.Round)
	loser.Touch(run.actor, run.now)
	winner.Status = bracket.TeamAdvanced
	winner.Touch(run.actor, run.now)
	if err := s.store.UpdateTeams(ctx, run.tx, loser, winner); err != nil {
		return err
	}

	if m.NextMatchID == nil || m.NextSlot == nil {
		return nil
	}
	if err := s.store.FillMatchSlot(ctx, run.tx, *m.NextMatchID, *m.NextSlot, *m.WinnerID, run.actor, run.now); err != nil {
		return fmt.Errorf("failed to advance winner: %w", err)
	}
	return nil
}

func (s *MatchService) checkStanding(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	if !run.matchFinished {
		return pipeline.Continue, nil
	}

	matches, err := s.store.GetMatchesByStanding(ctx, run.tx, run.standing.ID)
	if err != nil {
		return pipeline.Stop, fmt.Errorf("failed to get standing matches: %w", err)
	}
	for _, m := range matches {
		if !m.Finished {
			return pipeline.Continue, nil
		}
	}

	standing := run.standing
	standing.Finished = true
	standing.Touch(run.actor, run.now)
	if err := s.store.UpdateStanding(ctx, run.tx, standing); err != nil {
		return pipeline.Stop, err
	}
	run.standingFinished = true

	switch standing.Type {
	case bracket.StandingGroup:
		if err := s.settleGroup(ctx, run); err != nil {
			return pipeline.Stop, err
		}
	case bracket.StandingBracket:
		if err := s.crownChampion(ctx, run, matches); err != nil {
			return pipeline.Stop, err
		}
	}

	run.events.Push(events.StandingFinished, run.tournament.ID, &standing.ID, nil, run.now)
	return pipeline.Continue, nil
}

// settleGroup marks the top of a finished group as advanced and the rest as
// eliminated in the group stage. GroupsOnly tournaments place their teams
// once every group is done.
func (s *MatchService) settleGroup(ctx context.Context, run *gameRun) error {
	if run.tournament.Format != bracket.GroupsAndBracket {
		return nil
	}

	table, err := s.rankStanding(ctx, run.tx, run.standing.ID)
	if err != nil {
		return err
	}
	for _, row := range table {
		team, err := s.store.GetTeam(ctx, run.tx, row.TeamID)
		if err != nil {
			return err
		}
		if row.Rank <= run.tournament.AdvancePerGroup {
			team.Status = bracket.TeamAdvanced
		} else {
			team.Status = bracket.TeamEliminated
			team.EliminatedInRound = utils.Ptr(0)
		}
		team.Touch(run.actor, run.now)
		if err := s.store.UpdateTeams(ctx, run.tx, team); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchService) crownChampion(ctx context.Context, run *gameRun, matches []bracket.Match) error {
	for _, m := range matches {
		if m.NextMatchID != nil || m.WinnerID == nil {
			continue
		}
		champion, err := s.store.GetTeam(ctx, run.tx, *m.WinnerID)
		if err != nil {
			return err
		}
		champion.Status = bracket.TeamChampion
		champion.Touch(run.actor, run.now)
		return s.store.UpdateTeams(ctx, run.tx, champion)
	}
	return fmt.Errorf("bracket %s has no final", run.standing.ID)
}

func (s *MatchService) checkTournament(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	if !run.matchFinished {
		return pipeline.Continue, nil
	}
	t := run.tournament

	if run.standingFinished {
		if err := s.completeStage(ctx, run); err != nil {
			return pipeline.Stop, err
		}
	}

	// Every finished match writes the tournament row, even when its status
	// stays put. Two requests finishing the last matches of a stage at once
	// then collide on the version instead of both missing the completion.
	t.Touch(run.actor, run.now)
	if err := s.store.UpdateTournament(ctx, run.tx, t); err != nil {
		return pipeline.Stop, err
	}

	if t.Status == bracket.StatusFinished {
		standings, err := s.finalStandings(ctx, run.tx, t)
		if err != nil {
			return pipeline.Stop, err
		}
		run.tournamentFinished = true
		run.finalStandings = standings
		run.events.Push(events.TournamentFinished, t.ID, nil, nil, run.now)
	}
	return pipeline.Continue, nil
}

func (s *MatchService) completeStage(ctx context.Context, run *gameRun) error {
	t := run.tournament
	switch run.standing.Type {
	case bracket.StandingGroup:
		done, err := s.allGroupsFinished(ctx, run)
		if err != nil || !done {
			return err
		}
		if err := t.TransitionTo(bracket.StatusGroupsCompleted); err != nil {
			return err
		}
		run.allGroupsFinished = true
		run.events.Push(events.GroupsFinished, t.ID, nil, nil, run.now)

		if t.Format == bracket.GroupsOnly {
			return s.finishFromGroups(ctx, run)
		}
		return s.autoStartBracket(ctx, run)

	case bracket.StandingBracket:
		if err := t.TransitionTo(bracket.StatusFinished); err != nil {
			return err
		}
		return s.placeBracket(ctx, run)
	}
	return nil
}

func (s *MatchService) allGroupsFinished(ctx context.Context, run *gameRun) (bool, error) {
	standings, err := s.store.GetStandings(ctx, run.tx, run.tournament.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get standings: %w", err)
	}
	for _, st := range standings {
		if st.Type == bracket.StandingGroup && !st.Finished {
			return false, nil
		}
	}
	return true, nil
}

// autoStartBracket runs the bracket builder once the last group is done. If
// the advancing teams cannot form a bracket the tournament stays at
// groups_completed so the bracket can be started by hand.
func (s *MatchService) autoStartBracket(ctx context.Context, run *gameRun) error {
	t := run.tournament

	teams, err := s.advancingTeams(ctx, run.tx, t)
	if err != nil {
		return err
	}
	if err := checkBracketSize(len(teams)); err != nil {
		run.notice = "groups finished but the bracket was not started: " + err.Error()
		s.logger.WarnContext(ctx, "automatic bracket start skipped",
			slog.String("tournament_id", t.ID.String()), slog.Any("error", err))
		return nil
	}
	pairs, err := bracket.SeedPairs(len(teams))
	if err != nil {
		return err
	}

	if err := t.TransitionTo(bracket.StatusSeedingBracket); err != nil {
		return err
	}
	standing, err := s.buildBracket(ctx, run.tx, t, teams, pairs, run.actor, run.now)
	if err != nil {
		return err
	}
	if err := t.TransitionTo(bracket.StatusBracketInProgress); err != nil {
		return err
	}
	if err := s.setTeamStatus(ctx, run.tx, teams, bracket.TeamCompeting, run.actor, run.now); err != nil {
		return err
	}

	run.events.Push(events.TournamentStarted, t.ID, &standing.ID, nil, run.now)
	return nil
}

// finishFromGroups places a GroupsOnly tournament straight from the merged
// group tables. Every team gets its own placement.
func (s *MatchService) finishFromGroups(ctx context.Context, run *gameRun) error {
	t := run.tournament
	if err := t.TransitionTo(bracket.StatusFinished); err != nil {
		return err
	}

	rows, err := s.groupTables(ctx, run.tx, t.ID)
	if err != nil {
		return err
	}
	teams, err := s.teamsByID(ctx, run.tx, t.ID)
	if err != nil {
		return err
	}
	for i, row := range rows {
		team := teams[row.TeamID]
		if team == nil {
			continue
		}
		if i == 0 {
			team.Status = bracket.TeamChampion
		} else {
			team.Status = bracket.TeamEliminated
			team.EliminatedInRound = utils.Ptr(0)
		}
	}

	bracket.AssignPlacements(bracket.GroupTiers(rows, teams, false))
	return s.saveTeams(ctx, run, teams)
}

// placeBracket places every team once the bracket is done: bracket teams by
// the round they went out in, then the teams eliminated in the groups by
// their group rank.
func (s *MatchService) placeBracket(ctx context.Context, run *gameRun) error {
	t := run.tournament

	teams, err := s.teamsByID(ctx, run.tx, t.ID)
	if err != nil {
		return err
	}
	roster, err := s.store.GetRoster(ctx, run.tx, run.standing.ID)
	if err != nil {
		return fmt.Errorf("failed to get bracket roster: %w", err)
	}

	slots := make(map[uuid.UUID]int, len(roster))
	bracketTeams := make([]*bracket.Team, 0, len(roster))
	for _, r := range roster {
		slots[r.TeamID] = r.Slot
		if team := teams[r.TeamID]; team != nil {
			bracketTeams = append(bracketTeams, team)
		}
	}
	tiers := bracket.BracketTiers(bracketTeams, slots)

	if t.Format.HasGroups() {
		rows, err := s.groupTables(ctx, run.tx, t.ID)
		if err != nil {
			return err
		}
		groupOnly := make([]bracket.GroupRow, 0, len(rows))
		for _, row := range rows {
			if _, inBracket := slots[row.TeamID]; !inBracket {
				groupOnly = append(groupOnly, row)
			}
		}
		tiers = append(tiers, bracket.GroupTiers(groupOnly, teams, true)...)
	}

	bracket.AssignPlacements(tiers)
	return s.saveTeams(ctx, run, teams)
}

func (s *MatchService) teamsByID(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (map[uuid.UUID]*bracket.Team, error) {
	teams, err := s.store.GetTeams(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	byID := make(map[uuid.UUID]*bracket.Team, len(teams))
	for i := range teams {
		byID[teams[i].ID] = &teams[i]
	}
	return byID, nil
}

func (s *MatchService) saveTeams(ctx context.Context, run *gameRun, teams map[uuid.UUID]*bracket.Team) error {
	ptrs := make([]*bracket.Team, 0, len(teams))
	for _, team := range teams {
		team.Touch(run.actor, run.now)
		ptrs = append(ptrs, team)
	}
	return s.store.UpdateTeams(ctx, run.tx, ptrs...)
}

func (s *MatchService) buildResponse(ctx context.Context, run *gameRun) (pipeline.Outcome, error) {
	run.result = resultFrom(run)
	return pipeline.Continue, nil
}
