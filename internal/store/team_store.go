package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createTeamQuery = `
		INSERT INTO teams (id, tournament_id, name, seed, status, eliminated_in_round, placement,
			created_at, created_by, modified_at, modified_by)
		VALUES (:id, :tournament_id, :name, :seed, :status, :eliminated_in_round, :placement,
			:created_at, :created_by, :modified_at, :modified_by)
	`
	updateTeamQuery = `
		UPDATE teams SET
		status = :status,
		eliminated_in_round = :eliminated_in_round,
		placement = :placement,
		modified_at = :modified_at,
		modified_by = :modified_by
		WHERE id = :id
	`
	standingTeamsQuery = `
		SELECT t.* FROM teams t
		JOIN standing_teams st ON st.team_id = t.id
		WHERE st.standing_id = ?
		ORDER BY st.slot ASC
	`
)

func (s *TournamentStore) CreateTeam(ctx context.Context, tx *sqlx.Tx, team *bracket.Team) error {
	_, err := s.namedExec(ctx, tx, createTeamQuery, team)
	return err
}

func (s *TournamentStore) GetTeam(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	if err := s.get(ctx, tx, &team, "SELECT * FROM teams WHERE id = ?", id); err != nil {
		return nil, notFound(err, "team", id)
	}
	return &team, nil
}

// GetTeams returns the tournament's teams in registration order.
func (s *TournamentStore) GetTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.selectAll(ctx, tx, &teams, "SELECT * FROM teams WHERE tournament_id = ? ORDER BY seed ASC", tournamentID)
	return teams, err
}

func (s *TournamentStore) CountTeams(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := s.get(ctx, tx, &count, "SELECT COUNT(*) FROM teams WHERE tournament_id = ?", tournamentID)
	return count, err
}

func (s *TournamentStore) TeamNameTaken(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, name string) (bool, error) {
	var count int
	err := s.get(ctx, tx, &count, "SELECT COUNT(*) FROM teams WHERE tournament_id = ? AND name = ?", tournamentID, name)
	return count > 0, err
}

func (s *TournamentStore) UpdateTeams(ctx context.Context, tx *sqlx.Tx, teams ...*bracket.Team) error {
	for _, team := range teams {
		res, err := s.namedExec(ctx, tx, updateTeamQuery, team)
		if err != nil {
			return fmt.Errorf("failed to update team %s: %w", team.ID, err)
		}
		if err := checkAffected(res); err != nil {
			return fmt.Errorf("%w: team %s", bracket.ErrNotFound, team.ID)
		}
	}
	return nil
}

// GetStandingTeams returns the roster of a standing ordered by slot.
func (s *TournamentStore) GetStandingTeams(ctx context.Context, tx *sqlx.Tx, standingID uuid.UUID) ([]bracket.Team, error) {
	var teams []bracket.Team
	err := s.selectAll(ctx, tx, &teams, standingTeamsQuery, standingID)
	return teams, err
}
