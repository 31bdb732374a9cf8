package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createStandingQuery = `
		INSERT INTO standings (id, tournament_id, type, name, position, max_teams, finished,
			created_at, created_by, modified_at, modified_by)
		VALUES (:id, :tournament_id, :type, :name, :position, :max_teams, :finished,
			:created_at, :created_by, :modified_at, :modified_by)
	`
	updateStandingQuery = `
		UPDATE standings SET
		finished = :finished,
		modified_at = :modified_at,
		modified_by = :modified_by
		WHERE id = :id
	`
	createStandingTeamsQuery = `
		INSERT INTO standing_teams (standing_id, team_id, slot)
		VALUES (:standing_id, :team_id, :slot)
	`
)

func (s *TournamentStore) CreateStanding(ctx context.Context, tx *sqlx.Tx, standing *bracket.Standing) error {
	_, err := s.namedExec(ctx, tx, createStandingQuery, standing)
	return err
}

func (s *TournamentStore) CreateStandingTeams(ctx context.Context, tx *sqlx.Tx, roster []bracket.StandingTeam) error {
	if len(roster) == 0 {
		return nil
	}
	_, err := s.namedExec(ctx, tx, createStandingTeamsQuery, roster)
	return err
}

func (s *TournamentStore) GetStanding(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Standing, error) {
	var standing bracket.Standing
	if err := s.get(ctx, tx, &standing, "SELECT * FROM standings WHERE id = ?", id); err != nil {
		return nil, notFound(err, "standing", id)
	}
	return &standing, nil
}

// GetStandings returns group standings by position, then the bracket.
func (s *TournamentStore) GetStandings(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Standing, error) {
	var standings []bracket.Standing
	err := s.selectAll(ctx, tx, &standings,
		"SELECT * FROM standings WHERE tournament_id = ? ORDER BY type DESC, position ASC", tournamentID)
	return standings, err
}

func (s *TournamentStore) GetRoster(ctx context.Context, tx *sqlx.Tx, standingID uuid.UUID) ([]bracket.StandingTeam, error) {
	var roster []bracket.StandingTeam
	err := s.selectAll(ctx, tx, &roster, "SELECT * FROM standing_teams WHERE standing_id = ? ORDER BY slot ASC", standingID)
	return roster, err
}

func (s *TournamentStore) UpdateStanding(ctx context.Context, tx *sqlx.Tx, standing *bracket.Standing) error {
	res, err := s.namedExec(ctx, tx, updateStandingQuery, standing)
	if err != nil {
		return fmt.Errorf("failed to update standing: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("%w: standing %s", bracket.ErrNotFound, standing.ID)
	}
	return nil
}
