package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createGamesQuery = `
		INSERT INTO games (id, match_id, number, score_a, score_b, winner_id, recorded_at,
			created_at, created_by, modified_at, modified_by)
		VALUES (:id, :match_id, :number, :score_a, :score_b, :winner_id, :recorded_at,
			:created_at, :created_by, :modified_at, :modified_by)
	`
	// winner_id IS NULL keeps a recorded result immutable
	recordGameQuery = `
		UPDATE games SET
		score_a = :score_a,
		score_b = :score_b,
		winner_id = :winner_id,
		recorded_at = :recorded_at,
		modified_at = :modified_at,
		modified_by = :modified_by
		WHERE id = :id AND winner_id IS NULL
	`
	standingGamesQuery = `
		SELECT g.* FROM games g
		JOIN matches m ON m.id = g.match_id
		WHERE m.standing_id = ?
		ORDER BY m.round ASC, m.match_order ASC, g.number ASC
	`
	gameTournamentQuery = `
		SELECT s.tournament_id FROM games g
		JOIN matches m ON m.id = g.match_id
		JOIN standings s ON s.id = m.standing_id
		WHERE g.id = ?
	`
	tournamentGamesQuery = `
		SELECT g.* FROM games g
		JOIN matches m ON m.id = g.match_id
		JOIN standings s ON s.id = m.standing_id
		WHERE s.tournament_id = ?
		ORDER BY s.type DESC, s.position ASC, m.round ASC, m.match_order ASC, g.number ASC
	`
)

func (s *TournamentStore) CreateGames(ctx context.Context, tx *sqlx.Tx, games []bracket.Game) error {
	if len(games) == 0 {
		return nil
	}
	_, err := s.namedExec(ctx, tx, createGamesQuery, games)
	return err
}

// GetGameTournamentID returns the tournament that owns a game.
func (s *TournamentStore) GetGameTournamentID(ctx context.Context, tx *sqlx.Tx, gameID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	if err := s.get(ctx, tx, &id, gameTournamentQuery, gameID); err != nil {
		return uuid.Nil, notFound(err, "game", gameID)
	}
	return id, nil
}

func (s *TournamentStore) GetGame(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Game, error) {
	var game bracket.Game
	if err := s.get(ctx, tx, &game, "SELECT * FROM games WHERE id = ?", id); err != nil {
		return nil, notFound(err, "game", id)
	}
	return &game, nil
}

func (s *TournamentStore) GetGamesByMatch(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) ([]bracket.Game, error) {
	var games []bracket.Game
	err := s.selectAll(ctx, tx, &games, "SELECT * FROM games WHERE match_id = ? ORDER BY number ASC", matchID)
	return games, err
}

func (s *TournamentStore) GetGamesByStanding(ctx context.Context, tx *sqlx.Tx, standingID uuid.UUID) ([]bracket.Game, error) {
	var games []bracket.Game
	err := s.selectAll(ctx, tx, &games, standingGamesQuery, standingID)
	return games, err
}

func (s *TournamentStore) GetGamesByTournament(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Game, error) {
	var games []bracket.Game
	err := s.selectAll(ctx, tx, &games, tournamentGamesQuery, tournamentID)
	return games, err
}

func (s *TournamentStore) RecordGame(ctx context.Context, tx *sqlx.Tx, game *bracket.Game) error {
	res, err := s.namedExec(ctx, tx, recordGameQuery, game)
	if err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("%w: game %s has already been recorded", bracket.ErrConflict, game.ID)
	}
	return nil
}
