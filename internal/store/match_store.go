package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	createMatchesQuery = `
		INSERT INTO matches (id, standing_id, round, match_order, team_a_id, team_b_id, best_of, finished,
			winner_id, loser_id, next_match_id, next_slot, created_at, created_by, modified_at, modified_by)
		VALUES (:id, :standing_id, :round, :match_order, :team_a_id, :team_b_id, :best_of, :finished,
			:winner_id, :loser_id, :next_match_id, :next_slot, :created_at, :created_by, :modified_at, :modified_by)
	`
	// finished = FALSE lets only one writer decide a match
	finishMatchQuery = `
		UPDATE matches SET
		finished = :finished,
		winner_id = :winner_id,
		loser_id = :loser_id,
		modified_at = :modified_at,
		modified_by = :modified_by
		WHERE id = :id AND finished = FALSE
	`
	// fillSlotQuery only writes an empty slot, so two feeder matches finishing
	// at the same time cannot overwrite each other
	fillSlotQuery = `
		UPDATE matches SET
		%[1]s = ?,
		modified_at = ?,
		modified_by = ?
		WHERE id = ? AND %[1]s IS NULL AND finished = FALSE
	`
	tournamentMatchesQuery = `
		SELECT m.* FROM matches m
		JOIN standings s ON s.id = m.standing_id
		WHERE s.tournament_id = ?
		ORDER BY s.type DESC, s.position ASC, m.round ASC, m.match_order ASC
	`
)

// CreateMatches inserts in slice order. Bracket trees must list a match after
// the match its winner feeds into.
func (s *TournamentStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := s.namedExec(ctx, tx, createMatchesQuery, matches)
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Match, error) {
	var match bracket.Match
	if err := s.get(ctx, tx, &match, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, notFound(err, "match", id)
	}
	return &match, nil
}

func (s *TournamentStore) GetMatchesByStanding(ctx context.Context, tx *sqlx.Tx, standingID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.selectAll(ctx, tx, &matches,
		"SELECT * FROM matches WHERE standing_id = ? ORDER BY round ASC, match_order ASC", standingID)
	return matches, err
}

func (s *TournamentStore) GetMatchesByTournament(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.selectAll(ctx, tx, &matches, tournamentMatchesQuery, tournamentID)
	return matches, err
}

// FinishMatch stores the outcome of a decided match. It fails with a
// Conflict if the match was finished by someone else in the meantime.
func (s *TournamentStore) FinishMatch(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) error {
	res, err := s.namedExec(ctx, tx, finishMatchQuery, match)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}
	if err := checkAffected(res); err != nil {
		if _, getErr := s.GetMatch(ctx, tx, match.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: match %s is already finished", bracket.ErrConflict, match.ID)
	}
	return nil
}

// FillMatchSlot puts teamID into slot 1 (team A) or 2 (team B) of an
// unfinished match. Only that column is written.
func (s *TournamentStore) FillMatchSlot(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot int, teamID uuid.UUID, actor string, at time.Time) error {
	var column string
	switch slot {
	case 1:
		column = "team_a_id"
	case 2:
		column = "team_b_id"
	default:
		return fmt.Errorf("invalid match slot %d", slot)
	}

	res, err := s.exec(ctx, tx, fmt.Sprintf(fillSlotQuery, column), teamID, at.UTC(), actor, matchID)
	if err != nil {
		return fmt.Errorf("failed to fill match slot: %w", err)
	}
	if err := checkAffected(res); err != nil {
		if _, getErr := s.GetMatch(ctx, tx, matchID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: slot %d of match %s is already taken", bracket.ErrConflict, slot, matchID)
	}
	return nil
}
