package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// TournamentStore is the repository for tournaments and everything they own.
// Every method takes an optional transaction; nil runs against the pool.
type TournamentStore struct {
	db *sqlx.DB
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, name, slug, max_teams, format, status, registration_open, registration_closes_at,
			group_count, advance_per_group, group_best_of, bracket_best_of, version,
			created_at, created_by, modified_at, modified_by)
		VALUES (:id, :name, :slug, :max_teams, :format, :status, :registration_open, :registration_closes_at,
			:group_count, :advance_per_group, :group_best_of, :bracket_best_of, :version,
			:created_at, :created_by, :modified_at, :modified_by)
	`
	updateTournamentQuery = `
		UPDATE tournaments SET
		name = :name,
		status = :status,
		registration_open = :registration_open,
		registration_closes_at = :registration_closes_at,
		version = version + 1,
		modified_at = :modified_at,
		modified_by = :modified_by
		WHERE id = :id AND version = :version
	`
	openRegistrationsQuery = `
		SELECT * FROM tournaments
		WHERE status = ?
		AND registration_open = ?
		AND registration_closes_at IS NOT NULL
	`
)

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// DB exposes the pool so services can open transactions.
func (s *TournamentStore) DB() *sqlx.DB {
	return s.db
}

func (s *TournamentStore) ext(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *TournamentStore) get(ctx context.Context, tx *sqlx.Tx, dest any, query string, args ...any) error {
	e := s.ext(tx)
	return sqlx.GetContext(ctx, e, dest, e.Rebind(query), args...)
}

func (s *TournamentStore) selectAll(ctx context.Context, tx *sqlx.Tx, dest any, query string, args ...any) error {
	e := s.ext(tx)
	return sqlx.SelectContext(ctx, e, dest, e.Rebind(query), args...)
}

func (s *TournamentStore) exec(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (sql.Result, error) {
	e := s.ext(tx)
	return e.ExecContext(ctx, e.Rebind(query), args...)
}

func (s *TournamentStore) namedExec(ctx context.Context, tx *sqlx.Tx, query string, arg any) (sql.Result, error) {
	return sqlx.NamedExecContext(ctx, s.ext(tx), query, arg)
}

// notFound maps a missing row to the domain NotFound error.
func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", bracket.ErrNotFound, what, id)
	}
	return err
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := s.namedExec(ctx, tx, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := s.get(ctx, tx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id); err != nil {
		return nil, notFound(err, "tournament", id)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentBySlug(ctx context.Context, tx *sqlx.Tx, slug string) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := s.get(ctx, tx, &tournament, "SELECT * FROM tournaments WHERE slug = ?", slug); err != nil {
		return nil, notFound(err, "tournament", slug)
	}
	return &tournament, nil
}

func (s *TournamentStore) SlugExists(ctx context.Context, tx *sqlx.Tx, slug string) (bool, error) {
	var count int
	err := s.get(ctx, tx, &count, "SELECT COUNT(*) FROM tournaments WHERE slug = ?", slug)
	return count > 0, err
}

// UpdateTournament writes the mutable tournament fields if nobody else has
// written since tournament was loaded. On success tournament.Version is bumped
// to match the row.
func (s *TournamentStore) UpdateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	res, err := s.namedExec(ctx, tx, updateTournamentQuery, tournament)
	if err != nil {
		return fmt.Errorf("failed to update tournament: %w", err)
	}
	if err := checkAffected(res); err != nil {
		if _, getErr := s.GetTournament(ctx, tx, tournament.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: tournament %s was modified concurrently (version %d is stale)",
			bracket.ErrConflict, tournament.ID, tournament.Version)
	}
	tournament.Version++
	return nil
}

// ListOpenRegistrations returns setup tournaments that still accept teams and
// have a registration deadline.
func (s *TournamentStore) ListOpenRegistrations(ctx context.Context, tx *sqlx.Tx) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.selectAll(ctx, tx, &tournaments, openRegistrationsQuery, bracket.StatusSetup, true)
	return tournaments, err
}

var errNoRowsAffected = errors.New("no rows affected")

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNoRowsAffected
	}
	return nil
}
