package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/pipeline"
	"github.com/AdamBeresnev/op-tournaments/internal/store"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const (
	maxNameLength   = 100
	maxTeamsLimit   = 256
	maxSlugAttempts = 20
)

type TournamentService struct {
	*engine
	startGroups  *pipeline.Pipeline[*groupsRun]
	startBracket *pipeline.Pipeline[*bracketRun]
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, dispatcher *events.Dispatcher, logger *slog.Logger) *TournamentService {
	s := &TournamentService{engine: newEngine(db, store, dispatcher, logger)}
	s.startGroups = s.newStartGroupsPipeline()
	s.startBracket = s.newStartBracketPipeline()
	return s
}

type CreateTournamentInput struct {
	Name                 string         `json:"name"`
	MaxTeams             int            `json:"maxTeams"`
	Format               bracket.Format `json:"format"`
	GroupCount           int            `json:"groupCount"`
	AdvancePerGroup      int            `json:"advancePerGroup"`
	GroupBestOf          int            `json:"groupBestOf"`
	BracketBestOf        int            `json:"bracketBestOf"`
	RegistrationClosesAt *time.Time     `json:"registrationClosesAt,omitempty"`
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{bracket.ErrValidation}, args...)...)
}

func bestOfOrDefault(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

func (in *CreateTournamentInput) normalize(now time.Time) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return validationErr("name is required")
	}
	if len(in.Name) > maxNameLength {
		return validationErr("name exceeds %d characters", maxNameLength)
	}
	if in.MaxTeams < 2 || in.MaxTeams > maxTeamsLimit {
		return validationErr("max teams must be between 2 and %d, got %d", maxTeamsLimit, in.MaxTeams)
	}
	if !in.Format.Valid() {
		return validationErr("unknown format %q", in.Format)
	}
	if in.RegistrationClosesAt != nil && !in.RegistrationClosesAt.After(now) {
		return validationErr("registration deadline must be in the future")
	}

	in.BracketBestOf = bestOfOrDefault(in.BracketBestOf)
	in.GroupBestOf = bestOfOrDefault(in.GroupBestOf)
	for _, bo := range []int{in.BracketBestOf, in.GroupBestOf} {
		if bo < 1 || bo%2 == 0 {
			return validationErr("best of must be an odd number, got %d", bo)
		}
	}

	switch in.Format {
	case bracket.BracketOnly:
		in.GroupCount, in.AdvancePerGroup, in.GroupBestOf = 0, 0, 1
	case bracket.GroupsOnly:
		in.AdvancePerGroup = 0
		in.BracketBestOf = 1
	}

	if in.Format.HasGroups() {
		if in.GroupCount < 1 {
			return validationErr("at least one group is required")
		}
		if in.MaxTeams < 2*in.GroupCount {
			return validationErr("%d groups need room for at least %d teams", in.GroupCount, 2*in.GroupCount)
		}
	}
	if in.Format == bracket.GroupsAndBracket {
		if in.AdvancePerGroup < 1 {
			return validationErr("at least one team must advance per group")
		}
		if err := checkBracketSize(in.GroupCount * in.AdvancePerGroup); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*bracket.Tournament, error) {
	now := s.now()
	if err := input.normalize(now); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournamentSlug, err := s.uniqueSlug(ctx, tx, input.Name)
	if err != nil {
		return nil, err
	}

	var closesAt *time.Time
	if input.RegistrationClosesAt != nil {
		utc := input.RegistrationClosesAt.UTC()
		closesAt = &utc
	}

	tournament := &bracket.Tournament{
		EntityMeta:           bracket.NewMeta(middleware.ActorFromContext(ctx), now),
		Name:                 input.Name,
		Slug:                 tournamentSlug,
		MaxTeams:             input.MaxTeams,
		Format:               input.Format,
		Status:               bracket.StatusSetup,
		RegistrationOpen:     true,
		RegistrationClosesAt: closesAt,
		GroupCount:           input.GroupCount,
		AdvancePerGroup:      input.AdvancePerGroup,
		GroupBestOf:          input.GroupBestOf,
		BracketBestOf:        input.BracketBestOf,
	}
	if err := s.store.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	return tournament, tx.Commit()
}

func (s *TournamentService) uniqueSlug(ctx context.Context, tx *sqlx.Tx, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "tournament"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		taken, err := s.store.SlugExists(ctx, tx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

// RegisterTeam signs a team up while registration is open. Seeds follow
// registration order.
func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("team name is required")
	}
	if len(name) > maxNameLength {
		return nil, validationErr("team name exceeds %d characters", maxNameLength)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.store.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.Status.AllowsRegistration() || !t.RegistrationOpen {
		return nil, fmt.Errorf("%w: registration for %s is closed", bracket.ErrConflict, t.Name)
	}

	taken, err := s.store.TeamNameTaken(ctx, tx, t.ID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check team name: %w", err)
	}
	if taken {
		return nil, validationErr("team %q is already registered", name)
	}

	count, err := s.store.CountTeams(ctx, tx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}
	if count >= t.MaxTeams {
		return nil, validationErr("tournament is full (%d teams)", t.MaxTeams)
	}

	team := &bracket.Team{
		EntityMeta:   bracket.NewMeta(middleware.ActorFromContext(ctx), s.now()),
		TournamentID: t.ID,
		Name:         name,
		Seed:         count + 1,
		Status:       bracket.TeamSignedUp,
	}
	if err := s.store.CreateTeam(ctx, tx, team); err != nil {
		return nil, fmt.Errorf("failed to register team: %w", err)
	}

	return team, tx.Commit()
}

func (s *TournamentService) CancelTournament(ctx context.Context, id uuid.UUID, expectedVersion *int) (*bracket.Tournament, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.store.GetTournament(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(t, expectedVersion); err != nil {
		return nil, err
	}
	if err := t.TransitionTo(bracket.StatusCancelled); err != nil {
		return nil, err
	}
	now := s.now()
	t.RegistrationOpen = false
	t.Touch(middleware.ActorFromContext(ctx), now)

	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	var queue events.Queue
	queue.Push(events.TournamentCancelled, t.ID, nil, nil, now)
	s.publish(ctx, &queue)
	return t, nil
}

// GetOverview loads a tournament with everything it owns.
func (s *TournamentService) GetOverview(ctx context.Context, id uuid.UUID) (*TournamentOverview, error) {
	overview := &TournamentOverview{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.store.GetTournament(gctx, nil, id)
		overview.Tournament = t
		return err
	})
	g.Go(func() error {
		teams, err := s.store.GetTeams(gctx, nil, id)
		overview.Teams = teams
		return err
	})
	g.Go(func() error {
		standings, err := s.store.GetStandings(gctx, nil, id)
		overview.Standings = standings
		return err
	})
	g.Go(func() error {
		matches, err := s.store.GetMatchesByTournament(gctx, nil, id)
		overview.Matches = matches
		return err
	})
	g.Go(func() error {
		games, err := s.store.GetGamesByTournament(gctx, nil, id)
		overview.Games = games
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

// GetFinalStandings returns the placements of a finished tournament.
func (s *TournamentService) GetFinalStandings(ctx context.Context, id uuid.UUID) (*bracket.Tournament, []bracket.Placement, error) {
	t, err := s.store.GetTournament(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != bracket.StatusFinished {
		return t, nil, fmt.Errorf("%w: tournament is %s, standings are final once it has finished", bracket.ErrConflict, t.Status)
	}
	placements, err := s.finalStandings(ctx, nil, t)
	if err != nil {
		return nil, nil, err
	}
	return t, placements, nil
}

// CloseExpiredRegistrations closes registration on every tournament whose
// deadline is at or before now and returns how many were closed.
func (s *TournamentService) CloseExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	open, err := s.store.ListOpenRegistrations(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list open registrations: %w", err)
	}

	closed := 0
	for i := range open {
		t := &open[i]
		if t.RegistrationClosesAt == nil || t.RegistrationClosesAt.After(now) {
			continue
		}
		t.RegistrationOpen = false
		t.Touch(middleware.SystemActor, now)
		if err := s.store.UpdateTournament(ctx, nil, t); err != nil {
			if bracket.Kind(err) == bracket.KindConflict {
				s.logger.WarnContext(ctx, "registration close skipped, tournament changed concurrently",
					slog.String("tournament_id", t.ID.String()))
				continue
			}
			return closed, err
		}
		closed++
	}
	return closed, nil
}
