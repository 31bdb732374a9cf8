package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/utils"
	"github.com/AdamBeresnev/op-tournaments/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testActor = "store-test"

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// every new connection would get its own empty database
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	source, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err, "Failed to open embedded migrations")

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

func newTournament(name string) *bracket.Tournament {
	return &bracket.Tournament{
		EntityMeta:       bracket.NewMeta(testActor, time.Now()),
		Name:             name,
		Slug:             uuid.NewString(),
		MaxTeams:         8,
		Format:           bracket.BracketOnly,
		Status:           bracket.StatusSetup,
		RegistrationOpen: true,
		BracketBestOf:    3,
	}
}

func seedTeams(t *testing.T, s *TournamentStore, tournamentID uuid.UUID, n int) []bracket.Team {
	t.Helper()
	var teams []bracket.Team
	for i := 1; i <= n; i++ {
		team := bracket.Team{
			EntityMeta:   bracket.NewMeta(testActor, time.Now()),
			TournamentID: tournamentID,
			Name:         "Team " + string(rune('A'+i-1)),
			Seed:         i,
			Status:       bracket.TeamSignedUp,
		}
		require.NoError(t, s.CreateTeam(context.Background(), nil, &team))
		teams = append(teams, team)
	}
	return teams
}

func TestCreateTournament(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	closes := time.Now().Add(time.Hour).UTC()
	tournament := newTournament("Test Tournament")
	tournament.RegistrationClosesAt = &closes

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	err = store.CreateTournament(ctx, tx, tournament)
	require.NoError(t, err)

	err = tx.Commit()
	require.NoError(t, err)

	fetched, err := store.GetTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, bracket.BracketOnly, fetched.Format)
	assert.Equal(t, bracket.StatusSetup, fetched.Status)
	assert.True(t, fetched.RegistrationOpen)
	assert.Equal(t, testActor, fetched.CreatedBy)
	require.NotNil(t, fetched.RegistrationClosesAt)
	assert.WithinDuration(t, closes, *fetched.RegistrationClosesAt, time.Second)

	bySlug, err := store.GetTournamentBySlug(ctx, nil, tournament.Slug)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, bySlug.ID)

	exists, err := store.SlugExists(ctx, nil, tournament.Slug)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetTournamentNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := NewTournamentStore(db).GetTournament(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, bracket.ErrNotFound)
}

func TestUpdateTournamentVersionCheck(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTournament("Versioned")
	require.NoError(t, store.CreateTournament(ctx, nil, tournament))

	stale := *tournament

	tournament.Status = bracket.StatusSeedingBracket
	require.NoError(t, store.UpdateTournament(ctx, nil, tournament))
	assert.Equal(t, 1, tournament.Version)

	stale.Status = bracket.StatusCancelled
	err := store.UpdateTournament(ctx, nil, &stale)
	assert.ErrorIs(t, err, bracket.ErrConflict)

	fetched, err := store.GetTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StatusSeedingBracket, fetched.Status)
	assert.Equal(t, 1, fetched.Version)

	missing := newTournament("Missing")
	assert.ErrorIs(t, store.UpdateTournament(ctx, nil, missing), bracket.ErrNotFound)
}

func TestTeams(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTournament("Teams")
	require.NoError(t, store.CreateTournament(ctx, nil, tournament))
	teams := seedTeams(t, store, tournament.ID, 3)

	count, err := store.CountTeams(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	taken, err := store.TeamNameTaken(ctx, nil, tournament.ID, "Team B")
	require.NoError(t, err)
	assert.True(t, taken)

	teams[1].Status = bracket.TeamEliminated
	teams[1].EliminatedInRound = utils.Ptr(1)
	require.NoError(t, store.UpdateTeams(ctx, nil, &teams[1]))

	fetched, err := store.GetTeams(ctx, nil, tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{fetched[0].Seed, fetched[1].Seed, fetched[2].Seed})
	assert.Equal(t, bracket.TeamEliminated, fetched[1].Status)
	assert.Equal(t, 1, utils.OrZero(fetched[1].EliminatedInRound))
	assert.Nil(t, fetched[0].EliminatedInRound)
}

func TestStandingMatchesAndGames(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTournament("Bracket")
	require.NoError(t, store.CreateTournament(ctx, nil, tournament))
	teams := seedTeams(t, store, tournament.ID, 2)

	standing := &bracket.Standing{
		EntityMeta:   bracket.NewMeta(testActor, time.Now()),
		TournamentID: tournament.ID,
		Type:         bracket.StandingBracket,
		Name:         "Bracket",
		MaxTeams:     2,
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateStanding(ctx, tx, standing))
	require.NoError(t, store.CreateStandingTeams(ctx, tx, []bracket.StandingTeam{
		{StandingID: standing.ID, TeamID: teams[1].ID, Slot: 2},
		{StandingID: standing.ID, TeamID: teams[0].ID, Slot: 1},
	}))

	final := bracket.Match{
		EntityMeta: bracket.NewMeta(testActor, time.Now()),
		StandingID: standing.ID,
		Round:      1,
		Order:      1,
		TeamAID:    &teams[0].ID,
		TeamBID:    &teams[1].ID,
		BestOf:     1,
	}
	require.NoError(t, store.CreateMatches(ctx, tx, []bracket.Match{final}))

	game := bracket.Game{EntityMeta: bracket.NewMeta(testActor, time.Now()), MatchID: final.ID, Number: 1}
	require.NoError(t, store.CreateGames(ctx, tx, []bracket.Game{game}))
	require.NoError(t, tx.Commit())

	roster, err := store.GetStandingTeams(ctx, nil, standing.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, teams[0].ID, roster[0].ID, "roster is ordered by slot")

	matches, err := store.GetMatchesByTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].NextMatchID)
	assert.False(t, matches[0].Finished)

	require.NoError(t, game.Score(&final, 10, 3, nil, time.Now()))
	require.NoError(t, store.RecordGame(ctx, nil, &game))
	assert.ErrorIs(t, store.RecordGame(ctx, nil, &game), bracket.ErrConflict, "a recorded game is immutable")

	games, err := store.GetGamesByStanding(ctx, nil, standing.ID)
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.NotNil(t, games[0].WinnerID)
	assert.Equal(t, teams[0].ID, *games[0].WinnerID)
	assert.Equal(t, 10, games[0].ScoreA)

	require.True(t, final.Decide(games))
	require.NoError(t, store.FinishMatch(ctx, nil, &final))
	fetched, err := store.GetMatch(ctx, nil, final.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Finished)
	assert.Equal(t, teams[1].ID, *fetched.LoserID)

	standing.Finished = true
	require.NoError(t, store.UpdateStanding(ctx, nil, standing))
	standings, err := store.GetStandings(ctx, nil, tournament.ID)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.True(t, standings[0].Finished)
}

func TestListOpenRegistrations(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute).UTC()
	withDeadline := newTournament("Deadline")
	withDeadline.RegistrationClosesAt = &deadline
	require.NoError(t, store.CreateTournament(ctx, nil, withDeadline))
	require.NoError(t, store.CreateTournament(ctx, nil, newTournament("No deadline")))

	open, err := store.ListOpenRegistrations(ctx, nil)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, withDeadline.ID, open[0].ID)
}

func TestFillMatchSlot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewTournamentStore(db)
	ctx := context.Background()

	tournament := newTournament("Slots")
	require.NoError(t, store.CreateTournament(ctx, nil, tournament))
	teams := seedTeams(t, store, tournament.ID, 2)

	standing := &bracket.Standing{
		EntityMeta:   bracket.NewMeta(testActor, time.Now()),
		TournamentID: tournament.ID,
		Type:         bracket.StandingBracket,
		Name:         "Bracket",
		MaxTeams:     4,
	}
	require.NoError(t, store.CreateStanding(ctx, nil, standing))
	final := bracket.Match{
		EntityMeta: bracket.NewMeta(testActor, time.Now()),
		StandingID: standing.ID,
		Round:      2,
		Order:      1,
		BestOf:     1,
	}
	require.NoError(t, store.CreateMatches(ctx, nil, []bracket.Match{final}))

	// both semifinal winners work from a copy loaded before either write
	stale, err := store.GetMatch(ctx, nil, final.ID)
	require.NoError(t, err)
	require.Nil(t, stale.TeamAID)
	require.Nil(t, stale.TeamBID)

	require.NoError(t, store.FillMatchSlot(ctx, nil, final.ID, 1, teams[0].ID, "semi-1", time.Now()))
	require.NoError(t, store.FillMatchSlot(ctx, nil, stale.ID, 2, teams[1].ID, "semi-2", time.Now()))

	fetched, err := store.GetMatch(ctx, nil, final.ID)
	require.NoError(t, err)
	require.True(t, fetched.Ready(), "the second winner must not erase the first")
	assert.Equal(t, teams[0].ID, *fetched.TeamAID)
	assert.Equal(t, teams[1].ID, *fetched.TeamBID)
	assert.Equal(t, "semi-2", fetched.ModifiedBy)

	err = store.FillMatchSlot(ctx, nil, final.ID, 1, teams[1].ID, testActor, time.Now())
	assert.ErrorIs(t, err, bracket.ErrConflict)
	assert.ErrorIs(t, store.FillMatchSlot(ctx, nil, uuid.New(), 1, teams[0].ID, testActor, time.Now()), bracket.ErrNotFound)
	assert.Error(t, store.FillMatchSlot(ctx, nil, final.ID, 3, teams[0].ID, testActor, time.Now()))

	// a decided match cannot be decided again from a stale copy
	fetched.Finished = true
	fetched.WinnerID, fetched.LoserID = &teams[0].ID, &teams[1].ID
	require.NoError(t, store.FinishMatch(ctx, nil, fetched))

	stale.Finished = true
	stale.WinnerID, stale.LoserID = &teams[1].ID, &teams[0].ID
	assert.ErrorIs(t, store.FinishMatch(ctx, nil, stale), bracket.ErrConflict)

	fetched, err = store.GetMatch(ctx, nil, final.ID)
	require.NoError(t, err)
	assert.Equal(t, teams[0].ID, *fetched.WinnerID)
}
