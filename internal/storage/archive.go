package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/google/uuid"
)

// StandingsSource loads the placements of a finished tournament.
type StandingsSource interface {
	GetFinalStandings(ctx context.Context, id uuid.UUID) (*bracket.Tournament, []bracket.Placement, error)
}

type FinalStandingsArchive struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Standings  []bracket.Placement `json:"standings"`
	ArchivedAt time.Time           `json:"archivedAt"`
}

// Archiver writes the final standings of every finished tournament to object
// storage as JSON.
type Archiver struct {
	objects  ObjectStore
	source   StandingsSource
	logger   *slog.Logger
	now      func() time.Time
}

func NewArchiver(objects  ObjectStore, source StandingsSource, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{objects: objects, source: source, logger: logger, now: time.Now}
}

func ArchiveKey(t *bracket.Tournament) string {
	return path.Join("tournaments", t.Slug, "final-standings.json")
}

// HandleEvent is registered for tournament.finished.
func (a *Archiver) HandleEvent(ctx context.Context, event events.DomainEvent) error {
	if event.Kind != events.TournamentFinished {
		return nil
	}

	t, standings, err := a.source.GetFinalStandings(ctx, event.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to load final standings for archive: %w", err)
	}

	body, err := json.MarshalIndent(FinalStandingsArchive{
		Tournament: t,
		Standings:  standings,
		ArchivedAt: a.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode final standings: %w", err)
	}

	object, err := a.objects.Put(ctx, ArchiveKey(t), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "final standings archived",
		slog.String("tournament_id", t.ID.String()),
		slog.String("url", object.URL),
		slog.String("etag", object.ETag))
	return nil
}
