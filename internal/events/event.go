package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	MatchFinished       Kind = "match.finished"
	StandingFinished    Kind = "standing.finished"
	GroupsFinished      Kind = "groups.finished"
	TournamentStarted   Kind = "tournament.started"
	TournamentFinished  Kind = "tournament.finished"
	TournamentCancelled Kind = "tournament.cancelled"
)

// DomainEvent carries ids only; handlers load whatever they need.
type DomainEvent struct {
	Kind         Kind       `json:"kind"`
	TournamentID uuid.UUID  `json:"tournamentId"`
	StandingID   *uuid.UUID `json:"standingId,omitempty"`
	MatchID      *uuid.UUID `json:"matchId,omitempty"`
	OccurredAt   time.Time  `json:"occurredAt"`
}

// Queue collects the events of one pipeline run until the run commits.
type Queue struct {
	events []DomainEvent
}

// Push queues an event stamped with at, the clock of the run that caused it.
func (q *Queue) Push(kind Kind, tournamentID uuid.UUID, standingID, matchID *uuid.UUID, at time.Time) {
	q.events = append(q.events, DomainEvent{
		Kind:         kind,
		TournamentID: tournamentID,
		StandingID:   standingID,
		MatchID:      matchID,
		OccurredAt:   at.UTC(),
	})
}

func (q *Queue) Len() int {
	return len(q.events)
}

// Drain returns the queued events and empties the queue.
func (q *Queue) Drain() []DomainEvent {
	out := q.events
	q.events = nil
	return out
}
