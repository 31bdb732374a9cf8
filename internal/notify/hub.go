package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/google/uuid"
)

// Message is what subscribers of a tournament room receive.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	Room    string `json:"room,omitempty"`
}

// Hub keeps one room of websocket clients per tournament. Membership changes
// go through Run; broadcasts can come from any goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func RoomFor(tournamentID uuid.UUID) string {
	return "tournament_" + tournamentID.String()
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			size := len(h.rooms[client.room])
			h.mu.Unlock()
			h.logger.Debug("client joined room", slog.String("room", client.room), slog.Int("clients", size))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, clients := range h.rooms {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	h.logger.Debug("client left room", slog.String("room", client.room), slog.Int("clients", len(clients)))
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom sends msg to every client of room and returns how many
// clients it was queued for. Clients with a full buffer miss the message.
func (h *Hub) BroadcastToRoom(room string, msg any) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode message for %s: %w", room, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.rooms[room] {
		select {
		case client.send <- data:
			sent++
		default:
			h.logger.Warn("client send buffer full, message dropped", slog.String("room", room))
		}
	}
	return sent, nil
}

// HandleEvent forwards a committed domain event to the tournament's room.
func (h *Hub) HandleEvent(ctx context.Context, event events.DomainEvent) error {
	room := RoomFor(event.TournamentID)
	_, err := h.BroadcastToRoom(room, Message{Type: string(event.Kind), Payload: event, Room: room})
	return err
}
