package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-tournaments/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	r := chi.NewRouter()
	r.Get("/ws/tournaments/{id}", hub.ServeWs(NewUpgrader(nil)))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, tournamentID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/tournaments/" + tournamentID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversEventsToTournamentRoom(t *testing.T) {
	hub, server := startHub(t)
	tournamentID := uuid.New()
	other := uuid.New()

	conn := dial(t, server, tournamentID.String())
	bystander := dial(t, server, other.String())
	require.Eventually(t, func() bool {
		return hub.RoomSize(RoomFor(tournamentID)) == 1 && hub.RoomSize(RoomFor(other)) == 1
	}, time.Second, 10*time.Millisecond)

	matchID := uuid.New()
	event := events.DomainEvent{
		Kind:         events.MatchFinished,
		TournamentID: tournamentID,
		MatchID:      &matchID,
		OccurredAt:   time.Now().UTC(),
	}
	require.NoError(t, hub.HandleEvent(context.Background(), event))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    string             `json:"type"`
		Room    string             `json:"room"`
		Payload events.DomainEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, string(events.MatchFinished), got.Type)
	assert.Equal(t, RoomFor(tournamentID), got.Room)
	assert.Equal(t, tournamentID, got.Payload.TournamentID)
	require.NotNil(t, got.Payload.MatchID)
	assert.Equal(t, matchID, *got.Payload.MatchID)

	bystander.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bystander.ReadMessage()
	assert.Error(t, err, "other rooms must not receive the event")
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub, server := startHub(t)
	tournamentID := uuid.New()
	room := RoomFor(tournamentID)

	conn := dial(t, server, tournamentID.String())
	require.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.RoomSize(room) == 0 }, time.Second, 10*time.Millisecond)

	sent, err := hub.BroadcastToRoom(room, Message{Type: "ping"})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestServeWsRejectsBadID(t *testing.T) {
	_, server := startHub(t)

	resp, err := http.Get(server.URL + "/ws/tournaments/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpgraderOrigins(t *testing.T) {
	upgrader := NewUpgrader([]string{"https://cups.example"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://cups.example", true},
		{"http://" + "localhost:8080", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://localhost:8080/ws/tournaments/x", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, upgrader.CheckOrigin(r), tt.origin)
	}
}
