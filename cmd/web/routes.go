package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/httputil"
	"github.com/AdamBeresnev/op-tournaments/internal/middleware"
	"github.com/AdamBeresnev/op-tournaments/internal/notify"
	"github.com/AdamBeresnev/op-tournaments/internal/service"
	"github.com/AdamBeresnev/op-tournaments/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type server struct {
	tournaments    *service.TournamentService
	matches        *service.MatchService
	sessionManager *scs.SessionManager
	hub            *notify.Hub
	upgrader       *websocket.Upgrader
}

func newRouter(s *server, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.ActorHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.sessionManager.LoadAndSave)
	r.Use(middleware.LoadActor(s.sessionManager))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/session", s.handleSession)

	r.Route("/tournaments", func(r chi.Router) {
		r.Post("/", s.handleCreateTournament)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetTournament)
			r.Get("/standings", s.handleStandingsPage)
			r.Post("/teams", s.handleRegisterTeam)
			r.Post("/start-groups", s.handleStart(s.tournaments.StartGroups))
			r.Post("/start-bracket", s.handleStart(s.tournaments.StartBracket))
			r.Post("/cancel", s.handleCancel)
		})
	})

	r.Post("/games/{id}/result", s.handleGameResult)
	r.Get("/ws/tournaments/{id}", s.hub.ServeWs(s.upgrader))

	return r
}

func idParam(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+what+" ID", err)
		return uuid.Nil, false
	}
	return id, true
}

// decodeOptional accepts an empty body for endpoints whose fields are all
// optional.
func decodeOptional(r *http.Request, dst any) error {
	if err := httputil.DecodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}
	if !middleware.SetSessionActor(r.Context(), s.sessionManager, body.Name) {
		httputil.BadRequest(w, "A display name is required", nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"actor": middleware.CleanActor(body.Name)})
}

func (s *server) handleCreateTournament(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTournamentInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}
	tournament, err := s.tournaments.CreateTournament(r.Context(), input)
	if err != nil {
		httputil.DomainError(w, "Failed to create tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tournament)
}

func (s *server) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	overview, err := s.tournaments.GetOverview(r.Context(), id)
	if err != nil {
		httputil.DomainError(w, "Failed to get tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (s *server) handleRegisterTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}
	team, err := s.tournaments.RegisterTeam(r.Context(), id, body.Name)
	if err != nil {
		httputil.DomainError(w, "Failed to register team", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, team)
}

type startFunc func(ctx context.Context, req service.StartRequest) (*service.StartResult, error)

// handleStart runs one of the start pipelines. A refused start answers with
// the pipeline result and the status its error maps to.
func (s *server) handleStart(start startFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "tournament")
		if !ok {
			return
		}
		var body struct {
			ExpectedVersion *int `json:"expectedVersion"`
		}
		if err := decodeOptional(r, &body); err != nil {
			httputil.BadRequest(w, "Invalid request body", err)
			return
		}

		result, err := start(r.Context(), service.StartRequest{TournamentID: id, ExpectedVersion: body.ExpectedVersion})
		if err != nil {
			httputil.DomainError(w, "Failed to start stage", err)
			return
		}
		status := http.StatusOK
		if !result.Success {
			status = httputil.StatusFor(result.Err)
		}
		httputil.WriteJSON(w, status, result)
	}
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	var body struct {
		ExpectedVersion *int `json:"expectedVersion"`
	}
	if err := decodeOptional(r, &body); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}
	tournament, err := s.tournaments.CancelTournament(r.Context(), id, body.ExpectedVersion)
	if err != nil {
		httputil.DomainError(w, "Failed to cancel tournament", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tournament)
}

func (s *server) handleGameResult(w http.ResponseWriter, r *http.Request) {
	gameID, ok := idParam(w, r, "game")
	if !ok {
		return
	}
	var req service.GameResultRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return
	}
	req.GameID = gameID

	result, err := s.matches.RecordGameResult(r.Context(), req)
	if err != nil {
		httputil.DomainError(w, "Failed to record game", err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = httputil.StatusFor(result.Err)
	}
	httputil.WriteJSON(w, status, result)
}

func (s *server) handleStandingsPage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	overview, err := s.tournaments.GetOverview(r.Context(), id)
	if err != nil {
		httputil.DomainError(w, "Failed to get tournament", err)
		return
	}

	var placements []bracket.Placement
	if overview.Tournament.Status == bracket.StatusFinished {
		if _, placements, err = s.tournaments.GetFinalStandings(r.Context(), id); err != nil {
			httputil.DomainError(w, "Failed to get final standings", err)
			return
		}
	}

	var bracketData *views.BracketData
	for _, standing := range overview.Standings {
		if standing.Type != bracket.StandingBracket {
			continue
		}
		var matches []bracket.Match
		for _, m := range overview.Matches {
			if m.StandingID == standing.ID {
				matches = append(matches, m)
			}
		}
		data := views.PrepareBracketData(overview.Teams, matches)
		bracketData = &data
	}

	if err := views.Render(w, r, views.FinalStandingsPage(overview.Tournament, placements, bracketData)); err != nil {
		httputil.InternalServerError(w, "Failed to render standings", err)
	}
}
