package main

import (
	"encoding/json"
	"net/http"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/httputil"
	"github.com/AdamBeresnev/op-knockout/internal/middleware"
	"github.com/AdamBeresnev/op-knockout/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type createTournamentRequest struct {
	Name                   string             `json:"name"`
	Description            string             `json:"description"`
	GameID                 *string            `json:"gameId"`
	Format                 bracket.Format     `json:"format"`
	Visibility             bracket.Visibility `json:"visibility"`
	MaxTeams               int                `json:"maxTeams"`
	CashPrize              float64            `json:"cashPrize"`
	MinRankRequirement     *int               `json:"minRankRequirement"`
	MaxRankRequirement     *int               `json:"maxRankRequirement"`
	TrustFactorRequirement *int               `json:"trustFactorRequirement"`
	OrganizerIDs           []string           `json:"organizerIds"`
}

type updateTournamentRequest struct {
	Name                   *string             `json:"name"`
	Description            *string             `json:"description"`
	GameID                 *string             `json:"gameId"`
	Visibility             *bracket.Visibility `json:"visibility"`
	MaxTeams               *int                `json:"maxTeams"`
	CashPrize              *float64            `json:"cashPrize"`
	MinRankRequirement     *int                `json:"minRankRequirement"`
	MaxRankRequirement     *int                `json:"maxRankRequirement"`
	TrustFactorRequirement *int                `json:"trustFactorRequirement"`
}

type joinRequest struct {
	ParticipantID string `json:"participantId"`
}

type resultRequest struct {
	WinnerID string              `json:"winnerId"`
	Score    *service.MatchScore `json:"score"`
}

type advanceResponse struct {
	Round      *bracket.Round  `json:"round,omitempty"`
	Matches    []bracket.Match `json:"matches,omitempty"`
	ChampionID *string         `json:"championId,omitempty"`
}

type handler struct {
	tournaments *service.TournamentService
}

func newRouter(tournaments *service.TournamentService, registry *prometheus.Registry) http.Handler {
	h := &handler{tournaments: tournaments}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoadActor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Get("/tournaments", h.listTournaments)
	r.Get("/tournaments/{id}", h.getTournament)
	r.Get("/tournaments/{id}/rounds", h.getRounds)
	r.Get("/tournaments/{id}/structure", h.getStructure)
	r.Get("/rounds/{id}/matches", h.getMatches)
	r.Get("/matches/{id}", h.getMatch)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.Post("/tournaments", h.createTournament)
		r.Patch("/tournaments/{id}", h.updateTournament)
		r.Delete("/tournaments/{id}", h.deleteTournament)
		r.Post("/tournaments/{id}/participants", h.joinTournament)
		r.Delete("/tournaments/{id}/participants/{participantID}", h.leaveTournament)
		r.Post("/tournaments/{id}/finish", h.finishTournament)
		r.Post("/tournaments/{id}/bracket", h.generateBracket)
		r.Post("/tournaments/{id}/advance", h.advanceRound)
		r.Post("/matches/{id}/result", h.submitResult)
	})

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

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httputil.BadRequest(w, "Invalid request body", err)
		return false
	}
	return true
}

func (h *handler) listTournaments(w http.ResponseWriter, r *http.Request) {
	var status *bracket.TournamentStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := bracket.TournamentStatus(s)
		status = &st
	}

	tournaments, err := h.tournaments.ListTournaments(r.Context(), status)
	if err != nil {
		httputil.ServiceError(w, "Failed to list tournaments", err)
		return
	}
	httputil.JSON(w, http.StatusOK, tournaments)
}

func (h *handler) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	tournament, err := h.tournaments.GetTournament(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get tournament", err)
		return
	}
	httputil.JSON(w, http.StatusOK, tournament)
}

func (h *handler) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if !decode(w, r, &req) {
		return
	}

	tournament, err := h.tournaments.CreateTournament(r.Context(), service.CreateInput{
		Name:                   req.Name,
		Description:            req.Description,
		GameID:                 req.GameID,
		Format:                 req.Format,
		Visibility:             req.Visibility,
		MaxTeams:               req.MaxTeams,
		CashPrize:              req.CashPrize,
		MinRankRequirement:     req.MinRankRequirement,
		MaxRankRequirement:     req.MaxRankRequirement,
		TrustFactorRequirement: req.TrustFactorRequirement,
		OrganizerIDs:           req.OrganizerIDs,
	})
	if err != nil {
		httputil.ServiceError(w, "Failed to create tournament", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, tournament)
}

func (h *handler) updateTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	var req updateTournamentRequest
	if !decode(w, r, &req) {
		return
	}

	tournament, err := h.tournaments.UpdateTournament(r.Context(), id, service.UpdateInput(req))
	if err != nil {
		httputil.ServiceError(w, "Failed to update tournament", err)
		return
	}
	httputil.JSON(w, http.StatusOK, tournament)
}

func (h *handler) deleteTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	if err := h.tournaments.DeleteTournament(r.Context(), id); err != nil {
		httputil.ServiceError(w, "Failed to delete tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) joinTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	var req joinRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tournaments.JoinTournament(r.Context(), id, req.ParticipantID); err != nil {
		httputil.ServiceError(w, "Failed to join tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) leaveTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	if err := h.tournaments.LeaveTournament(r.Context(), id, chi.URLParam(r, "participantID")); err != nil {
		httputil.ServiceError(w, "Failed to leave tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) finishTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	if err := h.tournaments.FinishTournament(r.Context(), id); err != nil {
		httputil.ServiceError(w, "Failed to finish tournament", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) generateBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	round, err := h.tournaments.GenerateBracket(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to generate bracket", err)
		return
	}
	httputil.JSON(w, http.StatusCreated, round)
}

func (h *handler) advanceRound(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	result, err := h.tournaments.AdvanceRound(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to advance round", err)
		return
	}
	httputil.JSON(w, http.StatusOK, advanceResponse{
		Round:      result.Round,
		Matches:    result.Matches,
		ChampionID: result.ChampionID,
	})
}

func (h *handler) getRounds(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	rounds, err := h.tournaments.GetRounds(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get rounds", err)
		return
	}
	httputil.JSON(w, http.StatusOK, rounds)
}

func (h *handler) getStructure(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tournament")
	if !ok {
		return
	}
	structure, err := h.tournaments.GetStructure(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get structure", err)
		return
	}
	httputil.JSON(w, http.StatusOK, structure)
}

func (h *handler) getMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "round")
	if !ok {
		return
	}
	matches, err := h.tournaments.GetMatches(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get matches", err)
		return
	}
	httputil.JSON(w, http.StatusOK, matches)
}

func (h *handler) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "match")
	if !ok {
		return
	}
	match, err := h.tournaments.GetMatch(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get match", err)
		return
	}
	httputil.JSON(w, http.StatusOK, match)
}

func (h *handler) submitResult(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "match")
	if !ok {
		return
	}
	var req resultRequest
	if !decode(w, r, &req) {
		return
	}
	match, err := h.tournaments.SubmitMatchResult(r.Context(), id, req.WinnerID, req.Score)
	if err != nil {
		httputil.ServiceError(w, "Failed to submit match result", err)
		return
	}
	httputil.JSON(w, http.StatusOK, match)
}
