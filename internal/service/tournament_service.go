package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/middleware"
	"github.com/AdamBeresnev/op-knockout/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TournamentService gates every mutation behind the tournament status and hands
// bracket work to the BracketService. Mutations of one tournament are serialized.
type TournamentService struct {
	db     *sqlx.DB
	stores Stores
	engine *BracketService
	locks  *tournamentLocks
	opts   Options
}

func NewTournamentService(db *sqlx.DB, stores Stores, engine *BracketService, opts Options) *TournamentService {
	return &TournamentService{
		db:     db,
		stores: stores,
		engine: engine,
		locks:  newTournamentLocks(),
		opts:   opts.withDefaults(),
	}
}

type CreateInput struct {
	Name                   string
	Description            string
	GameID                 *string
	Format                 bracket.Format
	Visibility             bracket.Visibility
	MaxTeams               int
	CashPrize              float64
	MinRankRequirement     *int
	MaxRankRequirement     *int
	TrustFactorRequirement *int
	OrganizerIDs           []string
}

// UpdateInput is a patch: nil fields are left untouched.
type UpdateInput struct {
	Name                   *string
	Description            *string
	GameID                 *string
	Visibility             *bracket.Visibility
	MaxTeams               *int
	CashPrize              *float64
	MinRankRequirement     *int
	MaxRankRequirement     *int
	TrustFactorRequirement *int
}

// RoundView is one round together with its matches in bracket order.
type RoundView struct {
	Round   bracket.Round   `json:"round"`
	Matches []bracket.Match `json:"matches"`
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", bracket.ErrValidation, fmt.Sprintf(format, args...))
}

func validateRequirements(minRank, maxRank, trust *int) error {
	if minRank != nil && *minRank < 0 {
		return validationError("minRankRequirement must not be negative")
	}
	if maxRank != nil && *maxRank < 0 {
		return validationError("maxRankRequirement must not be negative")
	}
	if minRank != nil && maxRank != nil && *minRank > *maxRank {
		return validationError("minRankRequirement %d is above maxRankRequirement %d", *minRank, *maxRank)
	}
	if trust != nil && *trust < 0 {
		return validationError("trustFactorRequirement must not be negative")
	}
	return nil
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("name is required")
	}
	if !in.Format.Valid() {
		return validationError("format must be %q or %q, got %q", bracket.FormatSolo, bracket.FormatTeam, in.Format)
	}
	if !in.Visibility.Valid() {
		return validationError("visibility must be %q or %q, got %q", bracket.VisibilityPublic, bracket.VisibilityPrivate, in.Visibility)
	}
	if in.MaxTeams < 2 {
		return validationError("maxTeams must be at least 2, got %d", in.MaxTeams)
	}
	if in.CashPrize < 0 {
		return validationError("cashPrize must not be negative")
	}
	return validateRequirements(in.MinRankRequirement, in.MaxRankRequirement, in.TrustFactorRequirement)
}

// CreateTournament stores a new ONGOING tournament starting now. Without explicit
// organizers the actor on the context becomes the only organizer.
func (s *TournamentService) CreateTournament(ctx context.Context, in CreateInput) (tournament *bracket.Tournament, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.CreateTournament")
	defer func() { endSpan(span, err) }()

	if in.Visibility == "" {
		in.Visibility = bracket.VisibilityPublic
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	organizers := utils.NormalizeIDs(in.OrganizerIDs)
	if len(organizers) == 0 {
		if actorID, ok := middleware.ActorFromContext(ctx); ok {
			organizers = []string{actorID}
		}
	}

	now := s.opts.Now()
	tournament = &bracket.Tournament{
		ID:                     uuid.New(),
		Name:                   strings.TrimSpace(in.Name),
		Description:            in.Description,
		GameID:                 in.GameID,
		Format:                 in.Format,
		Visibility:             in.Visibility,
		Status:                 bracket.TournamentOngoing,
		MaxTeams:               in.MaxTeams,
		CashPrize:              in.CashPrize,
		MinRankRequirement:     in.MinRankRequirement,
		MaxRankRequirement:     in.MaxRankRequirement,
		TrustFactorRequirement: in.TrustFactorRequirement,
		OrganizerIDs:           bracket.IDList(organizers),
		StartDate:              now,
		CreatedAt:              now,
		ParticipatingIDs:       []string{},
	}

	if s.opts.Reputation != nil && len(organizers) > 0 {
		reputation, rank, err := s.opts.Reputation.Score(ctx, organizers)
		if err != nil {
			return nil, fmt.Errorf("failed to score organizers: %w", err)
		}
		tournament.Reputation = reputation
		tournament.Rank = rank
	}

	if err := s.stores.Tournaments.CreateTournament(ctx, nil, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.opts.Logger.InfoContext(ctx, "tournament created",
		"tournament_id", tournament.ID, "format", tournament.Format, "max_teams", tournament.MaxTeams)
	return tournament, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.stores.Tournaments.GetTournament(ctx, nil, id)
}

// ListTournaments returns all tournaments, or only those with the given status.
func (s *TournamentService) ListTournaments(ctx context.Context, status *bracket.TournamentStatus) ([]bracket.Tournament, error) {
	if status != nil && *status != bracket.TournamentOngoing && *status != bracket.TournamentFinished {
		return nil, validationError("unknown status %q", *status)
	}
	return s.stores.Tournaments.ListTournaments(ctx, nil, status)
}

func (s *TournamentService) UpdateTournament(ctx context.Context, id uuid.UUID, in UpdateInput) (tournament *bracket.Tournament, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.UpdateTournament", tournamentAttr(id))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err = s.stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if tournament.IsFinished() {
		return nil, fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationError("name is required")
		}
		tournament.Name = name
	}
	if in.Description != nil {
		tournament.Description = *in.Description
	}
	if in.GameID != nil {
		tournament.GameID = utils.StringOrNil(*in.GameID)
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return nil, validationError("visibility must be %q or %q, got %q", bracket.VisibilityPublic, bracket.VisibilityPrivate, *in.Visibility)
		}
		tournament.Visibility = *in.Visibility
	}
	if in.MaxTeams != nil {
		if *in.MaxTeams < 2 {
			return nil, validationError("maxTeams must be at least 2, got %d", *in.MaxTeams)
		}
		if *in.MaxTeams < len(tournament.ParticipatingIDs) {
			return nil, validationError("maxTeams %d is below the %d participants already joined",
				*in.MaxTeams, len(tournament.ParticipatingIDs))
		}
		tournament.MaxTeams = *in.MaxTeams
	}
	if in.CashPrize != nil {
		if *in.CashPrize < 0 {
			return nil, validationError("cashPrize must not be negative")
		}
		tournament.CashPrize = *in.CashPrize
	}
	if in.MinRankRequirement != nil {
		tournament.MinRankRequirement = in.MinRankRequirement
	}
	if in.MaxRankRequirement != nil {
		tournament.MaxRankRequirement = in.MaxRankRequirement
	}
	if in.TrustFactorRequirement != nil {
		tournament.TrustFactorRequirement = in.TrustFactorRequirement
	}
	if err := validateRequirements(tournament.MinRankRequirement, tournament.MaxRankRequirement, tournament.TrustFactorRequirement); err != nil {
		return nil, err
	}

	if err := s.stores.Tournaments.UpdateTournament(ctx, nil, tournament); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}
	return tournament, nil
}

// DeleteTournament removes an ongoing tournament with its rounds, matches and
// membership in one transaction.
func (s *TournamentService) DeleteTournament(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.DeleteTournament", tournamentAttr(id))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return err
	}
	if tournament.IsFinished() {
		return fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rounds, err := s.stores.Rounds.ListRounds(ctx, tx, id)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		if err := s.stores.Rounds.DeleteRound(ctx, tx, r.ID); err != nil {
			return fmt.Errorf("failed to delete round %d: %w", r.RoundNumber, err)
		}
	}
	if err := s.stores.Tournaments.DeleteTournament(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.opts.Logger.InfoContext(ctx, "tournament deleted", "tournament_id", id, "rounds", len(rounds))
	return nil
}

// JoinTournament appends participantID to the tournament's seed order.
func (s *TournamentService) JoinTournament(ctx context.Context, id uuid.UUID, participantID string) (err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.JoinTournament", tournamentAttr(id))
	defer func() {
		s.opts.Metrics.Membership("join", resultLabel(err))
		endSpan(span, err)
	}()

	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return validationError("participant id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// the per-process lock does not cover other replicas sharing the database
	if err := s.stores.Tournaments.LockTournament(ctx, tx, id); err != nil {
		return err
	}
	tournament, err := s.stores.Tournaments.GetTournament(ctx, tx, id)
	if err != nil {
		return err
	}
	switch {
	case tournament.IsFinished():
		return fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	case tournament.HasParticipant(participantID):
		return fmt.Errorf("participant %s %w in tournament %s", participantID, bracket.ErrDuplicate, id)
	case tournament.IsFull():
		return fmt.Errorf("tournament %s with %d slots: %w", id, tournament.MaxTeams, bracket.ErrFull)
	}

	if _, err := s.stores.Tournaments.AddParticipant(ctx, tx, id, participantID, s.opts.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.opts.Logger.InfoContext(ctx, "participant joined", "tournament_id", id, "participant_id", participantID)
	return nil
}

// LeaveTournament removes participantID. A participant that is not a member yields ErrNotFound.
func (s *TournamentService) LeaveTournament(ctx context.Context, id uuid.UUID, participantID string) (err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.LeaveTournament", tournamentAttr(id))
	defer func() {
		s.opts.Metrics.Membership("leave", resultLabel(err))
		endSpan(span, err)
	}()

	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return validationError("participant id is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return err
	}
	if tournament.IsFinished() {
		return fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	}
	if !tournament.HasParticipant(participantID) {
		return fmt.Errorf("participant %s in tournament %s: %w", participantID, id, bracket.ErrNotFound)
	}

	if err := s.stores.Tournaments.RemoveParticipant(ctx, nil, id, participantID); err != nil {
		return err
	}

	s.opts.Logger.InfoContext(ctx, "participant left", "tournament_id", id, "participant_id", participantID)
	return nil
}

// FinishTournament closes the tournament without a champion.
func (s *TournamentService) FinishTournament(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "TournamentService.FinishTournament", tournamentAttr(id))
	defer func() { endSpan(span, err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	return s.finishLocked(ctx, id, nil, "manual")
}

// finishLocked expects the caller to hold the tournament lock.
func (s *TournamentService) finishLocked(ctx context.Context, id uuid.UUID, championID *string, trigger string) error {
	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return err
	}
	if tournament.IsFinished() {
		return fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	}

	if err := s.stores.Tournaments.FinishTournament(ctx, nil, id, championID, s.opts.Now()); err != nil {
		if errors.Is(err, bracket.ErrNotFound) {
			// finished by another process between the read and the write
			return fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
		}
		return fmt.Errorf("failed to finish tournament: %w", err)
	}

	s.opts.Metrics.TournamentFinished(trigger)
	s.opts.Logger.InfoContext(ctx, "tournament finished",
		"tournament_id", id, "trigger", trigger, "champion_id", utils.OrZero(championID))
	return nil
}

func (s *TournamentService) GenerateBracket(ctx context.Context, id uuid.UUID) (*bracket.Round, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	return s.engine.GenerateBracket(ctx, id)
}

// AdvanceRound closes the latest round by hand. When it yields a champion the
// tournament is finished in the same call.
func (s *TournamentService) AdvanceRound(ctx context.Context, id uuid.UUID) (*Advance, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	tournament, err := s.stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if tournament.IsFinished() {
		return nil, fmt.Errorf("tournament %s: %w", id, bracket.ErrAlreadyFinished)
	}

	result, err := s.engine.AdvanceRound(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.Complete() {
		if err := s.finishLocked(ctx, id, result.ChampionID, "champion"); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *TournamentService) GetRounds(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Round, error) {
	if _, err := s.stores.Tournaments.GetTournament(ctx, nil, tournamentID); err != nil {
		return nil, err
	}
	return s.stores.Rounds.ListRounds(ctx, nil, tournamentID)
}

func (s *TournamentService) GetMatches(ctx context.Context, roundID uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.stores.Rounds.GetRound(ctx, nil, roundID); err != nil {
		return nil, err
	}
	return s.stores.Matches.ListMatchesByRound(ctx, nil, roundID)
}

func (s *TournamentService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.stores.Matches.GetMatch(ctx, nil, matchID)
}

// GetStructure returns every round of the tournament with its matches.
func (s *TournamentService) GetStructure(ctx context.Context, tournamentID uuid.UUID) ([]RoundView, error) {
	rounds, err := s.GetRounds(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	matches, err := s.stores.Matches.ListMatchesByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}

	byRound := make(map[uuid.UUID][]bracket.Match, len(rounds))
	for _, m := range matches {
		byRound[m.RoundID] = append(byRound[m.RoundID], m)
	}

	structure := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		roundMatches := byRound[r.ID]
		if roundMatches == nil {
			roundMatches = []bracket.Match{}
		}
		structure = append(structure, RoundView{Round: r, Matches: roundMatches})
	}
	return structure, nil
}

func tournamentAttr(id uuid.UUID) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("tournament.id", id.String()))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, bracket.ErrNotFound):
		return "not_found"
	case errors.Is(err, bracket.ErrAlreadyFinished):
		return "finished"
	case errors.Is(err, bracket.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, bracket.ErrFull):
		return "full"
	case errors.Is(err, bracket.ErrValidation):
		return "invalid"
	}
	return "error"
}
