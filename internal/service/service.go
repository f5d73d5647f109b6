package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdamBeresnev/op-knockout/internal/bracket"
	"github.com/AdamBeresnev/op-knockout/internal/metrics"
	"github.com/AdamBeresnev/op-knockout/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/AdamBeresnev/op-knockout/internal/service"

type TournamentRepository interface {
	CreateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error
	GetTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Tournament, error)
	LockTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error
	ListTournaments(ctx context.Context, q sqlx.ExtContext, status *bracket.TournamentStatus) ([]bracket.Tournament, error)
	UpdateTournament(ctx context.Context, q sqlx.ExtContext, tournament *bracket.Tournament) error
	FinishTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, championID *string, at time.Time) error
	DeleteTournament(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error
	AddParticipant(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, participantID string, at time.Time) (*bracket.Participant, error)
	RemoveParticipant(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID, participantID string) error
}

type RoundRepository interface {
	CreateRound(ctx context.Context, q sqlx.ExtContext, round *bracket.Round) error
	GetRound(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Round, error)
	LatestRound(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) (*bracket.Round, error)
	ListRounds(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Round, error)
	DeleteRound(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) error
}

type MatchRepository interface {
	CreateMatches(ctx context.Context, q sqlx.ExtContext, matches []bracket.Match) error
	GetMatch(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*bracket.Match, error)
	ListMatchesByRound(ctx context.Context, q sqlx.ExtContext, roundID uuid.UUID) ([]bracket.Match, error)
	ListMatchesByTournament(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Match, error)
	RecordResult(ctx context.Context, q sqlx.ExtContext, match *bracket.Match) (bool, error)
}

// TeamDirectory is the external team registry, asked only whether a team still exists.
type TeamDirectory interface {
	TeamExists(ctx context.Context, id string) (bool, error)
}

// ReputationScorer derives organizer reputation and its letter rank from trust factors.
type ReputationScorer interface {
	Score(ctx context.Context, organizerIDs []string) (reputation float64, rank string, err error)
}

type Stores struct {
	Tournaments TournamentRepository
	Rounds      RoundRepository
	Matches     MatchRepository
}

func NewStores(db *sqlx.DB) Stores {
	return Stores{
		Tournaments: store.NewTournamentStore(db),
		Rounds:      store.NewRoundStore(db),
		Matches:     store.NewMatchStore(db),
	}
}

type Options struct {
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Metrics    *metrics.Metrics
	Reputation ReputationScorer
	Now        func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
