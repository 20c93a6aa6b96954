package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"zenith/backoffice/internal/domain"
	"zenith/backoffice/internal/pricing"
	"zenith/backoffice/internal/quote"
	"zenith/backoffice/internal/store"
)

// ErrAdminRequired is returned when a non-admin actor calls an admin operation.
var ErrAdminRequired = errors.New("admin role required")

const defaultRecomputeWorkers = 8

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// LiveQuotes is the current market quote, with its provenance.
type LiveQuotes interface {
	pricing.QuoteSource
	quote.SnapshotSource
}

// HistoricalSource returns the closing quote of a past calendar day.
type HistoricalSource interface {
	CloseOn(ctx context.Context, day time.Time) (decimal.Decimal, error)
}

type Service struct {
	repo           store.Repository
	engine         *pricing.Engine
	quotes         LiveQuotes
	history        HistoricalSource
	historyTimeout time.Duration
	workers        int
	now            func() time.Time
}

// New builds the service. quotes and history may be nil; orders that need a
// quote then fail with pricing.ErrQuoteUnavailable.
func New(repo store.Repository, engine *pricing.Engine, quotes LiveQuotes, history HistoricalSource, workers int) *Service {
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultConfig(), nil)
	}
	if workers < 1 {
		workers = defaultRecomputeWorkers
	}
	return &Service{
		repo:           repo,
		engine:         engine,
		quotes:         quotes,
		history:        history,
		historyTimeout: quote.DefaultTimeout,
		workers:        workers,
		now:            time.Now,
	}
}

// SetHistoryTimeout bounds each closing quote lookup. Non-positive values keep
// the current bound.
func (s *Service) SetHistoryTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.historyTimeout = timeout
	}
}

func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CurrentQuote returns the live quote and which feed answered it.
func (s *Service) CurrentQuote(ctx context.Context) (domain.QuoteSnapshot, error) {
	if s.quotes == nil {
		return domain.QuoteSnapshot{}, pricing.ErrQuoteUnavailable
	}
	return s.quotes.Snapshot(ctx)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse(domain.DateLayout, date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// pricedEngine returns an engine whose live quote is fetched at most once for
// the lifetime of the returned value.
func (s *Service) pricedEngine() *pricing.Engine {
	var source pricing.QuoteSource
	if s.quotes != nil {
		source = s.quotes
	}
	return s.engine.WithQuotes(quote.NewMemo(source))
}

func (s *Service) today() string {
	return s.now().Format(domain.DateLayout)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
