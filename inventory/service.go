/*
service.go - Operation surface of the inventory engine

PURPOSE:
  Service is what the HTTP layer (or any other caller) talks to. Each
  mutating operation is one Store.WithTx call containing validation, the
  entity writes, the Reference Tracker / Price Cascade side effects and the
  audit record. Nothing is committed in a second step.

FLOW:
  caller -> Service.X(ctx, actor, input)
         -> mutate(): WithTx { VALIDATE, APPLY, AppendRecord }
         -> AsPersistence(): hide driver errors
         -> log + Observer

ACTOR:
  The actor string is recorded verbatim. Authentication happens outside
  the engine.

SEE ALSO:
  - materials.go, products.go: entity operations
  - records.go: audit log queries and administration
  - reports.go: read-only views and statistics
*/
package inventory

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Observer is told about every mutating operation once it finishes.
type Observer interface {
	OperationCompleted(op OperationType, kind ErrorKind, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) OperationCompleted(OperationType, ErrorKind, time.Duration) {}

type Service struct {
	store    Store
	clock    Clock
	log      *zap.Logger
	limits   Limits
	observer Observer
	loc      *time.Location

	refs    *ReferenceTracker
	pricing *PriceCascade
	stock   *StockEngine
}

type Option func(*Service)

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

// WithLocation sets the zone used for day buckets. Defaults to UTC.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		clock:    SystemClock{},
		log:      zap.NewNop(),
		limits:   DefaultLimits(),
		observer: nopObserver{},
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limits = s.limits.withDefaults()
	s.refs = NewReferenceTracker(s.clock)
	s.pricing = NewPriceCascade(s.clock)
	s.stock = NewStockEngine(s.clock)
	return s
}

func (s *Service) Limits() Limits { return s.limits }

func (s *Service) Location() *time.Location { return s.loc }

// Now exposes the service clock so callers stamp exports consistently.
func (s *Service) Now() time.Time { return s.clock.Now() }

// =============================================================================
// TRANSACTION PLUMBING
// =============================================================================

func (s *Service) mutate(ctx context.Context, op OperationType, actor string, fn func(Tx) error, fields ...zap.Field) error {
	start := time.Now()
	err := s.store.WithTx(ctx, fn)
	err = AsPersistence(string(op), err)
	kind := KindOf(err)
	s.observer.OperationCompleted(op, kind, time.Since(start))

	fields = append(fields, zap.String("operation", string(op)), zap.String("actor", actor))
	switch {
	case err == nil:
		s.log.Info("operation committed", fields...)
	case kind == KindPersistence:
		var pe *PersistenceError
		if errors.As(err, &pe) {
			fields = append(fields, zap.Error(pe.Err))
		}
		s.log.Error("operation failed", fields...)
	default:
		s.log.Warn("operation rejected", append(fields, zap.String("kind", string(kind)), zap.Error(err))...)
	}
	return err
}

func (s *Service) view(ctx context.Context, op string, fn func(Reader) error) error {
	err := AsPersistence(op, s.store.View(ctx, fn))
	if KindOf(err) == KindPersistence {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			s.log.Error("query failed", zap.String("query", op), zap.Error(pe.Err))
		}
	}
	return err
}

// Record appends an audit entry inside tx. Detail is cut to the configured maximum.
func (s *Service) Record(ctx context.Context, tx Tx, op OperationType, subjectID int64, name string, qty int, actor, detail string) error {
	if utf8.RuneCountInString(detail) > s.limits.DetailMax {
		detail = string([]rune(detail)[:s.limits.DetailMax])
	}
	return tx.AppendRecord(ctx, &OperationRecord{
		Type:        op,
		SubjectID:   subjectID,
		SubjectName: name,
		Quantity:    qty,
		Detail:      detail,
		Actor:       actor,
		CreatedAt:   s.clock.Now(),
	})
}

// Mutate runs fn as one audited operation. Used by packages that extend the
// engine with their own aggregates.
func (s *Service) Mutate(ctx context.Context, op OperationType, actor string, fn func(Tx) error, fields ...zap.Field) error {
	return s.mutate(ctx, op, actor, fn, fields...)
}

// View runs fn against a read-only scope with persistence errors wrapped.
func (s *Service) View(ctx context.Context, op string, fn func(Reader) error) error {
	return s.view(ctx, op, fn)
}

func (s *Service) actor(actor string) (string, error) {
	return s.limits.Name("actor", actor, s.limits.UsernameMax)
}
