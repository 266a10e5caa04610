// Package occupancy enforces that no two qualifying subscriptions hold the same
// seat or locker over intersecting date ranges, and derives resource occupancy
// from subscriptions at read time.
package occupancy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"studyspace/pkg/audit"
	"studyspace/pkg/lock"
	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
	"studyspace/pkg/store"
)

// Locker serialises assignment of the same resource across service instances.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// Notifier receives audit events after successful changes. It must not block.
type Notifier interface {
	Notify(ctx context.Context, ev audit.Event)
}

// generalStatuses hold a resource for the overlap invariant.
var generalStatuses = []models.SubscriptionStatus{models.StatusActive, models.StatusPending}

type Options struct {
	Locker   Locker
	Notifier Notifier
	// ReassignStatuses are the statuses that block a resource during reassignment.
	// Defaults to active only.
	ReassignStatuses []models.SubscriptionStatus
	Now              func() time.Time
	Logger           *slog.Logger
}

type Service struct {
	db        *gorm.DB
	resources store.ResourceRepository
	subs      store.SubscriptionRepository
	catalog   store.CatalogRepository

	locker           Locker
	notifier         Notifier
	reassignStatuses []models.SubscriptionStatus
	now              func() time.Time
	logger           *slog.Logger
}

func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:               db,
		resources:        store.NewResourceRepository(),
		subs:             store.NewSubscriptionRepository(),
		catalog:          store.NewCatalogRepository(),
		locker:           opts.Locker,
		notifier:         opts.Notifier,
		reassignStatuses: opts.ReassignStatuses,
		now:              opts.Now,
		logger:           opts.Logger,
	}
	if len(s.reassignStatuses) == 0 {
		s.reassignStatuses = []models.SubscriptionStatus{models.StatusActive}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// DB exposes the handle used by the service, for health checks.
func (s *Service) DB() *gorm.DB {
	return s.db
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"service", "OccupancyService", "operation", operation}
	if p, ok := scope.FromContext(ctx); ok {
		pairs = append(pairs, "principal_id", p.UserID, "library_id", p.LibraryID)
	}
	return s.logger.With(append(pairs, attrs...)...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if err == nil {
		logger.InfoContext(ctx, msg)
		return
	}
	kind := ErrorKind(err)
	if kind == "unexpected" {
		logger.ErrorContext(ctx, msg+" failed", "error", err, "error_kind", kind)
		return
	}
	logger.WarnContext(ctx, msg+" rejected", "error", err, "error_kind", kind)
}

func (s *Service) acquire(ctx context.Context, keys []string) (func(), error) {
	if s.locker == nil || len(keys) == 0 {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrLocked
		}
		// row locks in the transaction still serialise the write
		s.logger.WarnContext(ctx, "resource lock unavailable, continuing without it", "error", err)
		return func() {}, nil
	}
	return release, nil
}

func (s *Service) notify(ctx context.Context, ev audit.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ev)
}

func (s *Service) event(eventType string, principal scope.Principal, sub *models.Subscription) audit.Event {
	ev := audit.NewEvent(eventType, s.now())
	ev.Actor = principal.UserID
	if sub != nil {
		ev.LibraryID = sub.LibraryID
		ev.BranchID = sub.BranchID
		ev.SubscriptionID = sub.ID
	}
	return ev
}

// ensureFree verifies that resourceID of kind can be held by sub over iv. It
// row-locks the resource so concurrent assignments queue behind this transaction.
func (s *Service) ensureFree(ctx context.Context, tx *gorm.DB, op string, sub *models.Subscription, kind models.ResourceKind, resourceID string, iv Interval, statuses []models.SubscriptionStatus, newlyAssigned bool) error {
	res, err := s.resources.FindByIDForUpdate(ctx, tx, kind, resourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(string(kind))
		}
		return err
	}
	if res.LibraryID != sub.LibraryID {
		return ErrUnauthorized
	}
	if res.BranchID != sub.BranchID {
		vErr := &ValidationError{}
		vErr.add(string(kind)+"Id", "belongs to a different branch")
		return vErr
	}
	if newlyAssigned && !res.IsActive {
		return ErrResourceInactive
	}

	conflict, err := s.subs.FindConflict(ctx, tx, store.ConflictQuery{
		Kind:                  kind,
		ResourceID:            resourceID,
		Start:                 iv.Start,
		End:                   iv.End,
		Statuses:              statuses,
		ExcludeSubscriptionID: sub.ID,
	})
	switch {
	case err == nil:
		metrics.Conflicts.WithLabelValues(string(kind), op).Inc()
		return &ConflictError{Kind: kind, ConflictID: conflict.ID}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}
