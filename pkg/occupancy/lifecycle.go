package occupancy

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyspace/pkg/audit"
	"studyspace/pkg/lock"
	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

type SubscriptionInput struct {
	BranchID  string
	StudentID string
	PlanID    string
	SeatID    *string
	LockerID  *string
	StartDate time.Time
	// EndDate defaults to StartDate plus the plan's duration when zero.
	EndDate time.Time
	// Status defaults to pending.
	Status models.SubscriptionStatus
}

func (in SubscriptionInput) resource(kind models.ResourceKind) *string {
	if kind == models.KindLocker {
		return in.LockerID
	}
	return in.SeatID
}

// CreateSubscription records a new pending or active subscription. Requested
// resources must be free against active and pending subscriptions.
func (s *Service) CreateSubscription(ctx context.Context, principal scope.Principal, in SubscriptionInput) (sub models.Subscription, err error) {
	logger := s.loggerWith(ctx, "CreateSubscription", "branch_id", in.BranchID, "student_id", in.StudentID)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorKind(err)
		}
		metrics.Mutations.WithLabelValues("CreateSubscription", outcome).Inc()
		logOutcome(ctx, logger, "subscription create", err)
	}()

	if !principal.Authenticated() {
		return models.Subscription{}, ErrUnauthorized
	}
	if in.Status == "" {
		in.Status = models.StatusPending
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(in.BranchID) == "" {
		vErr.add("branchId", "is required")
	}
	if strings.TrimSpace(in.StudentID) == "" {
		vErr.add("studentId", "is required")
	}
	if strings.TrimSpace(in.PlanID) == "" {
		vErr.add("planId", "is required")
	}
	if in.StartDate.IsZero() {
		vErr.add("startDate", "is required")
	}
	if in.Status != models.StatusPending && in.Status != models.StatusActive {
		vErr.add("status", "must be pending or active")
	}
	var keys []string
	for _, kind := range models.Kinds {
		if id := in.resource(kind); id != nil {
			if strings.TrimSpace(*id) == "" {
				vErr.add(string(kind)+"Id", "must not be empty")
				continue
			}
			keys = append(keys, lock.ResourceKey(string(kind), *id))
		}
	}
	if vErr.HasErrors() {
		return models.Subscription{}, vErr
	}
	if !principal.Manager() && in.Status != models.StatusPending {
		return models.Subscription{}, ErrUnauthorized
	}

	release, err := s.acquire(ctx, keys)
	if err != nil {
		return models.Subscription{}, err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branch, err := s.catalog.FindBranch(ctx, tx, in.BranchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("branch")
			}
			return err
		}
		student, err := s.catalog.FindStudent(ctx, tx, in.StudentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("student")
			}
			return err
		}
		if !principal.CanManage(branch.LibraryID, branch.ID) {
			// students may only request their own subscription
			selfService := principal.Role == scope.RoleStudent &&
				principal.LibraryID == branch.LibraryID &&
				student.Username == principal.UserID
			if !selfService {
				return ErrUnauthorized
			}
		}
		plan, err := s.catalog.FindPlan(ctx, tx, in.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("plan")
			}
			return err
		}

		vErr := &ValidationError{}
		if student.LibraryID != branch.LibraryID {
			vErr.add("studentId", "belongs to a different library")
		}
		if plan.LibraryID != branch.LibraryID {
			vErr.add("planId", "belongs to a different library")
		}
		if vErr.HasErrors() {
			return vErr
		}

		end := in.EndDate
		if end.IsZero() {
			end = in.StartDate.AddDate(0, 0, plan.DurationDays)
		}
		iv, err := NewInterval(in.StartDate, end)
		if err != nil {
			return err
		}

		sub = models.Subscription{
			LibraryID: branch.LibraryID,
			BranchID:  branch.ID,
			StudentID: student.ID,
			PlanID:    plan.ID,
			SeatID:    in.SeatID,
			LockerID:  in.LockerID,
			StartDate: iv.Start,
			EndDate:   iv.End,
			Status:    in.Status,
		}
		for _, kind := range models.Kinds {
			if id := in.resource(kind); id != nil {
				if err := s.ensureFree(ctx, tx, "CreateSubscription", &sub, kind, *id, iv, generalStatuses, true); err != nil {
					return err
				}
			}
		}
		return mapStoreError(s.subs.Create(ctx, tx, &sub))
	})
	if err != nil {
		return models.Subscription{}, err
	}

	s.notify(ctx, s.event(audit.EventSubscriptionCreated, principal, &sub))
	return sub, nil
}

// GetSubscription returns a subscription visible to the principal. Students only
// see their own.
func (s *Service) GetSubscription(ctx context.Context, principal scope.Principal, id string) (models.Subscription, error) {
	if !principal.Authenticated() {
		return models.Subscription{}, ErrUnauthorized
	}
	sub, err := s.subs.FindByID(ctx, s.db, id)
	if err != nil {
		return models.Subscription{}, mapStoreError(err)
	}
	if principal.CanManage(sub.LibraryID, sub.BranchID) {
		return *sub, nil
	}
	if !principal.CanView(sub.LibraryID, sub.BranchID) {
		return models.Subscription{}, ErrUnauthorized
	}
	student, err := s.catalog.FindStudent(ctx, s.db, sub.StudentID)
	if err != nil {
		return models.Subscription{}, mapStoreError(err)
	}
	if student.Username != principal.UserID {
		return models.Subscription{}, ErrUnauthorized
	}
	return *sub, nil
}

// Activate moves a pending subscription to active. Its resources must not be
// held by another active subscription over its window.
func (s *Service) Activate(ctx context.Context, principal scope.Principal, id string) (models.Subscription, error) {
	return s.transition(ctx, "Activate", audit.EventSubscriptionActivated, principal, id,
		[]models.SubscriptionStatus{models.StatusPending}, models.StatusActive)
}

// Cancel releases a pending or active subscription's resources.
func (s *Service) Cancel(ctx context.Context, principal scope.Principal, id string) (models.Subscription, error) {
	return s.transition(ctx, "Cancel", audit.EventSubscriptionCancelled, principal, id,
		[]models.SubscriptionStatus{models.StatusPending, models.StatusActive}, models.StatusCancelled)
}

func (s *Service) transition(ctx context.Context, operation, eventType string, principal scope.Principal, id string, from []models.SubscriptionStatus, to models.SubscriptionStatus) (sub models.Subscription, err error) {
	logger := s.loggerWith(ctx, operation, "subscription_id", id, "to_status", to)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorKind(err)
		}
		metrics.Mutations.WithLabelValues(operation, outcome).Inc()
		logOutcome(ctx, logger, "subscription transition", err)
	}()

	if !principal.Manager() {
		return models.Subscription{}, ErrUnauthorized
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.subs.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return mapStoreError(err)
		}
		if !principal.CanManage(current.LibraryID, current.BranchID) {
			return ErrUnauthorized
		}
		allowed := false
		for _, st := range from {
			if current.Status == st {
				allowed = true
			}
		}
		if !allowed {
			return ErrInvalidTransition
		}

		if to == models.StatusActive {
			iv := Interval{Start: current.StartDate.UTC(), End: current.EndDate.UTC()}
			active := []models.SubscriptionStatus{models.StatusActive}
			for _, kind := range models.Kinds {
				if held := current.ResourceID(kind); held != nil {
					if err := s.ensureFree(ctx, tx, operation, current, kind, *held, iv, active, false); err != nil {
						return err
					}
				}
			}
		}

		if err := s.subs.Update(ctx, tx, current.ID, map[string]interface{}{
			"status":     to,
			"updated_at": s.now().UTC(),
		}); err != nil {
			return mapStoreError(err)
		}
		updated, err := s.subs.FindByID(ctx, tx, current.ID)
		if err != nil {
			return mapStoreError(err)
		}
		sub = *updated
		return nil
	})
	if err != nil {
		return models.Subscription{}, err
	}

	s.notify(ctx, s.event(eventType, principal, &sub))
	return sub, nil
}

// ExpireOverdue marks active subscriptions whose end date has passed as expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.subs.ExpireOverdue(ctx, s.db, now)
	if err != nil {
		s.loggerWith(ctx, "ExpireOverdue").ErrorContext(ctx, "expiry sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		metrics.SubscriptionsExpired.Add(float64(n))
		ev := audit.NewEvent(audit.EventSubscriptionsExpired, now)
		ev.Actor = "system"
		ev.Detail = map[string]string{"count": strconv.FormatInt(n, 10)}
		s.notify(ctx, ev)
		s.loggerWith(ctx, "ExpireOverdue").InfoContext(ctx, "expired overdue subscriptions", "count", n)
	}
	return n, nil
}

// RunExpirySweep calls ExpireOverdue every interval until ctx is done.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.ExpireOverdue(ctx)
		}
	}
}
