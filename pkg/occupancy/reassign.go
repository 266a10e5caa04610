package occupancy

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyspace/pkg/audit"
	"studyspace/pkg/lock"
	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

// ResourceUpdate is a partial change to a subscription's resources and window.
// Unset fields are left as they are; a null resource clears the assignment.
type ResourceUpdate struct {
	SeatID    Field[string]
	LockerID  Field[string]
	StartDate Field[time.Time]
	EndDate   Field[time.Time]
}

func (u ResourceUpdate) resource(kind models.ResourceKind) Field[string] {
	if kind == models.KindLocker {
		return u.LockerID
	}
	return u.SeatID
}

func (u ResourceUpdate) validate() *ValidationError {
	vErr := &ValidationError{}
	for _, kind := range models.Kinds {
		if id, ok := u.resource(kind).Value(); ok && strings.TrimSpace(id) == "" {
			vErr.add(string(kind)+"Id", "must not be empty, use null to clear")
		}
	}
	if u.StartDate.IsNull() {
		vErr.add("startDate", "cannot be cleared")
	}
	if u.EndDate.IsNull() {
		vErr.add("endDate", "cannot be cleared")
	}
	return vErr
}

// lockKeys names every resource the change will check: the ones being assigned
// and, when current is known, the ones it keeps.
func (u ResourceUpdate) lockKeys(current *models.Subscription) []string {
	var keys []string
	for _, kind := range models.Kinds {
		field := u.resource(kind)
		if id, ok := field.Value(); ok {
			keys = append(keys, lock.ResourceKey(string(kind), id))
			continue
		}
		if field.IsSet() || current == nil {
			continue
		}
		if held := current.ResourceID(kind); held != nil {
			keys = append(keys, lock.ResourceKey(string(kind), *held))
		}
	}
	return keys
}

type ReassignParams struct {
	Principal      scope.Principal
	SubscriptionID string
	Update         ResourceUpdate
}

type ExtendParams struct {
	Principal      scope.Principal
	SubscriptionID string
	EndDate        time.Time
}

type change struct {
	operation string
	event     string
	principal scope.Principal
	id        string
	update    ResourceUpdate
	statuses  []models.SubscriptionStatus
	// precheck runs against the locked subscription before anything is merged.
	precheck func(current *models.Subscription) error
}

// ReassignSubscriptionResources changes a subscription's seat, locker and dates
// as a unit. Each resource that is being assigned, or that is kept while the
// dates move, must not be held by another subscription over the new window.
func (s *Service) ReassignSubscriptionResources(ctx context.Context, params ReassignParams) (models.Subscription, error) {
	return s.apply(ctx, change{
		operation: "ReassignSubscriptionResources",
		event:     audit.EventSubscriptionReassigned,
		principal: params.Principal,
		id:        params.SubscriptionID,
		update:    params.Update,
		statuses:  s.reassignStatuses,
	})
}

// Extend moves a subscription's end date forward, keeping its resources.
func (s *Service) Extend(ctx context.Context, params ExtendParams) (models.Subscription, error) {
	return s.apply(ctx, change{
		operation: "Extend",
		event:     audit.EventSubscriptionExtended,
		principal: params.Principal,
		id:        params.SubscriptionID,
		update:    ResourceUpdate{EndDate: Set(params.EndDate)},
		statuses:  generalStatuses,
		precheck: func(current *models.Subscription) error {
			if params.EndDate.UTC().Before(current.EndDate.UTC()) {
				vErr := &ValidationError{}
				vErr.add("endDate", "must not be before the current end date")
				return vErr
			}
			return nil
		},
	})
}

func (s *Service) apply(ctx context.Context, req change) (sub models.Subscription, err error) {
	logger := s.loggerWith(ctx, req.operation, "subscription_id", req.id)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorKind(err)
		}
		metrics.Mutations.WithLabelValues(req.operation, outcome).Inc()
		logOutcome(ctx, logger, "subscription change", err)
	}()

	if !req.principal.Manager() {
		return models.Subscription{}, ErrUnauthorized
	}
	if strings.TrimSpace(req.id) == "" {
		vErr := &ValidationError{}
		vErr.add("subscriptionId", "is required")
		return models.Subscription{}, vErr
	}
	if vErr := req.update.validate(); vErr.HasErrors() {
		return models.Subscription{}, vErr
	}

	var held *models.Subscription
	if s.locker != nil {
		// unlocked read; the transaction below re-reads under a row lock
		held, _ = s.subs.FindByID(ctx, s.db, req.id)
	}
	release, err := s.acquire(ctx, req.update.lockKeys(held))
	if err != nil {
		return models.Subscription{}, err
	}
	defer release()

	var changed bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.subs.FindByIDForUpdate(ctx, tx, req.id)
		if err != nil {
			return mapStoreError(err)
		}
		if !req.principal.CanManage(current.LibraryID, current.BranchID) {
			return ErrUnauthorized
		}
		if current.Status != models.StatusActive && current.Status != models.StatusPending {
			return ErrInvalidTransition
		}
		if req.precheck != nil {
			if err := req.precheck(current); err != nil {
				return err
			}
		}

		next := *current
		if v, ok := req.update.StartDate.Value(); ok {
			next.StartDate = v.UTC()
		}
		if v, ok := req.update.EndDate.Value(); ok {
			next.EndDate = v.UTC()
		}
		iv, err := NewInterval(next.StartDate, next.EndDate)
		if err != nil {
			return err
		}
		datesChanged := !next.StartDate.Equal(current.StartDate) || !next.EndDate.Equal(current.EndDate)

		fields := map[string]interface{}{}
		if datesChanged {
			fields["start_date"] = iv.Start
			fields["end_date"] = iv.End
		}
		for _, kind := range models.Kinds {
			field := req.update.resource(kind)
			held := current.ResourceID(kind)
			id, assigned := field.Value()
			if !assigned {
				if field.IsNull() {
					if held != nil {
						fields[kind.Column()] = nil
					}
					continue
				}
				if held == nil || !datesChanged {
					continue
				}
				id = *held
			}
			newlyAssigned := held == nil || *held != id
			if err := s.ensureFree(ctx, tx, req.operation, current, kind, id, iv, req.statuses, newlyAssigned); err != nil {
				return err
			}
			if newlyAssigned {
				fields[kind.Column()] = id
			}
		}

		if len(fields) > 0 {
			fields["updated_at"] = s.now().UTC()
			if err := s.subs.Update(ctx, tx, current.ID, fields); err != nil {
				return mapStoreError(err)
			}
			changed = true
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

	if changed {
		ev := s.event(req.event, req.principal, &sub)
		ev.Detail = map[string]string{
			"start_date": sub.StartDate.Format(time.RFC3339),
			"end_date":   sub.EndDate.Format(time.RFC3339),
		}
		if sub.SeatID != nil {
			ev.Detail["seat_id"] = *sub.SeatID
		}
		if sub.LockerID != nil {
			ev.Detail["locker_id"] = *sub.LockerID
		}
		s.notify(ctx, ev)
	}
	return sub, nil
}
