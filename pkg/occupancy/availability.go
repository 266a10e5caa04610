package occupancy

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
	"studyspace/pkg/store"
)

type AvailabilityParams struct {
	Principal             scope.Principal
	Kind                  models.ResourceKind
	ResourceID            string
	Start                 time.Time
	End                   time.Time
	ExcludeSubscriptionID string
}

type Availability struct {
	Available  bool   `json:"available"`
	ConflictID string `json:"conflictId,omitempty"`
}

// CheckAvailability reports whether the resource is free over [Start, End] against
// active and pending subscriptions, ignoring ExcludeSubscriptionID.
func (s *Service) CheckAvailability(ctx context.Context, params AvailabilityParams) (avail Availability, err error) {
	logger := s.loggerWith(ctx, "CheckAvailability",
		"resource_kind", params.Kind, "resource_id", params.ResourceID)
	defer func() {
		result := "error"
		if err == nil {
			result = "occupied"
			if avail.Available {
				result = "available"
			}
		}
		metrics.AvailabilityChecks.WithLabelValues(result).Inc()
		if err != nil {
			logOutcome(ctx, logger, "availability check", err)
			return
		}
		logger.DebugContext(ctx, "availability checked", "available", avail.Available, "conflict_id", avail.ConflictID)
	}()

	if !params.Principal.Authenticated() {
		return Availability{}, ErrUnauthorized
	}
	vErr := &ValidationError{}
	if _, ok := models.ParseKind(string(params.Kind)); !ok {
		vErr.add("kind", "must be seat or locker")
	}
	if strings.TrimSpace(params.ResourceID) == "" {
		vErr.add("resourceId", "is required")
	}
	if params.ExcludeSubscriptionID != "" && !store.ValidID(params.ExcludeSubscriptionID) {
		vErr.add("excludeSubscriptionId", "must be a uuid")
	}
	if vErr.HasErrors() {
		return Availability{}, vErr
	}
	iv, err := NewInterval(params.Start, params.End)
	if err != nil {
		return Availability{}, err
	}

	res, err := s.resources.FindByID(ctx, s.db, params.Kind, params.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Availability{}, notFound(string(params.Kind))
		}
		return Availability{}, err
	}
	if !params.Principal.CanView(res.LibraryID, res.BranchID) {
		return Availability{}, ErrUnauthorized
	}

	conflict, err := s.subs.FindConflict(ctx, s.db, store.ConflictQuery{
		Kind:                  params.Kind,
		ResourceID:            params.ResourceID,
		Start:                 iv.Start,
		End:                   iv.End,
		Statuses:              generalStatuses,
		ExcludeSubscriptionID: params.ExcludeSubscriptionID,
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Availability{Available: true}, nil
	case err != nil:
		return Availability{}, err
	}
	return Availability{Available: false, ConflictID: conflict.ID}, nil
}
