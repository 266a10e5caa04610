package occupancy

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"studyspace/pkg/audit"
	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

type ResourceInput struct {
	BranchID string
	Number   string
	Section  *string
	Type     *string
}

// CreateResource adds an active seat or locker to a branch. Numbers are unique
// per branch and kind.
func (s *Service) CreateResource(ctx context.Context, principal scope.Principal, kind models.ResourceKind, in ResourceInput) (res models.Resource, err error) {
	logger := s.loggerWith(ctx, "CreateResource", "branch_id", in.BranchID, "resource_kind", kind)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = ErrorKind(err)
		}
		metrics.Mutations.WithLabelValues("CreateResource", outcome).Inc()
		logOutcome(ctx, logger, "resource create", err)
	}()

	if !principal.Manager() {
		return models.Resource{}, ErrUnauthorized
	}
	in.Number = strings.TrimSpace(in.Number)
	vErr := &ValidationError{}
	if _, ok := models.ParseKind(string(kind)); !ok {
		vErr.add("kind", "must be seat or locker")
	}
	if strings.TrimSpace(in.BranchID) == "" {
		vErr.add("branchId", "is required")
	}
	if in.Number == "" {
		vErr.add("number", "is required")
	} else if len(in.Number) > 20 {
		vErr.add("number", "must be at most 20 characters")
	}
	if vErr.HasErrors() {
		return models.Resource{}, vErr
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branch, err := s.catalog.FindBranch(ctx, tx, in.BranchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("branch")
			}
			return err
		}
		if !principal.CanManage(branch.LibraryID, branch.ID) {
			return ErrUnauthorized
		}
		_, err = s.resources.FindByNumber(ctx, tx, kind, branch.ID, in.Number)
		switch {
		case err == nil:
			vErr := &ValidationError{}
			vErr.add("number", "already exists in this branch")
			return vErr
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		res = models.Resource{
			LibraryID: branch.LibraryID,
			BranchID:  branch.ID,
			Number:    in.Number,
			Section:   in.Section,
			Type:      in.Type,
			IsActive:  true,
		}
		return s.resources.Create(ctx, tx, kind, &res)
	})
	if err != nil {
		return models.Resource{}, err
	}

	ev := audit.NewEvent(audit.EventResourceCreated, s.now())
	ev.Actor = principal.UserID
	ev.LibraryID = res.LibraryID
	ev.BranchID = res.BranchID
	ev.ResourceKind = string(kind)
	ev.ResourceID = res.ID
	ev.Detail = map[string]string{"number": res.Number}
	s.notify(ctx, ev)
	return res, nil
}

// SetResourceActive enables or disables a resource for new assignments. Existing
// subscriptions keep it.
func (s *Service) SetResourceActive(ctx context.Context, principal scope.Principal, kind models.ResourceKind, id string, active bool) (res models.Resource, err error) {
	logger := s.loggerWith(ctx, "SetResourceActive", "resource_kind", kind, "resource_id", id, "active", active)
	defer func() {
		logOutcome(ctx, logger, "resource toggle", err)
	}()

	if !principal.Manager() {
		return models.Resource{}, ErrUnauthorized
	}
	if _, ok := models.ParseKind(string(kind)); !ok {
		vErr := &ValidationError{}
		vErr.add("kind", "must be seat or locker")
		return models.Resource{}, vErr
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.resources.FindByIDForUpdate(ctx, tx, kind, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(string(kind))
			}
			return err
		}
		if !principal.CanManage(current.LibraryID, current.BranchID) {
			return ErrUnauthorized
		}
		if err := s.resources.SetActive(ctx, tx, kind, id, active); err != nil {
			return mapStoreError(err)
		}
		updated, err := s.resources.FindByID(ctx, tx, kind, id)
		if err != nil {
			return mapStoreError(err)
		}
		res = *updated
		return nil
	})
	if err != nil {
		return models.Resource{}, err
	}

	ev := audit.NewEvent(audit.EventResourceToggled, s.now())
	ev.Actor = principal.UserID
	ev.LibraryID = res.LibraryID
	ev.BranchID = res.BranchID
	ev.ResourceKind = string(kind)
	ev.ResourceID = res.ID
	ev.Detail = map[string]string{"active": strconv.FormatBool(active)}
	s.notify(ctx, ev)
	return res, nil
}

// GetResource returns a seat or locker visible to the principal.
func (s *Service) GetResource(ctx context.Context, principal scope.Principal, kind models.ResourceKind, id string) (models.Resource, error) {
	if !principal.Authenticated() {
		return models.Resource{}, ErrUnauthorized
	}
	res, err := s.resources.FindByID(ctx, s.db, kind, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Resource{}, notFound(string(kind))
		}
		return models.Resource{}, err
	}
	if !principal.CanView(res.LibraryID, res.BranchID) {
		return models.Resource{}, ErrUnauthorized
	}
	return *res, nil
}
