package occupancy

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"studyspace/pkg/models"
	"studyspace/pkg/scope"
)

// ResourceOccupancy is a resource row with its occupancy derived at read time.
type ResourceOccupancy struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Section    *string `json:"section"`
	Type       *string `json:"type"`
	IsActive   bool    `json:"isActive"`
	IsOccupied bool    `json:"isOccupied"`
}

// ListBranchResourceOccupancy lists a branch's seats or lockers ordered by number.
// A resource is occupied when an active subscription holding it has not ended yet.
// Pending subscriptions and ones that have ended do not count.
func (s *Service) ListBranchResourceOccupancy(ctx context.Context, principal scope.Principal, branchID string, kind models.ResourceKind) (out []ResourceOccupancy, err error) {
	logger := s.loggerWith(ctx, "ListBranchResourceOccupancy", "branch_id", branchID, "resource_kind", kind)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "occupancy listing", err)
			return
		}
		logger.DebugContext(ctx, "occupancy listed", "count", len(out))
	}()

	if !principal.Authenticated() {
		return nil, ErrUnauthorized
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(branchID) == "" {
		vErr.add("branchId", "is required")
	}
	if _, ok := models.ParseKind(string(kind)); !ok {
		vErr.add("kind", "must be seat or locker")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	branch, err := s.catalog.FindBranch(ctx, s.db, branchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("branch")
		}
		return nil, err
	}
	if !principal.CanView(branch.LibraryID, branch.ID) {
		return nil, ErrUnauthorized
	}

	resources, err := s.resources.ListByBranch(ctx, s.db, branch.ID, kind)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}
	held, err := s.subs.HeldResourceIDs(ctx, s.db, kind, ids, s.now().UTC())
	if err != nil {
		return nil, err
	}

	out = make([]ResourceOccupancy, 0, len(resources))
	for _, r := range resources {
		out = append(out, ResourceOccupancy{
			ID:         r.ID,
			Number:     r.Number,
			Section:    r.Section,
			Type:       r.Type,
			IsActive:   r.IsActive,
			IsOccupied: held[r.ID],
		})
	}
	return out, nil
}
