package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studyspace/pkg/models"
	"studyspace/pkg/occupancy"
	"studyspace/pkg/scope"
)

type subscriptionView struct {
	ID        string  `json:"id"`
	LibraryID string  `json:"libraryId"`
	BranchID  string  `json:"branchId"`
	StudentID string  `json:"studentId"`
	PlanID    string  `json:"planId"`
	SeatID    *string `json:"seatId"`
	LockerID  *string `json:"lockerId"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Status    string  `json:"status"`
}

func toSubscriptionView(s models.Subscription) subscriptionView {
	return subscriptionView{
		ID:        s.ID,
		LibraryID: s.LibraryID,
		BranchID:  s.BranchID,
		StudentID: s.StudentID,
		PlanID:    s.PlanID,
		SeatID:    s.SeatID,
		LockerID:  s.LockerID,
		StartDate: formatDate(s.StartDate),
		EndDate:   formatDate(s.EndDate),
		Status:    string(s.Status),
	}
}

func respondSubscription(c *gin.Context, okStatus int, sub models.Subscription, err error) {
	if err != nil {
		respond(c, 0, nil, err)
		return
	}
	respond(c, okStatus, toSubscriptionView(sub), nil)
}

// dateField converts a tri-state date string into a tri-state time.
func dateField(f occupancy.Field[string]) (occupancy.Field[time.Time], error) {
	switch {
	case !f.IsSet():
		return occupancy.Field[time.Time]{}, nil
	case f.IsNull():
		return occupancy.Null[time.Time](), nil
	}
	v, _ := f.Value()
	t, err := parseDate(v)
	if err != nil {
		return occupancy.Field[time.Time]{}, err
	}
	return occupancy.Set(t), nil
}

func (h *Handler) reassignResources(c *gin.Context) {
	var request struct {
		SeatID    occupancy.Field[string] `json:"seatId"`
		LockerID  occupancy.Field[string] `json:"lockerId"`
		StartDate occupancy.Field[string] `json:"startDate"`
		EndDate   occupancy.Field[string] `json:"endDate"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "body", "must be a JSON object")
		return
	}
	start, err := dateField(request.StartDate)
	if err != nil {
		badRequest(c, "startDate", "must be YYYY-MM-DD or RFC3339")
		return
	}
	end, err := dateField(request.EndDate)
	if err != nil {
		badRequest(c, "endDate", "must be YYYY-MM-DD or RFC3339")
		return
	}

	sub, err := h.svc.ReassignSubscriptionResources(c.Request.Context(), occupancy.ReassignParams{
		Principal:      scope.FromGin(c),
		SubscriptionID: c.Param("id"),
		Update: occupancy.ResourceUpdate{
			SeatID:    request.SeatID,
			LockerID:  request.LockerID,
			StartDate: start,
			EndDate:   end,
		},
	})
	respondSubscription(c, http.StatusOK, sub, err)
}

func (h *Handler) createSubscription(c *gin.Context) {
	var request struct {
		BranchID  string  `json:"branchId" binding:"required"`
		StudentID string  `json:"studentId" binding:"required"`
		PlanID    string  `json:"planId" binding:"required"`
		SeatID    *string `json:"seatId"`
		LockerID  *string `json:"lockerId"`
		StartDate string  `json:"startDate" binding:"required"`
		EndDate   string  `json:"endDate"`
		Status    string  `json:"status"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		respond(c, 0, nil, &occupancy.ValidationError{FieldErrors: map[string]string{
			"body": "branchId, studentId, planId and startDate are required",
		}})
		return
	}
	start, err := parseDate(request.StartDate)
	if err != nil {
		badRequest(c, "startDate", "must be YYYY-MM-DD or RFC3339")
		return
	}
	var end time.Time
	if request.EndDate != "" {
		if end, err = parseDate(request.EndDate); err != nil {
			badRequest(c, "endDate", "must be YYYY-MM-DD or RFC3339")
			return
		}
	}

	sub, err := h.svc.CreateSubscription(c.Request.Context(), scope.FromGin(c), occupancy.SubscriptionInput{
		BranchID:  request.BranchID,
		StudentID: request.StudentID,
		PlanID:    request.PlanID,
		SeatID:    request.SeatID,
		LockerID:  request.LockerID,
		StartDate: start,
		EndDate:   end,
		Status:    models.SubscriptionStatus(request.Status),
	})
	respondSubscription(c, http.StatusCreated, sub, err)
}

func (h *Handler) getSubscription(c *gin.Context) {
	sub, err := h.svc.GetSubscription(c.Request.Context(), scope.FromGin(c), c.Param("id"))
	respondSubscription(c, http.StatusOK, sub, err)
}

func (h *Handler) activate(c *gin.Context) {
	sub, err := h.svc.Activate(c.Request.Context(), scope.FromGin(c), c.Param("id"))
	respondSubscription(c, http.StatusOK, sub, err)
}

func (h *Handler) cancel(c *gin.Context) {
	sub, err := h.svc.Cancel(c.Request.Context(), scope.FromGin(c), c.Param("id"))
	respondSubscription(c, http.StatusOK, sub, err)
}

func (h *Handler) extend(c *gin.Context) {
	var request struct {
		EndDate string `json:"endDate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "endDate", "is required")
		return
	}
	end, err := parseDate(request.EndDate)
	if err != nil {
		badRequest(c, "endDate", "must be YYYY-MM-DD or RFC3339")
		return
	}
	sub, err := h.svc.Extend(c.Request.Context(), occupancy.ExtendParams{
		Principal:      scope.FromGin(c),
		SubscriptionID: c.Param("id"),
		EndDate:        end,
	})
	respondSubscription(c, http.StatusOK, sub, err)
}
