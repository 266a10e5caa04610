package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyspace/pkg/models"
	"studyspace/pkg/occupancy"
	"studyspace/pkg/scope"
)

type resourceView struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	BranchID string  `json:"branchId"`
	Number   string  `json:"number"`
	Section  *string `json:"section"`
	Type     *string `json:"type"`
	IsActive bool    `json:"isActive"`
}

func toResourceView(r models.Resource) resourceView {
	return resourceView{
		ID:       r.ID,
		Kind:     string(r.Kind),
		BranchID: r.BranchID,
		Number:   r.Number,
		Section:  r.Section,
		Type:     r.Type,
		IsActive: r.IsActive,
	}
}

func (h *Handler) getResource(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	res, err := h.svc.GetResource(c.Request.Context(), scope.FromGin(c), kind, c.Param("id"))
	if err != nil {
		respond(c, 0, nil, err)
		return
	}
	respond(c, http.StatusOK, toResourceView(res), nil)
}

func (h *Handler) checkAvailability(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		badRequest(c, "start", "must be YYYY-MM-DD or RFC3339")
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		badRequest(c, "end", "must be YYYY-MM-DD or RFC3339")
		return
	}

	avail, err := h.svc.CheckAvailability(c.Request.Context(), occupancy.AvailabilityParams{
		Principal:             scope.FromGin(c),
		Kind:                  kind,
		ResourceID:            c.Param("id"),
		Start:                 start,
		End:                   end,
		ExcludeSubscriptionID: c.Query("exclude"),
	})
	respond(c, http.StatusOK, avail, err)
}

func (h *Handler) listOccupancy(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	items, err := h.svc.ListBranchResourceOccupancy(c.Request.Context(), scope.FromGin(c), c.Param("branchId"), kind)
	respond(c, http.StatusOK, items, err)
}

func (h *Handler) createResource(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	var request struct {
		Number  string  `json:"number" binding:"required"`
		Section *string `json:"section"`
		Type    *string `json:"type"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "number", "is required")
		return
	}

	res, err := h.svc.CreateResource(c.Request.Context(), scope.FromGin(c), kind, occupancy.ResourceInput{
		BranchID: c.Param("branchId"),
		Number:   request.Number,
		Section:  request.Section,
		Type:     request.Type,
	})
	if err != nil {
		respond(c, 0, nil, err)
		return
	}
	respond(c, http.StatusCreated, toResourceView(res), nil)
}

func (h *Handler) setResourceActive(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	var request struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Active == nil {
		badRequest(c, "active", "is required")
		return
	}

	res, err := h.svc.SetResourceActive(c.Request.Context(), scope.FromGin(c), kind, c.Param("id"), *request.Active)
	if err != nil {
		respond(c, 0, nil, err)
		return
	}
	respond(c, http.StatusOK, toResourceView(res), nil)
}
