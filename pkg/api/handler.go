// Package api exposes the occupancy service over HTTP with gin.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studyspace/pkg/metrics"
	"studyspace/pkg/models"
	"studyspace/pkg/occupancy"
	"studyspace/pkg/scope"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc    *occupancy.Service
	logger *slog.Logger
}

func NewHandler(svc *occupancy.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter builds the gin engine with logging, recovery and optional metrics.
func NewRouter(h *Handler, withMetrics bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))
	if withMetrics {
		r.Use(metrics.GinMiddleware())
		r.GET("/metrics", metrics.Handler())
	}
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/manage/health", h.health)

	v1 := r.Group("/api/v1", scope.Middleware())
	v1.GET("/resources/:kind/:id", h.getResource)
	v1.GET("/resources/:kind/:id/availability", h.checkAvailability)
	v1.POST("/resources/:kind/:id/active", h.setResourceActive)
	v1.GET("/branches/:branchId/resources/:kind", h.listOccupancy)
	v1.POST("/branches/:branchId/resources/:kind", h.createResource)

	v1.POST("/subscriptions", h.createSubscription)
	v1.GET("/subscriptions/:id", h.getSubscription)
	v1.PATCH("/subscriptions/:id/resources", h.reassignResources)
	v1.POST("/subscriptions/:id/activate", h.activate)
	v1.POST("/subscriptions/:id/cancel", h.cancel)
	v1.POST("/subscriptions/:id/extend", h.extend)
}

func (h *Handler) health(c *gin.Context) {
	sqlDB, err := h.svc.DB().DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
		})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func statusFor(err error) int {
	var conflict *occupancy.ConflictError
	var vErr *occupancy.ValidationError
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &vErr), errors.Is(err, occupancy.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, occupancy.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, occupancy.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, occupancy.ErrResourceInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, occupancy.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, occupancy.ErrLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// respond writes the result envelope for an operation's outcome.
func respond(c *gin.Context, okStatus int, data interface{}, err error) {
	if err != nil {
		c.JSON(statusFor(err), occupancy.NewResult(nil, err))
		return
	}
	c.JSON(okStatus, occupancy.NewResult(data, nil))
}

func badRequest(c *gin.Context, field, message string) {
	respond(c, 0, nil, &occupancy.ValidationError{FieldErrors: map[string]string{field: message}})
}

// parseDate accepts YYYY-MM-DD or RFC3339 and returns UTC.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}

func parseKind(c *gin.Context) (models.ResourceKind, bool) {
	kind, ok := models.ParseKind(c.Param("kind"))
	if !ok {
		badRequest(c, "kind", "must be seat or locker")
	}
	return kind, ok
}
