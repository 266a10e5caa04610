package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddlewareObservesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/v1/subscriptions/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/abc", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(RequestDuration), 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `route="/api/v1/subscriptions/:id"`), "metrics use the route template")
	assert.NotContains(t, body, "/api/v1/subscriptions/abc")
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Conflicts.WithLabelValues("seat", "Test"))
	Conflicts.WithLabelValues("seat", "Test").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Conflicts.WithLabelValues("seat", "Test")))
}
