package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/partyfinder/pkg/metrics"
)

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/metrics-test/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/metrics-test/a", "/metrics-test/b", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, uint64(2), latencySamples(t, "/metrics-test/:id", "204"))
	require.GreaterOrEqual(t, latencySamples(t, unmatchedRoute, "404"), uint64(1))
}

func latencySamples(t *testing.T, route, status string) uint64 {
	t.Helper()
	observer, err := metrics.APILatency.GetMetricWithLabelValues(http.MethodGet, route, status)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, observer.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}
