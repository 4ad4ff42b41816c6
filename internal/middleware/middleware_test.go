package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockverse/internal/logging"
)

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw, err := NewPrometheusMiddleware("test", registry)
	require.NoError(t, err)
	r.Use(promMw.Handler())

	r.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/error", func(c *gin.Context) {
		c.JSON(500, gin.H{"error": "test error"})
	})

	for _, path := range []string{"/test", "/error", "/nowhere/42"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	duration := family(t, registry, "test_http_request_duration_seconds")
	require.NotNil(t, duration, "Duration metric not found")
	assert.Equal(t, "Длительность HTTP-запросов.", duration.GetHelp())
	assert.Len(t, duration.GetMetric(), 3)

	errors := family(t, registry, "test_http_request_errors_total")
	require.NotNil(t, errors, "Errors metric not found")
	// 500 и 404 для несуществующего пути
	assert.Len(t, errors.GetMetric(), 2)

	var paths []string
	for _, m := range errors.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "path" {
				paths = append(paths, lp.GetValue())
			}
		}
	}
	assert.ElementsMatch(t, []string{"/error", "unmatched"}, paths)
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware("test", registry)
	require.NoError(t, err)
	_, err = NewPrometheusMiddleware("test", registry)
	assert.Error(t, err)
}

func TestPrometheusMiddleware_InflightRequests(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw, err := NewPrometheusMiddleware("test", registry)
	require.NoError(t, err)
	r.Use(promMw.Handler())

	entered := make(chan struct{})
	release := make(chan struct{})
	r.GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.JSON(200, gin.H{"ok": true})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	}()

	<-entered
	inflight := family(t, registry, "test_http_requests_inflight")
	require.NotNil(t, inflight, "Inflight metric not found")
	assert.Equal(t, float64(1), inflight.GetMetric()[0].GetGauge().GetValue())

	close(release)
	<-done

	inflight = family(t, registry, "test_http_requests_inflight")
	assert.Equal(t, float64(0), inflight.GetMetric()[0].GetGauge().GetValue())
}

func TestPrometheusMiddleware_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()

	gin.SetMode(gin.TestMode)
	r := gin.New()

	promMw, err := NewPrometheusMiddleware("test", registry)
	require.NoError(t, err)
	r.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(r, registry)

	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `test_http_request_duration_seconds_count{method="GET",path="/ping",status="200"} 1`)
	assert.Contains(t, body, `test_http_response_size_bytes_sum{method="GET",path="/ping"} 4`)
	assert.NotContains(t, body, `path="/metrics"`)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWriterLogger("http", &buf, logging.DEBUG)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRequestLogger(log).Handler())

	var seen string
	r.GET("/items/:id", func(c *gin.Context) {
		seen = c.GetString(TraceIDKey)
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	traceID := w.Header().Get("X-Trace-ID")
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, seen)

	out := buf.String()
	assert.Contains(t, out, "/items/:id")
	assert.Contains(t, out, "404")
	assert.True(t, strings.Contains(out, "WARN"), out)

	// Каждый запрос получает свой trace-ID
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/items/8", nil))
	assert.NotEqual(t, traceID, w2.Header().Get("X-Trace-ID"))

	// Входящий trace-ID сохраняется, мусорный заменяется
	req := httptest.NewRequest(http.MethodGet, "/items/9", nil)
	req.Header.Set("X-Trace-ID", "client-trace-0001")
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	assert.Equal(t, "client-trace-0001", w3.Header().Get("X-Trace-ID"))

	req = httptest.NewRequest(http.MethodGet, "/items/10", nil)
	req.Header.Set("X-Trace-ID", "bad id!")
	w4 := httptest.NewRecorder()
	r.ServeHTTP(w4, req)
	assert.NotEqual(t, "bad id!", w4.Header().Get("X-Trace-ID"))
}
