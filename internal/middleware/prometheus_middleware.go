package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedPath подставляется вместо пути запросов мимо маршрутов,
// иначе случайные URL раздувают число серий.
const unmatchedPath = "unmatched"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// PrometheusMiddleware собирает HTTP-метрики Gin:
//
//	<ns>_http_request_duration_seconds{method,path,status}
//	<ns>_http_response_size_bytes{method,path}
//	<ns>_http_requests_inflight
//	<ns>_http_request_errors_total{method,path,status}
//
// Путь берётся из шаблона маршрута (/api/schematics/:id), а не из URL.
type PrometheusMiddleware struct {
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inflight prometheus.Gauge
	errors   *prometheus.CounterVec
	skip     map[string]bool
}

func NewPrometheusMiddleware(namespace string, reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	labels := []string{"method", "path", "status"}
	pm := &PrometheusMiddleware{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   durationBuckets,
		}, labels),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Размер тела ответа; экспорт схематик даёт самые большие ответы.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Запросы в обработке.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Ответы с кодом 4xx и 5xx.",
		}, labels),
		skip: map[string]bool{"/metrics": true},
	}

	for _, c := range []prometheus.Collector{pm.duration, pm.size, pm.inflight, pm.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if pm.skip[path] {
			c.Next()
			return
		}
		if path == "" {
			path = unmatchedPath
		}

		pm.inflight.Inc()
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		pm.inflight.Dec()

		code := c.Writer.Status()
		status := strconv.Itoa(code)
		method := c.Request.Method

		pm.duration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
		if n := c.Writer.Size(); n > 0 {
			pm.size.WithLabelValues(method, path).Observe(float64(n))
		}
		if code >= 400 {
			pm.errors.WithLabelValues(method, path, status).Inc()
		}
	}
}

// RegisterMetricsEndpoint вешает GET /metrics с содержимым g
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r gin.IRoutes, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}
