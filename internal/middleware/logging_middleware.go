package middleware

import (
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/blockverse/internal/logging"
)

const (
	// TraceIDKey — ключ gin.Context с trace-ID запроса
	TraceIDKey    = "trace_id"
	traceIDHeader = "X-Trace-ID"
)

var validTraceID = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// RequestLogger присваивает запросу trace-ID и пишет строку лога по завершении.
// Уровень строки зависит от статуса: 5xx ERROR, 4xx WARN, остальное INFO.
type RequestLogger struct {
	log   *logging.Logger
	quiet map[string]bool // пути, которые пишутся только на DEBUG
}

func NewRequestLogger(log *logging.Logger) *RequestLogger {
	return &RequestLogger{log: log, quiet: map[string]bool{"/health": true, "/metrics": true}}
}

// traceID: span otelgin, затем входящий X-Trace-ID, иначе новый UUID
func traceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	if h := c.GetHeader(traceIDHeader); validTraceID.MatchString(h) {
		return h
	}
	return uuid.NewString()
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := traceID(c)
		c.Set(TraceIDKey, id)
		c.Header(traceIDHeader, id)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		line := "[HTTP] %s %s %d %s ip=%s trace=%s"
		args := []interface{}{c.Request.Method, path, status, time.Since(start).Round(time.Microsecond), c.ClientIP(), id}

		switch {
		case status >= 500:
			rl.log.Error(line+" errors=%s", append(args, c.Errors.String())...)
		case status >= 400:
			rl.log.Warn(line, args...)
		case rl.quiet[path]:
			rl.log.Debug(line, args...)
		default:
			rl.log.Info(line, args...)
		}
	}
}
