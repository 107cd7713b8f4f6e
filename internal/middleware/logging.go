package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/assetdesk/rights-api/internal/logging"
	"github.com/assetdesk/rights-api/internal/metrics"
)

// LoggingMiddleware logs HTTP requests and records request metrics
func LoggingMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(recorder, r)

			// Use the route template rather than the raw path so
			// metrics cardinality stays bounded.
			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tmpl
				}
			}

			duration := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, endpoint, recorder.statusCode, duration.Seconds())

			logger.Info("HTTP request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": recorder.statusCode,
				"duration_ms": duration.Milliseconds(),
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.UserAgent(),
				"request_id":  GetRequestID(r.Context()),
			})
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
