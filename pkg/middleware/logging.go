package middleware

import (
	"net/http"
	"time"

	"github.com/lsec-edu/microlearn/pkg/contextkeys"
	"github.com/lsec-edu/microlearn/pkg/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogging logs one structured line per request with method, path,
// status and duration. The request ID comes from the request ID
// middleware when present. The user ID is reported through a carrier
// because the token gate runs inside this middleware and its context
// values never propagate back out.
func RequestLogging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			carrier := &contextkeys.UserIDCarrier{}
			r = r.WithContext(contextkeys.WithUserIDCarrier(r.Context(), carrier))

			next.ServeHTTP(sw, r)

			entry := logger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if reqID := contextkeys.GetRequestID(r.Context()); reqID != "" {
				entry = entry.WithField("request_id", reqID)
			}
			if carrier.ID != "" {
				entry = entry.WithField("user_id", carrier.ID)
			}
			entry.Info("request completed")
		})
	}
}
