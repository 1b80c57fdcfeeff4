package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
)

// RequestLogger logs one line per request: method, route, status, bytes,
// duration and request id. Bodies are never logged.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"route":       routePattern(r),
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"request_id":  chimw.GetReqID(r.Context()),
					"remote":      r.RemoteAddr,
				}
				switch {
				case ww.Status() >= 500:
					log.Error("http request", fields)
				case ww.Status() >= 400:
					log.Warn("http request", fields)
				default:
					log.Info("http request", fields)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
