package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"workflow-collab-backend/pkg/logger"
	"workflow-collab-backend/pkg/metrics"
)

// RequestLogger logs every request as a structured line and records the
// request duration and total counters.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			routePattern := routePattern(r)

			status := strconv.Itoa(ww.Status())
			metrics.RequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration.Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", duration),
				zap.String("ip", clientIP(r)),
			}
			if p, ok := GetPrincipalFromContext(r.Context()); ok && p != nil {
				fields = append(fields, zap.String("user_id", p.UserID))
			}

			switch {
			case ww.Status() >= 500:
				log.Error("request", fields...)
			case ww.Status() >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

// routePattern returns the matched chi route pattern so metric labels
// stay low-cardinality, falling back to the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// clientIP resolves the caller's address behind proxies.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
