package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"workflow-collab-backend/pkg/logger"
	"workflow-collab-backend/pkg/utils"
)

// Recovery converts panics into 500 responses. The stack trace goes to
// the log, never to the client.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()))

					utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
