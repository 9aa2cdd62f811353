package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/handler"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic")
				handler.JSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"error":   "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
