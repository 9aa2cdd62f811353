package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/zynx-ai/backend/internal/contextkeys"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/handler"
)

// EntitlementStore reads the current trial window and subscription state for
// a user.
type EntitlementStore interface {
	GetEntitlement(ctx context.Context, userID string) (*domain.Entitlement, error)
}

// RequireEntitlement gates an endpoint on an active trial or subscription.
// State is read fresh on every request; the decision is never cached. Admins
// bypass the gate.
// Must be used AFTER Auth middleware which sets contextkeys.UserID in context.
func RequireEntitlement(store EntitlementStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := r.Context().Value(contextkeys.UserID).(string)
			if !ok || userID == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "error": "no token provided"})
				return
			}
			if role, _ := r.Context().Value(contextkeys.UserRole).(string); role == "admin" {
				next.ServeHTTP(w, r)
				return
			}

			ent, err := store.GetEntitlement(r.Context(), userID)
			if err != nil {
				handler.Error(w, domain.ErrInternal("failed to check access", err))
				return
			}
			if ent == nil {
				handler.JSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "User not found"})
				return
			}
			if ent.IsBanned {
				handler.JSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "error": "account is banned"})
				return
			}

			decision := ent.Evaluate(time.Now())
			if !decision.Allowed {
				handler.JSON(w, http.StatusPaymentRequired, map[string]interface{}{
					"success":  false,
					"error":    "Trial expired. Please subscribe to continue.",
					"code":     decision.Code,
					"trialEnd": decision.TrialEnd,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
