package handler

import (
	"io"
	"net/http"

	"github.com/zynx-ai/backend/internal/contextkeys"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/service"
)

// Cap on webhook payload size.
const maxWebhookBody = 64 * 1024

// BillingHandler handles subscription and checkout HTTP endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// CreateCheckout handles POST /api/stripe/checkout-session.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	var req domain.CreateCheckoutRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.billing.CreateCheckout(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// CurrentSubscription handles GET /api/stripe/subscription.
func (h *BillingHandler) CurrentSubscription(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	sub, err := h.billing.CurrentSubscription(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]interface{}{"subscription": sub})
}

// Cancel handles POST /api/stripe/cancel.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	if err := h.billing.Cancel(r.Context(), userID); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "subscription will cancel at period end"})
}

// Webhook handles POST /api/stripe/webhook. The endpoint is unauthenticated;
// the payload signature is the only trust anchor.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		Error(w, domain.ErrBadRequest("failed to read request body"))
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}
