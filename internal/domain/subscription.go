package domain

import "time"

// Subscription is one billing relationship for a user. A user may accumulate
// several records over time; at most one is expected to be active at any
// instant (enforced by the checkout path, not the store).
type Subscription struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	StripeCustomerID     string    `json:"stripeCustomerId"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId"`
	StripePriceID        string    `json:"stripePriceId"`
	Plan                 string    `json:"plan"`
	Status               string    `json:"status"`
	CurrentPeriodStart   time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool      `json:"cancelAtPeriodEnd"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CreateCheckoutRequest is the validated input for starting a checkout.
type CreateCheckoutRequest struct {
	Plan       string `json:"plan" validate:"required,oneof=basic pro enterprise"`
	SuccessURL string `json:"successUrl" validate:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" validate:"omitempty,url"`
}

// CheckoutResponse returns the provider session handle for redirect.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// SubscriptionUpdate carries the full subscription state delivered by a
// billing event. Events always carry current full state, so applying one is
// last-write-wins on these fields.
type SubscriptionUpdate struct {
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}
