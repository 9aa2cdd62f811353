// Package billing wraps the Stripe SDK behind a small gateway interface so
// services and tests never touch the SDK directly.
package billing

import (
	stripe "github.com/stripe/stripe-go/v72"
)

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	UserID     string
	Email      string
	Plan       string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider session handle returned for redirect.
type CheckoutSession struct {
	ID  string
	URL string
}

// Gateway abstracts the billing provider operations needed by the service layer.
type Gateway interface {
	// CreateCheckoutSession starts a hosted subscription checkout.
	CreateCheckoutSession(p CheckoutParams) (*CheckoutSession, error)
	// GetSubscription fetches the current full state of a subscription.
	GetSubscription(id string) (*stripe.Subscription, error)
	// CancelAtPeriodEnd flags a subscription to end at the current period close.
	CancelAtPeriodEnd(id string) error
	// ConstructEvent verifies a webhook payload signature and parses the event.
	// Verification happens before any event content is trusted.
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}
