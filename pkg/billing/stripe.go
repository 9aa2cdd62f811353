package billing

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/sub"
	"github.com/stripe/stripe-go/v72/webhook"
)

// StripeGateway is the Stripe SDK-backed implementation of Gateway.
type StripeGateway struct {
	webhookSecret string
}

// NewStripeGateway configures the Stripe SDK key and returns a gateway.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret}
}

// CreateCheckoutSession starts a hosted subscription checkout. The account ID
// and plan travel in session metadata and come back on the completion event.
func (g *StripeGateway) CreateCheckoutSession(p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		CustomerEmail:      stripe.String(p.Email),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata("userId", p.UserID)
	params.AddMetadata("plan", p.Plan)

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// GetSubscription fetches a subscription by its Stripe ID.
func (g *StripeGateway) GetSubscription(id string) (*stripe.Subscription, error) {
	s, err := sub.Get(id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", id, err)
	}
	return s, nil
}

// CancelAtPeriodEnd flags the subscription to end when the period closes.
func (g *StripeGateway) CancelAtPeriodEnd(id string) error {
	_, err := sub.Update(id, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to cancel subscription %s: %w", id, err)
	}
	return nil
}

// ConstructEvent verifies the webhook signature against the shared secret and
// parses the event. A payload that fails verification is rejected before any
// of its claimed content is read.
func (g *StripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
}
