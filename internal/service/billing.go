package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/pkg/billing"
)

// billingUserStore is the slice of the user repository the billing service needs.
type billingUserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	SetSubscription(ctx context.Context, userID, plan, status string) error
	SetSubscriptionStatus(ctx context.Context, userID, status string) error
}

// subscriptionStore is the slice of the subscription repository the billing
// service needs.
type subscriptionStore interface {
	FindActiveByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	FindLatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
	FindByStripeID(ctx context.Context, stripeSubID string) (*domain.Subscription, error)
	Upsert(ctx context.Context, sub *domain.Subscription) error
	UpdateByStripeID(ctx context.Context, stripeSubID string, upd domain.SubscriptionUpdate) error
	SetStatusByStripeID(ctx context.Context, stripeSubID, status string) error
	SetCancelAtPeriodEnd(ctx context.Context, stripeSubID string) error
}

// BillingService owns checkout initiation and webhook reconciliation. It is
// the only writer of subscription records and of the status mirrored onto the
// user record, so the two cannot drift apart through another code path.
type BillingService struct {
	users       billingUserStore
	subs        subscriptionStore
	gateway     billing.Gateway
	frontendURL string
	priceIDs    map[string]string
	validate    *validator.Validate
}

// NewBillingService creates a new BillingService. priceIDs maps plan IDs to
// the provider's price identifiers.
func NewBillingService(users billingUserStore, subs subscriptionStore, gateway billing.Gateway, frontendURL string, priceIDs map[string]string) *BillingService {
	return &BillingService{
		users:       users,
		subs:        subs,
		gateway:     gateway,
		frontendURL: frontendURL,
		priceIDs:    priceIDs,
		validate:    validator.New(),
	}
}

// CreateCheckout starts a hosted checkout for upgrading to a paid plan. It
// never writes to the store: the subscription only materializes when the
// completion webhook arrives, because checkout can be abandoned. The
// already-subscribed check is advisory — the provider owns the authoritative
// lifecycle and a race between check and provider-side creation is possible.
func (s *BillingService) CreateCheckout(ctx context.Context, userID string, req *domain.CreateCheckoutRequest) (*domain.CheckoutResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if _, ok := domain.PlanByID(req.Plan); !ok {
		return nil, domain.ErrBadRequest("invalid plan")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}

	existing, err := s.subs.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to check subscription", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadySubscribed()
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.frontendURL + "/subscription/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.frontendURL + "/subscription/cancel"
	}

	session, err := s.gateway.CreateCheckoutSession(billing.CheckoutParams{
		UserID:     userID,
		Email:      user.Email,
		Plan:       req.Plan,
		PriceID:    s.priceIDs[req.Plan],
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, domain.ErrInternal("failed to create checkout session", err)
	}

	return &domain.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

// CurrentSubscription returns the user's most recent subscription record, or nil.
func (s *BillingService) CurrentSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.subs.FindLatestByUserID(ctx, userID)
}

// Cancel flags the user's active subscription to end at the period close.
func (s *BillingService) Cancel(ctx context.Context, userID string) error {
	sub, err := s.subs.FindActiveByUserID(ctx, userID)
	if err != nil {
		return domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil {
		return domain.ErrNotFound("no active subscription found")
	}

	if err := s.gateway.CancelAtPeriodEnd(sub.StripeSubscriptionID); err != nil {
		return domain.ErrInternal("failed to cancel subscription", err)
	}
	if err := s.subs.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return domain.ErrInternal("failed to flag cancellation", err)
	}
	return nil
}

// HandleWebhook verifies and applies one billing event. Events the system
// does not recognize, or that reference state it does not have, are logged
// and acknowledged — the provider is the source of truth and always sends
// current full state, so replays and reordering cannot corrupt the store.
// Only a failed signature check is surfaced as an error.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.gateway.ConstructEvent(payload, sigHeader)
	if err != nil {
		return domain.ErrBadRequest("webhook signature verification failed")
	}

	log.Info().Str("type", string(event.Type)).Msg("billing event received")

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionUpdate(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, event)
	case "invoice.payment_succeeded":
		// Informational only; renewal state arrives via subscription.updated.
		return nil
	default:
		log.Info().Str("type", string(event.Type)).Msg("unhandled billing event type")
		return nil
	}
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.ErrBadRequest("invalid checkout session payload")
	}

	userID := session.Metadata["userId"]
	plan := session.Metadata["plan"]
	if userID == "" || plan == "" {
		// The plan is never invented; without metadata there is nothing to apply.
		log.Error().Str("session", session.ID).Msg("checkout session missing metadata")
		return nil
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		log.Error().Str("session", session.ID).Msg("checkout session missing subscription")
		return nil
	}

	// Fetch the full subscription for period bounds and price.
	sub, err := s.gateway.GetSubscription(session.Subscription.ID)
	if err != nil {
		return domain.ErrInternal("failed to fetch subscription", err)
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	now := time.Now()
	record := &domain.Subscription{
		ID:                   domain.NewID(),
		UserID:               userID,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		Plan:                 plan,
		Status:               string(sub.Status),
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	// Keyed on the external subscription ID, so a replayed event is a no-op.
	if err := s.subs.Upsert(ctx, record); err != nil {
		return domain.ErrInternal("failed to store subscription", err)
	}
	if err := s.users.SetSubscription(ctx, userID, plan, domain.SubscriptionStatusActive); err != nil {
		return domain.ErrInternal("failed to update user subscription", err)
	}

	log.Info().Str("user", userID).Str("plan", plan).Str("subscription", sub.ID).
		Msg("subscription created from checkout")
	return nil
}

func (s *BillingService) handleSubscriptionUpdate(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.ErrBadRequest("invalid subscription payload")
	}

	record, err := s.subs.FindByStripeID(ctx, sub.ID)
	if err != nil {
		return domain.ErrInternal("failed to find subscription", err)
	}
	if record == nil {
		// Out-of-order delivery or a data gap; a record is never fabricated
		// from an update event.
		log.Warn().Str("subscription", sub.ID).Msg("update event for unknown subscription")
		return nil
	}

	upd := domain.SubscriptionUpdate{
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if err := s.subs.UpdateByStripeID(ctx, sub.ID, upd); err != nil {
		return domain.ErrInternal("failed to update subscription", err)
	}
	if err := s.users.SetSubscriptionStatus(ctx, record.UserID, string(sub.Status)); err != nil {
		return domain.ErrInternal("failed to mirror status", err)
	}

	log.Info().Str("subscription", sub.ID).Str("status", string(sub.Status)).
		Msg("subscription updated")
	return nil
}

func (s *BillingService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.ErrBadRequest("invalid subscription payload")
	}

	record, err := s.subs.FindByStripeID(ctx, sub.ID)
	if err != nil {
		return domain.ErrInternal("failed to find subscription", err)
	}
	if record == nil {
		log.Warn().Str("subscription", sub.ID).Msg("delete event for unknown subscription")
		return nil
	}

	if err := s.subs.SetStatusByStripeID(ctx, sub.ID, domain.SubscriptionStatusCanceled); err != nil {
		return domain.ErrInternal("failed to cancel subscription", err)
	}
	if err := s.users.SetSubscriptionStatus(ctx, record.UserID, domain.SubscriptionStatusCanceled); err != nil {
		return domain.ErrInternal("failed to mirror status", err)
	}

	log.Info().Str("subscription", sub.ID).Msg("subscription canceled")
	return nil
}

func (s *BillingService) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return domain.ErrBadRequest("invalid invoice payload")
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		log.Warn().Str("invoice", invoice.ID).Msg("payment failed event without subscription")
		return nil
	}

	record, err := s.subs.FindByStripeID(ctx, invoice.Subscription.ID)
	if err != nil {
		return domain.ErrInternal("failed to find subscription", err)
	}
	if record == nil {
		log.Warn().Str("subscription", invoice.Subscription.ID).
			Msg("payment failed event for unknown subscription")
		return nil
	}

	// Mirror past_due onto the account; the plan is untouched.
	if err := s.users.SetSubscriptionStatus(ctx, record.UserID, domain.SubscriptionStatusPastDue); err != nil {
		return domain.ErrInternal("failed to mirror status", err)
	}

	log.Info().Str("invoice", invoice.ID).Str("user", record.UserID).
		Msg("payment failed, account marked past_due")
	return nil
}
