package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/pkg/billing"
)

type fakeUserStore struct {
	users        map[string]*domain.User
	setPlan      map[string]string
	setStatus    map[string]string
	statusWrites int
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{
		users:     map[string]*domain.User{},
		setPlan:   map[string]string{},
		setStatus: map[string]string{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	return s.users[id], nil
}

func (s *fakeUserStore) SetSubscription(_ context.Context, userID, plan, status string) error {
	s.setPlan[userID] = plan
	s.setStatus[userID] = status
	s.statusWrites++
	return nil
}

func (s *fakeUserStore) SetSubscriptionStatus(_ context.Context, userID, status string) error {
	s.setStatus[userID] = status
	s.statusWrites++
	return nil
}

type fakeSubStore struct {
	byStripeID map[string]*domain.Subscription
	upserts    int
}

func newFakeSubStore(subs ...*domain.Subscription) *fakeSubStore {
	s := &fakeSubStore{byStripeID: map[string]*domain.Subscription{}}
	for _, sub := range subs {
		s.byStripeID[sub.StripeSubscriptionID] = sub
	}
	return s
}

func (s *fakeSubStore) FindActiveByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	for _, sub := range s.byStripeID {
		if sub.UserID == userID && sub.Status == domain.SubscriptionStatusActive {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *fakeSubStore) FindLatestByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	for _, sub := range s.byStripeID {
		if sub.UserID == userID {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *fakeSubStore) FindByStripeID(_ context.Context, stripeSubID string) (*domain.Subscription, error) {
	return s.byStripeID[stripeSubID], nil
}

func (s *fakeSubStore) Upsert(_ context.Context, sub *domain.Subscription) error {
	s.upserts++
	if existing, ok := s.byStripeID[sub.StripeSubscriptionID]; ok {
		existing.Status = sub.Status
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		return nil
	}
	s.byStripeID[sub.StripeSubscriptionID] = sub
	return nil
}

func (s *fakeSubStore) UpdateByStripeID(_ context.Context, stripeSubID string, upd domain.SubscriptionUpdate) error {
	sub, ok := s.byStripeID[stripeSubID]
	if !ok {
		return errors.New("not found")
	}
	sub.Status = upd.Status
	sub.CurrentPeriodStart = upd.CurrentPeriodStart
	sub.CurrentPeriodEnd = upd.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = upd.CancelAtPeriodEnd
	return nil
}

func (s *fakeSubStore) SetStatusByStripeID(_ context.Context, stripeSubID, status string) error {
	sub, ok := s.byStripeID[stripeSubID]
	if !ok {
		return errors.New("not found")
	}
	sub.Status = status
	return nil
}

func (s *fakeSubStore) SetCancelAtPeriodEnd(_ context.Context, stripeSubID string) error {
	sub, ok := s.byStripeID[stripeSubID]
	if !ok {
		return errors.New("not found")
	}
	sub.CancelAtPeriodEnd = true
	return nil
}

type fakeGateway struct {
	session      *billing.CheckoutSession
	sessionCalls int
	lastParams   billing.CheckoutParams

	subscription *stripe.Subscription
	cancelCalls  []string

	event        stripe.Event
	constructErr error
}

func (g *fakeGateway) CreateCheckoutSession(p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	g.sessionCalls++
	g.lastParams = p
	return g.session, nil
}

func (g *fakeGateway) GetSubscription(string) (*stripe.Subscription, error) {
	return g.subscription, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(id string) error {
	g.cancelCalls = append(g.cancelCalls, id)
	return nil
}

func (g *fakeGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	if g.constructErr != nil {
		return stripe.Event{}, g.constructErr
	}
	return g.event, nil
}

func stripeEvent(t *testing.T, eventType string, object interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func testUser(id string) *domain.User {
	return &domain.User{ID: id, Email: id + "@example.com"}
}

func TestCreateCheckoutReturnsSession(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore()
	gw := &fakeGateway{session: &billing.CheckoutSession{ID: "cs_123", URL: "https://checkout.test/cs_123"}}
	svc := NewBillingService(users, subs, gw, "https://app.test", map[string]string{"pro": "price_pro"})

	resp, err := svc.CreateCheckout(context.Background(), "u1", &domain.CreateCheckoutRequest{Plan: "pro"})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", resp.SessionID)
	assert.Equal(t, "https://checkout.test/cs_123", resp.URL)
	assert.Equal(t, "price_pro", gw.lastParams.PriceID)
	assert.Equal(t, "u1", gw.lastParams.UserID)
	assert.Contains(t, gw.lastParams.SuccessURL, "https://app.test")
}

func TestCreateCheckoutRejectsInvalidPlan(t *testing.T) {
	svc := NewBillingService(newFakeUserStore(testUser("u1")), newFakeSubStore(), &fakeGateway{}, "", nil)

	_, err := svc.CreateCheckout(context.Background(), "u1", &domain.CreateCheckoutRequest{Plan: "platinum"})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 422, appErr.Code)
}

func TestCreateCheckoutAlreadySubscribedSkipsGateway(t *testing.T) {
	subs := newFakeSubStore(&domain.Subscription{
		UserID:               "u1",
		StripeSubscriptionID: "sub_1",
		Status:               domain.SubscriptionStatusActive,
	})
	gw := &fakeGateway{}
	svc := NewBillingService(newFakeUserStore(testUser("u1")), subs, gw, "", map[string]string{"pro": "price_pro"})

	_, err := svc.CreateCheckout(context.Background(), "u1", &domain.CreateCheckoutRequest{Plan: "pro"})
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
	assert.Equal(t, 0, gw.sessionCalls, "gateway must not be contacted when already subscribed")
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	gw := &fakeGateway{constructErr: errors.New("bad signature")}
	svc := NewBillingService(newFakeUserStore(), newFakeSubStore(), gw, "", nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)
}

func checkoutCompletedGateway(t *testing.T) *fakeGateway {
	t.Helper()
	periodStart := time.Now().Unix()
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	return &fakeGateway{
		subscription: &stripe.Subscription{
			ID:                 "sub_1",
			Status:             stripe.SubscriptionStatusActive,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_pro"}}},
			},
		},
		event: stripeEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":           "cs_123",
			"subscription": "sub_1",
			"metadata":     map[string]string{"userId": "u1", "plan": "pro"},
		}),
	}
}

func TestCheckoutCompletedActivatesSubscription(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore()
	gw := checkoutCompletedGateway(t)
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))

	record := subs.byStripeID["sub_1"]
	require.NotNil(t, record)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "pro", record.Plan)
	assert.Equal(t, domain.SubscriptionStatusActive, record.Status)
	assert.Equal(t, "price_pro", record.StripePriceID)

	assert.Equal(t, "pro", users.setPlan["u1"])
	assert.Equal(t, domain.SubscriptionStatusActive, users.setStatus["u1"])
}

func TestCheckoutCompletedReplayIsIdempotent(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore()
	gw := checkoutCompletedGateway(t)
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))

	assert.Len(t, subs.byStripeID, 1, "replayed event must not create a second record")
	assert.Equal(t, domain.SubscriptionStatusActive, users.setStatus["u1"])
}

func TestCheckoutCompletedMissingMetadataIsNoOp(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore()
	gw := &fakeGateway{
		event: stripeEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":           "cs_123",
			"subscription": "sub_1",
		}),
	}
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Empty(t, subs.byStripeID)
	assert.Zero(t, users.statusWrites)
}

func TestSubscriptionUpdatedUnknownIDIsNoOp(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore()
	gw := &fakeGateway{
		event: stripeEvent(t, "customer.subscription.updated", map[string]interface{}{
			"id":     "sub_unknown",
			"status": "active",
		}),
	}
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Empty(t, subs.byStripeID)
	assert.Zero(t, users.statusWrites)
}

func TestSubscriptionDeletedMarksCanceled(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore(&domain.Subscription{
		UserID:               "u1",
		StripeSubscriptionID: "sub_1",
		Plan:                 "pro",
		Status:               domain.SubscriptionStatusActive,
	})
	gw := &fakeGateway{
		event: stripeEvent(t, "customer.subscription.deleted", map[string]interface{}{
			"id": "sub_1",
		}),
	}
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Equal(t, domain.SubscriptionStatusCanceled, subs.byStripeID["sub_1"].Status)
	assert.Equal(t, domain.SubscriptionStatusCanceled, users.setStatus["u1"])
}

func TestPaymentFailedMarksPastDueWithoutTouchingPlan(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore(&domain.Subscription{
		UserID:               "u1",
		StripeSubscriptionID: "sub_1",
		Plan:                 "pro",
		Status:               domain.SubscriptionStatusActive,
	})
	gw := &fakeGateway{
		event: stripeEvent(t, "invoice.payment_failed", map[string]interface{}{
			"id":           "in_1",
			"subscription": "sub_1",
		}),
	}
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	assert.Equal(t, domain.SubscriptionStatusPastDue, users.setStatus["u1"])
	assert.Empty(t, users.setPlan["u1"], "payment failure must not rewrite the plan")
	assert.Equal(t, "pro", subs.byStripeID["sub_1"].Plan)
}

func TestCancelFlagsPeriodEnd(t *testing.T) {
	users := newFakeUserStore(testUser("u1"))
	subs := newFakeSubStore(&domain.Subscription{
		UserID:               "u1",
		StripeSubscriptionID: "sub_1",
		Status:               domain.SubscriptionStatusActive,
	})
	gw := &fakeGateway{}
	svc := NewBillingService(users, subs, gw, "", nil)

	require.NoError(t, svc.Cancel(context.Background(), "u1"))
	assert.Equal(t, []string{"sub_1"}, gw.cancelCalls)
	assert.True(t, subs.byStripeID["sub_1"].CancelAtPeriodEnd)
}

func TestUnhandledEventTypeIsAcknowledged(t *testing.T) {
	gw := &fakeGateway{event: stripe.Event{Type: "charge.refunded", Data: &stripe.EventData{Raw: []byte(`{}`)}}}
	svc := NewBillingService(newFakeUserStore(), newFakeSubStore(), gw, "", nil)

	assert.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
}
