package domain

import "time"

// Subscription statuses mirrored from the billing provider's vocabulary.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// DenyCodeTrialExpired is the machine-readable code returned when a gated
// action is denied. Clients match on this exact string to render the upsell
// screen, so it must never change.
const DenyCodeTrialExpired = "TRIAL_EXPIRED"

// Entitlement is the stored trial+subscription state for one account, read
// fresh on every gated request.
type Entitlement struct {
	TrialStart         *time.Time `json:"trialStart,omitempty"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
	SubscriptionPlan   *string    `json:"subscriptionPlan,omitempty"`
	SubscriptionStatus *string    `json:"subscriptionStatus,omitempty"`
	IsBanned           bool       `json:"-"`
}

// Decision is the result of an entitlement evaluation.
type Decision struct {
	Allowed  bool
	Code     string
	TrialEnd *time.Time
}

// EvaluateEntitlement decides whether an account may perform a gated action.
// The rules, in order: an active subscription always allows; otherwise an
// unexpired trial allows (strictly before trialEnd, so the account is denied
// at the exact instant now == trialEnd); everything else is denied with the
// trial end attached for client display. An account with no trial window and
// no active subscription is always denied.
func EvaluateEntitlement(now time.Time, trialEnd *time.Time, subscriptionStatus *string) Decision {
	if subscriptionStatus != nil && *subscriptionStatus == SubscriptionStatusActive {
		return Decision{Allowed: true}
	}
	if trialEnd != nil && now.Before(*trialEnd) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Code: DenyCodeTrialExpired, TrialEnd: trialEnd}
}

// Evaluate applies the entitlement rules to this record.
func (e *Entitlement) Evaluate(now time.Time) Decision {
	return EvaluateEntitlement(now, e.TrialEnd, e.SubscriptionStatus)
}
