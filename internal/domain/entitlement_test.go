package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestEvaluateEntitlement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(6 * time.Hour)
	past := now.Add(-6 * time.Hour)

	tests := []struct {
		name    string
		trial   *time.Time
		status  *string
		allowed bool
	}{
		{"active subscription", nil, strPtr(SubscriptionStatusActive), true},
		{"active subscription overrides expired trial", &past, strPtr(SubscriptionStatusActive), true},
		{"trial still running", &future, nil, true},
		{"trial expired", &past, nil, false},
		{"no trial, no subscription", nil, nil, false},
		{"past_due is not entitled", &past, strPtr(SubscriptionStatusPastDue), false},
		{"canceled is not entitled", &past, strPtr(SubscriptionStatusCanceled), false},
		{"canceled but trial still running", &future, strPtr(SubscriptionStatusCanceled), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateEntitlement(now, tt.trial, tt.status)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Code)
			} else {
				assert.Equal(t, DenyCodeTrialExpired, d.Code)
				assert.Equal(t, tt.trial, d.TrialEnd)
			}
		})
	}
}

func TestEvaluateEntitlementBoundaryIsExclusive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Exactly at trial_end the trial is over.
	d := EvaluateEntitlement(now, &now, nil)
	assert.False(t, d.Allowed)

	oneNanoLater := now.Add(time.Nanosecond)
	d = EvaluateEntitlement(now, &oneNanoLater, nil)
	assert.True(t, d.Allowed)
}

func TestEntitlementEvaluateUsesFields(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	e := &Entitlement{TrialEnd: &end}
	assert.True(t, e.Evaluate(now).Allowed)

	e.TrialEnd = nil
	e.SubscriptionStatus = strPtr(SubscriptionStatusActive)
	assert.True(t, e.Evaluate(now).Allowed)
}
