package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zynx-ai/backend/internal/domain"
)

func newTokenOnlyAuthService() *AuthService {
	return NewAuthService("access-secret", "refresh-secret", "", "", 24*time.Hour, nil, nil, nil)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTokenOnlyAuthService()
	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: "user"}

	token, err := svc.signToken(user, svc.jwtSecret, accessTokenTTL)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Sub)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	svc := newTokenOnlyAuthService()
	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: "user"}

	// A refresh token must not pass access-token verification.
	refresh, err := svc.signToken(user, svc.refreshSecret, refreshTokenTTL)
	require.NoError(t, err)

	_, err = svc.VerifyToken(refresh)
	require.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	svc := newTokenOnlyAuthService()
	user := &domain.User{ID: "u1", Email: "u1@example.com", Role: "user"}

	token, err := svc.signToken(user, svc.jwtSecret, -time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	require.Error(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTokenOnlyAuthService()
	_, err := svc.VerifyToken("not.a.token")
	require.Error(t, err)
}

func TestTrialStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-12 * time.Hour)

	t.Run("active trial", func(t *testing.T) {
		end := now.Add(12 * time.Hour)
		st := trialStatus(&domain.User{TrialStart: &start, TrialEnd: &end}, now)
		assert.True(t, st.IsActive)
		assert.False(t, st.HasSubscription)
		assert.Equal(t, 12, st.HoursRemaining)
	})

	t.Run("expired trial", func(t *testing.T) {
		end := now.Add(-time.Hour)
		st := trialStatus(&domain.User{TrialStart: &start, TrialEnd: &end}, now)
		assert.False(t, st.IsActive)
		assert.Zero(t, st.HoursRemaining)
	})

	t.Run("expired trial with subscription", func(t *testing.T) {
		end := now.Add(-time.Hour)
		status := domain.SubscriptionStatusActive
		st := trialStatus(&domain.User{TrialStart: &start, TrialEnd: &end, SubscriptionStatus: &status}, now)
		assert.True(t, st.IsActive)
		assert.True(t, st.HasSubscription)
	})
}

func TestHashFingerprintIsStable(t *testing.T) {
	a := hashFingerprint("device-abc")
	b := hashFingerprint("device-abc")
	c := hashFingerprint("device-xyz")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
