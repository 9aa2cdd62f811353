package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zynx-ai/backend/internal/domain"
)

type fakeOtpStore struct {
	codes []*domain.OtpCode
}

func (s *fakeOtpStore) Create(_ context.Context, otp *domain.OtpCode) error {
	s.codes = append(s.codes, otp)
	return nil
}

func (s *fakeOtpStore) FindValid(_ context.Context, phone, code string, now time.Time) (*domain.OtpCode, error) {
	for _, c := range s.codes {
		if c.Phone == phone && c.Code == code && !c.Verified && now.Before(c.ExpiresAt) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeOtpStore) MarkVerified(_ context.Context, id string) error {
	for _, c := range s.codes {
		if c.ID == id {
			c.Verified = true
		}
	}
	return nil
}

func (s *fakeOtpStore) DeleteExpired(_ context.Context, now time.Time) error {
	var kept []*domain.OtpCode
	for _, c := range s.codes {
		if now.Before(c.ExpiresAt) {
			kept = append(kept, c)
		}
	}
	s.codes = kept
	return nil
}

type fakeOtpUserStore struct {
	verified map[string]string
}

func (s *fakeOtpUserStore) SetPhoneVerified(_ context.Context, userID, phone string) error {
	if s.verified == nil {
		s.verified = map[string]string{}
	}
	s.verified[userID] = phone
	return nil
}

type recordingSMS struct {
	sent []string
}

func (g *recordingSMS) Send(phone, body string) error {
	g.sent = append(g.sent, phone+": "+body)
	return nil
}

func TestOtpSendStoresAndDeliversCode(t *testing.T) {
	otps := &fakeOtpStore{}
	sms := &recordingSMS{}
	svc := NewOtpService(otps, &fakeOtpUserStore{}, sms)

	err := svc.Send(context.Background(), "u1", &domain.SendOtpRequest{Phone: "+15550001111"})
	require.NoError(t, err)

	require.Len(t, otps.codes, 1)
	code := otps.codes[0]
	assert.Len(t, code.Code, 6)
	assert.True(t, code.ExpiresAt.After(time.Now()))

	require.Len(t, sms.sent, 1)
	assert.Contains(t, sms.sent[0], code.Code)
}

func TestOtpVerifyFlipsPhoneVerified(t *testing.T) {
	otps := &fakeOtpStore{}
	users := &fakeOtpUserStore{}
	svc := NewOtpService(otps, users, &recordingSMS{})

	require.NoError(t, svc.Send(context.Background(), "u1", &domain.SendOtpRequest{Phone: "+15550001111"}))
	code := otps.codes[0].Code

	err := svc.Verify(context.Background(), "u1", &domain.VerifyOtpRequest{Phone: "+15550001111", Code: code})
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", users.verified["u1"])
	assert.True(t, otps.codes[0].Verified)
}

func TestOtpVerifyRejectsWrongCode(t *testing.T) {
	otps := &fakeOtpStore{}
	users := &fakeOtpUserStore{}
	svc := NewOtpService(otps, users, &recordingSMS{})

	require.NoError(t, svc.Send(context.Background(), "u1", &domain.SendOtpRequest{Phone: "+15550001111"}))

	err := svc.Verify(context.Background(), "u1", &domain.VerifyOtpRequest{Phone: "+15550001111", Code: "000000"})
	require.Error(t, err)
	assert.Empty(t, users.verified)
}

func TestOtpVerifyRejectsExpiredCode(t *testing.T) {
	otps := &fakeOtpStore{}
	users := &fakeOtpUserStore{}
	svc := NewOtpService(otps, users, &recordingSMS{})

	otps.codes = append(otps.codes, &domain.OtpCode{
		ID:        domain.NewID(),
		Phone:     "+15550001111",
		Code:      "123456",
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-20 * time.Minute),
	})

	err := svc.Verify(context.Background(), "u1", &domain.VerifyOtpRequest{Phone: "+15550001111", Code: "123456"})
	require.Error(t, err)
}

func TestOtpCodeIsSingleUse(t *testing.T) {
	otps := &fakeOtpStore{}
	users := &fakeOtpUserStore{}
	svc := NewOtpService(otps, users, &recordingSMS{})

	require.NoError(t, svc.Send(context.Background(), "u1", &domain.SendOtpRequest{Phone: "+15550001111"}))
	code := otps.codes[0].Code

	require.NoError(t, svc.Verify(context.Background(), "u1", &domain.VerifyOtpRequest{Phone: "+15550001111", Code: code}))
	err := svc.Verify(context.Background(), "u1", &domain.VerifyOtpRequest{Phone: "+15550001111", Code: code})
	require.Error(t, err)
}
