package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/pkg/sms"
)

const otpTTL = 10 * time.Minute

type otpStore interface {
	Create(ctx context.Context, otp *domain.OtpCode) error
	FindValid(ctx context.Context, phone, code string, now time.Time) (*domain.OtpCode, error)
	MarkVerified(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

type otpUserStore interface {
	SetPhoneVerified(ctx context.Context, userID, phone string) error
}

// OtpService issues and verifies SMS passcodes for phone verification.
type OtpService struct {
	otps     otpStore
	users    otpUserStore
	gateway  sms.Gateway
	validate *validator.Validate
}

// NewOtpService creates a new OtpService.
func NewOtpService(otps otpStore, users otpUserStore, gateway sms.Gateway) *OtpService {
	return &OtpService{
		otps:     otps,
		users:    users,
		gateway:  gateway,
		validate: validator.New(),
	}
}

// Send issues a 6-digit passcode to the given phone number.
func (s *OtpService) Send(ctx context.Context, userID string, req *domain.SendOtpRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(err.Error())
	}

	code, err := generateCode()
	if err != nil {
		return domain.ErrInternal("failed to generate code", err)
	}

	now := time.Now()
	otp := &domain.OtpCode{
		ID:        domain.NewID(),
		UserID:    &userID,
		Phone:     req.Phone,
		Code:      code,
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return domain.ErrInternal("failed to store code", err)
	}

	body := fmt.Sprintf("Your Zynx verification code is %s. It expires in 10 minutes.", code)
	if err := s.gateway.Send(req.Phone, body); err != nil {
		return domain.ErrInternal("failed to send SMS", err)
	}
	return nil
}

// Verify checks a passcode and, on success, marks the user's phone verified.
func (s *OtpService) Verify(ctx context.Context, userID string, req *domain.VerifyOtpRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(err.Error())
	}

	otp, err := s.otps.FindValid(ctx, req.Phone, req.Code, time.Now())
	if err != nil {
		return domain.ErrInternal("failed to check code", err)
	}
	if otp == nil {
		return domain.ErrBadRequest("invalid or expired code")
	}

	if err := s.otps.MarkVerified(ctx, otp.ID); err != nil {
		return domain.ErrInternal("failed to mark code verified", err)
	}
	if err := s.users.SetPhoneVerified(ctx, userID, req.Phone); err != nil {
		return domain.ErrInternal("failed to update user", err)
	}
	return nil
}

// Cleanup removes expired codes. Intended to run periodically.
func (s *OtpService) Cleanup(ctx context.Context) {
	if err := s.otps.DeleteExpired(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("failed to clean up expired OTP codes")
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
