package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour

	// Accounts allowed per device fingerprint per day before signup is throttled.
	maxAccountsPerDevice = 3
)

// AuthService handles signup, login, tokens, and the trial window opened at
// account creation.
type AuthService struct {
	jwtSecret     string
	refreshSecret string
	adminEmail    string
	adminPassword string
	trialDuration time.Duration
	users         *repository.UserRepository
	tokens        *repository.TokenRepository
	audit         *repository.AuditRepository
	validate      *validator.Validate
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, refreshSecret, adminEmail, adminPassword string, trialDuration time.Duration,
	users *repository.UserRepository, tokens *repository.TokenRepository, audit *repository.AuditRepository) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		refreshSecret: refreshSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		trialDuration: trialDuration,
		users:         users,
		tokens:        tokens,
		audit:         audit,
		validate:      validator.New(),
	}
}

// SeedAdmin creates the default admin user if it doesn't exist. Admin
// accounts carry no trial window; they are not gated.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	if s.adminPassword == "" {
		return nil
	}
	exists, err := s.users.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &domain.User{
		ID:        domain.NewID(),
		Email:     s.adminEmail,
		Password:  string(hashed),
		Role:      "admin",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Info().Str("email", s.adminEmail).Msg("admin user created")
	return nil
}

// Signup registers a new account and opens its trial window. The window is
// fixed at creation and never mutated afterwards.
func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest, ip, userAgent string) (*domain.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	exists, err := s.users.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrConflict("user already exists")
	}

	var fingerprintHash *string
	if req.DeviceFingerprint != "" {
		h := hashFingerprint(req.DeviceFingerprint)
		recent, err := s.users.CountByFingerprintSince(ctx, h, time.Now().Add(-24*time.Hour))
		if err != nil {
			return nil, domain.ErrInternal("failed to check device", err)
		}
		if recent >= maxAccountsPerDevice {
			return nil, domain.ErrTooManyRequests("too many accounts created from this device")
		}
		fingerprintHash = &h
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	now := time.Now()
	trialStart := now
	trialEnd := now.Add(s.trialDuration)

	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	user := &domain.User{
		ID:                    domain.NewID(),
		Email:                 req.Email,
		Password:              string(hashed),
		Phone:                 phone,
		Role:                  "user",
		TrialStart:            &trialStart,
		TrialEnd:              &trialEnd,
		DeviceFingerprintHash: fingerprintHash,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}

	s.writeAudit(ctx, user.ID, "signup", "user", "user signed up", ip, userAgent)
	return s.issueTokens(ctx, user)
}

// Login validates credentials and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest, ip, userAgent string) (*domain.AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if user.IsBanned {
		return nil, domain.ErrForbidden("account is banned")
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user", user.ID).Msg("failed to record last login")
	}

	s.writeAudit(ctx, user.ID, "login", "user", "user logged in", ip, userAgent)
	return s.issueTokens(ctx, user)
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// token is revoked (rotation).
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	claims, err := s.parseToken(refreshToken, s.refreshSecret)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid refresh token")
	}

	stored, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		return nil, domain.ErrInternal("failed to find refresh token", err)
	}
	if stored == nil || time.Now().After(stored.ExpiresAt) {
		return nil, domain.ErrUnauthorized("refresh token expired or revoked")
	}

	user, err := s.users.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized("user no longer exists")
	}
	if user.IsBanned {
		return nil, domain.ErrForbidden("account is banned")
	}

	if err := s.tokens.Delete(ctx, refreshToken); err != nil {
		return nil, domain.ErrInternal("failed to rotate refresh token", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Delete(ctx, refreshToken); err != nil {
		return domain.ErrInternal("failed to revoke token", err)
	}
	return nil
}

// VerifyToken validates an access token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	claims, err := s.parseToken(tokenStr, s.jwtSecret)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}
	return claims, nil
}

// Profile returns the user's account info with a computed trial status.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.ProfileResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return &domain.ProfileResponse{
		User:  user.ToResponse(),
		Trial: trialStatus(user, time.Now()),
	}, nil
}

func trialStatus(user *domain.User, now time.Time) *domain.TrialStatus {
	trialActive := user.TrialEnd != nil && now.Before(*user.TrialEnd)
	hasSub := user.SubscriptionStatus != nil && *user.SubscriptionStatus == domain.SubscriptionStatusActive

	hours := 0
	if trialActive {
		hours = int(user.TrialEnd.Sub(now).Hours())
	}
	return &domain.TrialStatus{
		IsActive:        trialActive || hasSub,
		StartDate:       user.TrialStart,
		EndDate:         user.TrialEnd,
		HoursRemaining:  hours,
		HasSubscription: hasSub,
	}
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.AuthResponse, error) {
	access, err := s.signToken(user, s.jwtSecret, accessTokenTTL)
	if err != nil {
		return nil, domain.ErrInternal("failed to sign access token", err)
	}
	refresh, err := s.signToken(user, s.refreshSecret, refreshTokenTTL)
	if err != nil {
		return nil, domain.ErrInternal("failed to sign refresh token", err)
	}

	now := time.Now()
	if err := s.tokens.Create(ctx, &domain.RefreshToken{
		ID:        domain.NewID(),
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: now.Add(refreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, domain.ErrInternal("failed to store refresh token", err)
	}

	return &domain.AuthResponse{
		User:         user.ToResponse(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *AuthService) signToken(user *domain.User, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *AuthService) parseToken(tokenStr, secret string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func (s *AuthService) writeAudit(ctx context.Context, userID, action, resource, details, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Create(ctx, &domain.AuditLog{
		ID:        domain.NewID(),
		UserID:    &userID,
		Action:    action,
		Resource:  resource,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func hashFingerprint(fp string) string {
	sum := sha256.Sum256([]byte(fp))
	return hex.EncodeToString(sum[:])
}
