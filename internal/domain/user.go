package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	Password              string     `json:"-"` // bcrypt hash, never serialized
	Phone                 *string    `json:"phone,omitempty"`
	PhoneVerified         bool       `json:"phoneVerified"`
	Role                  string     `json:"role"`
	TrialStart            *time.Time `json:"trialStart,omitempty"`
	TrialEnd              *time.Time `json:"trialEnd,omitempty"`
	SubscriptionPlan      *string    `json:"subscriptionPlan,omitempty"`
	SubscriptionStatus    *string    `json:"subscriptionStatus,omitempty"`
	IsBanned              bool       `json:"isBanned"`
	BannedAt              *time.Time `json:"bannedAt,omitempty"`
	BannedReason          *string    `json:"bannedReason,omitempty"`
	DeviceFingerprintHash *string    `json:"-"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// SignupRequest is the validated input for creating an account.
type SignupRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required,min=8"`
	Phone             string `json:"phone" validate:"omitempty,min=10"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

// LoginRequest is the validated input for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RefreshRequest carries a refresh token to exchange for new tokens.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// SendOtpRequest is the input for requesting an SMS passcode.
type SendOtpRequest struct {
	Phone string `json:"phone" validate:"required,min=10"`
}

// VerifyOtpRequest is the input for verifying an SMS passcode.
type VerifyOtpRequest struct {
	Phone string `json:"phone" validate:"required,min=10"`
	Code  string `json:"code" validate:"required,len=6"`
}

// AuthResponse is returned after signup, login and refresh.
type AuthResponse struct {
	User         *UserResponse `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

// UserResponse is the safe API representation of a user (no password).
type UserResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Phone              *string    `json:"phone,omitempty"`
	PhoneVerified      bool       `json:"phoneVerified"`
	Role               string     `json:"role"`
	TrialStart         *time.Time `json:"trialStart,omitempty"`
	TrialEnd           *time.Time `json:"trialEnd,omitempty"`
	SubscriptionPlan   *string    `json:"subscriptionPlan,omitempty"`
	SubscriptionStatus *string    `json:"subscriptionStatus,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// TrialStatus describes the account's current trial window for the profile view.
type TrialStatus struct {
	IsActive        bool       `json:"isActive"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	HoursRemaining  int        `json:"hoursRemaining"`
	HasSubscription bool       `json:"hasSubscription"`
}

// ProfileResponse is the payload for GET /api/auth/profile.
type ProfileResponse struct {
	User  *UserResponse `json:"user"`
	Trial *TrialStatus  `json:"trial"`
}

// JWTClaims represents the token payload.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ToResponse converts a User to its API representation.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Phone:              u.Phone,
		PhoneVerified:      u.PhoneVerified,
		Role:               u.Role,
		TrialStart:         u.TrialStart,
		TrialEnd:           u.TrialEnd,
		SubscriptionPlan:   u.SubscriptionPlan,
		SubscriptionStatus: u.SubscriptionStatus,
		CreatedAt:          u.CreatedAt,
	}
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
