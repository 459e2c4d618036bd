package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionExpired  = errors.New("session expired or ended")
	ErrInvalidAccount  = errors.New("account must be a phone number or email")
	ErrOTPCooldown     = errors.New("otp recently sent")
	ErrOTPNotIssued    = errors.New("no active otp for account")
	ErrOTPInvalid      = errors.New("invalid otp code")
	ErrOTPTooManyTries = errors.New("too many otp attempts")
	ErrNotVerified     = errors.New("account not verified")
)

// Session is the server-side record behind a token
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	PushToken string    `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StartRequest describes who the session is for
type StartRequest struct {
	UserID    string `validate:"required,max=128"`
	Role      string `validate:"omitempty,user_role"`
	PushToken string `validate:"omitempty,max=4096"`
}

// StartResponse carries the bearer token for the new session
type StartResponse struct {
	Token          string    `json:"token"`
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	ExpiresAt      time.Time `json:"expires_at"`
	PushRegistered bool      `json:"push_registered"`
}

// Claims are the JWT claims. The registered ID is the session ID and the
// subject is the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// OTPChallenge tells the client when the code lapses and when it may ask again
type OTPChallenge struct {
	Account           string    `json:"account"`
	ExpiresAt         time.Time `json:"expires_at"`
	ResendAvailableAt time.Time `json:"resend_available_at"`
}

// CooldownError reports how long until another OTP may be issued
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return ErrOTPCooldown.Error() + ", retry in " + e.RetryAfter.Round(time.Second).String()
}

func (e *CooldownError) Unwrap() error {
	return ErrOTPCooldown
}
