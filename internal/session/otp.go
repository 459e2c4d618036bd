package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pal-ai/gateway/pkg/logger"
	redisclient "github.com/pal-ai/gateway/pkg/redis"
	"github.com/pal-ai/gateway/pkg/validation"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// codes stay valid for one extra period after the one they were issued in
const otpSkew = 1

// IssueOTP creates a fresh per-account TOTP secret and sends the current code.
// At most one code is issued per account per resend cooldown.
func (s *Service) IssueOTP(ctx context.Context, account string) (*OTPChallenge, error) {
	account = strings.TrimSpace(account)
	if !validation.ValidateAccount(account) {
		return nil, ErrInvalidAccount
	}

	cooldown := s.cfg.OTPResendCooldown
	acquired, err := s.redis.SetIfAbsent(ctx, otpCooldownKey(account), "1", cooldown)
	if err != nil {
		return nil, fmt.Errorf("otp cooldown: %w", err)
	}
	if !acquired {
		remaining, err := s.redis.TTL(ctx, otpCooldownKey(account))
		if err != nil || remaining <= 0 {
			remaining = cooldown
		}
		return nil, &CooldownError{RetryAfter: remaining}
	}

	challenge, err := s.issue(ctx, account)
	if err != nil {
		// let the caller retry immediately when nothing was sent
		if delErr := s.redis.Delete(ctx, otpCooldownKey(account)); delErr != nil {
			logger.WarnContext(ctx, "failed to clear otp cooldown", zap.Error(delErr))
		}
		return nil, err
	}
	return challenge, nil
}

func (s *Service) issue(ctx context.Context, account string) (*OTPChallenge, error) {
	period := s.otpPeriodSeconds()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.OTPIssuer,
		AccountName: account,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate otp secret: %w", err)
	}

	now := s.now()
	code, err := totp.GenerateCodeCustom(key.Secret(), now, s.validateOpts())
	if err != nil {
		return nil, fmt.Errorf("generate otp code: %w", err)
	}

	p := int64(period)
	expiresAt := time.Unix((now.Unix()/p+1+otpSkew)*p, 0).UTC()

	if err := s.redis.SetWithExpiration(ctx, otpSecretKey(account), key.Secret(), expiresAt.Sub(now)); err != nil {
		return nil, fmt.Errorf("store otp secret: %w", err)
	}
	if err := s.redis.Delete(ctx, otpAttemptsKey(account)); err != nil {
		return nil, fmt.Errorf("reset otp attempts: %w", err)
	}

	if err := s.sender.SendCode(ctx, account, code, expiresAt); err != nil {
		return nil, fmt.Errorf("send otp: %w", err)
	}

	return &OTPChallenge{
		Account:           account,
		ExpiresAt:         expiresAt,
		ResendAvailableAt: now.Add(s.cfg.OTPResendCooldown).UTC(),
	}, nil
}

// VerifyOTP checks code against the account's active secret. A correct code
// is single use and marks the account verified for VerifiedTTL.
func (s *Service) VerifyOTP(ctx context.Context, account, code string) error {
	account = strings.TrimSpace(account)

	secret, err := s.redis.GetString(ctx, otpSecretKey(account))
	if err != nil {
		if redisclient.IsNil(err) {
			return ErrOTPNotIssued
		}
		return fmt.Errorf("load otp secret: %w", err)
	}

	attempts, err := s.redis.Increment(ctx, otpAttemptsKey(account), 2*s.cfg.OTPPeriod)
	if err != nil {
		return fmt.Errorf("count otp attempts: %w", err)
	}
	if s.cfg.OTPMaxAttempts > 0 && attempts > int64(s.cfg.OTPMaxAttempts) {
		if err := s.redis.Delete(ctx, otpSecretKey(account)); err != nil {
			logger.WarnContext(ctx, "failed to revoke otp secret", zap.Error(err))
		}
		return ErrOTPTooManyTries
	}

	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, s.now(), s.validateOpts())
	if err != nil || !valid {
		return ErrOTPInvalid
	}

	if err := s.redis.Delete(ctx, otpSecretKey(account), otpAttemptsKey(account)); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if err := s.redis.SetWithExpiration(ctx, otpVerifiedKey(account), "1", s.cfg.VerifiedTTL); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	return nil
}

// ConsumeVerification spends the mark left by a successful VerifyOTP
func (s *Service) ConsumeVerification(ctx context.Context, account string) error {
	account = strings.TrimSpace(account)

	if _, err := s.redis.GetString(ctx, otpVerifiedKey(account)); err != nil {
		if redisclient.IsNil(err) {
			return ErrNotVerified
		}
		return fmt.Errorf("load verification: %w", err)
	}
	return s.redis.Delete(ctx, otpVerifiedKey(account))
}

func (s *Service) otpPeriodSeconds() uint {
	period := uint(s.cfg.OTPPeriod / time.Second)
	if period == 0 {
		period = 30
	}
	return period
}

func (s *Service) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    s.otpPeriodSeconds(),
		Skew:      otpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func otpCooldownKey(account string) string { return "otp:cooldown:" + account }
func otpSecretKey(account string) string   { return "otp:secret:" + account }
func otpAttemptsKey(account string) string { return "otp:attempts:" + account }
func otpVerifiedKey(account string) string { return "otp:verified:" + account }

// LogCodeSender writes codes to the log. Used until an SMS or email
// channel is configured.
type LogCodeSender struct{}

// SendCode logs the code at debug level
func (LogCodeSender) SendCode(ctx context.Context, account, code string, expiresAt time.Time) error {
	logger.DebugContext(ctx, "otp issued",
		zap.String("account", maskAccount(account)),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

func maskAccount(account string) string {
	if at := strings.IndexByte(account, '@'); at > 0 {
		return account[:1] + "***" + account[at:]
	}
	if len(account) <= 4 {
		return "***"
	}
	return "***" + account[len(account)-4:]
}

// SMSSender sends a text message
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// SMSCodeSender texts codes to phone-number accounts. Email accounts go to
// Fallback, which defaults to LogCodeSender.
type SMSCodeSender struct {
	SMS      SMSSender
	Issuer   string
	Fallback CodeSender
}

// SendCode texts the code when account is a phone number
func (s SMSCodeSender) SendCode(ctx context.Context, account, code string, expiresAt time.Time) error {
	if !validation.ValidatePhoneNumber(account) {
		fallback := s.Fallback
		if fallback == nil {
			fallback = LogCodeSender{}
		}
		return fallback.SendCode(ctx, account, code, expiresAt)
	}

	issuer := s.Issuer
	if issuer == "" {
		issuer = "PAL-AI"
	}
	body := fmt.Sprintf("%s is your %s verification code. It expires at %s UTC.",
		code, issuer, expiresAt.UTC().Format("15:04"))

	if _, err := s.SMS.SendSMS(ctx, account, body); err != nil {
		return err
	}
	logger.InfoContext(ctx, "otp sent by sms", zap.String("account", maskAccount(account)))
	return nil
}
