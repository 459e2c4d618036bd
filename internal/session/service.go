package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pal-ai/gateway/pkg/cache"
	"github.com/pal-ai/gateway/pkg/config"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/middleware"
	redisclient "github.com/pal-ai/gateway/pkg/redis"
	"github.com/pal-ai/gateway/pkg/validation"
	"go.uber.org/zap"
)

// DeviceRegistry subscribes push tokens for a user
type DeviceRegistry interface {
	RegisterDevice(ctx context.Context, userID, token string) error
	UnregisterDevice(ctx context.Context, userID, token string) error
}

// CodeSender delivers OTP codes out of band
type CodeSender interface {
	SendCode(ctx context.Context, account, code string, expiresAt time.Time) error
}

// Service owns session and OTP state. It replaces app-wide globals with an
// injected object whose lifetime is explicit: Start creates, End tears down.
type Service struct {
	cfg     config.SessionConfig
	secret  []byte
	redis   redisclient.ClientInterface
	records *cache.Manager
	devices DeviceRegistry
	sender  CodeSender
	admins  map[string]struct{}

	now   func() time.Time
	newID func() string
}

// NewService creates a session service. keyPrefix namespaces every redis key.
func NewService(cfg config.SessionConfig, redis redisclient.ClientInterface, keyPrefix string, devices DeviceRegistry, sender CodeSender) *Service {
	admins := make(map[string]struct{}, len(cfg.AdminAccounts))
	for _, a := range cfg.AdminAccounts {
		admins[a] = struct{}{}
	}
	if sender == nil {
		sender = LogCodeSender{}
	}

	return &Service{
		cfg:     cfg,
		secret:  []byte(cfg.JWTSecret),
		redis:   prefixed{ClientInterface: redis, prefix: keyPrefix},
		records: cache.NewManager(redis, keyPrefix),
		devices: devices,
		sender:  sender,
		admins:  admins,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// RoleFor returns admin for configured admin accounts and farmer otherwise
func (s *Service) RoleFor(account string) string {
	if _, ok := s.admins[account]; ok {
		return middleware.RoleAdmin
	}
	return middleware.RoleFarmer
}

// Start issues a signed token and stores the session record. Push
// registration failures are logged and reported, never fatal.
func (s *Service) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = middleware.RoleFarmer
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        s.newID(),
		UserID:    req.UserID,
		Role:      req.Role,
		PushToken: req.PushToken,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL()),
	}

	token, err := s.sign(sess)
	if err != nil {
		return nil, err
	}

	if err := s.records.Set(ctx, sessionKey(sess.ID), sess, s.cfg.SessionTTL()); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	resp := &StartResponse{
		Token:     token,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	}

	if req.PushToken != "" && s.devices != nil {
		if err := s.devices.RegisterDevice(ctx, req.UserID, req.PushToken); err != nil {
			logger.WarnContext(ctx, "push registration failed", zap.String("session_id", sess.ID), zap.Error(err))
		} else {
			resp.PushRegistered = true
		}
	}

	logger.InfoContext(ctx, "session started", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID), zap.String("role", sess.Role))
	return resp, nil
}

// Validate checks the token signature and that the session was not ended
func (s *Service) Validate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := s.records.Get(ctx, sessionKey(claims.ID), &sess); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return &sess, nil
}

// End tears the session down and unregisters its push token. Ending a
// session that is already gone succeeds.
func (s *Service) End(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	var sess Session
	err = s.records.Get(ctx, sessionKey(claims.ID), &sess)
	switch {
	case errors.Is(err, cache.ErrMiss):
		return nil
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.records.Delete(ctx, sessionKey(claims.ID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if sess.PushToken != "" && s.devices != nil {
		if err := s.devices.UnregisterDevice(ctx, sess.UserID, sess.PushToken); err != nil {
			logger.WarnContext(ctx, "push unregistration failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}

	logger.InfoContext(ctx, "session ended", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	return nil
}

func (s *Service) sign(sess *Session) (string, error) {
	claims := &Claims{
		Role: sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			Issuer:    s.cfg.OTPIssuer,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.OTPIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// prefixed namespaces raw redis keys the same way cache.Manager does.
type prefixed struct {
	redisclient.ClientInterface
	prefix string
}

func (p prefixed) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return p.ClientInterface.SetWithExpiration(ctx, p.prefix+key, value, expiration)
}

func (p prefixed) SetIfAbsent(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return p.ClientInterface.SetIfAbsent(ctx, p.prefix+key, value, expiration)
}

func (p prefixed) GetString(ctx context.Context, key string) (string, error) {
	return p.ClientInterface.GetString(ctx, p.prefix+key)
}

func (p prefixed) Increment(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	return p.ClientInterface.Increment(ctx, p.prefix+key, expiration)
}

func (p prefixed) TTL(ctx context.Context, key string) (time.Duration, error) {
	return p.ClientInterface.TTL(ctx, p.prefix+key)
}

func (p prefixed) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = p.prefix + k
	}
	return p.ClientInterface.Delete(ctx, full...)
}
