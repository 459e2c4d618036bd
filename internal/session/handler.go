package session

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/middleware"
	"github.com/pal-ai/gateway/pkg/validation"
)

// Manager is the part of Service the HTTP layer needs
type Manager interface {
	Validator
	Start(ctx context.Context, req StartRequest) (*StartResponse, error)
	End(ctx context.Context, token string) error
	IssueOTP(ctx context.Context, account string) (*OTPChallenge, error)
	VerifyOTP(ctx context.Context, account, code string) error
	ConsumeVerification(ctx context.Context, account string) error
	RoleFor(account string) string
}

// Handler handles session and OTP endpoints
type Handler struct {
	service Manager
}

// NewHandler creates a new session handler
func NewHandler(service Manager) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers session routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/otp", h.IssueOTP)
	rg.POST("/otp/verify", h.VerifyOTP)
	rg.POST("/session", h.StartSession)

	authed := rg.Group("/session", RequireSession(h.service))
	{
		authed.GET("", h.GetSession)
		authed.DELETE("", h.EndSession)
	}
}

// OTPRequest names the account to send a code to
type OTPRequest struct {
	Account string `json:"account" binding:"required"`
}

// IssueOTP sends a one-time code
func (h *Handler) IssueOTP(c *gin.Context) {
	var req OTPRequest
	if !common.BindJSON(c, &req) {
		return
	}

	challenge, err := h.service.IssueOTP(c.Request.Context(), req.Account)
	var cooldown *CooldownError
	if errors.As(err, &cooldown) {
		c.Header("Retry-After", strconv.Itoa(int(cooldown.RetryAfter.Seconds()+0.5)))
	}
	if common.HandleServiceError(c, sessionError(err), "failed to issue otp") {
		return
	}

	common.CreatedResponse(c, challenge)
}

// VerifyOTPRequest carries the code the user typed
type VerifyOTPRequest struct {
	Account string `json:"account" binding:"required"`
	Code    string `json:"code" binding:"required,numeric,len=6"`
}

// VerifyOTP checks a code and marks the account verified
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.service.VerifyOTP(c.Request.Context(), req.Account, req.Code)
	if common.HandleServiceError(c, sessionError(err), "failed to verify otp") {
		return
	}

	common.SuccessResponse(c, gin.H{"verified": true})
}

// StartSessionRequest starts a session for a verified account
type StartSessionRequest struct {
	Account   string `json:"account" binding:"required"`
	PushToken string `json:"push_token,omitempty"`
}

// StartSession exchanges a verified account for a bearer token
func (h *Handler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if common.HandleServiceError(c, sessionError(h.service.ConsumeVerification(ctx, req.Account)), "failed to start session") {
		return
	}

	resp, err := h.service.Start(ctx, StartRequest{
		UserID:    req.Account,
		Role:      h.service.RoleFor(req.Account),
		PushToken: req.PushToken,
	})
	if common.HandleServiceError(c, sessionError(err), "failed to start session") {
		return
	}

	common.CreatedResponse(c, resp)
}

// GetSession describes the caller's session
func (h *Handler) GetSession(c *gin.Context) {
	common.SuccessResponse(c, gin.H{
		"session_id": c.GetString(middleware.SessionIDKey),
		"user_id":    c.GetString(middleware.UserIDKey),
		"role":       c.GetString(middleware.RoleKey),
	})
}

// EndSession logs the caller out
func (h *Handler) EndSession(c *gin.Context) {
	err := h.service.End(c.Request.Context(), c.GetString(tokenKey))
	if common.HandleServiceError(c, sessionError(err), "failed to end session") {
		return
	}
	c.Status(http.StatusNoContent)
}

func sessionError(err error) error {
	if err == nil {
		return nil
	}

	var vErr *validation.ValidationError
	switch {
	case errors.As(err, &vErr):
		return common.NewBadRequestError(vErr.Error(), err)
	case errors.Is(err, ErrInvalidAccount):
		return common.NewBadRequestError(err.Error(), err)
	case errors.Is(err, ErrOTPCooldown):
		return common.NewAppError(http.StatusTooManyRequests, err.Error(), err).WithErrorCode("OTP_COOLDOWN")
	case errors.Is(err, ErrOTPTooManyTries):
		return common.NewAppError(http.StatusTooManyRequests, err.Error(), err).WithErrorCode("OTP_LOCKED")
	case errors.Is(err, ErrOTPInvalid), errors.Is(err, ErrOTPNotIssued):
		return common.NewBadRequestError(err.Error(), err).WithErrorCode("OTP_INVALID")
	case errors.Is(err, ErrNotVerified):
		return common.NewAppError(http.StatusUnauthorized, "verify the account with an otp first", err).WithErrorCode("NOT_VERIFIED")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrSessionExpired):
		return common.NewAppError(http.StatusUnauthorized, "invalid or expired session", err)
	default:
		return common.NewInternalError("session store unavailable", err)
	}
}
