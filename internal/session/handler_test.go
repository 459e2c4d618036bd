package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockManager struct {
	mock.Mock
}

func (m *mockManager) Validate(ctx context.Context, token string) (*Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockManager) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StartResponse), args.Error(1)
}

func (m *mockManager) End(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockManager) IssueOTP(ctx context.Context, account string) (*OTPChallenge, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OTPChallenge), args.Error(1)
}

func (m *mockManager) VerifyOTP(ctx context.Context, account, code string) error {
	return m.Called(ctx, account, code).Error(0)
}

func (m *mockManager) ConsumeVerification(ctx context.Context, account string) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockManager) RoleFor(account string) string {
	return m.Called(account).String(0)
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code      int    `json:"code"`
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	} `json:"error"`
}

func perform(svc Manager, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// ========================================
// OTP
// ========================================

func TestHandlerIssueOTP(t *testing.T) {
	svc := &mockManager{}
	challenge := &OTPChallenge{Account: account, ExpiresAt: fixedNow.Add(10 * time.Minute)}
	svc.On("IssueOTP", mock.Anything, account).Return(challenge, nil)

	w := perform(svc, http.MethodPost, "/api/v1/otp", gin.H{"account": account}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data OTPChallenge `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, account, body.Data.Account)
}

func TestHandlerIssueOTPCooldown(t *testing.T) {
	svc := &mockManager{}
	svc.On("IssueOTP", mock.Anything, account).Return(nil, &CooldownError{RetryAfter: 42 * time.Second})

	w := perform(svc, http.MethodPost, "/api/v1/otp", gin.H{"account": account}, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OTP_COOLDOWN", body.Error.ErrorCode)
}

func TestHandlerIssueOTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad account", ErrInvalidAccount, http.StatusBadRequest},
		{"store down", errors.New("redis: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockManager{}
			svc.On("IssueOTP", mock.Anything, account).Return(nil, tt.err)

			w := perform(svc, http.MethodPost, "/api/v1/otp", gin.H{"account": account}, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, w.Header().Get("Retry-After"))
		})
	}
}

func TestHandlerIssueOTPMissingAccount(t *testing.T) {
	svc := &mockManager{}
	w := perform(svc, http.MethodPost, "/api/v1/otp", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "IssueOTP", mock.Anything, mock.Anything)
}

func TestHandlerVerifyOTP(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		err       error
		status    int
		errorCode string
	}{
		{"valid", "123456", nil, http.StatusOK, ""},
		{"wrong code", "123456", ErrOTPInvalid, http.StatusBadRequest, "OTP_INVALID"},
		{"expired", "123456", ErrOTPNotIssued, http.StatusBadRequest, "OTP_INVALID"},
		{"locked", "123456", ErrOTPTooManyTries, http.StatusTooManyRequests, "OTP_LOCKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockManager{}
			svc.On("VerifyOTP", mock.Anything, account, tt.code).Return(tt.err)

			w := perform(svc, http.MethodPost, "/api/v1/otp/verify", gin.H{"account": account, "code": tt.code}, nil)
			require.Equal(t, tt.status, w.Code)

			if tt.errorCode != "" {
				var body errorBody
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.errorCode, body.Error.ErrorCode)
			}
		})
	}
}

func TestHandlerVerifyOTPRejectsMalformedCode(t *testing.T) {
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		t.Run(code, func(t *testing.T) {
			svc := &mockManager{}
			w := perform(svc, http.MethodPost, "/api/v1/otp/verify", gin.H{"account": account, "code": code}, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "VerifyOTP", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// ========================================
// SESSION
// ========================================

func TestHandlerStartSession(t *testing.T) {
	svc := &mockManager{}
	svc.On("ConsumeVerification", mock.Anything, account).Return(nil)
	svc.On("RoleFor", account).Return(middleware.RoleFarmer)
	svc.On("Start", mock.Anything, StartRequest{UserID: account, Role: middleware.RoleFarmer, PushToken: "fcm"}).
		Return(&StartResponse{Token: "jwt", SessionID: "sess-1", UserID: account, Role: middleware.RoleFarmer}, nil)

	w := perform(svc, http.MethodPost, "/api/v1/session", gin.H{"account": account, "push_token": "fcm"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data StartResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "jwt", body.Data.Token)
	assert.Equal(t, "sess-1", body.Data.SessionID)
	svc.AssertExpectations(t)
}

func TestHandlerStartSessionRequiresVerification(t *testing.T) {
	svc := &mockManager{}
	svc.On("ConsumeVerification", mock.Anything, account).Return(ErrNotVerified)

	w := perform(svc, http.MethodPost, "/api/v1/session", gin.H{"account": account}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_VERIFIED", body.Error.ErrorCode)
	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestHandlerGetSession(t *testing.T) {
	svc := &mockManager{}
	svc.On("Validate", mock.Anything, "jwt").
		Return(&Session{ID: "sess-1", UserID: account, Role: middleware.RoleAdmin}, nil)

	w := perform(svc, http.MethodGet, "/api/v1/session", nil, bearer("jwt"))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "sess-1", body.Data["session_id"])
	assert.Equal(t, account, body.Data["user_id"])
	assert.Equal(t, middleware.RoleAdmin, body.Data["role"])
}

func TestHandlerEndSession(t *testing.T) {
	svc := &mockManager{}
	svc.On("Validate", mock.Anything, "jwt").Return(&Session{ID: "sess-1", UserID: account}, nil)
	svc.On("End", mock.Anything, "jwt").Return(nil)

	w := perform(svc, http.MethodDelete, "/api/v1/session", nil, bearer("jwt"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

// ========================================
// MIDDLEWARE
// ========================================

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name        string
		header      http.Header
		validateErr error
		status      int
	}{
		{"missing header", nil, nil, http.StatusUnauthorized},
		{"wrong scheme", http.Header{"Authorization": []string{"Basic abc"}}, nil, http.StatusUnauthorized},
		{"empty token", http.Header{"Authorization": []string{"Bearer  "}}, nil, http.StatusUnauthorized},
		{"invalid token", bearer("jwt"), ErrInvalidToken, http.StatusUnauthorized},
		{"ended session", bearer("jwt"), ErrSessionExpired, http.StatusUnauthorized},
		{"store down", bearer("jwt"), errors.New("redis: connection refused"), http.StatusServiceUnavailable},
		{"valid", bearer("jwt"), nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockManager{}
			if tt.validateErr != nil {
				svc.On("Validate", mock.Anything, "jwt").Return(nil, tt.validateErr)
			} else {
				svc.On("Validate", mock.Anything, "jwt").Return(&Session{ID: "sess-1", UserID: farmer, Role: middleware.RoleFarmer}, nil)
			}

			var seen gin.H
			router := gin.New()
			router.GET("/private", RequireSession(svc), func(c *gin.Context) {
				seen = gin.H{
					"user_id":    c.GetString(middleware.UserIDKey),
					"role":       c.GetString(middleware.RoleKey),
					"session_id": c.GetString(middleware.SessionIDKey),
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, gin.H{"user_id": farmer, "role": middleware.RoleFarmer, "session_id": "sess-1"}, seen)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}
