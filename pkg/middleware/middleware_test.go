package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationIDGeneratesWhenMissingOrInvalid(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())

	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = logger.CorrelationIDFromContext(c.Request.Context())
		assert.Equal(t, seen, GetCorrelationID(c))
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "not-a-uuid"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if header != "" {
			req.Header.Set(CorrelationIDHeader, header)
		}
		router.ServeHTTP(w, req)

		got := w.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, got, seen)
	}
}

func TestCorrelationIDKeepsValidHeader(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	id := uuid.NewString()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, id)
	router.ServeHTTP(w, req)

	assert.Equal(t, id, w.Header().Get(CorrelationIDHeader))
}

func TestRequireRole(t *testing.T) {
	newRouter := func(role string) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if role != "" {
				c.Set(RoleKey, role)
			}
		})
		router.POST("/broadcast", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusAccepted) })
		return router
	}

	tests := []struct {
		role string
		want int
	}{
		{"", http.StatusUnauthorized},
		{RoleFarmer, http.StatusForbidden},
		{RoleAdmin, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run("role="+tt.role, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(tt.role).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/broadcast", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://admin.pal-ai.ph", "not-an-origin"}))
	router.GET("/api/v1/stores", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stores", nil)
	req.Header.Set("Origin", "https://admin.pal-ai.ph")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.pal-ai.ph", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// the mobile app sends no Origin
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSAllowAll(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"*"}))
	router.GET("/api/v1/stores", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores", nil)
	req.Header.Set("Origin", "https://anything.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
}
