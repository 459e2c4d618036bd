package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReporterRouter(t *testing.T) (*gin.Engine, *[]*sentry.Event) {
	t.Helper()
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		hub := sentry.NewHub(client, sentry.NewScope())
		c.Request = c.Request.WithContext(sentry.SetHubOnContext(c.Request.Context(), hub))
		c.Next()
	})
	router.Use(ErrorReporter())
	return router, &events
}

func TestErrorReporter(t *testing.T) {
	router, events := newReporterRouter(t)
	router.GET("/weather", func(c *gin.Context) {
		_ = c.Error(errors.New("provider timeout"))
		c.Status(http.StatusBadGateway)
	})
	router.GET("/stores/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("store not found"))
		c.Status(http.StatusNotFound)
	})
	router.GET("/failing", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	router.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/weather", "/stores/1", "/ok"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	require.Len(t, *events, 1)
	require.NotEmpty(t, (*events)[0].Exception)
	assert.Equal(t, "provider timeout", (*events)[0].Exception[0].Value)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/failing", nil))
	require.Len(t, *events, 2)
	assert.Equal(t, "HTTP 500: GET /failing", (*events)[1].Exception[0].Value)
}
