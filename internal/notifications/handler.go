package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/middleware"
	"github.com/pal-ai/gateway/pkg/resilience"
)

// Notifier is the part of Service the HTTP layer needs
type Notifier interface {
	NotifyUser(ctx context.Context, userID string, msg *Message) (string, error)
	Broadcast(ctx context.Context, msg *Message) (string, error)
}

// Handler exposes admin notification endpoints
type Handler struct {
	service Notifier
}

// NewHandler creates a new notifications handler
func NewHandler(service Notifier) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers notification routes. rg must already carry
// session authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/notifications", middleware.RequireAdmin())
	{
		admin.POST("/broadcast", h.Broadcast)
		admin.POST("/users/:user_id", h.NotifyUser)
	}
}

// SendResponse reports the FCM message ID
type SendResponse struct {
	MessageID string `json:"message_id"`
}

// Broadcast sends an announcement to every registered device
func (h *Handler) Broadcast(c *gin.Context) {
	var msg Message
	if !common.BindJSON(c, &msg) {
		return
	}

	id, err := h.service.Broadcast(c.Request.Context(), &msg)
	if common.HandleServiceError(c, pushError(err), "failed to send broadcast") {
		return
	}
	common.SuccessResponse(c, SendResponse{MessageID: id})
}

// NotifyUser sends a notification to one user's devices
func (h *Handler) NotifyUser(c *gin.Context) {
	var msg Message
	if !common.BindJSON(c, &msg) {
		return
	}

	id, err := h.service.NotifyUser(c.Request.Context(), c.Param("user_id"), &msg)
	if common.HandleServiceError(c, pushError(err), "failed to send notification") {
		return
	}
	common.SuccessResponse(c, SendResponse{MessageID: id})
}

func pushError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyUserID), errors.Is(err, ErrEmptyToken):
		return common.NewBadRequestError(err.Error(), err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return common.NewAppError(http.StatusServiceUnavailable, "push notifications temporarily unavailable", err)
	default:
		return common.NewUpstreamError("push notification failed", err)
	}
}
