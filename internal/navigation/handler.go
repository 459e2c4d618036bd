package navigation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pal-ai/gateway/internal/maps"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/middleware"
	"github.com/pal-ai/gateway/pkg/websocket"
	"go.uber.org/zap"
)

// Handler exposes navigation sessions over HTTP
type Handler struct {
	manager *Manager
}

// NewHandler creates a new navigation handler
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers navigation routes. They expect the session
// middleware to have run.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	nav := rg.Group("/navigation/sessions")
	{
		nav.POST("", h.CreateSession)
		nav.POST("/:id/positions", h.PushPosition)
		nav.GET("/:id/route", h.GetRoute)
		nav.DELETE("/:id", h.StopSession)
		nav.GET("/:id/stream", h.StreamSession)
	}
}

// CreateSessionRequest starts navigation to a destination
type CreateSessionRequest struct {
	Destination *maps.Coordinate `json:"destination" binding:"required"`
	Position    *PositionInput   `json:"position,omitempty"`
}

// PositionInput is a fix as sent by the app
type PositionInput struct {
	Latitude  float64    `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64    `json:"longitude" binding:"min=-180,max=180"`
	Heading   float64    `json:"heading,omitempty" binding:"omitempty,min=0,max=360"`
	Speed     float64    `json:"speed,omitempty" binding:"omitempty,min=0"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (p PositionInput) toPosition() Position {
	ts := time.Now()
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}
	return Position{
		Coordinate: maps.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude},
		Heading:    p.Heading,
		Speed:      p.Speed,
		Timestamp:  ts,
	}
}

// CreateSession starts a navigation session
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	d := *req.Destination
	if d.Latitude < -90 || d.Latitude > 90 || d.Longitude < -180 || d.Longitude > 180 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid destination")
		return
	}

	var initial *Position
	if req.Position != nil {
		p := req.Position.toPosition()
		initial = &p
	}

	info, err := h.manager.Create(c.Request.Context(), c.GetString(middleware.UserIDKey), d, initial)
	if common.HandleServiceError(c, navigationError(err), "failed to start navigation") {
		return
	}

	common.CreatedResponse(c, info)
}

// PushPosition feeds a GPS fix into a session
func (h *Handler) PushPosition(c *gin.Context) {
	var req PositionInput
	if !common.BindJSON(c, &req) {
		return
	}

	err := h.manager.PushPosition(c.GetString(middleware.UserIDKey), c.Param("id"), req.toPosition())
	if common.HandleServiceError(c, navigationError(err), "failed to record position") {
		return
	}

	c.JSON(http.StatusAccepted, common.Response{Success: true})
}

// GetRoute returns the latest delivered route update
func (h *Handler) GetRoute(c *gin.Context) {
	info, err := h.manager.Get(c.GetString(middleware.UserIDKey), c.Param("id"))
	if common.HandleServiceError(c, navigationError(err), "failed to load navigation session") {
		return
	}

	common.SuccessResponse(c, info)
}

// StopSession ends a session
func (h *Handler) StopSession(c *gin.Context) {
	err := h.manager.Stop(c.GetString(middleware.UserIDKey), c.Param("id"))
	if common.HandleServiceError(c, navigationError(err), "failed to stop navigation") {
		return
	}

	common.SuccessResponse(c, gin.H{"stopped": true})
}

// StreamSession upgrades to a websocket that receives route updates and
// accepts position frames.
func (h *Handler) StreamSession(c *gin.Context) {
	ownerID := c.GetString(middleware.UserIDKey)
	id := c.Param("id")

	err := h.manager.Stream(c.Writer, c.Request, ownerID, id, h.streamHandler(ownerID, id))
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrStreamingDisabled):
		common.HandleServiceError(c, navigationError(err), "failed to open navigation stream")
	default:
		// The upgrader has already answered the request.
		logger.DebugContext(c.Request.Context(), "navigation stream upgrade failed", zap.Error(err))
	}
}

func (h *Handler) streamHandler(ownerID, id string) websocket.MessageHandler {
	return func(_ *websocket.Client, msg *websocket.Message) *websocket.Message {
		if msg.Type != MessagePosition {
			return streamError(id, "unsupported message type")
		}

		var input PositionInput
		if err := json.Unmarshal(msg.Data, &input); err != nil {
			return streamError(id, "invalid position")
		}
		if err := binding.Validator.ValidateStruct(&input); err != nil {
			return streamError(id, "invalid position: "+err.Error())
		}

		if err := h.manager.PushPosition(ownerID, id, input.toPosition()); err != nil {
			return streamError(id, err.Error())
		}
		return nil
	}
}

func streamError(id, message string) *websocket.Message {
	msg, _ := websocket.NewMessage(MessageError, id, gin.H{"message": message})
	return msg
}

func navigationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionNotFound):
		return common.NewNotFoundError("navigation session not found", err)
	case errors.Is(err, ErrTooManySessions):
		return common.NewTooManyRequestsError("too many active navigation sessions")
	case errors.Is(err, ErrStreamingDisabled):
		return common.NewAppError(http.StatusServiceUnavailable, "navigation streaming is disabled", err)
	default:
		return err
	}
}
