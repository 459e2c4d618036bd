package scan

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/common"
	"github.com/pal-ai/gateway/pkg/resilience"
)

// multipart framing allowance on top of the image itself
const formOverheadBytes = 64 << 10

// Diagnoser is the service behind the scan endpoint
type Diagnoser interface {
	Diagnose(ctx context.Context, image []byte, filename string) (*Diagnosis, error)
}

// Handler handles leaf scans and treatment lookups
type Handler struct {
	service Diagnoser
}

// NewHandler creates a new scan handler
func NewHandler(service Diagnoser) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers scan and treatment routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scan", h.Scan)
	rg.GET("/treatments", h.ListTreatments)
	rg.GET("/treatments/:disease", h.GetTreatment)
}

// Scan accepts a multipart "image" upload and returns a diagnosis
func (h *Handler) Scan(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageBytes+formOverheadBytes)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.AppErrorResponse(c, common.NewAppError(http.StatusRequestEntityTooLarge, "image exceeds 10MB", err))
			return
		}
		common.ErrorResponse(c, http.StatusBadRequest, "image file is required")
		return
	}
	if fileHeader.Size > MaxImageBytes {
		common.AppErrorResponse(c, common.NewAppError(http.StatusRequestEntityTooLarge, "image exceeds 10MB", ErrImageTooLarge))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "failed to read image")
		return
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "failed to read image")
		return
	}

	diagnosis, err := h.service.Diagnose(c.Request.Context(), image, fileHeader.Filename)
	if common.HandleServiceError(c, scanError(err), "scan failed") {
		return
	}

	common.SuccessResponse(c, diagnosis)
}

// ListTreatments returns guidance for every class
func (h *Handler) ListTreatments(c *gin.Context) {
	list := Treatments()
	common.SuccessResponseWithMeta(c, list, &common.Meta{Total: len(list)})
}

// GetTreatment returns guidance for one class by name or slug
func (h *Handler) GetTreatment(c *gin.Context) {
	t, ok := LookupTreatment(c.Param("disease"))
	if !ok {
		common.AppErrorResponse(c, common.NewNotFoundError("unknown disease", nil))
		return
	}
	common.SuccessResponse(c, t)
}

func scanError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrEmptyImage), errors.Is(err, ErrUnsupportedImage):
		return common.NewBadRequestError(err.Error(), err)
	case errors.Is(err, ErrImageTooLarge):
		return common.NewAppError(http.StatusRequestEntityTooLarge, err.Error(), err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return common.NewAppError(http.StatusServiceUnavailable, "scanning temporarily unavailable", err).
			WithErrorCode("SCAN_UNAVAILABLE")
	case errors.Is(err, context.DeadlineExceeded):
		return common.NewAppError(http.StatusGatewayTimeout, "prediction timed out", err)
	default:
		return common.NewUpstreamError("prediction service unavailable", err)
	}
}
