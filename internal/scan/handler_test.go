package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pal-ai/gateway/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDiagnoser struct {
	mock.Mock
}

func (m *mockDiagnoser) Diagnose(ctx context.Context, image []byte, filename string) (*Diagnosis, error) {
	args := m.Called(ctx, image, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Diagnosis), args.Error(1)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(svc Diagnoser) *gin.Engine {
	router := gin.New()
	NewHandler(svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandlerScan(t *testing.T) {
	svc := &mockDiagnoser{}
	tr, _ := LookupTreatment(LeafBlast)
	svc.On("Diagnose", mock.Anything, jpegBytes, "leaf.jpg").
		Return(&Diagnosis{Disease: LeafBlast, Confidence: 0.9, Treatment: tr}, nil)

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, uploadRequest(t, "image", "leaf.jpg", jpegBytes))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool      `json:"success"`
		Data    Diagnosis `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, LeafBlast, body.Data.Disease)
	require.NotNil(t, body.Data.Treatment)
	assert.Equal(t, "leaf-blast", body.Data.Treatment.Slug)
}

func TestHandlerScanMissingFile(t *testing.T) {
	svc := &mockDiagnoser{}

	w := httptest.NewRecorder()
	setupRouter(svc).ServeHTTP(w, uploadRequest(t, "photo", "leaf.jpg", jpegBytes))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Diagnose", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlerScanErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrUnsupportedImage, http.StatusBadRequest},
		{ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("prediction: %w", resilience.ErrCircuitOpen), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("HTTP 500"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		svc := &mockDiagnoser{}
		svc.On("Diagnose", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

		w := httptest.NewRecorder()
		setupRouter(svc).ServeHTTP(w, uploadRequest(t, "image", "leaf.jpg", jpegBytes))
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestHandlerTreatments(t *testing.T) {
	router := setupRouter(&mockDiagnoser{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/treatments", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Data []Treatment `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 7)
	assert.Equal(t, 7, list.Meta.Total)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/treatments/narrow_brown_spot", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var one struct {
		Data Treatment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, NarrowBrownSpot, one.Data.Disease)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/treatments/sheath-blight", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
