package scan

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pal-ai/gateway/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, image []byte, filename string) (*Prediction, error) {
	args := m.Called(ctx, image, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Prediction), args.Error(1)
}

func newTestService(p Predictor) *Service {
	svc := NewService(p, nil, 0.6)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestDiagnoseAttachesTreatment(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, jpegBytes, "leaf.jpg").
		Return(&Prediction{Class: "brown_spot", Confidence: 0.88}, nil)

	d, err := newTestService(p).Diagnose(context.Background(), jpegBytes, "leaf.jpg")
	require.NoError(t, err)

	assert.Equal(t, BrownSpot, d.Disease)
	assert.False(t, d.Uncertain)
	require.NotNil(t, d.Treatment)
	assert.Contains(t, d.Treatment.Chemicals, "Mancozeb")
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), d.DiagnosedAt)
}

func TestDiagnoseLowConfidenceIsUncertain(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).
		Return(&Prediction{Class: LeafBlast, Confidence: 0.41}, nil)

	d, err := newTestService(p).Diagnose(context.Background(), jpegBytes, "leaf.jpg")
	require.NoError(t, err)
	assert.True(t, d.Uncertain)
	assert.NotNil(t, d.Treatment)
}

func TestDiagnoseUnknownClassIsUncertain(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).
		Return(&Prediction{Class: "Sheath Rot", Confidence: 0.99}, nil)

	d, err := newTestService(p).Diagnose(context.Background(), jpegBytes, "leaf.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Sheath Rot", d.Disease)
	assert.True(t, d.Uncertain)
	assert.Nil(t, d.Treatment)
}

func TestDiagnoseRejectsBadImagesBeforeUpload(t *testing.T) {
	png := []byte("\x89PNG\x0D\x0A\x1A\x0A rest")
	tooLarge := append(append([]byte{}, jpegBytes...), bytes.Repeat([]byte{0}, MaxImageBytes)...)

	tests := []struct {
		name  string
		image []byte
		err   error
	}{
		{"empty", nil, ErrEmptyImage},
		{"text", []byte("hello world"), ErrUnsupportedImage},
		{"too large", tooLarge, ErrImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPredictor{}
			_, err := newTestService(p).Diagnose(context.Background(), tt.image, "x")
			assert.ErrorIs(t, err, tt.err)
			p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	p := &mockPredictor{}
	p.On("Predict", mock.Anything, png, "leaf.png").Return(&Prediction{Class: Healthy, Confidence: 0.97}, nil)
	d, err := newTestService(p).Diagnose(context.Background(), png, "leaf.png")
	require.NoError(t, err)
	assert.Equal(t, Healthy, d.Disease)
}

func TestDiagnoseBreakerOpens(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("HTTP 500"))

	breaker := resilience.NewCircuitBreaker(resilience.BuildSettings("scan-test", 60, 60, 2, 1), nil)
	svc := NewService(p, breaker, 0.6)

	for i := 0; i < 2; i++ {
		_, err := svc.Diagnose(context.Background(), jpegBytes, "leaf.jpg")
		require.Error(t, err)
	}

	_, err := svc.Diagnose(context.Background(), jpegBytes, "leaf.jpg")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	p.AssertNumberOfCalls(t, "Predict", 2)
}
