package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pal-ai/gateway/pkg/httpclient"
)

// ErrInvalidPrediction is returned when the model response is unusable
var ErrInvalidPrediction = errors.New("invalid prediction response")

// Prediction is the raw model output
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Predictor classifies a leaf image
type Predictor interface {
	Predict(ctx context.Context, image []byte, filename string) (*Prediction, error)
}

// PredictionClient calls the AI prediction service
type PredictionClient struct {
	http *httpclient.Client
}

// NewPredictionClient creates a client for the prediction endpoint at url.
// Uploads are not retried.
func NewPredictionClient(url, apiKey string, timeout time.Duration) *PredictionClient {
	return &PredictionClient{
		http: httpclient.NewClient(strings.TrimRight(url, "/"), timeout,
			httpclient.WithName("prediction"),
			httpclient.WithHeader("X-API-Key", apiKey),
		),
	}
}

// Predict uploads image as the multipart "file" field
func (c *PredictionClient) Predict(ctx context.Context, image []byte, filename string) (*Prediction, error) {
	body, err := c.http.PostFile(ctx, "", "file", filename, image, nil)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}

	var p Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrediction, err)
	}
	p.Class = strings.TrimSpace(p.Class)
	if p.Class == "" {
		return nil, fmt.Errorf("%w: missing class", ErrInvalidPrediction)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrInvalidPrediction, p.Confidence)
	}
	return &p, nil
}
