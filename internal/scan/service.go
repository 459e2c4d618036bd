package scan

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pal-ai/gateway/pkg/async"
	"github.com/pal-ai/gateway/pkg/logger"
	"github.com/pal-ai/gateway/pkg/resilience"
	"go.uber.org/zap"
)

// MaxImageBytes bounds uploaded leaf photos
const MaxImageBytes = 10 << 20

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrImageTooLarge    = errors.New("image exceeds 10MB")
	ErrUnsupportedImage = errors.New("image must be JPEG or PNG")
)

// Diagnosis is a prediction with the matching treatment
type Diagnosis struct {
	Disease     string     `json:"disease"`
	Confidence  float64    `json:"confidence"`
	Uncertain   bool       `json:"uncertain"`
	Treatment   *Treatment `json:"treatment,omitempty"`
	DiagnosedAt time.Time  `json:"diagnosed_at"`
}

// Service runs leaf scans through the prediction service
type Service struct {
	predictor Predictor
	breaker   *resilience.CircuitBreaker
	threshold float64
	archiver  Archiver
	now       func() time.Time
}

// NewService creates a scan service. breaker may be nil.
func NewService(predictor Predictor, breaker *resilience.CircuitBreaker, threshold float64) *Service {
	return &Service{
		predictor: predictor,
		breaker:   breaker,
		threshold: threshold,
		now:       time.Now,
	}
}

// WithArchiver keeps a copy of every diagnosed image. Uploads run in the
// background and never fail a scan.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// Diagnose classifies image and attaches treatment guidance. A prediction
// below the confidence threshold, or for a class with no guidance, is
// flagged Uncertain.
func (s *Service) Diagnose(ctx context.Context, image []byte, filename string) (*Diagnosis, error) {
	if err := checkImage(image); err != nil {
		return nil, err
	}

	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return s.predictor.Predict(ctx, image, filename)
	})
	if err != nil {
		predictionErrorsTotal.Inc()
		return nil, err
	}
	prediction := result.(*Prediction)

	d := &Diagnosis{
		Disease:     prediction.Class,
		Confidence:  prediction.Confidence,
		Uncertain:   prediction.Confidence < s.threshold,
		DiagnosedAt: s.now().UTC(),
	}

	if t, ok := LookupTreatment(prediction.Class); ok {
		d.Disease = t.Disease
		d.Treatment = t
	} else {
		logger.WarnContext(ctx, "prediction class has no treatment entry", zap.String("class", prediction.Class))
		d.Uncertain = true
	}

	diagnosesTotal.WithLabelValues(d.Disease, strconv.FormatBool(d.Uncertain)).Inc()
	s.archive(ctx, image, d)
	return d, nil
}

func (s *Service) archive(ctx context.Context, image []byte, d *Diagnosis) {
	if s.archiver == nil {
		return
	}
	snapshot := *d
	async.Go(ctx, "scan-archive", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
		defer cancel()

		if err := s.archiver.Archive(ctx, image, &snapshot); err != nil {
			archiveErrorsTotal.Inc()
			logger.WarnContext(ctx, "scan archive failed", zap.Error(err))
		}
	})
}

func checkImage(image []byte) error {
	if len(image) == 0 {
		return ErrEmptyImage
	}
	if len(image) > MaxImageBytes {
		return ErrImageTooLarge
	}
	switch http.DetectContentType(image) {
	case "image/jpeg", "image/png":
		return nil
	default:
		return ErrUnsupportedImage
	}
}
