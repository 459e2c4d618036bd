package scan

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type recordingArchiver struct {
	calls chan *Diagnosis
	err   error
}

func (r *recordingArchiver) Archive(_ context.Context, _ []byte, d *Diagnosis) error {
	r.calls <- d
	return r.err
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testDiagnosis() *Diagnosis {
	return &Diagnosis{
		Disease:     BrownSpot,
		Confidence:  0.875,
		DiagnosedAt: time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC),
	}
}

func TestS3ArchiverUploadsImage(t *testing.T) {
	putter := &fakePutter{}
	archiver := newS3Archiver(putter, "palai-scans", "scans")
	archiver.newID = func() string { return "scan-1" }

	require.NoError(t, archiver.Archive(context.Background(), jpegBytes, testDiagnosis()))

	require.NotNil(t, putter.input)
	assert.Equal(t, "palai-scans", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "scans/2024/06/01/brown_spot/scan-1.jpg", aws.ToString(putter.input.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(putter.input.ContentType))
	assert.Equal(t, jpegBytes, putter.body)
	assert.Equal(t, map[string]string{
		"disease":    BrownSpot,
		"confidence": "0.8750",
		"uncertain":  "false",
	}, putter.input.Metadata)
}

func TestS3ArchiverKeys(t *testing.T) {
	archiver := newS3Archiver(&fakePutter{}, "palai-scans", "")
	archiver.newID = func() string { return "scan-2" }

	d := testDiagnosis()
	d.Disease = ""
	assert.Equal(t, "2024/06/01/unknown/scan-2.png", archiver.objectKey(d, "image/png"))
}

func TestS3ArchiverReportsFailure(t *testing.T) {
	archiver := newS3Archiver(&fakePutter{err: errors.New("access denied")}, "palai-scans", "scans/")

	err := archiver.Archive(context.Background(), pngBytes, testDiagnosis())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "scans/2024/06/01/brown_spot/")
}

func TestDiagnoseArchivesInBackground(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).
		Return(&Prediction{Class: "brown_spot", Confidence: 0.9}, nil)

	archiver := &recordingArchiver{calls: make(chan *Diagnosis, 1), err: errors.New("bucket gone")}
	svc := newTestService(p).WithArchiver(archiver)

	d, err := svc.Diagnose(context.Background(), jpegBytes, "leaf.jpg")
	require.NoError(t, err)

	select {
	case archived := <-archiver.calls:
		assert.Equal(t, d.Disease, archived.Disease)
		assert.Equal(t, d.DiagnosedAt, archived.DiagnosedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("image was not archived")
	}
}
