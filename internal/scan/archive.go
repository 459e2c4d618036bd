package scan

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pal-ai/gateway/pkg/config"
)

// archiveTimeout bounds one background upload
const archiveTimeout = 30 * time.Second

// Archiver stores a scanned image together with its diagnosis
type Archiver interface {
	Archive(ctx context.Context, image []byte, d *Diagnosis) error
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes images to an S3 bucket, keyed by day and disease
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	newID  func() string
}

// NewS3Archiver builds an archiver from cfg. A custom endpoint switches to
// path-style addressing for S3-compatible stores such as MinIO.
func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		newID:  uuid.NewString,
	}
}

// Archive uploads image under <prefix><yyyy>/<mm>/<dd>/<disease>/<id>.<ext>
func (a *S3Archiver) Archive(ctx context.Context, image []byte, d *Diagnosis) error {
	contentType := http.DetectContentType(image)
	key := a.objectKey(d, contentType)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"disease":    d.Disease,
			"confidence": strconv.FormatFloat(d.Confidence, 'f', 4, 64),
			"uncertain":  strconv.FormatBool(d.Uncertain),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive scan %s: %w", key, err)
	}
	return nil
}

func (a *S3Archiver) objectKey(d *Diagnosis, contentType string) string {
	ext := "jpg"
	if contentType == "image/png" {
		ext = "png"
	}
	disease := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(d.Disease), " ", "_"))
	if disease == "" {
		disease = "unknown"
	}
	return fmt.Sprintf("%s%s/%s/%s.%s", a.prefix, d.DiagnosedAt.UTC().Format("2006/01/02"), disease, a.newID(), ext)
}
