package mirror

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// uploader is the part of manager.Uploader we use
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Mirror uploads a snapshot of the whole dataset file after every append
type S3Mirror struct {
	uploader uploader
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewS3Mirror creates a mirror for bucket using the default AWS credential chain
func NewS3Mirror(ctx context.Context, bucket, region, prefix string, logger *zap.Logger) (*S3Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	up := manager.NewUploader(s3.NewFromConfig(cfg), func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
	})
	return newS3Mirror(up, bucket, prefix, logger), nil
}

func newS3Mirror(up uploader, bucket, prefix string, logger *zap.Logger) *S3Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Mirror{uploader: up, bucket: bucket, prefix: prefix, logger: logger.Named("mirror.s3")}
}

// Name returns the mirror name
func (m *S3Mirror) Name() string {
	return "s3"
}

// Mirror uploads the dataset file to <prefix>/<file name>
func (m *S3Mirror) Mirror(ctx context.Context, _ types.FeedbackRecord, datasetPath string) error {
	f, err := os.Open(datasetPath)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	key := path.Join(m.prefix, filepath.Base(datasetPath))
	out, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload dataset to s3://%s/%s: %w", m.bucket, key, err)
	}
	m.logger.Debug("Uploaded dataset snapshot", zap.String("bucket", m.bucket), zap.String("key", key), zap.String("location", out.Location))
	return nil
}
