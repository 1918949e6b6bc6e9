package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"calixo/internal/config"
	"calixo/internal/domain"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("backup bucket not configured")

// Uploader is the subset of the S3 client used for backups.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backup writes timestamped JSON snapshots of the tracking record.
type S3Backup struct {
	client Uploader
	bucket string
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// New loads AWS credentials from the default chain.
func New(ctx context.Context, cfg config.BackupConfig, logger *zap.Logger) (*S3Backup, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNotConfigured
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

func NewWithClient(client Uploader, cfg config.BackupConfig, logger *zap.Logger) *S3Backup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Backup{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: cfg.Prefix,
		now:    time.Now,
		logger: logger,
	}
}

// Upload stores record and returns the object key.
func (b *S3Backup) Upload(ctx context.Context, record domain.TrackingRecord) (string, error) {
	if b.bucket == "" {
		return "", ErrNotConfigured
	}
	record.Normalize()
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	key := b.objectKey()
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}
	b.logger.Info("record backed up", zap.String("bucket", b.bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return key, nil
}

func (b *S3Backup) objectKey() string {
	prefix := strings.TrimLeft(b.prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + b.now().UTC().Format("20060102T150405Z") + ".json"
}
