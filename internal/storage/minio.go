package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// ObjectStorage keeps uploaded originals and their extracted text.
type ObjectStorage interface {
	UploadOriginal(ctx context.Context, documentID, filename string, data []byte) (string, error)
	UploadExtractedText(ctx context.Context, documentID, text string) (string, error)
	GetExtractedText(ctx context.Context, objectKey string) (string, error)
	DeleteDocumentObjects(ctx context.Context, originalKey, textKey string) error
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO stores objects in two buckets, one for originals and one for text.
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	originalBucket  string
	extractedBucket string
	log             zerolog.Logger
}

// NewMinIO connects, creates missing buckets and applies expiry rules.
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("minio config is nil")
	}
	log := logger.Component("minio")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		originalBucket:  orDefault(cfg.OriginalsBucket, "documents-original"),
		extractedBucket: orDefault(cfg.ExtractedBucket, "documents-text"),
		log:             log,
	}

	ctx := context.Background()
	for _, b := range []string{m.originalBucket, m.extractedBucket} {
		if err := m.ensureBucketExists(ctx, b, cfg.Location); err != nil {
			return nil, err
		}
	}
	if cfg.OriginalExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-originals", cfg.OriginalExpireDays); err != nil {
			log.Warn().Err(err).Str("bucket", m.originalBucket).Msg("lifecycle rule not applied")
		}
	}
	if cfg.ExtractedExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.extractedBucket, "expire-extracted-text", cfg.ExtractedExpireDays); err != nil {
			log.Warn().Err(err).Str("bucket", m.extractedBucket).Msg("lifecycle rule not applied")
		}
	}

	log.Info().Str("endpoint", cfg.Endpoint).Msg("minio client ready")
	return m, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucket, location string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	m.log.Info().Str("bucket", bucket).Msg("bucket created")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucket, ruleID string, days int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:         ruleID,
		Status:     "Enabled",
		Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
	}}
	return m.client.SetBucketLifecycle(ctx, bucket, cfg)
}

// OriginalObjectKey is documents/{id}/original{ext}.
func OriginalObjectKey(documentID, filename string) string {
	return fmt.Sprintf("documents/%s/original%s", documentID, strings.ToLower(filepath.Ext(filename)))
}

// TextObjectKey is documents/{id}/text.txt.
func TextObjectKey(documentID string) string {
	return fmt.Sprintf("documents/%s/text.txt", documentID)
}

// UploadOriginal stores the uploaded bytes and returns the object key.
func (m *MinIO) UploadOriginal(ctx context.Context, documentID, filename string, data []byte) (string, error) {
	key := OriginalObjectKey(documentID, filename)
	_, err := m.client.PutObject(ctx, m.originalBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeFor(filename)})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", m.originalBucket, key, err)
	}
	m.log.Debug().Str("key", key).Int("bytes", len(data)).Msg("original uploaded")
	return key, nil
}

// UploadExtractedText stores the extracted text as UTF-8 plain text.
func (m *MinIO) UploadExtractedText(ctx context.Context, documentID, text string) (string, error) {
	key := TextObjectKey(documentID)
	_, err := m.client.PutObject(ctx, m.extractedBucket, key, strings.NewReader(text), int64(len(text)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", m.extractedBucket, key, err)
	}
	return key, nil
}

// GetExtractedText downloads a stored text object.
func (m *MinIO) GetExtractedText(ctx context.Context, objectKey string) (string, error) {
	obj, err := m.client.GetObject(ctx, m.extractedBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", m.extractedBucket, objectKey, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read %s/%s: %w", m.extractedBucket, objectKey, err)
	}
	return string(data), nil
}

// DeleteDocumentObjects removes both objects. Empty keys are skipped.
func (m *MinIO) DeleteDocumentObjects(ctx context.Context, originalKey, textKey string) error {
	if originalKey != "" {
		if err := m.client.RemoveObject(ctx, m.originalBucket, originalKey, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s/%s: %w", m.originalBucket, originalKey, err)
		}
	}
	if textKey != "" {
		if err := m.client.RemoveObject(ctx, m.extractedBucket, textKey, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s/%s: %w", m.extractedBucket, textKey, err)
		}
	}
	return nil
}

func contentTypeFor(filename string) string {
	switch types.DetectFormat(filename, nil) {
	case types.FormatPDF:
		return "application/pdf"
	case types.FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}
