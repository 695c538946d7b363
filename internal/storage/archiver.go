// Package storage archives call recordings into S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"aileadgen_backend/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// maxRecordingSize caps how much of a provider recording we will pull. Calls
// run minutes, not hours; anything past this is suspect.
const maxRecordingSize = 256 << 20

// Config carries the settings the archiver needs.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketCallRecordings() string
	IsMinIOEnabled() bool
}

// RecordingArchiver copies provider-hosted call recordings into a MinIO
// bucket. Archival is best-effort: the call log keeps the provider URL either
// way.
type RecordingArchiver struct {
	client     *minio.Client
	httpClient *http.Client
	bucket     string
	log        *logger.Logger
}

// NewRecordingArchiver creates the archiver. MinIO must be configured.
func NewRecordingArchiver(cfg Config, log *logger.Logger) (*RecordingArchiver, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &RecordingArchiver{
		client:     client,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		bucket:     cfg.GetMinioBucketCallRecordings(),
		log:        log,
	}, nil
}

// EnsureBucketExists creates the recordings bucket if it doesn't exist.
func (a *RecordingArchiver) EnsureBucketExists(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Archive downloads the recording and stores it under the call log id.
// Returns the object key.
func (a *RecordingArchiver) Archive(ctx context.Context, callLogID, recordingURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return "", fmt.Errorf("build recording request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download recording: unexpected status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}

	objectKey := fmt.Sprintf("recordings/%s.wav", callLogID)
	body := io.LimitReader(resp.Body, maxRecordingSize)
	if _, err := a.client.PutObject(ctx, a.bucket, objectKey, body, -1, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("store recording %s: %w", objectKey, err)
	}

	a.log.Info("recording archived", "call_log_id", callLogID, "object_key", objectKey)
	return objectKey, nil
}
