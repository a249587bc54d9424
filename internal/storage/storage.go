package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
)

const jobPrefix = "render-jobs"

// AudioKey is the object key of a job's narration track
func AudioKey(jobID string) string {
	return path.Join(jobPrefix, jobID, "audio.mp3")
}

// VideoKey is the object key of a job's rendered reel
func VideoKey(jobID string) string {
	return path.Join(jobPrefix, jobID, "video.mp4")
}

// Storage provides object storage operations for job artifacts
type Storage struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
	log        zerolog.Logger
}

// New creates a new storage client and ensures the bucket exists
func New(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 || expiry > 7*24*time.Hour {
		// S3 caps presigned URLs at seven days
		expiry = 7 * 24 * time.Hour
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  expiry,
		log:        log.With().Str("component", "storage").Str("bucket", cfg.BucketName).Logger(),
	}, nil
}

// Put uploads an in-memory object
func (s *Storage) Put(ctx context.Context, objectName string, data []byte) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: getContentType(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	s.log.Debug().
		Str("object", objectName).
		Int("bytes", len(data)).
		Dur("duration_ms", time.Since(start)).
		Msg("object uploaded")
	return nil
}

// PutFile uploads a file from the local filesystem
func (s *Storage) PutFile(ctx context.Context, objectName, filePath string) error {
	start := time.Now()
	info, err := s.client.FPutObject(ctx, s.bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: getContentType(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	s.log.Debug().
		Str("object", objectName).
		Int64("bytes", info.Size).
		Dur("duration_ms", time.Since(start)).
		Msg("file uploaded")
	return nil
}

// GetFile downloads an object to the local filesystem
func (s *Storage) GetFile(ctx context.Context, objectName, filePath string) error {
	err := s.client.FGetObject(ctx, s.bucketName, objectName, filePath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	return nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// URL returns a presigned download URL for an object
func (s *Storage) URL(ctx context.Context, objectName string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return url.String(), nil
}

// Health reports whether the bucket is reachable
func (s *Storage) Health(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch filepath.Ext(filePath) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
