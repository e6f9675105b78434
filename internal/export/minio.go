package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Artifact is a stored export and a time-limited download link.
type Artifact struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ArtifactStore interface {
	Put(ctx context.Context, key string, result *Result) (Artifact, error)
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LinkTTL   time.Duration
}

// MinioArtifacts stores exports in an S3-compatible bucket.
type MinioArtifacts struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

// NewMinioArtifacts connects and creates the bucket when missing.
func NewMinioArtifacts(ctx context.Context, cfg MinioConfig) (*MinioArtifacts, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MinioArtifacts{client: client, bucket: cfg.Bucket, linkTTL: ttl}, nil
}

func (m *MinioArtifacts) Put(ctx context.Context, key string, result *Result) (Artifact, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(result.Data), int64(len(result.Data)), minio.PutObjectOptions{
		ContentType: result.MimeType,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("upload %s: %w", key, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	link, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.linkTTL, params)
	if err != nil {
		return Artifact{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return Artifact{
		Key:       key,
		URL:       link.String(),
		Size:      info.Size,
		ExpiresAt: time.Now().UTC().Add(m.linkTTL),
	}, nil
}
