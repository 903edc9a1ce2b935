package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"profile-service/config"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// GCSStore keeps images in a Google Cloud Storage bucket. URLs are signed
// locally with the service account key from the credentials JSON.
type GCSStore struct {
	client     *gcs.Client
	bucket     *gcs.BucketHandle
	bucketName string
	accessID   string
	privateKey []byte
}

var newGCSClient = func(ctx context.Context, opts ...option.ClientOption) (*gcs.Client, error) {
	return gcs.NewClient(ctx, opts...)
}

func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	creds := []byte(cfg.CredentialsJSON)
	jwtCfg, err := google.JWTConfigFromJSON(creds, gcs.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("parse gcs credentials: %w", err)
	}

	client, err := newGCSClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSStore{
		client:     client,
		bucket:     client.Bucket(cfg.Bucket),
		bucketName: cfg.Bucket,
		accessID:   jwtCfg.Email,
		privateKey: jwtCfg.PrivateKey,
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, body io.Reader, _ int64) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL for key.
func (s *GCSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	url, err := gcs.SignedURL(s.bucketName, key, &gcs.SignedURLOptions{
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Method:         http.MethodGet,
		Expires:        time.Now().Add(ttl),
		Scheme:         gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign object %s: %w", key, err)
	}
	return url, nil
}

func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
