package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"profile-service/config"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func serviceAccountJSON(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "profiles-test",
		"private_key_id": "key-1",
		"private_key":    string(keyPEM),
		"client_email":   "uploader@profiles-test.iam.gserviceaccount.com",
		"client_id":      "1234",
		"token_uri":      "https://oauth2.googleapis.com/token",
	})
	require.NoError(t, err)
	return string(raw)
}

func stubGCSClient(t *testing.T) {
	t.Helper()
	original := newGCSClient
	newGCSClient = func(ctx context.Context, _ ...option.ClientOption) (*gcs.Client, error) {
		return gcs.NewClient(ctx, option.WithoutAuthentication())
	}
	t.Cleanup(func() { newGCSClient = original })
}

func TestNewNotConfigured(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{Driver: "gcs"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, store)

	store, err = New(context.Background(), config.StorageConfig{Driver: "minio", Bucket: "avatars"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, store)
}

func TestNewSelectsMinIO(t *testing.T) {
	store, err := New(context.Background(), config.StorageConfig{
		Driver:         "minio",
		Bucket:         "avatars",
		MinIOEndpoint:  "localhost:9000",
		MinIOAccessKey: "access",
		MinIOSecretKey: "secret",
		MinIORegion:    "us-east-1",
	})
	require.NoError(t, err)
	assert.IsType(t, &MinIOStore{}, store)
	assert.NoError(t, store.Close())
}

func TestNewGCSStoreSignsURLs(t *testing.T) {
	stubGCSClient(t)

	store, err := New(context.Background(), config.StorageConfig{
		Driver:          "gcs",
		Bucket:          "avatars",
		CredentialsJSON: serviceAccountJSON(t),
	})
	require.NoError(t, err)
	defer store.Close()

	gcsStore, ok := store.(*GCSStore)
	require.True(t, ok)
	assert.Equal(t, "uploader@profiles-test.iam.gserviceaccount.com", gcsStore.accessID)

	signed, err := store.SignedURL(context.Background(), "u1.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Contains(t, u.Path, "avatars/u1.png")
	assert.Equal(t, "GOOG4-RSA-SHA256", u.Query().Get("X-Goog-Algorithm"))
	assert.True(t, strings.HasPrefix(u.Query().Get("X-Goog-Credential"), "uploader@profiles-test.iam.gserviceaccount.com/"))
	assert.NotEmpty(t, u.Query().Get("X-Goog-Signature"))
}

func TestNewGCSStoreInvalidCredentials(t *testing.T) {
	stubGCSClient(t)

	_, err := NewGCSStore(context.Background(), config.StorageConfig{
		Driver:          "gcs",
		Bucket:          "avatars",
		CredentialsJSON: "not json",
	})
	assert.Error(t, err)
}

func newTestMinIO(t *testing.T, handler http.HandlerFunc) *MinIOStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewMinIOStore(config.StorageConfig{
		Bucket:         "avatars",
		MinIOEndpoint:  strings.TrimPrefix(server.URL, "http://"),
		MinIOAccessKey: "access",
		MinIOSecretKey: "secret",
		MinIORegion:    "us-east-1",
	})
	require.NoError(t, err)
	return store
}

func TestMinIOUpload(t *testing.T) {
	var method, path, contentType string
	store := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		method, path, contentType = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
	})

	body := "png-bytes"
	err := store.Upload(context.Background(), "u1.png", "image/png", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/avatars/u1.png", path)
	assert.Equal(t, "image/png", contentType)
}

func TestMinIOUploadFailure(t *testing.T) {
	store := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
	})

	err := store.Upload(context.Background(), "u1.png", "image/png", strings.NewReader("x"), 1)
	assert.Error(t, err)
}

func TestMinIOSignedURL(t *testing.T) {
	store := newTestMinIO(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})

	signed, err := store.SignedURL(context.Background(), "u1.png", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/avatars/u1.png", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestUnavailableStoreFailsEveryCall(t *testing.T) {
	cause := errors.New("parse gcs credentials")
	store := Unavailable(cause)

	err := store.Upload(context.Background(), "u1.png", "image/png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, cause)

	_, err = store.SignedURL(context.Background(), "u1.png", time.Minute)
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, store.Close())
}
