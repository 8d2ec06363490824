package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
)

// FirebaseStore keeps objects in the Firebase Storage bucket of the app.
type FirebaseStore struct {
	bucket *gcs.BucketHandle
	name   string
	now    func() time.Time
}

// NewFirebaseStore opens the named bucket, or the app's default bucket when
// name is empty.
func NewFirebaseStore(ctx context.Context, app *firebase.App, name string) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Storage client: %w", err)
	}
	var bucket *gcs.BucketHandle
	if name == "" {
		bucket, err = client.DefaultBucket()
	} else {
		bucket, err = client.Bucket(name)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening bucket %q: %w", name, err)
	}
	return &FirebaseStore{bucket: bucket, name: bucket.BucketName(), now: time.Now}, nil
}

// Save uploads r to the object key.
func (s *FirebaseStore) Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=86400"

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object: %w", err)
	}
	return &Object{
		Key:         key,
		URL:         publicURL(s.name, key),
		ContentType: contentType,
		Size:        n,
	}, nil
}

// SignedUploadURL returns a V4 signed PUT url for key.
func (s *FirebaseStore) SignedUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(ttl)
	url, err := s.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     expires,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload url: %w", err)
	}
	return &SignedUpload{
		Key:       key,
		URL:       url,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": contentType},
		ExpiresAt: expires,
	}, nil
}

func publicURL(bucket, key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}
