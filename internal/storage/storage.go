// Package storage keeps the photos drivers attach to missions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPresignUnsupported = errors.New("signed upload urls are not supported by this store")
	ErrInvalidKey         = errors.New("invalid object key")
)

// Object is a stored file. Key is the reference saved in mission metadata.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// SignedUpload lets a client PUT a file straight to the bucket.
type SignedUpload struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Store is implemented by LocalStore and FirebaseStore.
type Store interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error)
	SignedUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error)
}

// NewKey returns a unique object key under prefix, bucketed by day.
func NewKey(prefix, ext string, now time.Time) string {
	return path.Join(prefix, now.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

func cleanKey(key string) (string, error) {
	key = path.Clean(strings.TrimPrefix(key, "/"))
	if key == "." || key == ".." || strings.HasPrefix(key, "../") {
		return "", ErrInvalidKey
	}
	return key, nil
}

// LocalStore writes objects below a directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed. baseURL is where the directory is served.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes r to the object key.
func (s *LocalStore) Save(ctx context.Context, key, contentType string, r io.Reader) (*Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object dir: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	return &Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: contentType,
		Size:        n,
	}, nil
}

// SignedUploadURL is not available on local disk.
func (s *LocalStore) SignedUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (*SignedUpload, error) {
	return nil, ErrPresignUnsupported
}
