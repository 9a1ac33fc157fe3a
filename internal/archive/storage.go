// Package archive keeps a durable copy of every rendered full report, on the
// local filesystem or in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"leakdiag/internal/config"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("archived report not found")

// Storage stores and retrieves report blobs by key.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ReportKey is the archive key of a submission's HTML report:
// reports/<yyyy>/<mm>/<id>.html, dated by creation time in UTC.
func ReportKey(id string, createdAt time.Time) string {
	t := createdAt.UTC()
	return path.Join("reports", t.Format("2006"), t.Format("01"), id+".html")
}

// New selects a backend from config: S3 when a bucket is set, the local
// filesystem when a directory is set, otherwise nil (archiving disabled).
func New(ctx context.Context, cfg config.ArchiveConfig) (Storage, error) {
	switch {
	case cfg.Bucket != "":
		s3s, err := NewS3Storage(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s3s, nil
	case cfg.Dir != "":
		return NewLocalStorage(cfg.Dir), nil
	default:
		return nil, nil
	}
}

// LocalStorage writes blobs under a base directory.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at baseDir.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(s.BaseDir, filepath.FromSlash(clean)), nil
}

// Put writes data at key, creating directories as needed.
func (s *LocalStorage) Put(ctx context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(p, data, 0o644)
}

// Get reads the blob stored at key.
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}
