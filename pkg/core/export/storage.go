// Package export archives Monte Carlo reports on the local filesystem or S3.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var ErrNotFound = errors.New("report not found")

// Storage stores report blobs under slash-separated keys.
type Storage interface {
	// Put stores data under key and returns the storage path.
	Put(ctx context.Context, key, contentType string, data io.Reader) (string, error)
	// Get opens a stored report by storage path.
	Get(ctx context.Context, storagePath string) (io.ReadCloser, error)
}

type StorageType string

const (
	StorageTypeNone  StorageType = "none"
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

type Config struct {
	Type         StorageType
	LocalPath    string
	S3Bucket     string
	S3Region     string
	S3Prefix     string
	AWSAccessKey string
	AWSSecretKey string
}

// New builds the configured storage. Type none (or empty) returns nil.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", StorageTypeNone:
		return nil, nil
	case StorageTypeLocal:
		p := cfg.LocalPath
		if p == "" {
			p = "reports"
		}
		s, err := NewLocalStorage(p)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeS3:
		s, err := NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown report storage type %q", cfg.Type)
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, `\`, "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}
