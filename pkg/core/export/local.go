package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage writes reports below a base directory.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	storagePath, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storagePath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return storagePath, nil
}

func (s *LocalStorage) Get(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	clean, err := cleanKey(storagePath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(clean)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}
