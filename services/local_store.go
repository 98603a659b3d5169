package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/kendall-kelly/autoshop-crm-api/utils"
)

// LocalStore is the ObjectStore used when no bucket is configured. Objects
// live flat in dir and are served by the uploads endpoint.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a filesystem object store rooted at dir
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// flatKey maps "cars/12/abc.png" to "cars_12_abc.png"; the uploads
// endpoint refuses path separators.
func flatKey(key string) string {
	return strings.ReplaceAll(strings.Trim(key, "/"), "/", "_")
}

// UploadFile stores a multipart upload and returns its key
func (s *LocalStore) UploadFile(_ context.Context, prefix string, fileHeader *multipart.FileHeader) (string, error) {
	key := flatKey(objectKey(prefix, fileHeader.Filename))
	if err := utils.SaveUploadedFile(fileHeader, s.dir, key); err != nil {
		return "", err
	}
	return key, nil
}

// PutObject writes body under key
func (s *LocalStore) PutObject(_ context.Context, key, _ string, body []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, flatKey(key)), body, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// GetPresignedURL returns the API path serving the object
func (s *LocalStore) GetPresignedURL(_ context.Context, key string) (string, error) {
	return utils.GetFileURL(flatKey(key)), nil
}

// DeleteFile removes the object if present
func (s *LocalStore) DeleteFile(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, flatKey(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
