package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/glsbox/backend/pkg/logger"
)

// LocalStore keeps blobs on the local filesystem. It exists for
// single-machine deployments and development setups without MinIO; the
// object name maps directly onto a path under the root directory.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating storage root %s: %w", root, err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *LocalStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	path := filepath.Join(l.root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		logger.Error("local_store_create_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		logger.Error("local_store_write_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return err
	}

	logger.Info("local_store_upload_success", map[string]interface{}{
		"object_name": objectName,
		"size":        size,
	})
	return nil
}

func (l *LocalStore) Delete(ctx context.Context, objectName string) error {
	path := filepath.Join(l.root, filepath.FromSlash(objectName))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		logger.Error("local_store_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return err
	}
	return nil
}

func (l *LocalStore) PublicURL(objectName string) string {
	return l.baseURL + "/" + objectName
}
