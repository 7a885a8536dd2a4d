package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/glsbox/backend/pkg/logger"
	"github.com/google/uuid"
)

// FileData identifies one stored blob: the URL handed to clients and the
// opaque key used for deletion.
type FileData struct {
	URL string
	Key string
}

// FileTransaction stages blob mutations so they can follow the outcome of a
// relational transaction. Uploads happen immediately; removals are deferred
// until Commit. Rollback undoes the uploads instead. The blob store has no
// native transactions, so either terminal call tolerates and logs individual
// deletion failures; an orphaned blob is a cleanup concern, not a
// correctness one.
//
// A transaction belongs to a single request and must not be shared between
// goroutines.
type FileTransaction struct {
	store ObjectStore
	done  bool

	uploaded []string
	removed  []string
}

func NewFileTransaction(store ObjectStore) *FileTransaction {
	return &FileTransaction{store: store}
}

// WriteFile uploads data under folder/<uuid>/<name> and registers the key
// for rollback.
func (t *FileTransaction) WriteFile(ctx context.Context, data []byte, folder, name, contentType string) (FileData, error) {
	key := path.Join(folder, uuid.New().String(), name)

	if err := t.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return FileData{}, fmt.Errorf("failed uploading %s: %w", key, err)
	}

	t.uploaded = append(t.uploaded, key)
	return FileData{URL: t.store.PublicURL(key), Key: key}, nil
}

// RemoveFile defers deletion of an existing blob until Commit.
func (t *FileTransaction) RemoveFile(key string) {
	t.removed = append(t.removed, key)
}

// Commit performs the deferred deletions. Idempotent.
func (t *FileTransaction) Commit(ctx context.Context) {
	if t.done {
		return
	}
	t.done = true

	for _, key := range t.removed {
		if err := t.store.Delete(ctx, key); err != nil {
			logger.Error("file_transaction_commit_delete_failed", err, map[string]interface{}{
				"key": key,
			})
		}
	}
}

// Rollback deletes everything uploaded during this transaction. Idempotent.
func (t *FileTransaction) Rollback(ctx context.Context) {
	if t.done {
		return
	}
	t.done = true

	for _, key := range t.uploaded {
		if err := t.store.Delete(ctx, key); err != nil {
			logger.Error("file_transaction_rollback_delete_failed", err, map[string]interface{}{
				"key": key,
			})
		}
	}
}
