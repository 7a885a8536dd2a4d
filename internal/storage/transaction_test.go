package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeStore struct {
	objects    map[string][]byte
	failUpload bool
	failDelete bool
	deleted    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	if f.failUpload {
		return errors.New("upload failed")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[objectName] = data
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, objectName string) error {
	f.deleted = append(f.deleted, objectName)
	if f.failDelete {
		return errors.New("delete failed")
	}
	delete(f.objects, objectName)
	return nil
}

func (f *fakeStore) PublicURL(objectName string) string {
	return "http://store.test/" + objectName
}

func TestFileTransactionCommit(t *testing.T) {
	store := newFakeStore()
	store.objects["glsbox-previews/old/preview.png"] = []byte("old")

	tx := NewFileTransaction(store)

	fdata, err := tx.WriteFile(context.Background(), []byte("new"), "glsbox-previews", "preview.png", "image/png")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !strings.HasPrefix(fdata.Key, "glsbox-previews/") || !strings.HasSuffix(fdata.Key, "/preview.png") {
		t.Fatalf("unexpected key %q", fdata.Key)
	}
	if fdata.URL != store.PublicURL(fdata.Key) {
		t.Fatalf("expected URL for key, got %q", fdata.URL)
	}

	tx.RemoveFile("glsbox-previews/old/preview.png")
	if len(store.deleted) != 0 {
		t.Fatalf("RemoveFile must defer deletion, got %v", store.deleted)
	}

	tx.Commit(context.Background())

	if _, ok := store.objects["glsbox-previews/old/preview.png"]; ok {
		t.Fatal("expected committed removal to delete the old blob")
	}
	if _, ok := store.objects[fdata.Key]; !ok {
		t.Fatal("expected uploaded blob to survive commit")
	}
}

func TestFileTransactionRollback(t *testing.T) {
	store := newFakeStore()
	store.objects["glsbox-textures/keep/tex.png"] = []byte("keep")

	tx := NewFileTransaction(store)

	first, err := tx.WriteFile(context.Background(), []byte("a"), "glsbox-textures", "a.png", "image/png")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	second, err := tx.WriteFile(context.Background(), []byte("b"), "glsbox-textures", "b.png", "image/png")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tx.RemoveFile("glsbox-textures/keep/tex.png")
	tx.Rollback(context.Background())

	if _, ok := store.objects[first.Key]; ok {
		t.Fatal("expected rollback to delete the first upload")
	}
	if _, ok := store.objects[second.Key]; ok {
		t.Fatal("expected rollback to delete the second upload")
	}
	if _, ok := store.objects["glsbox-textures/keep/tex.png"]; !ok {
		t.Fatal("rollback must not perform deferred removals")
	}
}

func TestFileTransactionTerminalCallsAreIdempotent(t *testing.T) {
	store := newFakeStore()
	tx := NewFileTransaction(store)

	if _, err := tx.WriteFile(context.Background(), []byte("x"), "glsbox-previews", "x.png", "image/png"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tx.Rollback(context.Background())
	deletions := len(store.deleted)

	tx.Rollback(context.Background())
	tx.Commit(context.Background())

	if len(store.deleted) != deletions {
		t.Fatalf("expected no further store calls after the first terminal call, got %d -> %d", deletions, len(store.deleted))
	}
}

func TestFileTransactionCommitToleratesDeleteFailures(t *testing.T) {
	store := newFakeStore()
	store.failDelete = true

	tx := NewFileTransaction(store)
	tx.RemoveFile("glsbox-previews/a")
	tx.RemoveFile("glsbox-previews/b")

	tx.Commit(context.Background())

	if len(store.deleted) != 2 {
		t.Fatalf("expected both deletions attempted despite failures, got %d", len(store.deleted))
	}
}

func TestFileTransactionWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.failUpload = true

	tx := NewFileTransaction(store)
	if _, err := tx.WriteFile(context.Background(), []byte("x"), "glsbox-previews", "x.png", "image/png"); err == nil {
		t.Fatal("expected error from failed upload")
	}

	tx.Rollback(context.Background())
	if len(store.deleted) != 0 {
		t.Fatal("failed upload must not be tracked for rollback")
	}
}
