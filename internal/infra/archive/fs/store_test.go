package fs_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tripcore/internal/archive"
	fsarchive "tripcore/internal/infra/archive/fs"
)

func newStore(t *testing.T) *fsarchive.Store {
	t.Helper()
	store, err := fsarchive.New(filepath.Join(t.TempDir(), "backups"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPutWritesFileAndComputesChecksum(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := `{"id":"trip-1"}`

	info, err := store.Put(ctx, "deleted-trip-trip-1-20240601.json", strings.NewReader(content))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := sha256.Sum256([]byte(content))
	if info.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum %s", info.Checksum)
	}

	rc, got, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != content || got.Size != int64(len(content)) {
		t.Fatalf("round trip mismatch: %q size=%d", data, got.Size)
	}
}

func TestPutRefusesExistingKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "snap.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "snap.json", strings.NewReader("{}")); !errors.Is(err, archive.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestKeySanitization(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "../escape.json", "/abs.json", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestHeadMissingAndDeleteIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if _, err := store.Head(ctx, "absent.json"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "absent.json"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := store.Put(ctx, "gone.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "gone.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "gone.json"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestListWalksNestedKeys(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"deleted-trip-a.json", "quarantine/corrupted-trip-b.json.corrupt"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 snapshots, got %+v", infos)
	}
	infos, err = store.List(ctx, "quarantine/")
	if err != nil {
		t.Fatalf("list prefix: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "quarantine/corrupted-trip-b.json.corrupt" {
		t.Fatalf("prefix filter failed: %+v", infos)
	}
}

func TestNewRequiresRootAndCreatesIt(t *testing.T) {
	if _, err := fsarchive.New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
	root := filepath.Join(t.TempDir(), "a", "b", "backups")
	if _, err := fsarchive.New(root); err != nil {
		t.Fatalf("new: %v", err)
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}
