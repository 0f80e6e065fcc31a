package memory_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"tripcore/internal/archive"
	"tripcore/internal/infra/archive/memory"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	content := `{"id":"trip-1","schemaVersion":7}`

	info, err := store.Put(ctx, "deleted-trip-trip-1-20240601.json", strings.NewReader(content))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	sum := sha256.Sum256([]byte(content))
	if info.Checksum != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum mismatch: %s", info.Checksum)
	}
	if info.Size != int64(len(content)) {
		t.Fatalf("size %d, want %d", info.Size, len(content))
	}

	rc, got, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != content {
		t.Fatalf("content mismatch: %s", data)
	}
	if got.Checksum != info.Checksum {
		t.Fatalf("info mismatch on get")
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("a")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	_, err := store.Put(ctx, "k", strings.NewReader("b"))
	if !errors.Is(err, archive.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestHeadAndDeleteMissing(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.Head(ctx, "absent"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "absent"); err != nil {
		t.Fatalf("delete of missing key must be a no-op, got %v", err)
	}
}

func TestListFiltersByPrefixOrdered(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, key := range []string{"deleted-trip-b.json", "deleted-cost-a.json", "deleted-trip-a.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "deleted-trip-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "deleted-trip-a.json" || infos[1].Key != "deleted-trip-b.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}
