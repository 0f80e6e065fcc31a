package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"tripcore/internal/archive"
)

func TestMockPutGetHeadDeleteCycle(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	content := `{"id":"trip-1","schemaVersion":7}`

	info, err := store.Put(ctx, "deleted-trip-trip-1.json", strings.NewReader(content))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(content)) || info.Checksum == "" {
		t.Fatalf("put info: %+v", info)
	}

	rc, _, err := store.Get(ctx, "deleted-trip-trip-1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != content {
		t.Fatalf("content mismatch: %q", data)
	}

	if _, err := store.Head(ctx, "deleted-trip-trip-1.json"); err != nil {
		t.Fatalf("head: %v", err)
	}
	if err := store.Delete(ctx, "deleted-trip-trip-1.json"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Head(ctx, "deleted-trip-trip-1.json"); !errors.Is(err, archive.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMockPutIsCreateOnly(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Put(ctx, "snap.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "snap.json", strings.NewReader("{}")); !errors.Is(err, archive.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestMockListByPrefix(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"deleted-cost-x.json", "deleted-trip-a.json", "deleted-trip-b.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("{}")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "deleted-trip-")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "deleted-trip-a.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

func TestDriverName(t *testing.T) {
	if d := NewMockForTests().Driver(); d != "s3" {
		t.Fatalf("driver %q", d)
	}
}
