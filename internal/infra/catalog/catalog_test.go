package catalog_test

import (
	"path/filepath"
	"testing"

	"tripcore/internal/infra/catalog"
)

func TestOpenFromEnvDefaultsToSQLiteUnderDataDir(t *testing.T) {
	dataDir := t.TempDir()
	env := map[string]string{"TRIPCORE_DATA_DIR": dataDir}
	store, err := catalog.OpenFromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	sqlite, ok := store.(*catalog.SQLite)
	if !ok {
		t.Fatalf("expected sqlite driver, got %T", store)
	}
	want := dataDir + "/backups/catalog.db"
	if sqlite.Path() != want {
		t.Fatalf("path %q, want %q", sqlite.Path(), want)
	}
}

func TestOpenFromEnvMemory(t *testing.T) {
	env := map[string]string{"TRIPCORE_CATALOG_DRIVER": "memory"}
	store, err := catalog.OpenFromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*catalog.Memory); !ok {
		t.Fatalf("expected memory driver, got %T", store)
	}
}

func TestOpenFromEnvExplicitSQLitePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.db")
	env := map[string]string{
		"TRIPCORE_CATALOG_DRIVER":      "sqlite",
		"TRIPCORE_CATALOG_SQLITE_PATH": path,
	}
	store, err := catalog.OpenFromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.(*catalog.SQLite).Path() != path {
		t.Fatalf("explicit path ignored")
	}
}

func TestOpenFromEnvUnknownDriver(t *testing.T) {
	env := map[string]string{"TRIPCORE_CATALOG_DRIVER": "etcd"}
	if _, err := catalog.OpenFromEnv(func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
