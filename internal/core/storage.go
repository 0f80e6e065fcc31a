package core

import (
	"context"
	"fmt"
	"path/filepath"

	"tripcore/internal/archive"
	archivefs "tripcore/internal/infra/archive/fs"
	archivemem "tripcore/internal/infra/archive/memory"
	archives3 "tripcore/internal/infra/archive/s3"
	"tripcore/internal/infra/persistence/fsjson"
	"tripcore/internal/infra/persistence/memory"
	"tripcore/pkg/domain"
)

// StorageDriver identifies a concrete document store implementation.
type StorageDriver string

const (
	StorageFS     StorageDriver = "fs"     // one JSON file per trip (default)
	StorageMemory StorageDriver = "memory" // in-memory only (tests / ephemeral)
)

const defaultDataDir = "./data"

// OpenDocumentStore selects a document store using environment variables,
// read through getenv (pass os.Getenv in production):
//
//	TRIPCORE_STORAGE_DRIVER: fs|memory (default fs)
//	TRIPCORE_DATA_DIR: data directory for the fs driver (default ./data)
func OpenDocumentStore(getenv func(string) string, migrator domain.Migrator, hook fsjson.BackupHook) (domain.DocumentStore, error) {
	driver := getenv("TRIPCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageFS)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.New(migrator, memory.WithBackupHook(hook))
	case StorageFS:
		dir := getenv("TRIPCORE_DATA_DIR")
		if dir == "" {
			dir = defaultDataDir
		}
		return fsjson.New(dir, migrator, fsjson.WithBackupHook(hook))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenArchive selects a snapshot archive using environment variables:
//
//	TRIPCORE_ARCHIVE_DRIVER: fs|memory|s3 (default fs)
//	TRIPCORE_DATA_DIR: the fs driver roots at <data>/backups
//	TRIPCORE_ARCHIVE_S3_*: bucket, region, endpoint for the s3 driver
func OpenArchive(ctx context.Context, getenv func(string) string) (archive.Store, error) {
	driver := getenv("TRIPCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = "fs"
	}
	switch driver {
	case "memory":
		return archivemem.New(), nil
	case "fs":
		dir := getenv("TRIPCORE_DATA_DIR")
		if dir == "" {
			dir = defaultDataDir
		}
		return archivefs.New(filepath.Join(dir, "backups"))
	case "s3":
		return archives3.OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
