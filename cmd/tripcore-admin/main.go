// Command tripcore-admin is the operator CLI for a tripcore data directory:
// list and inspect trips, browse the backup catalog, verify snapshot
// checksums, and restore backups.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"tripcore/internal/core"
	"tripcore/internal/infra/catalog"
	"tripcore/internal/migrate"
	"tripcore/pkg/domain"
)

const (
	exitOK          = 0
	exitCheckFailed = 1
	exitUsage       = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tripcore-admin <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  list                          list trips in the data directory")
	fmt.Fprintln(w, "  inspect -trip <id>            load one trip (migrating it) and check its shape")
	fmt.Fprintln(w, "  backups [-original <id>]      list backup catalog records")
	fmt.Fprintln(w, "  verify -backup <id>           re-hash an archived snapshot against the catalog")
	fmt.Fprintln(w, "  restore -backup <id> [-overwrite]  restore a trip or cost backup")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "environment: TRIPCORE_DATA_DIR, TRIPCORE_STORAGE_DRIVER, TRIPCORE_CATALOG_DRIVER")
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	ctx := context.Background()
	adm, err := openAdmin(ctx, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: %v\n", err)
		return exitUsage
	}
	defer adm.close()

	switch args[0] {
	case "list":
		return adm.list(ctx, stdout, stderr)
	case "inspect":
		return adm.inspect(ctx, args[1:], stdout, stderr)
	case "backups":
		return adm.backups(ctx, args[1:], stdout, stderr)
	case "verify":
		return adm.verify(ctx, args[1:], stdout, stderr)
	case "restore":
		return adm.restore(ctx, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "tripcore-admin: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

type admin struct {
	svc     *core.Service
	catalog catalog.Store
	store   domain.DocumentStore
}

func openAdmin(ctx context.Context, getenv func(string) string) (*admin, error) {
	cat, err := catalog.OpenFromEnv(getenv)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	arch, err := core.OpenArchive(ctx, getenv)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	engine := migrate.New()
	store, err := core.OpenDocumentStore(getenv, engine, cat)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := core.NewService(store,
		core.WithMigrator(engine),
		core.WithCatalog(cat),
		core.WithArchive(arch),
	)
	return &admin{svc: svc, catalog: cat, store: store}, nil
}

func (a *admin) close() {
	_ = a.store.Close()
	_ = a.catalog.Close()
}

func (a *admin) list(ctx context.Context, stdout, stderr io.Writer) int {
	summaries, err := a.svc.ListTrips(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: list: %v\n", err)
		return exitUsage
	}
	for _, s := range summaries {
		fmt.Fprintf(stdout, "%s\tv%d\t%s\n", s.ID, s.SchemaVersion, s.Title)
	}
	fmt.Fprintf(stdout, "%d trip(s)\n", len(summaries))
	return exitOK
}

func (a *admin) inspect(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tripID := fs.String("trip", "", "trip id")
	if err := fs.Parse(args); err != nil || *tripID == "" {
		fmt.Fprintln(stderr, "tripcore-admin: inspect requires -trip <id>")
		return exitUsage
	}
	doc, err := a.svc.LoadTrip(ctx, *tripID)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: inspect: %v\n", err)
		return exitUsage
	}
	locations, routes := 0, 0
	if doc.Itinerary != nil {
		locations = len(doc.Itinerary.Locations)
		routes = len(doc.Itinerary.Routes)
	}
	expenses := 0
	if doc.Finance != nil {
		expenses = len(doc.Finance.Expenses)
	}
	fmt.Fprintf(stdout, "trip %s %q schema v%d\n", doc.ID, doc.Title, doc.SchemaVersion)
	fmt.Fprintf(stdout, "  locations=%d routes=%d accommodations=%d expenses=%d\n",
		locations, routes, len(doc.Accommodations), expenses)

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: inspect: %v\n", err)
		return exitUsage
	}
	issues, err := domain.ValidateDocumentJSON(data)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: inspect: %v\n", err)
		return exitUsage
	}
	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(stdout, "  schema: %s\n", issue)
		}
		return exitCheckFailed
	}
	fmt.Fprintln(stdout, "  schema: ok")
	return exitOK
}

func (a *admin) backups(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("backups", flag.ContinueOnError)
	fs.SetOutput(stderr)
	original := fs.String("original", "", "filter by original trip id")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	recs, err := a.svc.ListBackups(ctx, catalog.Filter{OriginalID: *original})
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: backups: %v\n", err)
		return exitUsage
	}
	for _, r := range recs {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.OriginalID, r.DeletedAt.Format("2006-01-02T15:04:05Z"), r.ArchiveKey)
	}
	fmt.Fprintf(stdout, "%d backup(s)\n", len(recs))
	return exitOK
}

func (a *admin) verify(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	backupID := fs.String("backup", "", "backup record id")
	if err := fs.Parse(args); err != nil || *backupID == "" {
		fmt.Fprintln(stderr, "tripcore-admin: verify requires -backup <id>")
		return exitUsage
	}
	rec, ok, err := a.svc.VerifyBackup(ctx, *backupID)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: verify: %v\n", err)
		return exitUsage
	}
	if !ok {
		fmt.Fprintf(stdout, "backup %s FAILED verification (%s)\n", rec.ID, rec.ArchiveKey)
		return exitCheckFailed
	}
	fmt.Fprintf(stdout, "backup %s ok (%s, %d bytes)\n", rec.ID, rec.ArchiveKey, rec.SizeBytes)
	return exitOK
}

func (a *admin) restore(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	backupID := fs.String("backup", "", "backup record id")
	overwrite := fs.Bool("overwrite", false, "replace a live trip")
	if err := fs.Parse(args); err != nil || *backupID == "" {
		fmt.Fprintln(stderr, "tripcore-admin: restore requires -backup <id>")
		return exitUsage
	}
	rec, err := a.catalog.Get(ctx, *backupID)
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: restore: %v\n", err)
		return exitUsage
	}
	var doc *domain.TripDocument
	switch rec.Kind {
	case domain.BackupTrip:
		doc, err = a.svc.RestoreTrip(ctx, rec.ID, *overwrite)
	case domain.BackupCost:
		doc, err = a.svc.RestoreCostData(ctx, rec.ID)
	default:
		fmt.Fprintf(stderr, "tripcore-admin: restore: backup %s holds %s data\n", rec.ID, rec.Kind)
		return exitCheckFailed
	}
	if err != nil {
		fmt.Fprintf(stderr, "tripcore-admin: restore: %v\n", err)
		return exitCheckFailed
	}
	fmt.Fprintf(stdout, "restored trip %s from backup %s\n", doc.ID, rec.ID)
	return exitOK
}
