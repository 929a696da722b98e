package otel_test

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	adapter "github.com/neomorfeo/boxsync/internal/adapter/otel"
)

func TestDSN_AddsPragmas(t *testing.T) {
	dsn := adapter.DSN("/var/lib/boxsync/data.db")

	if !strings.HasPrefix(dsn, "file:/var/lib/boxsync/data.db?") {
		t.Fatalf("dsn = %q, want file: prefix with query", dsn)
	}
	q, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	got := strings.Join(q["_pragma"], ",")
	want := "journal_mode(WAL),foreign_keys(1),busy_timeout(5000)"
	if got != want {
		t.Errorf("pragmas = %q, want %q", got, want)
	}
}

func TestDSN_KeepsExistingQuery(t *testing.T) {
	dsn := adapter.DSN("file:data.db?mode=rwc")
	if !strings.HasPrefix(dsn, "file:data.db?mode=rwc&_pragma=") {
		t.Errorf("dsn = %q", dsn)
	}
}

func TestOpenDB_SingleConnection(t *testing.T) {
	db, err := adapter.OpenDB(filepath.Join(t.TempDir(), "boxsync.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
