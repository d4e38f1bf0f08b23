package storage

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	db, err := OpenDSN("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(db, "sqlite3"); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users','agents','conversations','messages','documents')`).Scan(&n); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 tables, got %d", n)
	}
}

func TestMigrateRejectsUnknownDriver(t *testing.T) {
	if err := Migrate(nil, "oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestDefaultAgents(t *testing.T) {
	agents, err := DefaultAgents()
	if err != nil {
		t.Fatalf("default agents: %v", err)
	}
	want := map[string]bool{"prd-generator": false, "escopo-comercial": false, "escopo-tecnico": false}
	for _, a := range agents {
		if _, ok := want[a.Slug]; ok {
			want[a.Slug] = true
		}
	}
	for slug, seen := range want {
		if !seen {
			t.Fatalf("agent %s missing from catalogue", slug)
		}
	}
}

func TestLocalBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	blob, err := NewLocalBlob(t.TempDir())
	if err != nil {
		t.Fatalf("new blob: %v", err)
	}
	if err := blob.Put(ctx, "report-1.pdf", "application/pdf", []byte("%PDF-1.3")); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, info, err := blob.Open(ctx, "report-1.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.3" || info.Size != int64(len(data)) {
		t.Fatalf("unexpected object %q size=%d", data, info.Size)
	}

	if err := blob.Delete(ctx, "report-1.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := blob.Delete(ctx, "report-1.pdf"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, _, err := blob.Open(ctx, "report-1.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalBlobRejectsTraversal(t *testing.T) {
	blob, err := NewLocalBlob(t.TempDir())
	if err != nil {
		t.Fatalf("new blob: %v", err)
	}
	if err := blob.Put(context.Background(), "../escape.pdf", "application/pdf", []byte("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, _, err := blob.Open(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected not found for traversal, got %v", err)
	}
}
