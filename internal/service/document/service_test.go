package document

import (
	"context"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"agentdocs/internal/apperr"
	"agentdocs/internal/auth"
	"agentdocs/internal/models"
	"agentdocs/internal/service/assistant"
	"agentdocs/internal/storage"
	"agentdocs/internal/worker"
)

var testActor = auth.AuthContext{UserID: "test-user-id-12345"}

type fixture struct {
	store *assistant.Service
	blob  *storage.LocalBlob
	dir   string
	svc   *Service
	conv  *models.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenDSN("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	dir := t.TempDir()
	blob, err := storage.NewLocalBlob(dir)
	if err != nil {
		t.Fatalf("blob: %v", err)
	}
	pool := worker.NewDispatcher(worker.Options{MaxWorkers: 2, QueueSize: 8}, nil)
	t.Cleanup(pool.Close)

	store := assistant.NewService(db)
	agent, err := store.CreateAgent(context.Background(), models.Agent{Slug: "writer", Name: "Writer", SystemPrompt: "Write."})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	conv, err := store.CreateConversation(context.Background(), testActor.UserID, agent.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return &fixture{store: store, blob: blob, dir: dir, svc: NewService(store, blob, pool, nil, nil), conv: conv}
}

func TestGenerateRequestEndingDuringRenderIsNotInternal(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.svc.render = func(string, models.DocumentType) ([]byte, error) {
		<-release
		return []byte("late"), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.svc.Generate(ctx, testActor, f.conv.ID, GenerateRequest{Name: "Lento", Content: "texto", Type: "pdf"})
	if apperr.KindOf(err) != apperr.Unavailable {
		t.Fatalf("expected unavailable, got %v (%v)", apperr.KindOf(err), err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline in chain, got %v", err)
	}
	docs, err := f.store.ListDocuments(context.Background(), f.conv.ID)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected no documents, got %d (%v)", len(docs), err)
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected no files, got %d (%v)", len(entries), err)
	}
}

var fileNameRe = regexp.MustCompile(`^relat-rio-final-2024-\d{13}[0-9a-f]{4}\.(docx|pdf)$`)

func TestGenerateAndDownloadRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, typ := range []string{"docx", "pdf"} {
		doc, err := f.svc.Generate(ctx, testActor, f.conv.ID, GenerateRequest{
			Name:    "Relatório Final 2024",
			Content: "# Título\n\nTexto com **negrito**.\n- item",
			Type:    typ,
		})
		if err != nil {
			t.Fatalf("generate %s: %v", typ, err)
		}
		if !fileNameRe.MatchString(doc.FileName) || !strings.HasSuffix(doc.FileName, "."+typ) {
			t.Fatalf("unexpected file name %q", doc.FileName)
		}
		if doc.URL != DownloadPrefix+doc.FileName {
			t.Fatalf("url = %q", doc.URL)
		}
		if doc.Name != "Relatório Final 2024" || string(doc.Type) != typ {
			t.Fatalf("unexpected document %+v", doc)
		}

		file, err := f.svc.Open(ctx, strings.TrimPrefix(doc.URL, DownloadPrefix))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		body, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(body) == 0 || int64(len(body)) != file.Size {
			t.Fatalf("size mismatch: read %d, reported %d", len(body), file.Size)
		}
		if file.ContentType != models.DocumentType(typ).ContentType() {
			t.Fatalf("content type = %q", file.ContentType)
		}
	}

	docs, err := f.svc.List(ctx, testActor, f.conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		conv string
		req  GenerateRequest
		want error
	}{
		{"missing name", f.conv.ID, GenerateRequest{Name: " ", Content: "x", Type: "pdf"}, apperr.ErrInvalidArgument},
		{"missing content", f.conv.ID, GenerateRequest{Name: "a", Content: "", Type: "pdf"}, apperr.ErrInvalidArgument},
		{"bad type", f.conv.ID, GenerateRequest{Name: "a", Content: "x", Type: "txt"}, apperr.ErrInvalidArgument},
		{"unknown conversation", "nope", GenerateRequest{Name: "a", Content: "x", Type: "pdf"}, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Generate(context.Background(), testActor, tc.conv, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	docs, _ := f.store.ListDocuments(context.Background(), f.conv.ID)
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Generate(ctx, testActor, f.conv.ID, GenerateRequest{Name: "notas", Content: "texto", Type: "docx"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := f.svc.Delete(ctx, testActor, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Open(ctx, doc.FileName); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected file gone, got %v", err)
	}
	if err := f.svc.Delete(ctx, testActor, doc.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Generate(ctx, testActor, f.conv.ID, GenerateRequest{Name: "notas", Content: "texto", Type: "pdf"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := f.blob.Delete(ctx, doc.FileName); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if err := f.svc.Delete(ctx, testActor, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestOpenRejectsPathTricks(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"", "../secret.pdf", "a/b.pdf", `..\x.pdf`, ".hidden", "missing.pdf"} {
		if _, err := f.svc.Open(context.Background(), name); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Open(%q): expected NotFound, got %v", name, err)
		}
	}
}

type failingStore struct {
	Store
}

func (failingStore) CreateDocument(context.Context, models.Document) (*models.Document, error) {
	return nil, apperr.Store("create document", errors.New("disk full"))
}

func TestFailedInsertRemovesFile(t *testing.T) {
	f := newFixture(t)
	svc := NewService(failingStore{Store: f.store}, f.blob, nil, nil, nil)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	_, err := svc.Generate(context.Background(), testActor, f.conv.ID, GenerateRequest{Name: "x", Content: "y", Type: "pdf"})
	if apperr.KindOf(err) != apperr.StoreFailure {
		t.Fatalf("expected store failure, got %v", err)
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected orphan file removed, found %v", entries)
	}
}

func TestSlug(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Relatório Final 2024", "relat-rio-final-2024"},
		{"  --Hello__World--  ", "hello-world"},
		{"!!!", "document"},
		{strings.Repeat("ab ", 30), strings.Repeat("ab-", 17)[:50]},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
