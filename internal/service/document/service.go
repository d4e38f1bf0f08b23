// Package document renders conversation content to files and manages their lifecycle.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentdocs/internal/apperr"
	"agentdocs/internal/auth"
	"agentdocs/internal/metrics"
	"agentdocs/internal/models"
	"agentdocs/internal/render"
	"agentdocs/internal/storage"
	"agentdocs/internal/worker"
)

// DownloadPrefix is where rendered files are served from.
const DownloadPrefix = "/api/documents/download/"

type Store interface {
	GetConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	ListDocuments(ctx context.Context, conversationID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, userID, documentID string) (*models.Document, error)
}

type GenerateRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// File is an opened download.
type File struct {
	io.ReadCloser
	Name        string
	Size        int64
	ContentType string
}

type Service struct {
	store   Store
	blob    storage.Blob
	pool    *worker.Dispatcher
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
	render  func(string, models.DocumentType) ([]byte, error)
}

// NewService wires the document pipeline. A nil pool renders on the calling goroutine.
func NewService(store Store, blob storage.Blob, pool *worker.Dispatcher, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		blob:    blob,
		pool:    pool,
		metrics: collector,
		logger:  logger.With("component", "document"),
		now:     time.Now,
		render:  render.Render,
	}
}

// Generate renders content and attaches the file to the conversation.
func (s *Service) Generate(ctx context.Context, actor auth.AuthContext, conversationID string, req GenerateRequest) (*models.Document, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Invalid("name is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperr.Invalid("content is required")
	}
	typ, ok := models.ParseDocumentType(req.Type)
	if !ok {
		return nil, apperr.Invalid("type must be docx or pdf")
	}
	conv, err := s.store.GetConversation(ctx, actor.UserID, conversationID)
	if err != nil {
		return nil, err
	}

	data, err := s.renderOnPool(ctx, conv.ID, req.Content, typ)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fileName := s.fileName(name, typ)
	if err := s.blob.Put(ctx, fileName, typ.ContentType(), data); err != nil {
		s.metrics.Record(metrics.OpDocumentSave, time.Since(start), 0, true)
		return nil, apperr.Store("save document file", err)
	}
	doc, err := s.store.CreateDocument(ctx, models.Document{
		Name:           name,
		Type:           typ,
		URL:            DownloadPrefix + fileName,
		FileName:       fileName,
		ConversationID: conv.ID,
	})
	if err != nil {
		s.metrics.Record(metrics.OpDocumentSave, time.Since(start), 0, true)
		if rmErr := s.blob.Delete(context.WithoutCancel(ctx), fileName); rmErr != nil {
			s.logger.Warn("remove orphaned document file", "file", fileName, "error", rmErr)
		}
		return nil, err
	}
	s.metrics.Record(metrics.OpDocumentSave, time.Since(start), 0, false)
	s.logger.Info("document generated", "conversation_id", conv.ID, "document_id", doc.ID, "type", typ, "bytes", len(data))
	return doc, nil
}

func (s *Service) renderOnPool(ctx context.Context, key, content string, typ models.DocumentType) ([]byte, error) {
	var data []byte
	job := func(context.Context) error {
		start := time.Now()
		out, err := s.render(content, typ)
		s.metrics.Record(metrics.OpRender, time.Since(start), 0, err != nil)
		data = out
		return err
	}
	var err error
	if s.pool == nil {
		err = job(ctx)
	} else {
		err = s.pool.Submit(ctx, key, job)
	}
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrClosed):
		return nil, apperr.Wrap(apperr.Unavailable, "renderer is busy, try again", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, apperr.Wrap(apperr.Unavailable, "request ended before the document was rendered", err)
	case apperr.KindOf(err) != apperr.Unhandled:
		return nil, err
	}
	return nil, fmt.Errorf("render %s: %w", typ, err)
}

// List returns the conversation's documents newest first.
func (s *Service) List(ctx context.Context, actor auth.AuthContext, conversationID string) ([]models.Document, error) {
	if _, err := s.store.GetConversation(ctx, actor.UserID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, conversationID)
}

// Delete removes the row and then its file. A missing file is not an error.
func (s *Service) Delete(ctx context.Context, actor auth.AuthContext, documentID string) error {
	doc, err := s.store.DeleteDocument(ctx, actor.UserID, documentID)
	if err != nil {
		return err
	}
	s.removeFile(ctx, doc.FileName)
	return nil
}

// Discard drops pending renders for a deleted conversation and removes its files.
func (s *Service) Discard(ctx context.Context, conversationID string, docs []models.Document) {
	if s.pool != nil {
		s.pool.Cancel(conversationID)
	}
	for _, d := range docs {
		s.removeFile(ctx, d.FileName)
	}
}

func (s *Service) removeFile(ctx context.Context, fileName string) {
	if fileName == "" {
		return
	}
	if err := s.blob.Delete(context.WithoutCancel(ctx), fileName); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("remove document file", "file", fileName, "error", err)
	}
}

// Open returns a stored file by name. Anything but a bare file name is NotFound.
func (s *Service) Open(ctx context.Context, fileName string) (*File, error) {
	if fileName == "" || path.Base(fileName) != fileName || strings.ContainsAny(fileName, `/\`) || strings.HasPrefix(fileName, ".") {
		return nil, apperr.NotFoundf("file not found")
	}
	rc, info, err := s.blob.Open(ctx, fileName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperr.NotFoundf("file not found")
		}
		return nil, apperr.Store("open document file", err)
	}
	return &File{ReadCloser: rc, Name: fileName, Size: info.Size, ContentType: contentTypeFor(fileName)}, nil
}

func contentTypeFor(fileName string) string {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if typ, ok := models.ParseDocumentType(ext); ok {
		return typ.ContentType()
	}
	return "application/octet-stream"
}

func (s *Service) fileName(name string, typ models.DocumentType) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return fmt.Sprintf("%s-%d%s.%s", Slug(name), s.now().UnixMilli(), suffix, typ)
}

const maxSlugLen = 50

// Slug makes a file-system safe name: lowercase ASCII letters and digits joined by single dashes.
func Slug(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "document"
	}
	return slug
}
