package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/model"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/pkg/timeutil"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/internal/richtext"
)

type DocumentService struct {
	docs    DocumentRepository
	refs    ReferenceIndex
	entries EntryRepository
	content *ContentFactory
}

func NewDocumentService(docs DocumentRepository, refs ReferenceIndex, entries EntryRepository, content *ContentFactory) *DocumentService {
	return &DocumentService{docs: docs, refs: refs, entries: entries, content: content}
}

type DocumentCreateInput struct {
	Title   string
	Content string
	Locale  string
}

type DocumentUpdateInput struct {
	Title   string
	Content string
	Locale  *string
}

// ChunkView is the API projection of one chunk.
type ChunkView struct {
	Type     string `json:"type"`
	Source   string `json:"source"`
	EntryID  int64  `json:"entry_id,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
	HTML     string `json:"html,omitempty"`
}

type RenderResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Locale     string `json:"locale"`
	HTML       string `json:"html"`
	Degraded   bool   `json:"degraded"`
}

func (s *DocumentService) Create(ctx context.Context, userID string, input DocumentCreateInput) (*model.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:      newID(),
		UserID:  userID,
		Title:   title,
		Content: input.Content,
		Locale:  strings.TrimSpace(input.Locale),
		State:   repo.DocumentStateNormal,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.SyncReferences(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Update(ctx context.Context, userID, docID string, input DocumentUpdateInput) (*model.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	doc.Title = title
	doc.Content = input.Content
	if input.Locale != nil {
		doc.Locale = strings.TrimSpace(*input.Locale)
	}
	doc.Mtime = timeutil.NowUnix()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.SyncReferences(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveContent replaces only the content of a document. It is the owner-save
// path used after duplication and never duplicates anything itself.
func (s *DocumentService) SaveContent(ctx context.Context, userID, docID, content string) error {
	if err := s.docs.SaveContent(ctx, userID, docID, content, timeutil.NowUnix()); err != nil {
		return err
	}
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	return s.SyncReferences(ctx, doc)
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	return s.docs.List(ctx, userID, limit, offset)
}

// Delete trashes the document together with the entries it owns.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	now := timeutil.NowUnix()
	if err := s.docs.Delete(ctx, userID, docID, now); err != nil {
		return err
	}
	if err := s.refs.DeleteByDocument(ctx, userID, docID); err != nil {
		return err
	}
	owned, err := s.entries.ListByOwner(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.entries.DeleteByOwner(ctx, userID, docID, now); err != nil {
		return err
	}
	for _, entry := range owned {
		s.content.Invalidate(userID, entry.ID)
	}
	return nil
}

// SyncReferences rewrites the reference index from the document content. It
// only parses; nothing is resolved.
func (s *DocumentService) SyncReferences(ctx context.Context, doc *model.Document) error {
	ids := s.content.FieldData(doc).ReferenceIDs()
	if err := s.refs.ReplaceByDocument(ctx, doc.UserID, doc.ID, ids, timeutil.NowUnix()); err != nil {
		return fmt.Errorf("sync references of %s: %w", doc.ID, err)
	}
	return nil
}

func (s *DocumentService) Content(ctx context.Context, userID, docID string) (*model.Document, *richtext.FieldData, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, nil, err
	}
	return doc, s.content.FieldData(doc), nil
}

func (s *DocumentService) Render(ctx context.Context, userID, docID string) (*RenderResult, error) {
	doc, fd, err := s.Content(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	html := fd.Render(ctx)
	if err := fd.ResolveErr(); err != nil {
		logutil.GetLogger(ctx).Warn("document rendered without entries",
			zap.String("doc_id", docID),
			zap.Error(err),
		)
	}
	return &RenderResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Locale:     fd.Site().Locale,
		HTML:       html,
		Degraded:   fd.ResolveErr() != nil,
	}, nil
}

func (s *DocumentService) Chunks(ctx context.Context, userID, docID string, includeUnresolved bool) ([]ChunkView, error) {
	_, fd, err := s.Content(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if includeUnresolved {
		// resolve first so the unfiltered view still carries entities
		fd.Count(ctx)
	}
	chunks := fd.Chunks(ctx, includeUnresolved)
	views := make([]ChunkView, 0, len(chunks))
	for _, c := range chunks {
		switch v := c.(type) {
		case *richtext.Markup:
			views = append(views, ChunkView{Type: "markup", Source: v.Text()})
		case *richtext.Reference:
			view := ChunkView{Type: "reference", Source: v.Source(), EntryID: v.ID(), Resolved: v.Resolved()}
			if e := v.Entity(); e != nil {
				view.HTML = e.RenderFragment()
			}
			views = append(views, view)
		}
	}
	return views, nil
}

func (s *DocumentService) Count(ctx context.Context, userID, docID string) (int, error) {
	_, fd, err := s.Content(ctx, userID, docID)
	if err != nil {
		return 0, err
	}
	return fd.Count(ctx), nil
}

// ListActive pages through all live documents, for background jobs.
func (s *DocumentService) ListActive(ctx context.Context, limit, offset uint) ([]model.Document, error) {
	return s.docs.ListActive(ctx, limit, offset)
}

func (s *DocumentService) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.docs.ListUserIDs(ctx)
}

var _ richtext.OwnerSaver = (*DocumentService)(nil)
