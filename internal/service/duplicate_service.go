package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/fragment"
	"github.com/xxxsen/richnote/internal/model"
	"github.com/xxxsen/richnote/internal/pkg/timeutil"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/internal/richtext"
)

type DuplicateOptions struct {
	// Deep copies the entries owned by the source document. Entries owned by
	// anything else stay shared between both documents.
	Deep  bool
	Title string
}

type DuplicateService struct {
	docs    DocumentRepository
	entries *EntryService
	content *ContentFactory
	saver   richtext.OwnerSaver
}

func NewDuplicateService(docs DocumentRepository, entries *EntryService, content *ContentFactory, saver richtext.OwnerSaver) *DuplicateService {
	return &DuplicateService{docs: docs, entries: entries, content: content, saver: saver}
}

func (s *DuplicateService) Duplicate(ctx context.Context, userID, docID string, opts DuplicateOptions) (*model.Document, error) {
	orig, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = orig.Title + " (copy)"
	}
	dup := &model.Document{
		ID:      newID(),
		UserID:  userID,
		Title:   title,
		Content: orig.Content,
		Locale:  orig.Locale,
		State:   repo.DocumentStateNormal,
		Ctime:   now,
		Mtime:   now,
	}
	if err := s.docs.Create(ctx, dup); err != nil {
		return nil, err
	}
	if err := s.fill(ctx, orig, dup, opts.Deep); err != nil {
		s.rollback(ctx, userID, dup.ID)
		return nil, err
	}
	logutil.GetLogger(ctx).Info("document duplicated",
		zap.String("doc_id", docID),
		zap.String("dup_id", dup.ID),
		zap.Bool("deep", opts.Deep),
	)
	return dup, nil
}

// fill copies owned entries for dup and saves its remapped content.
func (s *DuplicateService) fill(ctx context.Context, orig, dup *model.Document, deep bool) error {
	originalIDs, duplicateIDs, err := s.forkEntries(ctx, orig, dup.ID, deep)
	if err != nil {
		return err
	}
	res := richtext.RemapDetailed(originalIDs, duplicateIDs, dup.Content, s.content.Syntax())
	if !res.Consistent(originalIDs, duplicateIDs) {
		logutil.GetLogger(ctx).Warn("duplicate reference count mismatch, rewrote what lined up",
			zap.String("doc_id", orig.ID),
			zap.String("dup_id", dup.ID),
			zap.Int("original", len(originalIDs)),
			zap.Int("duplicate", len(duplicateIDs)),
			zap.Int("tags", res.Tags),
			zap.Int("rewritten", res.Rewritten),
		)
	}
	if err := s.saver.SaveContent(ctx, dup.UserID, dup.ID, res.Content); err != nil {
		return err
	}
	dup.Content = res.Content
	return nil
}

// rollback removes a half built duplicate together with the entries it owns.
// It runs detached from ctx so a cancelled request still cleans up.
func (s *DuplicateService) rollback(ctx context.Context, userID, dupID string) {
	cctx := context.WithoutCancel(ctx)
	err := multierr.Append(
		s.entries.discardOwner(cctx, userID, dupID),
		s.docs.Delete(cctx, userID, dupID, timeutil.NowUnix()),
	)
	if err != nil {
		logutil.GetLogger(ctx).Error("rollback duplicate failed",
			zap.String("dup_id", dupID),
			zap.Error(err),
		)
	}
}

// forkEntries walks the references of the original in document order and
// returns the original IDs next to the IDs the duplicate should embed. Owned
// entries are copied once each when deep is set; a repeated reference reuses
// the same copy. Everything else maps to itself.
func (s *DuplicateService) forkEntries(ctx context.Context, orig *model.Document, newOwnerID string, deep bool) ([]int64, []int64, error) {
	fd := s.content.FieldData(orig)
	fd.Count(ctx)
	refs := fd.Chunks(ctx, true)
	originalIDs := richtext.ReferenceIDs(refs)
	if !deep {
		return originalIDs, originalIDs, nil
	}
	copies := make(map[int64]int64)
	duplicateIDs := make([]int64, 0, len(originalIDs))
	for _, c := range refs {
		ref, ok := c.(*richtext.Reference)
		if !ok {
			continue
		}
		if copyID, ok := copies[ref.ID()]; ok {
			duplicateIDs = append(duplicateIDs, copyID)
			continue
		}
		copyID := ref.ID()
		if entity, ok := ref.Entity().(*fragment.Entity); ok && entity.Entry.OwnedBy(orig.ID) {
			copied, err := s.entries.duplicate(ctx, entity.Entry, newOwnerID)
			if err != nil {
				return nil, nil, err
			}
			copyID = copied.ID
		}
		copies[ref.ID()] = copyID
		duplicateIDs = append(duplicateIDs, copyID)
	}
	return originalIDs, duplicateIDs, nil
}
