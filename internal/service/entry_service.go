package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xxxsen/richnote/internal/model"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/pkg/timeutil"
	"github.com/xxxsen/richnote/internal/repo"
)

type EntryService struct {
	entries EntryRepository
	refs    ReferenceIndex
	content *ContentFactory
}

func NewEntryService(entries EntryRepository, refs ReferenceIndex, content *ContentFactory) *EntryService {
	return &EntryService{entries: entries, refs: refs, content: content}
}

type EntryInput struct {
	OwnerID   string
	Locale    string
	Title     string
	Slug      string
	Body      string
	Enabled   *bool
	SortOrder int
}

func (s *EntryService) Create(ctx context.Context, userID string, input EntryInput) (*model.Entry, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	now := timeutil.NowUnix()
	entry := &model.Entry{
		UserID:    userID,
		OwnerID:   strings.TrimSpace(input.OwnerID),
		Locale:    strings.TrimSpace(input.Locale),
		Title:     title,
		Slug:      strings.TrimSpace(input.Slug),
		Body:      input.Body,
		Enabled:   enabledFlag(input.Enabled, 1),
		State:     repo.EntryStateNormal,
		SortOrder: input.SortOrder,
		Ctime:     now,
		Mtime:     now,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *EntryService) Update(ctx context.Context, userID string, entryID int64, input EntryInput) (*model.Entry, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, appErr.ErrInvalid
	}
	entry, err := s.entries.GetByID(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	entry.Locale = strings.TrimSpace(input.Locale)
	entry.Title = title
	entry.Slug = strings.TrimSpace(input.Slug)
	entry.Body = input.Body
	entry.Enabled = enabledFlag(input.Enabled, entry.Enabled)
	entry.SortOrder = input.SortOrder
	entry.Mtime = timeutil.NowUnix()
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	s.content.Invalidate(userID, entryID)
	return entry, nil
}

func (s *EntryService) Get(ctx context.Context, userID string, entryID int64) (*model.Entry, error) {
	return s.entries.GetByID(ctx, userID, entryID)
}

func (s *EntryService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Entry, error) {
	return s.entries.List(ctx, userID, limit, offset)
}

// Delete trashes an entry. An entry still embedded somewhere is only removed
// when force is set; the embedding documents then render without it.
func (s *EntryService) Delete(ctx context.Context, userID string, entryID int64, force bool) error {
	if _, err := s.entries.GetByID(ctx, userID, entryID); err != nil {
		return err
	}
	count, err := s.refs.CountByEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if count > 0 && !force {
		return appErr.ErrEntryInUse
	}
	if err := s.entries.Delete(ctx, userID, entryID, timeutil.NowUnix()); err != nil {
		return err
	}
	s.content.Invalidate(userID, entryID)
	if count > 0 {
		logutil.GetLogger(ctx).Info("deleted entry still embedded in documents",
			zap.Int64("entry_id", entryID),
			zap.Int("documents", count),
		)
	}
	return nil
}

func (s *EntryService) References(ctx context.Context, userID string, entryID int64) ([]repo.DocumentEntryReference, error) {
	if _, err := s.entries.GetByID(ctx, userID, entryID); err != nil {
		return nil, err
	}
	return s.refs.ListReferences(ctx, userID, entryID)
}

// Duplicate copies an entry under a new owner and returns the copy.
func (s *EntryService) Duplicate(ctx context.Context, userID string, entryID int64, ownerID string) (*model.Entry, error) {
	src, err := s.entries.GetByID(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	return s.duplicate(ctx, *src, ownerID)
}

func (s *EntryService) duplicate(ctx context.Context, src model.Entry, ownerID string) (*model.Entry, error) {
	now := timeutil.NowUnix()
	dup := src
	dup.ID = 0
	dup.OwnerID = ownerID
	dup.State = repo.EntryStateNormal
	dup.Ctime = now
	dup.Mtime = now
	if err := s.entries.Create(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

// discardOwner trashes every entry owned by ownerID and drops the owner's
// reference rows.
func (s *EntryService) discardOwner(ctx context.Context, userID, ownerID string) error {
	owned, err := s.entries.ListByOwner(ctx, userID, ownerID)
	if err != nil {
		return err
	}
	err = multierr.Append(
		s.entries.DeleteByOwner(ctx, userID, ownerID, timeutil.NowUnix()),
		s.refs.DeleteByDocument(ctx, userID, ownerID),
	)
	for _, e := range owned {
		s.content.Invalidate(userID, e.ID)
	}
	return err
}

func enabledFlag(v *bool, def int) int {
	if v == nil {
		return def
	}
	if *v {
		return 1
	}
	return 0
}
