package service

import (
	"context"

	"github.com/xxxsen/richnote/internal/model"
	"github.com/xxxsen/richnote/internal/repo"
)

// The services talk to storage through these; the postgres repos in
// internal/repo implement them.

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	Update(ctx context.Context, doc *model.Document) error
	SaveContent(ctx context.Context, userID, docID, content string, mtime int64) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error)
	ListActive(ctx context.Context, limit, offset uint) ([]model.Document, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, userID, docID string, mtime int64) error
}

type EntryRepository interface {
	Create(ctx context.Context, entry *model.Entry) error
	Update(ctx context.Context, entry *model.Entry) error
	GetByID(ctx context.Context, userID string, entryID int64) (*model.Entry, error)
	List(ctx context.Context, userID string, limit, offset uint) ([]model.Entry, error)
	ListByOwner(ctx context.Context, userID, ownerID string) ([]model.Entry, error)
	FetchByIDs(ctx context.Context, userID string, ids []int64, locale string) (map[int64]model.Entry, error)
	Delete(ctx context.Context, userID string, entryID int64, mtime int64) error
	DeleteByOwner(ctx context.Context, userID, ownerID string, mtime int64) error
}

type ReferenceIndex interface {
	ReplaceByDocument(ctx context.Context, userID, docID string, entryIDs []int64, now int64) error
	DeleteByDocument(ctx context.Context, userID, docID string) error
	CountByEntry(ctx context.Context, userID string, entryID int64) (int, error)
	ListReferences(ctx context.Context, userID string, entryID int64) ([]repo.DocumentEntryReference, error)
}

var (
	_ DocumentRepository = (*repo.DocumentRepo)(nil)
	_ EntryRepository    = (*repo.EntryRepo)(nil)
	_ ReferenceIndex     = (*repo.DocumentEntryRepo)(nil)
)
