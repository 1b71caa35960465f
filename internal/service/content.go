package service

import (
	"context"

	"github.com/xxxsen/richnote/internal/entrycache"
	"github.com/xxxsen/richnote/internal/fragment"
	"github.com/xxxsen/richnote/internal/model"
	"github.com/xxxsen/richnote/internal/refmarkup"
	"github.com/xxxsen/richnote/internal/richtext"
)

type ContentConfig struct {
	Syntax        richtext.Syntax
	SiteHandle    string
	DefaultLocale string
	EntryURLBase  string
}

// ContentFactory builds content models for documents, wiring the entry store,
// the entry cache and short-reference expansion.
type ContentFactory struct {
	cfg       ContentConfig
	entries   EntryRepository
	cache     *entrycache.Cache
	fragments *fragment.Renderer
}

func NewContentFactory(cfg ContentConfig, entries EntryRepository, cache *entrycache.Cache, fragments *fragment.Renderer) *ContentFactory {
	if fragments == nil {
		fragments = fragment.NewRenderer()
	}
	return &ContentFactory{cfg: cfg, entries: entries, cache: cache, fragments: fragments}
}

func (f *ContentFactory) Syntax() richtext.Syntax {
	return f.cfg.Syntax
}

func (f *ContentFactory) Site(locale string) richtext.Site {
	if locale == "" {
		locale = f.cfg.DefaultLocale
	}
	return richtext.Site{Handle: f.cfg.SiteHandle, Locale: locale}
}

// Store returns the entity store visible to one user.
func (f *ContentFactory) Store(userID string) richtext.EntityStore {
	return f.cache.Wrap(&entrySource{entries: f.entries, userID: userID, fragments: f.fragments}, userID)
}

func (f *ContentFactory) FieldData(doc *model.Document) *richtext.FieldData {
	return f.build(doc.UserID, doc.Content, doc.Locale)
}

func (f *ContentFactory) build(userID, raw, locale string) *richtext.FieldData {
	store := f.Store(userID)
	return richtext.New(raw, richtext.Options{
		Syntax: f.cfg.Syntax,
		Site:   f.Site(locale),
		Store:  store,
		Markup: refmarkup.New(store, f.cfg.EntryURLBase),
	})
}

func (f *ContentFactory) Invalidate(userID string, entryID int64) {
	f.cache.Invalidate(userID, entryID)
}

// entrySource serves entries of one user to the content model.
type entrySource struct {
	entries   EntryRepository
	userID    string
	fragments *fragment.Renderer
}

func (s *entrySource) FetchByIDs(ctx context.Context, ids []int64, site richtext.Site) (map[int64]richtext.Entity, error) {
	out := make(map[int64]richtext.Entity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.entries.FetchByIDs(ctx, s.userID, ids, site.Locale)
	if err != nil {
		return nil, err
	}
	for id, row := range rows {
		out[id] = s.fragments.Entity(row)
	}
	return out, nil
}
