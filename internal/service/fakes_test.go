package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/xxxsen/richnote/internal/model"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/internal/richtext"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]model.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]model.Document)}
}

func (m *memDocs) Create(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *memDocs) live(userID, docID string) (model.Document, bool) {
	doc, ok := m.docs[docID]
	if !ok || doc.UserID != userID || doc.State != repo.DocumentStateNormal {
		return model.Document{}, false
	}
	return doc, true
}

func (m *memDocs) Update(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.live(doc.UserID, doc.ID)
	if !ok {
		return appErr.ErrNotFound
	}
	cur.Title, cur.Content, cur.Locale, cur.Mtime = doc.Title, doc.Content, doc.Locale, doc.Mtime
	m.docs[doc.ID] = cur
	return nil
}

func (m *memDocs) SaveContent(_ context.Context, userID, docID, content string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.live(userID, docID)
	if !ok {
		return appErr.ErrNotFound
	}
	cur.Content, cur.Mtime = content, mtime
	m.docs[docID] = cur
	return nil
}

func (m *memDocs) GetByID(_ context.Context, userID, docID string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.live(userID, docID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &doc, nil
}

func (m *memDocs) sorted(match func(model.Document) bool) []model.Document {
	out := make([]model.Document, 0)
	for _, doc := range m.docs {
		if doc.State == repo.DocumentStateNormal && match(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page[T any](items []T, limit, offset uint) []T {
	if limit == 0 {
		return items
	}
	if int(offset) >= len(items) {
		return []T{}
	}
	end := min(int(offset+limit), len(items))
	return items[offset:end]
}

func (m *memDocs) List(_ context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.sorted(func(d model.Document) bool { return d.UserID == userID }), limit, offset), nil
}

func (m *memDocs) ListActive(_ context.Context, limit, offset uint) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.sorted(func(model.Document) bool { return true }), limit, offset), nil
}

func (m *memDocs) ListUserIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, doc := range m.sorted(func(model.Document) bool { return true }) {
		if _, ok := seen[doc.UserID]; !ok {
			seen[doc.UserID] = struct{}{}
			out = append(out, doc.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memDocs) Delete(ctx context.Context, userID, docID string, mtime int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.live(userID, docID)
	if !ok {
		return appErr.ErrNotFound
	}
	cur.State, cur.Mtime = repo.DocumentStateDeleted, mtime
	m.docs[docID] = cur
	return nil
}

type memEntries struct {
	mu         sync.Mutex
	nextID     int64
	entries    map[int64]model.Entry
	fetchCalls int
	fetchErr   error
	// failCreateAt makes the n-th Create call (1-based) return createErr.
	failCreateAt int
	createErr    error
	creates      int
}

func newMemEntries() *memEntries {
	return &memEntries{nextID: 100, entries: make(map[int64]model.Entry)}
}

func (m *memEntries) Create(_ context.Context, entry *model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failCreateAt > 0 && m.creates == m.failCreateAt {
		return m.createErr
	}
	m.nextID++
	entry.ID = m.nextID
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memEntries) live(userID string, id int64) (model.Entry, bool) {
	e, ok := m.entries[id]
	if !ok || e.UserID != userID || e.State != repo.EntryStateNormal {
		return model.Entry{}, false
	}
	return e, true
}

func (m *memEntries) Update(_ context.Context, entry *model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(entry.UserID, entry.ID); !ok {
		return appErr.ErrNotFound
	}
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memEntries) GetByID(_ context.Context, userID string, id int64) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(userID, id)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &e, nil
}

func (m *memEntries) filter(match func(model.Entry) bool) []model.Entry {
	out := make([]model.Entry, 0)
	for _, e := range m.entries {
		if e.State == repo.EntryStateNormal && match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memEntries) List(_ context.Context, userID string, limit, offset uint) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.filter(func(e model.Entry) bool { return e.UserID == userID }), limit, offset), nil
}

func (m *memEntries) ListByOwner(_ context.Context, userID, ownerID string) ([]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(e model.Entry) bool { return e.UserID == userID && e.OwnerID == ownerID }), nil
}

func (m *memEntries) FetchByIDs(_ context.Context, userID string, ids []int64, locale string) (map[int64]model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make(map[int64]model.Entry)
	for _, id := range ids {
		e, ok := m.live(userID, id)
		if !ok || e.Enabled != 1 || (e.Locale != "" && e.Locale != locale) {
			continue
		}
		out[id] = e
	}
	return out, nil
}

func (m *memEntries) Delete(_ context.Context, userID string, id int64, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(userID, id)
	if !ok {
		return appErr.ErrNotFound
	}
	e.State, e.Mtime = repo.EntryStateDeleted, mtime
	m.entries[id] = e
	return nil
}

func (m *memEntries) DeleteByOwner(ctx context.Context, userID, ownerID string, mtime int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.UserID == userID && e.OwnerID == ownerID && e.State == repo.EntryStateNormal {
			e.State, e.Mtime = repo.EntryStateDeleted, mtime
			m.entries[id] = e
		}
	}
	return nil
}

type memRefs struct {
	mu   sync.Mutex
	rows map[string][]int64
	docs *memDocs
}

func newMemRefs(docs *memDocs) *memRefs {
	return &memRefs{rows: make(map[string][]int64), docs: docs}
}

func refKey(userID, docID string) string { return userID + "/" + docID }

func (m *memRefs) ReplaceByDocument(_ context.Context, userID, docID string, ids []int64, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[refKey(userID, docID)] = append([]int64(nil), ids...)
	return nil
}

func (m *memRefs) DeleteByDocument(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, refKey(userID, docID))
	return nil
}

func (m *memRefs) docsFor(userID string, entryID int64) []string {
	out := make([]string, 0)
	for key, ids := range m.rows {
		for _, id := range ids {
			if id == entryID && len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
				out = append(out, key[len(userID)+1:])
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (m *memRefs) CountByEntry(_ context.Context, userID string, entryID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docsFor(userID, entryID)), nil
}

func (m *memRefs) ListReferences(ctx context.Context, userID string, entryID int64) ([]repo.DocumentEntryReference, error) {
	m.mu.Lock()
	ids := m.docsFor(userID, entryID)
	m.mu.Unlock()
	out := make([]repo.DocumentEntryReference, 0, len(ids))
	for _, id := range ids {
		doc, err := m.docs.GetByID(ctx, userID, id)
		if errors.Is(err, appErr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, repo.DocumentEntryReference{DocumentID: doc.ID, Title: doc.Title, Mtime: doc.Mtime})
	}
	return out, nil
}

func (m *memRefs) get(userID, docID string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[refKey(userID, docID)]
}

type fixture struct {
	docs      *memDocs
	entries   *memEntries
	refs      *memRefs
	content   *ContentFactory
	documents *DocumentService
	entrySvc  *EntryService
	duplicate *DuplicateService
}

func newFixture() *fixture {
	docs := newMemDocs()
	entries := newMemEntries()
	refs := newMemRefs(docs)
	content := NewContentFactory(ContentConfig{
		Syntax:        richtext.DefaultSyntax,
		SiteHandle:    "default",
		DefaultLocale: "en-US",
		EntryURLBase:  "/entries",
	}, entries, nil, nil)
	documents := NewDocumentService(docs, refs, entries, content)
	entrySvc := NewEntryService(entries, refs, content)
	return &fixture{
		docs:      docs,
		entries:   entries,
		refs:      refs,
		content:   content,
		documents: documents,
		entrySvc:  entrySvc,
		duplicate: NewDuplicateService(docs, entrySvc, content, documents),
	}
}
