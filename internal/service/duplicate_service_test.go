package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/richnote/internal/model"
	"github.com/xxxsen/richnote/internal/richtext"
)

func TestDuplicateDeepRemapsOwnedEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "orig"})
	require.NoError(t, err)
	owned1 := f.mustEntry(t, EntryInput{Title: "one", OwnerID: doc.ID})
	owned2 := f.mustEntry(t, EntryInput{Title: "two", OwnerID: doc.ID})
	shared := f.mustEntry(t, EntryInput{Title: "shared"})
	content := "<p>a</p>" + el(owned1.ID) + el(shared.ID) + "<p>b</p>" + el(owned2.ID) + el(owned1.ID)
	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "orig", Content: content})
	require.NoError(t, err)

	dup, err := f.duplicate.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Deep: true})
	require.NoError(t, err)
	require.Equal(t, "orig (copy)", dup.Title)

	stored, err := f.documents.Get(ctx, testUser, dup.ID)
	require.NoError(t, err)
	require.Equal(t, dup.Content, stored.Content)

	ids := richtext.ReferenceIDs(richtext.Parse(stored.Content, richtext.DefaultSyntax))
	require.Len(t, ids, 4)
	require.NotEqual(t, owned1.ID, ids[0])
	require.Equal(t, shared.ID, ids[1])
	require.NotEqual(t, owned2.ID, ids[2])
	require.Equal(t, ids[0], ids[3])

	copies, err := f.entries.ListByOwner(ctx, testUser, dup.ID)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	require.Equal(t, ids, f.refs.get(testUser, dup.ID))

	orig, err := f.documents.Get(ctx, testUser, doc.ID)
	require.NoError(t, err)
	require.Equal(t, content, orig.Content)
}

func TestDuplicateShallowKeepsContent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "orig"})
	require.NoError(t, err)
	owned := f.mustEntry(t, EntryInput{Title: "one", OwnerID: doc.ID})
	content := el(owned.ID) + "<p>x</p>"
	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "orig", Content: content})
	require.NoError(t, err)

	dup, err := f.duplicate.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Title: "named"})
	require.NoError(t, err)
	require.Equal(t, "named", dup.Title)
	require.Equal(t, content, dup.Content)
	copies, err := f.entries.ListByOwner(ctx, testUser, dup.ID)
	require.NoError(t, err)
	require.Empty(t, copies)
}

func TestDuplicateKeepsUnresolvedReferencesInPlace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "orig"})
	require.NoError(t, err)
	owned := f.mustEntry(t, EntryInput{Title: "one", OwnerID: doc.ID})
	content := el(9999) + el(owned.ID) + `<craft-entry data-entry-id="bad"></craft-entry>`
	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "orig", Content: content})
	require.NoError(t, err)

	dup, err := f.duplicate.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Deep: true})
	require.NoError(t, err)
	ids := richtext.ReferenceIDs(richtext.Parse(dup.Content, richtext.DefaultSyntax))
	require.Len(t, ids, 2)
	require.Equal(t, int64(9999), ids[0])
	require.NotEqual(t, owned.ID, ids[1])
	require.Contains(t, dup.Content, `data-entry-id="bad"`)
}

type failingSaver struct {
	err error
}

func (s failingSaver) SaveContent(context.Context, string, string, string) error {
	return s.err
}

func (f *fixture) liveOwners(t *testing.T) map[string]int {
	t.Helper()
	all, err := f.entries.List(context.Background(), testUser, 0, 0)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, e := range all {
		out[e.OwnerID]++
	}
	return out
}

func seedOwnedDocument(t *testing.T, f *fixture) (*model.Document, []*model.Entry) {
	t.Helper()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "orig"})
	require.NoError(t, err)
	owned := []*model.Entry{
		f.mustEntry(t, EntryInput{Title: "one", OwnerID: doc.ID}),
		f.mustEntry(t, EntryInput{Title: "two", OwnerID: doc.ID}),
	}
	content := el(owned[0].ID) + "<p>x</p>" + el(owned[1].ID)
	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "orig", Content: content})
	require.NoError(t, err)
	return doc, owned
}

func TestDuplicateRollsBackWhenEntryCopyFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, _ := seedOwnedDocument(t, f)
	boom := errors.New("insert failed")
	f.entries.failCreateAt = f.entries.creates + 2
	f.entries.createErr = boom

	_, err := f.duplicate.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Deep: true})
	require.ErrorIs(t, err, boom)

	docs, err := f.documents.List(ctx, testUser, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, doc.ID, docs[0].ID)
	require.Equal(t, map[string]int{doc.ID: 2}, f.liveOwners(t))
}

func TestDuplicateRollsBackWhenSaveFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, _ := seedOwnedDocument(t, f)
	boom := errors.New("save failed")
	svc := NewDuplicateService(f.docs, f.entrySvc, f.content, failingSaver{err: boom})

	_, err := svc.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Deep: true})
	require.ErrorIs(t, err, boom)

	docs, err := f.documents.List(ctx, testUser, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, map[string]int{doc.ID: 2}, f.liveOwners(t))
}

func TestDuplicateRollbackSurvivesCancelledContext(t *testing.T) {
	f := newFixture()
	doc, _ := seedOwnedDocument(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	boom := errors.New("save failed")
	svc := NewDuplicateService(f.docs, f.entrySvc, f.content, saverFunc(func(context.Context, string, string, string) error {
		cancel()
		return boom
	}))

	_, err := svc.Duplicate(ctx, testUser, doc.ID, DuplicateOptions{Deep: true})
	require.ErrorIs(t, err, boom)
	require.Equal(t, map[string]int{doc.ID: 2}, f.liveOwners(t))
	docs, err := f.documents.List(context.Background(), testUser, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

type saverFunc func(ctx context.Context, userID, ownerID, content string) error

func (fn saverFunc) SaveContent(ctx context.Context, userID, ownerID, content string) error {
	return fn(ctx, userID, ownerID, content)
}
