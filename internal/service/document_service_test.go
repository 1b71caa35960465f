package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/richnote/internal/model"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/richtext"
)

const testUser = "user-1"

func (f *fixture) mustEntry(t *testing.T, input EntryInput) *model.Entry {
	t.Helper()
	e, err := f.entrySvc.Create(context.Background(), testUser, input)
	require.NoError(t, err)
	return e
}

func el(id int64) string {
	return richtext.DefaultSyntax.Element(id)
}

func TestDocumentCreateSyncsReferences(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.mustEntry(t, EntryInput{Title: "A"})
	b := f.mustEntry(t, EntryInput{Title: "B"})

	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{
		Title:   "doc",
		Content: "<p>x</p>" + el(a.ID) + el(b.ID) + el(a.ID),
	})
	require.NoError(t, err)
	require.Equal(t, []int64{a.ID, b.ID, a.ID}, f.refs.get(testUser, doc.ID))

	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "doc", Content: el(b.ID)})
	require.NoError(t, err)
	require.Equal(t, []int64{b.ID}, f.refs.get(testUser, doc.ID))

	_, err = f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDocumentRenderAndChunks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.mustEntry(t, EntryInput{Title: "Alpha", Body: "**bold**", Slug: "alpha"})
	hidden := f.mustEntry(t, EntryInput{Title: "Hidden", Enabled: new(bool)})
	german := f.mustEntry(t, EntryInput{Title: "Deutsch", Locale: "de-DE"})

	content := "<p>see {entry:" + itoa(a.ID) + ":url}</p>" + el(a.ID) + el(hidden.ID) + el(german.ID) + "<p>end</p>"
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "doc", Content: content})
	require.NoError(t, err)

	res, err := f.documents.Render(ctx, testUser, doc.ID)
	require.NoError(t, err)
	require.False(t, res.Degraded)
	require.Equal(t, "en-US", res.Locale)
	require.True(t, strings.HasPrefix(res.HTML, "<p>see /entries/alpha</p>"))
	require.Contains(t, res.HTML, `<div class="entry" data-entry-id="`+itoa(a.ID)+`"><h3>Alpha</h3>`)
	require.Contains(t, res.HTML, "<strong>bold</strong>")
	require.NotContains(t, res.HTML, "Hidden")
	require.NotContains(t, res.HTML, "Deutsch")
	require.True(t, strings.HasSuffix(res.HTML, "<p>end</p>"))

	count, err := f.documents.Count(ctx, testUser, doc.ID)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	visible, err := f.documents.Chunks(ctx, testUser, doc.ID, false)
	require.NoError(t, err)
	require.Len(t, visible, 3)
	require.Equal(t, "reference", visible[1].Type)
	require.True(t, visible[1].Resolved)

	all, err := f.documents.Chunks(ctx, testUser, doc.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, hidden.ID, all[2].EntryID)
	require.False(t, all[2].Resolved)
	require.Empty(t, all[2].HTML)

	_, err = f.documents.Render(ctx, "someone-else", doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRenderDegradesOnStoreFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.mustEntry(t, EntryInput{Title: "A"})
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "doc", Content: "<p>a</p>" + el(a.ID)})
	require.NoError(t, err)

	f.entries.fetchErr = errors.New("db down")
	res, err := f.documents.Render(ctx, testUser, doc.ID)
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, "<p>a</p>", res.HTML)
}

func TestDocumentLocaleSelectsEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	german := f.mustEntry(t, EntryInput{Title: "Deutsch", Locale: "de-DE"})
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "doc", Content: el(german.ID), Locale: "de-DE"})
	require.NoError(t, err)

	res, err := f.documents.Render(ctx, testUser, doc.ID)
	require.NoError(t, err)
	require.Contains(t, res.HTML, "Deutsch")
	require.Equal(t, "de-DE", res.Locale)
}

func TestDocumentDeleteRemovesOwnedEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doc, err := f.documents.Create(ctx, testUser, DocumentCreateInput{Title: "doc"})
	require.NoError(t, err)
	owned := f.mustEntry(t, EntryInput{Title: "owned", OwnerID: doc.ID})
	shared := f.mustEntry(t, EntryInput{Title: "shared"})
	_, err = f.documents.Update(ctx, testUser, doc.ID, DocumentUpdateInput{Title: "doc", Content: el(owned.ID) + el(shared.ID)})
	require.NoError(t, err)

	require.NoError(t, f.documents.Delete(ctx, testUser, doc.ID))
	_, err = f.documents.Get(ctx, testUser, doc.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = f.entrySvc.Get(ctx, testUser, owned.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = f.entrySvc.Get(ctx, testUser, shared.ID)
	require.NoError(t, err)
	require.Nil(t, f.refs.get(testUser, doc.ID))
}
