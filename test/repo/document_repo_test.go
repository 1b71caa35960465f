package repo_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/richnote/internal/model"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
	"github.com/xxxsen/richnote/internal/pkg/timeutil"
	"github.com/xxxsen/richnote/internal/repo"
	"github.com/xxxsen/richnote/test/testutil"
)

func randomID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func TestDocumentRepoCRUDAndIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	docs := repo.NewDocumentRepo(db)
	now := timeutil.NowUnix()
	docID := "doc-" + randomID()
	doc := &model.Document{
		ID:      docID,
		UserID:  "user-1",
		Title:   "title",
		Content: "content",
		Locale:  "en-US",
		State:   repo.DocumentStateNormal,
		Ctime:   now,
		Mtime:   now,
	}
	require.NoError(t, docs.Create(ctx, doc))
	require.ErrorIs(t, docs.Create(ctx, doc), appErr.ErrConflict)

	fetched, err := docs.GetByID(ctx, "user-1", docID)
	require.NoError(t, err)
	require.Equal(t, "title", fetched.Title)
	require.Equal(t, "en-US", fetched.Locale)

	_, err = docs.GetByID(ctx, "user-2", docID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	doc.Title = "updated"
	doc.Content = "updated content"
	doc.Mtime = timeutil.NowUnix()
	require.NoError(t, docs.Update(ctx, doc))

	require.NoError(t, docs.SaveContent(ctx, "user-1", docID, "saved", timeutil.NowUnix()))
	fetched, err = docs.GetByID(ctx, "user-1", docID)
	require.NoError(t, err)
	require.Equal(t, "updated", fetched.Title)
	require.Equal(t, "saved", fetched.Content)

	require.ErrorIs(t, docs.SaveContent(ctx, "user-2", docID, "x", now), appErr.ErrNotFound)

	require.NoError(t, docs.Delete(ctx, "user-1", docID, timeutil.NowUnix()))
	_, err = docs.GetByID(ctx, "user-1", docID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDocumentRepoList(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	docs := repo.NewDocumentRepo(db)
	userID := "user-" + randomID()
	for i := 0; i < 3; i++ {
		now := timeutil.NowUnix() + int64(i)
		require.NoError(t, docs.Create(ctx, &model.Document{
			ID: "doc-" + randomID(), UserID: userID, Title: "t", State: repo.DocumentStateNormal, Ctime: now, Mtime: now,
		}))
	}
	all, err := docs.List(ctx, userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	page, err := docs.List(ctx, userID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, all[1].ID, page[0].ID)

	users, err := docs.ListUserIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, users, userID)
}
