package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/richnote/internal/model"
	"github.com/xxxsen/richnote/internal/pkg/dbutil"
	appErr "github.com/xxxsen/richnote/internal/pkg/errors"
)

const (
	EntryStateNormal  = 1
	EntryStateDeleted = 2
)

var entryColumns = []string{"id", "user_id", "owner_id", "locale", "title", "slug", "body", "enabled", "state", "sort_order", "ctime", "mtime"}

type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

// Create inserts the entry and stores the generated ID back into it.
func (r *EntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	data := map[string]interface{}{
		"user_id":    entry.UserID,
		"owner_id":   entry.OwnerID,
		"locale":     entry.Locale,
		"title":      entry.Title,
		"slug":       entry.Slug,
		"body":       entry.Body,
		"enabled":    entry.Enabled,
		"state":      entry.State,
		"sort_order": entry.SortOrder,
		"ctime":      entry.Ctime,
		"mtime":      entry.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("entries", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&entry.ID); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *EntryRepo) Update(ctx context.Context, entry *model.Entry) error {
	where := map[string]interface{}{
		"id":      entry.ID,
		"user_id": entry.UserID,
		"state":   EntryStateNormal,
	}
	update := map[string]interface{}{
		"locale":     entry.Locale,
		"title":      entry.Title,
		"slug":       entry.Slug,
		"body":       entry.Body,
		"enabled":    entry.Enabled,
		"sort_order": entry.SortOrder,
		"mtime":      entry.Mtime,
	}
	return r.execUpdate(ctx, where, update)
}

func (r *EntryRepo) GetByID(ctx context.Context, userID string, entryID int64) (*model.Entry, error) {
	where := map[string]interface{}{
		"id":      entryID,
		"user_id": userID,
		"state":   EntryStateNormal,
	}
	entries, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &entries[0], nil
}

func (r *EntryRepo) List(ctx context.Context, userID string, limit, offset uint) ([]model.Entry, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"state":    EntryStateNormal,
		"_orderby": "sort_order asc, id asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	return r.query(ctx, where)
}

func (r *EntryRepo) ListByOwner(ctx context.Context, userID, ownerID string) ([]model.Entry, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"owner_id": ownerID,
		"state":    EntryStateNormal,
		"_orderby": "sort_order asc, id asc",
	}
	return r.query(ctx, where)
}

// FetchByIDs returns the visible entries among ids: live, enabled, and either
// in the requested locale or locale-neutral. Unknown IDs are simply absent.
func (r *EntryRepo) FetchByIDs(ctx context.Context, userID string, ids []int64, locale string) (map[int64]model.Entry, error) {
	out := make(map[int64]model.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := "SELECT id, user_id, owner_id, locale, title, slug, body, enabled, state, sort_order, ctime, mtime" +
		" FROM entries WHERE user_id = ? AND id IN (?) AND state = ? AND enabled = 1 AND (locale = ? OR locale = '')"
	sqlStr, args, err := dbutil.In(query, userID, ids, EntryStateNormal, locale)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out[entry.ID] = entry
	}
	return out, rows.Err()
}

func (r *EntryRepo) Delete(ctx context.Context, userID string, entryID int64, mtime int64) error {
	where := map[string]interface{}{
		"id":      entryID,
		"user_id": userID,
		"state":   EntryStateNormal,
	}
	update := map[string]interface{}{
		"state": EntryStateDeleted,
		"mtime": mtime,
	}
	return r.execUpdate(ctx, where, update)
}

// DeleteByOwner trashes every entry owned by a document.
func (r *EntryRepo) DeleteByOwner(ctx context.Context, userID, ownerID string, mtime int64) error {
	where := map[string]interface{}{
		"user_id":  userID,
		"owner_id": ownerID,
		"state":    EntryStateNormal,
	}
	update := map[string]interface{}{
		"state": EntryStateDeleted,
		"mtime": mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("entries", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EntryRepo) execUpdate(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("entries", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *EntryRepo) query(ctx context.Context, where map[string]interface{}) ([]model.Entry, error) {
	sqlStr, args, err := builder.BuildSelect("entries", where, entryColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	entries := make([]model.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (model.Entry, error) {
	var e model.Entry
	err := rows.Scan(&e.ID, &e.UserID, &e.OwnerID, &e.Locale, &e.Title, &e.Slug, &e.Body,
		&e.Enabled, &e.State, &e.SortOrder, &e.Ctime, &e.Mtime)
	return e, err
}
