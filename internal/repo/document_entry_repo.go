package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/richnote/internal/pkg/dbutil"
)

// DocumentEntryReference is a document that embeds a given entry.
type DocumentEntryReference struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Mtime      int64  `json:"mtime"`
}

// DocumentEntryRepo maintains the reference index: one row per embedded
// placeholder, keyed by its position in the document content.
type DocumentEntryRepo struct {
	db *sql.DB
}

func NewDocumentEntryRepo(db *sql.DB) *DocumentEntryRepo {
	return &DocumentEntryRepo{db: db}
}

func (r *DocumentEntryRepo) ReplaceByDocument(ctx context.Context, userID, docID string, entryIDs []int64, now int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	sqlDelete, deleteArgs := dbutil.Finalize("DELETE FROM document_entries WHERE user_id=? AND document_id=?", []interface{}{userID, docID})
	if _, err := tx.ExecContext(ctx, sqlDelete, deleteArgs...); err != nil {
		return err
	}
	if len(entryIDs) > 0 {
		data := make([]map[string]interface{}, 0, len(entryIDs))
		for pos, entryID := range entryIDs {
			data = append(data, map[string]interface{}{
				"user_id":     userID,
				"document_id": docID,
				"entry_id":    entryID,
				"position":    pos,
				"ctime":       now,
			})
		}
		sqlStr, args, err := builder.BuildInsert("document_entries", data)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *DocumentEntryRepo) DeleteByDocument(ctx context.Context, userID, docID string) error {
	sqlStr, args, err := builder.BuildDelete("document_entries", map[string]interface{}{"user_id": userID, "document_id": docID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentEntryRepo) CountByEntry(ctx context.Context, userID string, entryID int64) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(DISTINCT document_id) FROM document_entries WHERE user_id=? AND entry_id=?", []interface{}{userID, entryID})
	count := 0
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentEntryRepo) ListReferences(ctx context.Context, userID string, entryID int64) ([]DocumentEntryReference, error) {
	sqlStr := `
		SELECT DISTINCT d.id, d.title, d.mtime
		FROM document_entries de
		JOIN documents d ON d.id = de.document_id AND d.user_id = de.user_id
		WHERE de.user_id = ? AND de.entry_id = ? AND d.state = 1
		ORDER BY d.mtime DESC
	`
	sqlStr, args := dbutil.Finalize(sqlStr, []interface{}{userID, entryID})
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]DocumentEntryReference, 0)
	for rows.Next() {
		var item DocumentEntryReference
		if err := rows.Scan(&item.DocumentID, &item.Title, &item.Mtime); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
