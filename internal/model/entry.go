package model

type Entry struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	OwnerID   string `json:"owner_id"`
	Locale    string `json:"locale"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Body      string `json:"body"`
	Enabled   int    `json:"enabled"`
	State     int    `json:"state"`
	SortOrder int    `json:"sort_order"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}

func (e *Entry) OwnedBy(documentID string) bool {
	return e != nil && documentID != "" && e.OwnerID == documentID
}
