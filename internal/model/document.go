package model

type Document struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Locale  string `json:"locale"`
	State   int    `json:"state"`
	Ctime   int64  `json:"ctime"`
	Mtime   int64  `json:"mtime"`
}

type DocumentEntry struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	EntryID    int64  `json:"entry_id"`
	Position   int    `json:"position"`
	Ctime      int64  `json:"ctime"`
}
