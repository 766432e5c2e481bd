package domain

// UserNoteCount is one row of the per-author activity table.
type UserNoteCount struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// Stats is a server-computed snapshot of tenant note figures.
// It is re-fetched after any change to note count or plan, never patched locally.
type Stats struct {
	TotalNotes   int             `json:"totalNotes"`
	RecentNotes  int             `json:"recentNotes"`
	NotesByUser  []UserNoteCount `json:"notesByUser"`
	Subscription Subscription    `json:"subscription"`
}
