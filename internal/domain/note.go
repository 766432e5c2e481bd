package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Author identifies who wrote a note. It may be any member of the tenant.
type Author struct {
	Email string `json:"email"`
}

// Note is a tenant-owned note. IDs are issued by the server only.
type Note struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy whose tags are not shared with n.
func (n Note) Clone() Note {
	n.Tags = slices.Clone(n.Tags)
	return n
}

// Fields returns the user-editable part of the note.
func (n Note) Fields() NoteFields {
	return NoteFields{Title: n.Title, Content: n.Content, Tags: slices.Clone(n.Tags)}
}

// UnmarshalJSON accepts both "_id" and "id" for the note id.
func (n *Note) UnmarshalJSON(data []byte) error {
	type alias Note
	var raw struct {
		alias
		PlainID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note(raw.alias)
	if n.ID == "" {
		n.ID = raw.PlainID
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return nil
}

// NoteFields is the request body for create and update.
// Update is a full replace of all three fields.
type NoteFields struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Content string   `json:"content" validate:"required,max=10000"`
	Tags    []string `json:"tags" validate:"max=20,dive,max=50"`
}

// Pagination describes the page returned by list-notes.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NotePage is the list-notes payload.
type NotePage struct {
	Notes      []Note     `json:"notes"`
	Pagination Pagination `json:"pagination"`
}
