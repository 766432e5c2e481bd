// Package notes holds the loaded page of tenant notes and the latest stats
// snapshot, and reconciles them against server-confirmed changes.
package notes

import (
	"maps"
	"slices"

	"github.com/tenantnotes/notes-client/internal/domain"
)

// View is the held page of notes. The zero value is an empty view.
// A View is never modified in place; Reduce returns a new one.
type View struct {
	Notes      []domain.Note
	Pagination domain.Pagination
	// deleted holds ids removed by a confirmed delete. They are never shown
	// again for the life of the registry, whatever arrives later.
	deleted map[string]struct{}
}

// Has reports whether a note with id is in the view.
func (v View) Has(id string) bool {
	return v.index(id) >= 0
}

// Find returns the note with id.
func (v View) Find(id string) (domain.Note, bool) {
	if i := v.index(id); i >= 0 {
		return v.Notes[i].Clone(), true
	}
	return domain.Note{}, false
}

// Deleted reports whether id was removed by a confirmed delete.
func (v View) Deleted(id string) bool {
	_, ok := v.deleted[id]
	return ok
}

// IDs returns the note ids in display order.
func (v View) IDs() []string {
	ids := make([]string, len(v.Notes))
	for i, n := range v.Notes {
		ids[i] = n.ID
	}
	return ids
}

func (v View) index(id string) int {
	return slices.IndexFunc(v.Notes, func(n domain.Note) bool { return n.ID == id })
}

// ChangeKind identifies a server-confirmed change.
type ChangeKind uint8

const (
	ChangeLoaded ChangeKind = iota + 1
	ChangeCreated
	ChangeUpdated
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoaded:
		return "loaded"
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one server-confirmed event applied by Reduce.
type Change struct {
	Kind ChangeKind
	ID   string
	Note domain.Note
	Page domain.NotePage
}

// Loaded is a list-notes result.
func Loaded(page domain.NotePage) Change {
	return Change{Kind: ChangeLoaded, Page: page}
}

// Created is a confirmed create.
func Created(note domain.Note) Change {
	return Change{Kind: ChangeCreated, ID: note.ID, Note: note}
}

// Updated is a confirmed update of id.
func Updated(id string, note domain.Note) Change {
	return Change{Kind: ChangeUpdated, ID: id, Note: note}
}

// Deleted is a confirmed delete of id.
func Deleted(id string) Change {
	return Change{Kind: ChangeDeleted, ID: id}
}

// Reduce returns the view after c. It is keyed by note id:
//   - loaded replaces the notes and pagination in server order
//   - created prepends, unless the id is empty, already held or deleted
//   - updated replaces the matching note in place, and is dropped without a match
//   - deleted removes the note and keeps it from reappearing
//
// Reduce never invents ids or counts.
func Reduce(v View, c Change) View {
	switch c.Kind {
	case ChangeLoaded:
		notes := make([]domain.Note, 0, len(c.Page.Notes))
		seen := make(map[string]struct{}, len(c.Page.Notes))
		for _, n := range c.Page.Notes {
			if n.ID == "" || v.Deleted(n.ID) {
				continue
			}
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			notes = append(notes, n.Clone())
		}
		return View{Notes: notes, Pagination: c.Page.Pagination, deleted: v.deleted}

	case ChangeCreated:
		if c.ID == "" || v.Has(c.ID) || v.Deleted(c.ID) {
			return v
		}
		notes := make([]domain.Note, 0, len(v.Notes)+1)
		notes = append(notes, c.Note.Clone())
		v.Notes = append(notes, v.Notes...)
		return v

	case ChangeUpdated:
		i := v.index(c.ID)
		if i < 0 {
			return v
		}
		note := c.Note.Clone()
		note.ID = c.ID
		v.Notes = slices.Clone(v.Notes)
		v.Notes[i] = note
		return v

	case ChangeDeleted:
		if c.ID == "" {
			return v
		}
		deleted := maps.Clone(v.deleted)
		if deleted == nil {
			deleted = make(map[string]struct{}, 1)
		}
		deleted[c.ID] = struct{}{}
		v.deleted = deleted
		if i := v.index(c.ID); i >= 0 {
			v.Notes = slices.Delete(slices.Clone(v.Notes), i, i+1)
		}
		return v
	}
	return v
}
