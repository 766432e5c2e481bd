package notes

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tenantnotes/notes-client/internal/domain"
)

func note(id, title string, tags ...string) domain.Note {
	if tags == nil {
		tags = []string{}
	}
	return domain.Note{
		ID:        id,
		Title:     title,
		Content:   title + " body",
		Tags:      tags,
		Author:    domain.Author{Email: "user@acme.test"},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func page(notes ...domain.Note) domain.NotePage {
	return domain.NotePage{
		Notes:      notes,
		Pagination: domain.Pagination{Page: 1, Limit: 10, Total: len(notes), Pages: 1},
	}
}

func TestReduce(t *testing.T) {
	loaded := Reduce(View{}, Loaded(page(note("a", "A"), note("b", "B"))))

	tests := []struct {
		name   string
		start  View
		change Change
		want   []string
	}{
		{"load replaces", loaded, Loaded(page(note("c", "C"))), []string{"c"}},
		{"load drops duplicate and empty ids", View{}, Loaded(page(note("a", "A"), note("", "X"), note("a", "A2"))), []string{"a"}},
		{"create prepends", loaded, Created(note("c", "C")), []string{"c", "a", "b"}},
		{"create without id is dropped", loaded, Created(note("", "C")), []string{"a", "b"}},
		{"create of held id is dropped", loaded, Created(note("b", "B2")), []string{"a", "b"}},
		{"update keeps position", loaded, Updated("b", note("b", "B2")), []string{"a", "b"}},
		{"update without match is dropped", loaded, Updated("z", note("z", "Z")), []string{"a", "b"}},
		{"delete removes", loaded, Deleted("a"), []string{"b"}},
		{"delete of absent id", loaded, Deleted("z"), []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(tt.start, tt.change)
			assert.Equal(t, tt.want, got.IDs())
		})
	}
}

func TestReduce_DoesNotModifyInput(t *testing.T) {
	v := Reduce(View{}, Loaded(page(note("a", "A"), note("b", "B"))))
	before := slices.Clone(v.Notes)

	_ = Reduce(v, Updated("a", note("a", "changed")))
	_ = Reduce(v, Deleted("b"))
	_ = Reduce(v, Created(note("c", "C")))

	assert.Equal(t, before, v.Notes)
	assert.False(t, v.Deleted("b"))
}

func TestReduce_UpdateReplacesEveryField(t *testing.T) {
	v := Reduce(View{}, Loaded(page(note("a", "A", "old"))))

	replacement := note("a", "New title", "go", "db")
	replacement.Content = "new content"
	v = Reduce(v, Updated("a", replacement))

	got, ok := v.Find("a")
	require.True(t, ok)
	assert.Equal(t, replacement, got)
}

func TestReduce_UpdateKeepsKeyedID(t *testing.T) {
	v := Reduce(View{}, Loaded(page(note("a", "A"))))
	v = Reduce(v, Updated("a", note("", "No id in body")))

	got, ok := v.Find("a")
	require.True(t, ok)
	assert.Equal(t, "No id in body", got.Title)
}

func TestReduce_DeletedNeverReturns(t *testing.T) {
	v := Reduce(View{}, Loaded(page(note("a", "A"), note("b", "B"))))
	v = Reduce(v, Deleted("a"))

	v = Reduce(v, Created(note("a", "late create")))
	assert.False(t, v.Has("a"))

	v = Reduce(v, Loaded(page(note("a", "A"), note("c", "C"))))
	assert.Equal(t, []string{"c"}, v.IDs())
	assert.Equal(t, 2, v.Pagination.Total, "pagination is the server's")
}

func TestReduce_FindReturnsCopy(t *testing.T) {
	v := Reduce(View{}, Loaded(page(note("a", "A", "x"))))

	got, ok := v.Find("a")
	require.True(t, ok)
	got.Tags[0] = "mutated"

	again, _ := v.Find("a")
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "loaded", ChangeLoaded.String())
	assert.Equal(t, "deleted", ChangeDeleted.String())
	assert.Equal(t, "unknown", ChangeKind(0).String())
}

var idPool = []string{"n0", "n1", "n2", "n3", "n4", "n5"}

func drawChange(t *rapid.T, label string) Change {
	id := rapid.SampledFrom(idPool).Draw(t, label+"-id")
	switch rapid.IntRange(0, 3).Draw(t, label+"-kind") {
	case 0:
		ids := rapid.SliceOfNDistinct(rapid.SampledFrom(idPool), 0, len(idPool), rapid.ID[string]).Draw(t, label+"-page")
		notes := make([]domain.Note, len(ids))
		for i, nid := range ids {
			notes[i] = note(nid, "loaded "+nid)
		}
		return Loaded(page(notes...))
	case 1:
		return Created(note(id, "created "+id))
	case 2:
		return Updated(id, note(id, "updated "+id))
	default:
		return Deleted(id)
	}
}

// Any sequence of changes keeps ids unique, never shows a deleted id and
// never shows an id the server did not send.
func TestReduce_Invariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := View{}
		deleted := map[string]bool{}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := range steps {
			c := drawChange(t, fmt.Sprintf("step%d", i))
			v = Reduce(v, c)
			if c.Kind == ChangeDeleted {
				deleted[c.ID] = true
			}

			ids := v.IDs()
			seen := map[string]bool{}
			for _, id := range ids {
				if seen[id] {
					t.Fatalf("duplicate id %q in %v", id, ids)
				}
				seen[id] = true
				if deleted[id] {
					t.Fatalf("deleted id %q is visible after %s", id, c.Kind)
				}
				if !slices.Contains(idPool, id) {
					t.Fatalf("fabricated id %q", id)
				}
			}
		}
	})
}

// A create followed by a delete of the same id leaves the view without it,
// whatever updates of other ids happen in between.
func TestReduce_CreateThenDelete(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.SampledFrom(idPool).Draw(t, "target")
		others := slices.DeleteFunc(slices.Clone(idPool), func(id string) bool { return id == target })

		initial := rapid.SliceOfNDistinct(rapid.SampledFrom(others), 0, len(others), rapid.ID[string]).Draw(t, "initial")
		notes := make([]domain.Note, len(initial))
		for i, id := range initial {
			notes[i] = note(id, id)
		}
		v := Reduce(View{}, Loaded(page(notes...)))

		v = Reduce(v, Created(note(target, "new")))
		if !v.Has(target) {
			t.Fatalf("created note %q missing", target)
		}

		updates := rapid.SliceOfN(rapid.SampledFrom(others), 0, 10).Draw(t, "updates")
		for _, id := range updates {
			v = Reduce(v, Updated(id, note(id, "edited")))
		}

		v = Reduce(v, Deleted(target))
		if v.Has(target) {
			t.Fatalf("deleted note %q still held: %v", target, v.IDs())
		}
		if len(v.Notes) != len(initial) {
			t.Fatalf("expected %d notes, got %v", len(initial), v.IDs())
		}
	})
}
