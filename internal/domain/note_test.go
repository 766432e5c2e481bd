package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNote_UnmarshalDefaultsTags(t *testing.T) {
	var n Note
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"n1","title":"a","content":"b","author":{"email":"x@y.z"},"createdAt":"2024-01-02T03:04:05Z"}`), &n))

	assert.Equal(t, "n1", n.ID)
	assert.NotNil(t, n.Tags)
	assert.Equal(t, "x@y.z", n.Author.Email)
	assert.Equal(t, 2024, n.CreatedAt.Year())
}

func TestNote_UnmarshalPlainID(t *testing.T) {
	var n Note
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n2","title":"a","content":"b","tags":["x"]}`), &n))
	assert.Equal(t, "n2", n.ID)
	assert.Equal(t, []string{"x"}, n.Tags)
}

func TestNote_CloneDoesNotShareTags(t *testing.T) {
	n := Note{ID: "n1", Tags: []string{"a"}}
	c := n.Clone()
	c.Tags[0] = "b"
	assert.Equal(t, "a", n.Tags[0])
}
