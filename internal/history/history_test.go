package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen-backend/internal/model"
)

func doc(content string) model.Document {
	return model.Document{Content: content, SourcePrompt: "prompt " + content}
}

func contents(h *History) []string {
	var out []string
	for _, d := range h.Entries() {
		out = append(out, d.Content)
	}
	return out
}

func TestAppendAfterRevertTruncates(t *testing.T) {
	h := New()
	h.Append(doc("A"))
	h.Append(doc("B"))
	h.Append(doc("C"))
	require.Equal(t, 2, h.Cursor())

	got, err := h.Revert(0)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Content)
	assert.Equal(t, []string{"A", "B", "C"}, contents(h), "revert must not remove entries")

	idx := h.Append(doc("D"))
	assert.Equal(t, 1, idx)
	assert.Equal(t, 1, h.Cursor())
	assert.Equal(t, []string{"A", "D"}, contents(h))
}

func TestDirtyFlag(t *testing.T) {
	h := NewFromDocument(doc("loaded"))
	assert.False(t, h.Dirty())
	assert.Equal(t, 0, h.Cursor())

	h.Append(doc("next"))
	assert.True(t, h.Dirty())

	h.MarkSaved()
	assert.False(t, h.Dirty())

	_, err := h.Revert(0)
	require.NoError(t, err)
	assert.True(t, h.Dirty())

	h.MarkSaved()
	_, err = h.Revert(5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.False(t, h.Dirty(), "failed revert leaves the flag alone")
}

func TestEmptyState(t *testing.T) {
	h := New()
	_, ok := h.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, h.Cursor())
	assert.Equal(t, 0, h.Len())

	_, err := h.Revert(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = h.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.Equal(t, 0, h.Append(doc("first")))
	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, "first", cur.Content)
}

func TestReset(t *testing.T) {
	h := New()
	h.Append(doc("A"))
	h.Append(doc("B"))
	h.Reset()

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, -1, h.Cursor())
	assert.False(t, h.Dirty())
	_, ok := h.Current()
	assert.False(t, ok)
}

func TestEntriesIsCopy(t *testing.T) {
	h := New()
	h.Append(doc("A"))
	entries := h.Entries()
	entries[0].Content = "mutated"

	got, err := h.At(0)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Content)
}
