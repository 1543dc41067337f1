// Package history keeps the revert-capable log of accepted documents for one session.
package history

import (
	"errors"
	"fmt"
	"sync"

	"sitegen-backend/internal/model"
)

var ErrIndexOutOfRange = errors.New("version index out of range")

// History is an ordered list of documents with a cursor. The cursor is -1 when empty.
// Appending after a revert drops every entry past the cursor.
type History struct {
	mu      sync.RWMutex
	entries []model.Document
	cursor  int
	dirty   bool
}

func New() *History {
	return &History{cursor: -1}
}

// NewFromDocument seeds a history for a loaded project. The result is clean.
func NewFromDocument(doc model.Document) *History {
	return &History{
		entries: []model.Document{doc},
		cursor:  0,
	}
}

// Append commits doc after the cursor and returns its index.
func (h *History) Append(doc model.Document) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.cursor+1], doc)
	h.cursor = len(h.entries) - 1
	h.dirty = true
	return h.cursor
}

// Revert moves the cursor to index without removing anything.
func (h *History) Revert(index int) (model.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.entries) {
		return model.Document{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(h.entries))
	}
	h.cursor = index
	h.dirty = true
	return h.entries[index], nil
}

func (h *History) Current() (model.Document, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.cursor < 0 {
		return model.Document{}, false
	}
	return h.entries[h.cursor], true
}

func (h *History) At(index int) (model.Document, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if index < 0 || index >= len(h.entries) {
		return model.Document{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(h.entries))
	}
	return h.entries[index], nil
}

func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	h.cursor = -1
	h.dirty = false
}

// MarkSaved clears the dirty flag after a successful save.
func (h *History) MarkSaved() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirty = false
}

func (h *History) Dirty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dirty
}

func (h *History) Cursor() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Entries returns a copy of the committed documents.
func (h *History) Entries() []model.Document {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.Document, len(h.entries))
	copy(out, h.entries)
	return out
}
