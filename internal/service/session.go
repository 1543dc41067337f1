package service

import (
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"sitegen-backend/internal/history"
	"sitegen-backend/internal/model"
)

const titleRunes = 50

// Session is one open workspace: its version history, chat transcript and the preview
// of a running generation. At most one generation runs per session.
type Session struct {
	ID string

	mu        sync.RWMutex
	title     string
	projectID string
	userID    string
	turns     []model.ConversationTurn
	live      string
	createdAt time.Time
	updatedAt time.Time

	history *history.History
	busy    atomic.Bool
}

func newSession(title string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		title:     title,
		turns:     make([]model.ConversationTurn, 0),
		createdAt: now,
		updatedAt: now,
		history:   history.New(),
	}
}

// History exposes the session's version history.
func (s *Session) History() *history.History {
	return s.history
}

func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

func (s *Session) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []model.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ConversationTurn(nil), s.turns...)
}

// LivePreview returns the document extracted so far by the running generation.
func (s *Session) LivePreview() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live, s.busy.Load() && s.live != ""
}

func (s *Session) Generating() bool {
	return s.busy.Load()
}

func (s *Session) begin() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) end() {
	s.mu.Lock()
	s.live = ""
	s.mu.Unlock()
	s.busy.Store(false)
}

func (s *Session) setLive(content string) {
	s.mu.Lock()
	s.live = content
	s.mu.Unlock()
}

func (s *Session) addTurn(role model.Role, text string, version *int) model.ConversationTurn {
	turn := model.ConversationTurn{
		ID:            uuid.New().String(),
		Role:          role,
		Text:          text,
		LinkedVersion: version,
		Timestamp:     time.Now(),
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.updatedAt = turn.Timestamp
	s.mu.Unlock()

	return turn
}

// titleFrom names an untitled session after its first prompt.
func (s *Session) titleFrom(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.title != "" {
		return
	}
	s.title = truncateTitle(prompt)
}

func (s *Session) link(projectID, userID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectID = projectID
	s.userID = userID
	if title != "" {
		s.title = title
	}
	s.updatedAt = time.Now()
}

func (s *Session) resetTurns(welcome string) model.ConversationTurn {
	s.mu.Lock()
	s.turns = make([]model.ConversationTurn, 0)
	s.projectID = ""
	s.title = ""
	s.mu.Unlock()

	return s.addTurn(model.RoleAssistant, welcome, nil)
}

func truncateTitle(prompt string) string {
	if utf8.RuneCountInString(prompt) <= titleRunes {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:titleRunes]) + "..."
}

// Summary describes the session for list responses.
func (s *Session) Summary() model.SessionResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.SessionResponse{
		SessionID:    s.ID,
		Title:        s.title,
		ProjectID:    s.projectID,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
		VersionCount: s.history.Len(),
		Cursor:       s.history.Cursor(),
		Dirty:        s.history.Dirty(),
		Generating:   s.busy.Load(),
	}
}

// State is the full view of the session: versions, transcript and current document.
func (s *Session) State() model.SessionStateResponse {
	entries := s.history.Entries()
	cursor := s.history.Cursor()

	versions := make([]model.VersionInfo, len(entries))
	for i, doc := range entries {
		versions[i] = model.VersionInfo{
			Index:              i,
			Number:             i + 1,
			SourcePrompt:       doc.SourcePrompt,
			CreatedFromVersion: doc.CreatedFromVersion,
			CreatedAt:          doc.CreatedAt,
			Size:               len(doc.Content),
			Current:            i == cursor,
		}
	}

	state := model.SessionStateResponse{
		SessionResponse: s.Summary(),
		Versions:        versions,
		Turns:           s.Turns(),
	}
	if doc, ok := s.history.Current(); ok {
		state.Document = &doc
	}
	return state
}
