package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/history"
	"sitegen-backend/internal/model"
	"sitegen-backend/internal/storage"
	"sitegen-backend/pkg/logger"
)

const (
	defaultProjectName = "My New Website"

	welcomeText      = "Welcome! Describe the website you want to build, or select a template to get started."
	welcomeBackText  = "Welcome back! Let's build something new. Describe the website you want, or pick a template."
	revertedTextFmt  = "Reverted to Version %d. You can now ask me to make changes to this version."
	savedTextFmt     = "Project %q has been saved successfully!"
	templateSource   = "template"
)

// WorkspaceService owns the open sessions and the operations on them.
type WorkspaceService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	gen    *GenerationService
	store  storage.ProjectStore
	config *config.SessionConfig

	stop     chan struct{}
	stopOnce sync.Once
}

func NewWorkspaceService(cfg *config.Config, gen *GenerationService, store storage.ProjectStore) *WorkspaceService {
	ws := &WorkspaceService{
		sessions: make(map[string]*Session),
		gen:      gen,
		store:    store,
		config:   &cfg.Session,
		stop:     make(chan struct{}),
	}

	if ws.config.TTL > 0 && ws.config.CleanupInterval > 0 {
		go ws.cleanupIdleSessions()
	}

	return ws
}

// Close stops the idle-session janitor.
func (w *WorkspaceService) Close() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// CreateSession opens a workspace. With a project ID the project's code becomes
// Version 1 and its transcript is restored; an initial document (a template) is
// seeded the same way.
func (w *WorkspaceService) CreateSession(ctx context.Context, req model.CreateSessionRequest, userID string) (*Session, error) {
	sess := newSession(strings.TrimSpace(req.Title))

	switch {
	case req.ProjectID != "":
		project, err := w.ownedProject(ctx, req.ProjectID, userID)
		if err != nil {
			return nil, err
		}
		if project.Code != "" {
			sess.history = history.NewFromDocument(model.Document{
				Content:      project.Code,
				SourcePrompt: project.Name,
				CreatedAt:    project.UpdatedAt,
			})
		}
		sess.turns = append(sess.turns, project.Messages...)
		sess.link(project.ID, userID, project.Name)

	case strings.TrimSpace(req.InitialDocument) != "":
		sess.history = history.NewFromDocument(model.Document{
			Content:      strings.TrimSpace(req.InitialDocument),
			SourcePrompt: templateSource,
			CreatedAt:    time.Now(),
		})
		sess.link("", userID, "")
		sess.addTurn(model.RoleAssistant, welcomeText, nil)

	default:
		sess.link("", userID, "")
		sess.addTurn(model.RoleAssistant, welcomeText, nil)
	}

	w.mu.Lock()
	w.sessions[sess.ID] = sess
	w.mu.Unlock()

	logger.Infof("Workspace session %s created (project %q)", sess.ID, sess.ProjectID())
	return sess, nil
}

func (w *WorkspaceService) Get(id string) (*Session, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	sess, ok := w.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// List returns all open sessions, most recently active first.
func (w *WorkspaceService) List() []model.SessionResponse {
	w.mu.RLock()
	out := make([]model.SessionResponse, 0, len(w.sessions))
	for _, sess := range w.sessions {
		out = append(out, sess.Summary())
	}
	w.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (w *WorkspaceService) Delete(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(w.sessions, id)
	return nil
}

// Generate runs one user turn on the session.
func (w *WorkspaceService) Generate(ctx context.Context, id string, in TurnInput, onPreview PreviewFunc) (Outcome, error) {
	sess, err := w.Get(id)
	if err != nil {
		return Outcome{}, err
	}
	return w.Run(ctx, sess, in, onPreview), nil
}

// Precheck returns the session if a turn could start on it now: it exists, is idle,
// and the provider, credential and identity preconditions hold.
func (w *WorkspaceService) Precheck(id string, in TurnInput) (*Session, error) {
	sess, err := w.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.Generating() {
		return nil, ErrGenerationInFlight
	}
	if err := w.gen.Check(sess, in); err != nil {
		return nil, err
	}
	return sess, nil
}

// Run handles one turn on a session obtained from Get or Precheck.
func (w *WorkspaceService) Run(ctx context.Context, sess *Session, in TurnInput, onPreview PreviewFunc) Outcome {
	return w.gen.HandleUserTurn(ctx, sess, in, onPreview)
}

// Revert moves the cursor to index and records it in the transcript.
func (w *WorkspaceService) Revert(id string, index int) (model.Document, model.ConversationTurn, error) {
	sess, release, err := w.acquire(id)
	if err != nil {
		return model.Document{}, model.ConversationTurn{}, err
	}
	defer release()

	doc, err := sess.history.Revert(index)
	if err != nil {
		return model.Document{}, model.ConversationTurn{}, err
	}
	turn := sess.addTurn(model.RoleAssistant, fmt.Sprintf(revertedTextFmt, index+1), nil)
	return doc, turn, nil
}

// Reset starts a new project in the session: history and transcript are cleared.
func (w *WorkspaceService) Reset(id string) (model.ConversationTurn, error) {
	sess, release, err := w.acquire(id)
	if err != nil {
		return model.ConversationTurn{}, err
	}
	defer release()

	sess.history.Reset()
	return sess.resetTurns(welcomeBackText), nil
}

func (w *WorkspaceService) Version(id string, index int) (model.Document, error) {
	sess, err := w.Get(id)
	if err != nil {
		return model.Document{}, err
	}
	return sess.history.At(index)
}

// Current returns the document at the cursor.
func (w *WorkspaceService) Current(id string) (model.Document, error) {
	sess, err := w.Get(id)
	if err != nil {
		return model.Document{}, err
	}
	doc, ok := sess.history.Current()
	if !ok {
		return model.Document{}, ErrNoDocument
	}
	return doc, nil
}

// Diff renders a unified diff between two versions of the session.
func (w *WorkspaceService) Diff(id string, from, to int) (string, error) {
	sess, err := w.Get(id)
	if err != nil {
		return "", err
	}

	a, err := sess.history.At(from)
	if err != nil {
		return "", err
	}
	b, err := sess.history.At(to)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.Content),
		B:        difflib.SplitLines(b.Content),
		FromFile: fmt.Sprintf("Version %d", from+1),
		ToFile:   fmt.Sprintf("Version %d", to+1),
		Context:  3,
	})
}

// Save stores the current document and transcript as a project owned by userID. A
// session opened from a project updates that project in place.
func (w *WorkspaceService) Save(ctx context.Context, id, userID, name string) (*model.Project, model.ConversationTurn, error) {
	if userID == "" {
		return nil, model.ConversationTurn{}, ErrNotAuthenticated
	}
	sess, release, err := w.acquire(id)
	if err != nil {
		return nil, model.ConversationTurn{}, err
	}
	defer release()
	doc, ok := sess.history.Current()
	if !ok {
		return nil, model.ConversationTurn{}, ErrNoDocument
	}

	projectID := sess.ProjectID()
	name = strings.TrimSpace(name)
	if projectID != "" {
		existing, err := w.ownedProject(ctx, projectID, userID)
		switch {
		case errors.Is(err, storage.ErrProjectNotFound):
			projectID = ""
		case err != nil:
			return nil, model.ConversationTurn{}, err
		case name == "":
			name = existing.Name
		}
	}
	if name == "" {
		name = defaultProjectName
	}

	saved, err := w.store.Save(ctx, &model.Project{
		ID:       projectID,
		UserID:   userID,
		Name:     name,
		Code:     doc.Content,
		Messages: sess.Turns(),
	})
	if err != nil {
		return nil, model.ConversationTurn{}, fmt.Errorf("failed to save project: %w", err)
	}

	sess.link(saved.ID, userID, saved.Name)
	sess.history.MarkSaved()
	turn := sess.addTurn(model.RoleAssistant, fmt.Sprintf(savedTextFmt, saved.Name), nil)

	logger.Infof("Session %s saved as project %s", sess.ID, saved.ID)
	return saved, turn, nil
}

// acquire takes the session's in-flight guard so no generation can start until the
// caller runs release.
func (w *WorkspaceService) acquire(id string) (*Session, func(), error) {
	sess, err := w.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !sess.begin() {
		return nil, nil, ErrGenerationInFlight
	}
	return sess, sess.end, nil
}

func (w *WorkspaceService) ownedProject(ctx context.Context, projectID, userID string) (*model.Project, error) {
	project, err := w.store.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrForbidden
	}
	return project, nil
}

func (w *WorkspaceService) cleanupIdleSessions() {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.removeIdle(time.Now().Add(-w.config.TTL))
		case <-w.stop:
			return
		}
	}
}

func (w *WorkspaceService) removeIdle(cutoff time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for id, sess := range w.sessions {
		if sess.Generating() || !sess.UpdatedAt().Before(cutoff) {
			continue
		}
		delete(w.sessions, id)
		removed++
	}
	if removed > 0 {
		logger.Infof("Removed %d idle workspace sessions", removed)
	}
	return removed
}
