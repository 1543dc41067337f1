package storage

import (
	"context"
	"sync"

	"sitegen-backend/internal/model"
)

type MemoryStorage struct {
	projects map[string]*model.Project
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		projects: make(map[string]*model.Project),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) List(ctx context.Context, userID string) ([]*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if p.UserID == userID {
			projects = append(projects, cloneProject(p))
		}
	}
	sortByUpdated(projects)

	return projects, nil
}

func (m *MemoryStorage) Get(ctx context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.projects[id]
	if !exists {
		return nil, ErrProjectNotFound
	}
	return cloneProject(p), nil
}

func (m *MemoryStorage) Save(ctx context.Context, project *model.Project) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var existing *model.Project
	if project != nil && project.ID != "" {
		existing = m.projects[project.ID]
	}
	saved, err := stamp(project, existing)
	if err != nil {
		return nil, err
	}

	m.projects[saved.ID] = saved
	return cloneProject(saved), nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.projects[id]; !exists {
		return ErrProjectNotFound
	}

	delete(m.projects, id)
	return nil
}
