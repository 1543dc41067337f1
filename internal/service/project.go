package service

import (
	"context"
	"time"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/storage"
	"sitegen-backend/pkg/logger"
)

// ProjectService exposes saved projects to their owners.
type ProjectService struct {
	store storage.ProjectStore
}

func NewProjectService(store storage.ProjectStore) *ProjectService {
	return &ProjectService{store: store}
}

func (p *ProjectService) List(ctx context.Context, userID string) ([]*model.Project, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return p.store.List(ctx, userID)
}

func (p *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	project, err := p.store.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.UserID != userID {
		return ErrForbidden
	}
	return p.store.Delete(ctx, projectID)
}

// RunBackups backs the store up every interval until ctx is done.
func (p *ProjectService) RunBackups(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.store.Backup(); err != nil {
				logger.Errorf("Project backup failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
