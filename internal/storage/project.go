package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"sitegen-backend/internal/model"
)

// stamp prepares p for an upsert: a new project gets an ID and CreatedAt, and every
// save moves UpdatedAt forward.
func stamp(p *model.Project, existing *model.Project) (*model.Project, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil project", ErrInvalidData)
	}

	out := cloneProject(p)
	now := time.Now()
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	switch {
	case existing != nil:
		out.CreatedAt = existing.CreatedAt
	case out.CreatedAt.IsZero():
		out.CreatedAt = now
	}
	if existing != nil && !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Nanosecond)
	}
	out.UpdatedAt = now
	if out.Messages == nil {
		out.Messages = []model.ConversationTurn{}
	}
	return out, nil
}

func cloneProject(p *model.Project) *model.Project {
	out := *p
	out.Messages = append([]model.ConversationTurn(nil), p.Messages...)
	return &out
}

func sortByUpdated(projects []*model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
}
