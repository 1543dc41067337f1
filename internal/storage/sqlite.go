package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"sitegen-backend/internal/model"
	"sitegen-backend/pkg/logger"
)

// projectRecord is the table row. Turns are kept as a JSON text column.
type projectRecord struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:255;index"`
	Name         string `gorm:"size:255"`
	Code         string `gorm:"type:text"`
	MessagesJSON string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"index"`
}

func (projectRecord) TableName() string {
	return "projects"
}

type SQLiteStorage struct {
	path string
	db   *gorm.DB
}

func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

func (s *SQLiteStorage) Init() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", s.path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(logWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: open sqlite: %v", ErrStorageInit, err)
	}

	// A single connection avoids "database is locked" under concurrent writers.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&projectRecord{}); err != nil {
		return fmt.Errorf("%w: auto migrate: %v", ErrStorageInit, err)
	}

	s.db = db
	logger.Infof("SQLite storage initialized at %s", s.path)
	return nil
}

func (s *SQLiteStorage) List(ctx context.Context, userID string) ([]*model.Project, error) {
	var records []projectRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at desc").Find(&records).Error; err != nil {
		return nil, err
	}

	projects := make([]*model.Project, 0, len(records))
	for i := range records {
		p, err := records[i].toProject()
		if err != nil {
			logger.Errorf("Skipping project %s: %v", records[i].ID, err)
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (*model.Project, error) {
	var record projectRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return record.toProject()
}

func (s *SQLiteStorage) Save(ctx context.Context, project *model.Project) (*model.Project, error) {
	var saved *model.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing *model.Project
		if project != nil && project.ID != "" {
			var record projectRecord
			err := tx.Select("created_at", "updated_at").Where("id = ?", project.ID).Take(&record).Error
			switch {
			case err == nil:
				existing = &model.Project{CreatedAt: record.CreatedAt, UpdatedAt: record.UpdatedAt}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		p, err := stamp(project, existing)
		if err != nil {
			return err
		}
		record, err := fromProject(p)
		if err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "name", "code", "messages_json", "updated_at"}),
		}).Create(record).Error; err != nil {
			return err
		}
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&projectRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Backup writes a consistent copy of the database next to it with VACUUM INTO.
func (s *SQLiteStorage) Backup() error {
	dir := filepath.Join(filepath.Dir(s.path), "backup")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	target := filepath.Join(dir, fmt.Sprintf("projects_%d.db", time.Now().UnixNano()))
	if err := s.db.Exec("VACUUM INTO ?", target).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", target)
	return nil
}

func fromProject(p *model.Project) (*projectRecord, error) {
	messages, err := json.Marshal(p.Messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &projectRecord{
		ID:           p.ID,
		UserID:       p.UserID,
		Name:         p.Name,
		Code:         p.Code,
		MessagesJSON: string(messages),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

func (r *projectRecord) toProject() (*model.Project, error) {
	p := &model.Project{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Code:      r.Code,
		Messages:  []model.ConversationTurn{},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.MessagesJSON != "" {
		if err := json.Unmarshal([]byte(r.MessagesJSON), &p.Messages); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	return p, nil
}

// logWriter routes gorm's logger into logrus.
type logWriter struct{}

func (logWriter) Printf(format string, args ...interface{}) {
	logger.Warnf(strings.TrimSpace(format), args...)
}
