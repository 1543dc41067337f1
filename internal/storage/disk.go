package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sitegen-backend/internal/model"
	"sitegen-backend/pkg/logger"
)

// DiskStorage keeps one JSON file per project plus an index used for listing. Writes
// go through a temp file and a rename.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Project
	cacheSize int
	index     map[string]*ProjectIndex
}

type ProjectIndex struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Project),
		cacheSize: cacheSize,
		index:     make(map[string]*ProjectIndex),
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized at %s (%d projects)", d.dataDir, len(d.index))
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "projects"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "projects.json")
}

func (d *DiskStorage) projectPath(id string) string {
	return filepath.Join(d.dataDir, "projects", id+".json")
}

func (d *DiskStorage) loadIndex() error {
	data, err := os.ReadFile(d.indexPath())
	if os.IsNotExist(err) {
		return d.saveIndex()
	}
	if err != nil {
		return err
	}

	var entries []*ProjectIndex
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	d.index = make(map[string]*ProjectIndex, len(entries))
	for _, e := range entries {
		d.index[e.ID] = e
	}
	return nil
}

func (d *DiskStorage) saveIndex() error {
	entries := make([]*ProjectIndex, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})

	return writeJSON(d.indexPath(), entries)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (d *DiskStorage) loadProjectFromFile(id string) (*model.Project, error) {
	data, err := os.ReadFile(d.projectPath(id))
	if err != nil {
		return nil, err
	}

	var project model.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &project, nil
}

func (d *DiskStorage) List(ctx context.Context, userID string) ([]*model.Project, error) {
	d.mu.RLock()
	var ids []string
	for id, e := range d.index {
		if e.UserID == userID {
			ids = append(ids, id)
		}
	}
	d.mu.RUnlock()

	projects := make([]*model.Project, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := d.Get(ctx, id)
		if err != nil {
			logger.Errorf("Failed to load project %s: %v", id, err)
			continue
		}
		projects = append(projects, p)
	}
	sortByUpdated(projects)

	return projects, nil
}

func (d *DiskStorage) Get(ctx context.Context, id string) (*model.Project, error) {
	d.mu.RLock()
	if p, exists := d.cache[id]; exists {
		d.mu.RUnlock()
		return cloneProject(p), nil
	}
	_, indexed := d.index[id]
	d.mu.RUnlock()

	if !indexed {
		return nil, ErrProjectNotFound
	}

	project, err := d.loadProjectFromFile(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[id] = project
	d.evictCache()
	d.mu.Unlock()

	return cloneProject(project), nil
}

func (d *DiskStorage) Save(ctx context.Context, project *model.Project) (*model.Project, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var existing *model.Project
	if project != nil && project.ID != "" {
		if e, ok := d.index[project.ID]; ok {
			existing = &model.Project{CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
		}
	}
	saved, err := stamp(project, existing)
	if err != nil {
		return nil, err
	}

	if err := writeJSON(d.projectPath(saved.ID), saved); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.index[saved.ID] = &ProjectIndex{
		ID:        saved.ID,
		UserID:    saved.UserID,
		Name:      saved.Name,
		CreatedAt: saved.CreatedAt,
		UpdatedAt: saved.UpdatedAt,
	}
	if err := d.saveIndex(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[saved.ID] = saved
	d.evictCache()

	return cloneProject(saved), nil
}

func (d *DiskStorage) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[id]; !exists {
		return ErrProjectNotFound
	}

	if err := os.Remove(d.projectPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.index, id)
	delete(d.cache, id)

	if err := d.saveIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, p := range d.cache {
		entries = append(entries, cacheEntry{id: id, updatedAt: p.UpdatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Project)
	return nil
}

// Backup copies the project files and the index into a timestamped directory.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))
	dstDir := filepath.Join(backupDir, "projects")
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := copyDir(filepath.Join(d.dataDir, "projects"), dstDir); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := copyFile(d.indexPath(), filepath.Join(backupDir, "projects.json")); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}
