package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/usernamedt/multitext-server/internal/server/models"
)

// FileRepository persists the whole user directory in a single JSON document,
// the default backend when no database DSN is configured. Records live in
// memory; every mutation rewrites the file through a rename so a crash never
// leaves a truncated database behind.
type FileRepository struct {
	mu   sync.Mutex
	path string
	mem  *InMemoryRepository
}

type fileFormat struct {
	Users []*models.User `json:"users"`
}

func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{path: path, mem: NewInMemoryRepository()}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read user db: %w", err)
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse user db: %w", err)
	}
	for _, user := range doc.Users {
		if err := r.mem.Create(context.Background(), user); err != nil {
			return nil, fmt.Errorf("load user %q: %w", user.Name, err)
		}
	}
	return r, nil
}

func (r *FileRepository) Get(ctx context.Context, username string) (*models.User, error) {
	return r.mem.Get(ctx, username)
}

func (r *FileRepository) All(ctx context.Context) ([]*models.User, error) {
	return r.mem.All(ctx)
}

func (r *FileRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mem.Create(ctx, user); err != nil {
		return err
	}
	return r.persist(ctx)
}

func (r *FileRepository) UpdateFiles(ctx context.Context, username string, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mem.UpdateFiles(ctx, username, files); err != nil {
		return err
	}
	return r.persist(ctx)
}

func (r *FileRepository) UpdateSharedFiles(ctx context.Context, username string, shared map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mem.UpdateSharedFiles(ctx, username, shared); err != nil {
		return err
	}
	return r.persist(ctx)
}

func (r *FileRepository) persist(ctx context.Context) error {
	users, err := r.mem.All(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileFormat{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user db: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o770); err != nil {
		return fmt.Errorf("write user db: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o660); err != nil {
		return fmt.Errorf("write user db: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("write user db: %w", err)
	}
	return nil
}
