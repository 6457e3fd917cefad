package repomanager

import (
	"context"
	"fmt"

	"github.com/usernamedt/multitext-server/internal/server/repositories/users"
)

// FileRepositoryManager backs the directory with a single JSON document on
// disk. It is the default when no database DSN is configured.
type FileRepositoryManager struct {
	users users.Repository
}

func NewFileRepositoryManager(path string) (*FileRepositoryManager, error) {
	repo, err := users.NewFileRepository(path)
	if err != nil {
		return nil, fmt.Errorf("user db error: %w", err)
	}
	return &FileRepositoryManager{users: repo}, nil
}

func (m *FileRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *FileRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *FileRepositoryManager) Close() error {
	return nil
}
