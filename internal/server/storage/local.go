package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/filex"
)

// LocalStore keeps documents as plain files under usersDir/<owner>/<filename>.
type LocalStore struct {
	usersDir string
}

func NewLocalStore(usersDir string) (*LocalStore, error) {
	dir, err := filex.EnsureDir(usersDir)
	if err != nil {
		return nil, fmt.Errorf("users dir: %w", err)
	}
	return &LocalStore{usersDir: dir}, nil
}

func (s *LocalStore) path(owner, filename string) string {
	return filepath.Join(s.usersDir, owner, filename)
}

func (s *LocalStore) Read(ctx context.Context, owner, filename string) (string, error) {
	data, err := os.ReadFile(s.path(owner, filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	return string(data), nil
}

func (s *LocalStore) Write(ctx context.Context, owner, filename, content string) error {
	if _, err := filex.EnsureDir(filepath.Join(s.usersDir, owner)); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	if err := os.WriteFile(s.path(owner, filename), []byte(content), 0o660); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	return nil
}

func (s *LocalStore) Create(ctx context.Context, owner, filename string) error {
	exists, err := s.Exists(ctx, owner, filename)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrorAlreadyExists
	}
	return s.Write(ctx, owner, filename, "")
}

func (s *LocalStore) Exists(ctx context.Context, owner, filename string) (bool, error) {
	info, err := os.Stat(s.path(owner, filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalStore) ListFiles(ctx context.Context, owner string) ([]string, error) {
	dir, err := filex.EnsureDir(filepath.Join(s.usersDir, owner))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorPersistence, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}
