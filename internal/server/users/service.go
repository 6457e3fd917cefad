// Package users implements the user and sharing directory: account
// registration, credential checks, file ownership and share grants.
package users

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/cryptox"
	"github.com/usernamedt/multitext-server/internal/logging"
	"github.com/usernamedt/multitext-server/internal/server/models"
	userrepo "github.com/usernamedt/multitext-server/internal/server/repositories/users"
	"github.com/usernamedt/multitext-server/internal/server/storage"
)

type Service struct {
	repo   userrepo.Repository
	store  storage.DocumentStore
	logger logging.Logger
}

func NewService(repo userrepo.Repository, store storage.DocumentStore, logger logging.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		logger: logger.With("module", "users"),
	}
}

// Register creates a new account with a freshly hashed credential and empty
// owned/shared sets. A taken username yields common.ErrorAlreadyExists.
func (s *Service) Register(ctx context.Context, username, password string) error {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:        username,
		PassHash:    hash,
		Files:       []string{},
		SharedFiles: map[string][]string{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info(ctx, "registered new user", "username", username)
	return nil
}

// Authenticate reports whether the credentials identify a known account.
func (s *Service) Authenticate(ctx context.Context, username, password string) bool {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		return false
	}
	return cryptox.VerifyPassword(user.PassHash, password)
}

// AddOwnedFile creates an empty document artifact for the user and records
// the ownership. Fails with common.ErrorAlreadyExists when the file is
// already present on durable storage.
func (s *Service) AddOwnedFile(ctx context.Context, username, filename string) error {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		return err
	}

	if err := s.store.Create(ctx, username, filename); err != nil {
		return err
	}

	if !slices.Contains(user.Files, filename) {
		user.Files = append(user.Files, filename)
		if err := s.repo.UpdateFiles(ctx, username, user.Files); err != nil {
			return err
		}
	}

	s.logger.Info(ctx, "file created", "username", username, "filename", filename)
	return nil
}

// GrantShare idempotently adds filename to the grantee's shared set for the
// owner. Self-shares and unknown grantees fail.
func (s *Service) GrantShare(ctx context.Context, owner, grantee, filename string) error {
	if owner == grantee {
		return common.ErrorForbidden
	}

	user, err := s.repo.Get(ctx, grantee)
	if err != nil {
		return err
	}

	if user.SharedFiles == nil {
		user.SharedFiles = map[string][]string{}
	}
	if slices.Contains(user.SharedFiles[owner], filename) {
		return nil
	}
	user.SharedFiles[owner] = append(user.SharedFiles[owner], filename)

	if err := s.repo.UpdateSharedFiles(ctx, grantee, user.SharedFiles); err != nil {
		return err
	}

	s.logger.Info(ctx, "share granted", "owner", owner, "grantee", grantee, "filename", filename)
	return nil
}

// HasShare reports whether owner has shared filename with grantee.
func (s *Service) HasShare(ctx context.Context, owner, grantee, filename string) bool {
	user, err := s.repo.Get(ctx, grantee)
	if err != nil {
		return false
	}
	return slices.Contains(user.SharedFiles[owner], filename)
}

// IsOwner reports whether username owns filename.
func (s *Service) IsOwner(ctx context.Context, username, filename string) bool {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		return false
	}
	return slices.Contains(user.Files, filename)
}

// OwnedFiles returns the filenames owned by the user.
func (s *Service) OwnedFiles(ctx context.Context, username string) ([]string, error) {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.Files, nil
}

// SharedFiles returns the mapping owner -> filenames shared with the user.
func (s *Service) SharedFiles(ctx context.Context, username string) (map[string][]string, error) {
	user, err := s.repo.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.SharedFiles, nil
}

// Reconcile aligns directory records with durable storage: ownership and
// share entries pointing at documents that no longer exist are dropped, and
// documents found in a user's storage area that are not recorded become owned
// by that user. Called once at startup.
func (s *Service) Reconcile(ctx context.Context) error {
	all, err := s.repo.All(ctx)
	if err != nil {
		return err
	}

	for _, user := range all {
		onDisk, err := s.store.ListFiles(ctx, user.Name)
		if err != nil {
			return err
		}

		files := make([]string, 0, len(user.Files))
		for _, f := range user.Files {
			if slices.Contains(onDisk, f) {
				files = append(files, f)
			} else {
				s.logger.Info(ctx, "removed non-existing file", "username", user.Name, "filename", f)
			}
		}
		for _, f := range onDisk {
			if !slices.Contains(files, f) {
				s.logger.Info(ctx, "indexed new file", "username", user.Name, "filename", f)
				files = append(files, f)
			}
		}
		if !slices.Equal(files, user.Files) {
			if err := s.repo.UpdateFiles(ctx, user.Name, files); err != nil {
				return err
			}
		}

		if err := s.reconcileShares(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reconcileShares(ctx context.Context, user *models.User) error {
	changed := false
	shared := make(map[string][]string, len(user.SharedFiles))

	for owner, filenames := range user.SharedFiles {
		kept := make([]string, 0, len(filenames))
		for _, f := range filenames {
			exists, err := s.store.Exists(ctx, owner, f)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if exists {
				kept = append(kept, f)
			} else {
				changed = true
				s.logger.Info(ctx, "removed non-existing shared file",
					"username", user.Name, "owner", owner, "filename", f)
			}
		}
		if len(kept) > 0 {
			shared[owner] = kept
		}
	}

	if changed {
		return s.repo.UpdateSharedFiles(ctx, user.Name, shared)
	}
	return nil
}
