// Package users defines the persistence contract for user directory records
// and its Postgres, JSON-file and in-memory implementations.
package users

import (
	"context"

	"github.com/usernamedt/multitext-server/internal/server/models"
)

// Repository stores user records keyed by username. Get returns
// common.ErrorNotFound for unknown users; Create returns
// common.ErrorAlreadyExists on a username collision. The update methods
// replace a single field of an existing record.
type Repository interface {
	Get(ctx context.Context, username string) (*models.User, error)
	All(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateFiles(ctx context.Context, username string, files []string) error
	UpdateSharedFiles(ctx context.Context, username string, shared map[string][]string) error
}
