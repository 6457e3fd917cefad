// Package repomanager selects and wires the persistence backend for the user
// directory.
package repomanager

import (
	"context"

	"github.com/usernamedt/multitext-server/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Close() error
}
