package users

import (
	"context"
	"sort"
	"sync"

	"github.com/usernamedt/multitext-server/internal/common"
	"github.com/usernamedt/multitext-server/internal/server/models"
)

// InMemoryRepository is a map-backed Repository used in tests and as the
// building block of the JSON-file repository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: make(map[string]*models.User)}
}

func (r *InMemoryRepository) Get(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return user.Clone(), nil
}

func (r *InMemoryRepository) All(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, user.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.Name]; ok {
		return common.ErrorAlreadyExists
	}
	r.users[user.Name] = user.Clone()
	return nil
}

func (r *InMemoryRepository) UpdateFiles(ctx context.Context, username string, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return common.ErrorNotFound
	}
	user.Files = append([]string(nil), files...)
	return nil
}

func (r *InMemoryRepository) UpdateSharedFiles(ctx context.Context, username string, shared map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[username]
	if !ok {
		return common.ErrorNotFound
	}
	copied := make(map[string][]string, len(shared))
	for owner, files := range shared {
		copied[owner] = append([]string(nil), files...)
	}
	user.SharedFiles = copied
	return nil
}
