package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sentryops/bypassguard/internal/domain/models"
	"github.com/sentryops/bypassguard/internal/domain/ports"
)

// InMemoryUserRepository is an in-memory implementation for testing
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*models.User
}

// NewInMemoryUserRepository creates a new in-memory user repository
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[int64]*models.User),
	}
}

// Seed installs a user fixture
func (r *InMemoryUserRepository) Seed(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = &user
}

func (r *InMemoryUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, ports.ErrNotFound
}

func (r *InMemoryUserRepository) ListApprovers(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	approvers := make([]*models.User, 0)
	for _, user := range r.users {
		if user.Role.IsApprover() {
			copied := *user
			approvers = append(approvers, &copied)
		}
	}
	sort.Slice(approvers, func(i, j int) bool {
		return approvers[i].ID < approvers[j].ID
	})
	return approvers, nil
}
