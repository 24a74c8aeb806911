package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
	"github.com/DauBapp/WebCoCaro-DACN/internal/repository"
)

// UserRepository 内存中的用户表，用户名唯一
type UserRepository struct {
	mu     sync.RWMutex
	byID   map[uint]domain.User
	nextID uint
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{byID: make(map[uint]domain.User)}
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Username, username) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *UserRepository) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) Save(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.byID {
		if id != user.ID && strings.EqualFold(u.Username, user.Username) {
			return repository.ErrDuplicateEntry
		}
	}
	now := time.Now()
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.byID[user.ID] = *user
	return nil
}
