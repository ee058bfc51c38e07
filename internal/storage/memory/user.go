package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rryowa/krychek/internal/models"
	"github.com/rryowa/krychek/internal/storage"
)

// UserRepository is the user directory used when no database is configured.
type UserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]models.User)}
}

func (r *UserRepository) UpsertUser(_ context.Context, identity models.Identity, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[identity.SubjectID]
	if !ok {
		r.nextID++
		user = models.User{ID: r.nextID, SpotifyID: identity.SubjectID, CreatedAt: at}
	}
	user.Email = identity.Email
	user.DisplayName = identity.DisplayName
	user.LastLoginAt = at
	r.users[identity.SubjectID] = user

	return &user, nil
}

func (r *UserRepository) GetUserBySpotifyID(_ context.Context, spotifyID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[spotifyID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

func (r *UserRepository) ListUsers(_ context.Context, limit int) ([]models.User, error) {
	r.mu.RLock()
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].LastLoginAt.Equal(users[j].LastLoginAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].LastLoginAt.After(users[j].LastLoginAt)
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
