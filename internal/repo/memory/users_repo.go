package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo keeps users in a map and enforces email uniqueness the way the
// postgres unique index does.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[u.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if current.Email != u.Email {
		if _, taken := r.byEmail[u.Email]; taken {
			return user.User{}, user.ErrEmailTaken
		}
		delete(r.byEmail, current.Email)
		r.byEmail[u.Email] = u.ID
	}

	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) UpdateStatus(ctx context.Context, id string, status user.Status) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u.Status = status
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}

func (r *UsersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.patch(id, func(u *user.User) {
		u.LastLogin = &at
		u.UpdatedAt = at
	})
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.patch(id, func(u *user.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (r *UsersRepo) patch(id string, fn func(*user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrNotFound
	}

	fn(&u)
	r.items[id] = u

	return nil
}

// List returns users ordered by creation time, oldest first.
func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.items))
	for _, u := range r.items {
		out = append(out, u)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return page(out, limit, offset), nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
