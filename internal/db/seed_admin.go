package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/google/uuid"
)

type AdminSeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

// EnsureAdminUser creates an ADMIN/EMAIL account when email and password are
// both set and no user owns the email yet. An existing user is left alone.
func EnsureAdminUser(ctx context.Context, store AdminSeedStore, hasher security.PasswordHasher, email, password string, log *slog.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := store.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	u, err := store.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		Provider:     user.ProviderEmail,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, user.ErrEmailTaken) {
		// another replica seeded first
		return nil
	}
	if err != nil {
		return err
	}

	if log != nil {
		log.InfoContext(ctx, "admin user seeded", "user_id", u.ID)
	}
	return nil
}
