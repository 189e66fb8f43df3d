package db

import (
	"context"
	"testing"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/repo/memory"
	"github.com/geocoder89/authservice/internal/security"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdminUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUsersRepo()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	if err := EnsureAdminUser(ctx, store, hasher, "", "", nil); err != nil {
		t.Fatalf("empty config should be a no-op: %v", err)
	}

	if err := EnsureAdminUser(ctx, store, hasher, "admin@x.com", "s3cret", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	u, err := store.GetByEmail(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != user.RoleAdmin || u.Provider != user.ProviderEmail || !u.IsActive() {
		t.Fatalf("unexpected admin: %+v", u)
	}
	if !security.Verify(u.PasswordHash, "s3cret") {
		t.Fatalf("admin password hash does not verify")
	}

	// second run keeps the existing record
	if err := EnsureAdminUser(ctx, store, hasher, "admin@x.com", "other", nil); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	again, _ := store.GetByEmail(ctx, "admin@x.com")
	if again.PasswordHash != u.PasswordHash {
		t.Fatalf("existing admin was overwritten")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 migration files, got %d", len(entries))
	}
}
