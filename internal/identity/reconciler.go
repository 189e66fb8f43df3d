// Package identity maps credential logins and federated sign-ins onto exactly
// one local user record.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// createAttempts bounds the lookup/insert loop when inserts keep losing the
// uniqueness race.
const createAttempts = 3

// sharedResolveTimeout bounds a lookup/insert shared by concurrent sign-ins.
const sharedResolveTimeout = 5 * time.Second

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	// Create returns user.ErrEmailTaken when the email uniqueness constraint fires.
	Create(ctx context.Context, u user.User) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
}

// Principal is the identity reported by an external provider after its own
// handshake succeeded. An empty Email means the provider did not return one.
type Principal struct {
	Provider   user.Provider
	Email      string
	Attributes map[string]any
}

// providers whose user APIs may legitimately omit the email address
var emailOptional = map[user.Provider]string{
	user.ProviderGitHub: "Unable to get email from GitHub. Please set a public email in your GitHub profile.",
}

type Reconciler struct {
	users    UserStore
	verifier security.PasswordHasher
	log      *slog.Logger
	now      func() time.Time
	inflight singleflight.Group
}

func NewReconciler(users UserStore, verifier security.PasswordHasher, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}

	return &Reconciler{
		users:    users,
		verifier: verifier,
		log:      log,
		now:      time.Now,
	}
}

// ResolveFederated returns the canonical user for a federated sign-in,
// creating it on first sight and rebinding its provider when it changed.
func (r *Reconciler) ResolveFederated(ctx context.Context, p Principal) (user.User, error) {
	if p.Email == "" {
		if guidance, ok := emailOptional[p.Provider]; ok {
			return user.User{}, &MissingEmailError{Provider: p.Provider, Guidance: guidance}
		}

		return user.User{}, fmt.Errorf("lookup %s user: %w", p.Provider, ErrEmailRequired)
	}

	key := string(p.Provider) + ":" + p.Email

	// the shared call must not inherit the first caller's cancellation
	ch := r.inflight.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		return r.resolveFederated(sctx, p)
	})

	select {
	case <-ctx.Done():
		return user.User{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return user.User{}, res.Err
		}
		return res.Val.(user.User), nil
	}
}

func (r *Reconciler) resolveFederated(ctx context.Context, p Principal) (user.User, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, err := r.users.GetByEmail(ctx, p.Email)

		if err == nil {
			return r.bindProvider(ctx, existing, p.Provider)
		}

		if !errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("lookup user: %w", err)
		}

		created, err := r.users.Create(ctx, r.newFederatedUser(p))
		if err == nil {
			r.log.InfoContext(ctx, "federated user created",
				"user_id", created.ID,
				"provider", created.Provider,
			)
			return created, nil
		}

		if !errors.Is(err, user.ErrEmailTaken) {
			return user.User{}, fmt.Errorf("create user: %w", err)
		}

		// a concurrent sign-in inserted the row first; resolve it by lookup
		r.log.DebugContext(ctx, "federated create lost uniqueness race", "attempt", attempt+1)
	}

	return user.User{}, fmt.Errorf("create user: %w", user.ErrEmailTaken)
}

// bindProvider keys identity by email only: a sign-in through a different
// provider moves the account to that provider.
func (r *Reconciler) bindProvider(ctx context.Context, u user.User, provider user.Provider) (user.User, error) {
	if u.Provider == provider {
		return u, nil
	}

	previous := u.Provider
	u.Provider = provider
	u.UpdatedAt = r.now().UTC()

	updated, err := r.users.Update(ctx, u)
	if err != nil {
		return user.User{}, fmt.Errorf("update provider: %w", err)
	}

	r.log.InfoContext(ctx, "user provider switched",
		"user_id", updated.ID,
		"from", previous,
		"to", provider,
	)

	return updated, nil
}

func (r *Reconciler) newFederatedUser(p Principal) user.User {
	now := r.now().UTC()

	u := user.User{
		ID:        uuid.NewString(),
		Email:     p.Email,
		Role:      user.RoleUser,
		Provider:  p.Provider,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if avatar, ok := p.Attributes["avatar"].(string); ok {
		u.Avatar = avatar
	}

	return u
}

// ResolveCredentials checks an email/password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (r *Reconciler) ResolveCredentials(ctx context.Context, email, password string) (user.User, error) {
	u, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if u.Provider != user.ProviderEmail {
		return user.User{}, &WrongProviderError{Provider: u.Provider}
	}

	if !r.verifier.Matches(password, u.PasswordHash) {
		return user.User{}, ErrInvalidCredentials
	}

	return u, nil
}
