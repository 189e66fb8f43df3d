// Package federation drives third-party OAuth2 sign-in: the authorize
// redirect, the code exchange, and completion into a local session token.
package federation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/identity"
)

var ErrUnknownProvider = errors.New("unknown oauth2 provider")

// Provider performs one provider's half of the handshake and reports the
// identity it authenticated.
type Provider interface {
	ID() user.Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (identity.Principal, error)
}

// Registry maps registration ids ("google", "github") to configured providers.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[p.ID().RegistrationID()] = p
	}
	return r
}

func (r *Registry) Lookup(registrationID string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(registrationID))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, registrationID)
	}
	return p, nil
}

// Enabled lists configured registration ids.
func (r *Registry) Enabled() []string {
	out := make([]string, 0, len(r.providers))
	for id := range r.providers {
		out = append(out, id)
	}
	return out
}
