package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleIssuer   = "https://accounts.google.com"
	googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// overridable for tests
	Endpoint oauth2.Endpoint
	Verifier IDTokenVerifier
}

type GoogleProvider struct {
	oauth    oauth2.Config
	verifier IDTokenVerifier
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogleProvider builds the provider. ctx bounds the lifetime of the
// remote key set used to verify id tokens.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) *GoogleProvider {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.Google
	}

	verifier := cfg.Verifier
	if verifier == nil {
		keySet := oidc.NewRemoteKeySet(ctx, googleCertsURL)
		verifier = oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: cfg.ClientID})
	}

	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: verifier,
	}
}

func (p *GoogleProvider) ID() user.Provider {
	return user.ProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (identity.Principal, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("google code exchange: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.Principal{}, errors.New("google code exchange: no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("verify google id token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return identity.Principal{}, fmt.Errorf("decode google claims: %w", err)
	}

	principal := identity.Principal{
		Provider: user.ProviderGoogle,
		Attributes: map[string]any{
			"sub":  idToken.Subject,
			"name": claims.Name,
		},
	}

	// an unverified address must not link to an existing account
	if claims.EmailVerified {
		principal.Email = claims.Email
	}
	if claims.Picture != "" {
		principal.Attributes["avatar"] = claims.Picture
	}

	return principal, nil
}

var _ Provider = (*GoogleProvider)(nil)
