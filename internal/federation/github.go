package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGitHubAPIURL = "https://api.github.com"

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// overridable for tests
	Endpoint oauth2.Endpoint
	APIURL   string
}

type GitHubProvider struct {
	oauth  oauth2.Config
	apiURL string
}

// email is null unless the account publishes one
type githubUser struct {
	ID        int64   `json:"id"`
	Login     string  `json:"login"`
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	AvatarURL string  `json:"avatar_url"`
}

func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = endpoints.GitHub
	}

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGitHubAPIURL
	}

	return &GitHubProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: apiURL,
	}
}

func (p *GitHubProvider) ID() user.Provider {
	return user.ProviderGitHub
}

func (p *GitHubProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *GitHubProvider) Exchange(ctx context.Context, code string) (identity.Principal, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("github code exchange: %w", err)
	}

	gu, err := p.fetchUser(ctx, p.oauth.Client(ctx, tok))
	if err != nil {
		return identity.Principal{}, err
	}

	principal := identity.Principal{
		Provider: user.ProviderGitHub,
		Attributes: map[string]any{
			"id":    gu.ID,
			"login": gu.Login,
			"name":  gu.Name,
		},
	}
	if gu.Email != nil {
		principal.Email = strings.TrimSpace(*gu.Email)
	}
	if gu.AvatarURL != "" {
		principal.Attributes["avatar"] = gu.AvatarURL
	}

	return principal, nil
}

func (p *GitHubProvider) fetchUser(ctx context.Context, client *http.Client) (githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return githubUser{}, fmt.Errorf("build github user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return githubUser{}, fmt.Errorf("github user request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return githubUser{}, fmt.Errorf("github user request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var gu githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return githubUser{}, fmt.Errorf("decode github user: %w", err)
	}

	return gu, nil
}

var _ Provider = (*GitHubProvider)(nil)
