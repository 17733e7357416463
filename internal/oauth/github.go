package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
)

const githubUserInfoURL = "https://api.github.com/user"

// GitHub implements the Provider interface for GitHub accounts.
type GitHub struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGitHub constructs a GitHub provider.
func NewGitHub(creds config.OAuthProviderConfig, redirectBase string) *GitHub {
	return &GitHub{
		cfg: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoints.GitHub,
			RedirectURL:  redirectBase + "/github",
			Scopes:       []string{"read:user", "user:email"},
		},
		userInfoURL: githubUserInfoURL,
	}
}

// Name returns the provider identifier.
func (g *GitHub) Name() models.AuthProvider {
	return models.ProviderGitHub
}

// AuthCodeURL returns the provider URL the client should redirect to.
func (g *GitHub) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange swaps the authorization code for a token and fetches the profile.
func (g *GitHub) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github token exchange: %w", err)
	}

	resp, err := g.cfg.Client(ctx, tok).Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("github userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github userinfo: unexpected status %d", resp.StatusCode)
	}

	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("github userinfo: %w", err)
	}
	if info.ID == 0 || info.Email == "" {
		return nil, fmt.Errorf("github userinfo: incomplete profile")
	}

	return &Profile{
		Provider:   models.ProviderGitHub,
		ProviderID: strconv.FormatInt(info.ID, 10),
		Email:      info.Email,
		Username:   info.Login,
		FullName:   info.Name,
		AvatarURL:  info.AvatarURL,
	}, nil
}
