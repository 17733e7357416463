package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Google implements the Provider interface for Google accounts.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogle constructs a Google provider.
func NewGoogle(creds config.OAuthProviderConfig, redirectBase string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  redirectBase + "/google",
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// Name returns the provider identifier.
func (g *Google) Name() models.AuthProvider {
	return models.ProviderGoogle
}

// AuthCodeURL returns the provider URL the client should redirect to.
func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange swaps the authorization code for a token and fetches the profile.
func (g *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}

	resp, err := g.cfg.Client(ctx, tok).Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: unexpected status %d", resp.StatusCode)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("google userinfo: incomplete profile")
	}

	username := info.Email
	if at := strings.Index(username, "@"); at > 0 {
		username = username[:at]
	}

	return &Profile{
		Provider:   models.ProviderGoogle,
		ProviderID: info.ID,
		Email:      info.Email,
		Username:   username,
		FullName:   info.Name,
		AvatarURL:  info.Picture,
	}, nil
}
