package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(config.OAuthConfig{
		Google:       config.OAuthProviderConfig{ClientID: "gid", ClientSecret: "gs"},
		GitHub:       config.OAuthProviderConfig{ClientID: "hid", ClientSecret: "hs"},
		RedirectBase: "http://localhost:3000/auth/callback",
	})

	google, err := reg.Get("google")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, google.Name())
	assert.Contains(t, google.AuthCodeURL("state-1"), "state=state-1")

	github, err := reg.Get("github")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGitHub, github.Name())

	_, err = reg.Get("gitlab")
	require.Error(t, err)
}

func TestRegistrySkipsUnconfigured(t *testing.T) {
	reg := NewRegistry(config.OAuthConfig{})
	_, err := reg.Get("google")
	require.Error(t, err)
}

func TestGitHubExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"gh-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"login":"octo","name":"Octo Cat","email":"octo@example.com","avatar_url":"https://example.com/a.png"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gh := NewGitHub(config.OAuthProviderConfig{ClientID: "id", ClientSecret: "secret"}, "http://localhost/cb")
	gh.cfg.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	gh.userInfoURL = srv.URL + "/user"

	profile, err := gh.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGitHub, profile.Provider)
	assert.Equal(t, "42", profile.ProviderID)
	assert.Equal(t, "octo@example.com", profile.Email)
	assert.Equal(t, "octo", profile.Username)
}

func TestGoogleExchangeIncompleteProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"g-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"","email":""}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGoogle(config.OAuthProviderConfig{ClientID: "id", ClientSecret: "secret"}, "http://localhost/cb")
	g.cfg.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	g.userInfoURL = srv.URL + "/userinfo"

	_, err := g.Exchange(context.Background(), "code-1")
	require.Error(t, err)
}
