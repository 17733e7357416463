// Package oauth abstracts the external identity providers. The rest of the
// auth core only ever sees a verified Profile; redirect handling and token
// exchange against the provider are contained here.
package oauth

import (
	"context"
	"fmt"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
)

// Profile is a verified identity assertion from an external provider.
type Profile struct {
	Provider   models.AuthProvider
	ProviderID string
	Email      string
	Username   string
	FullName   string
	AvatarURL  string
}

// Provider performs the authorization-code flow for one external identity
// provider and returns the verified profile.
type Provider interface {
	Name() models.AuthProvider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[models.AuthProvider]Provider
}

// NewRegistry registers every provider that has credentials configured.
func NewRegistry(cfg config.OAuthConfig) *Registry {
	r := &Registry{providers: make(map[models.AuthProvider]Provider)}
	if cfg.Google.ClientID != "" {
		r.Register(NewGoogle(cfg.Google, cfg.RedirectBase))
	}
	if cfg.GitHub.ClientID != "" {
		r.Register(NewGitHub(cfg.GitHub, cfg.RedirectBase))
	}
	return r
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under the given name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[models.AuthProvider(name)]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider %q", name)
	}
	return p, nil
}
