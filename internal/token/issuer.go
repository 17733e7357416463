package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
)

// refreshTokenBytes is the entropy of an opaque refresh token value.
const refreshTokenBytes = 32

// Issuer mints access and refresh tokens. It performs no I/O: persisting
// refresh tokens is the ledger's job, invoked by the auth service.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer validates the signing configuration and returns an Issuer.
// An empty secret is a fatal configuration error: callers are expected to
// abort startup rather than continue without signed tokens.
func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if cfg.SecretKey == "" {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "SECRET_KEY must not be empty")
	}
	return &Issuer{
		secret:     []byte(cfg.SecretKey),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}, nil
}

// IssueAccessToken returns a signed HS256 access token for the user along
// with its expiry instant.
func (i *Issuer) IssueAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := i.now().UTC()
	expiresAt := issuedAt.Add(i.accessTTL)
	claims := &models.AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenKind: models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken returns a crypto-random opaque token value and the
// expiry the ledger should record for it.
func (i *Issuer) IssueRefreshToken() (string, time.Time, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, err
	}
	return base64.RawURLEncoding.EncodeToString(buf), i.now().UTC().Add(i.refreshTTL), nil
}

// AccessTokenTTL exposes the configured access token lifetime.
func (i *Issuer) AccessTokenTTL() time.Duration {
	return i.accessTTL
}
