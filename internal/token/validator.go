package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/pkg/config"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
)

// Validator verifies access tokens. It is stateless: validity is decided
// entirely by signature and expiry, never by a ledger lookup, so any number
// of handlers can validate concurrently without a storage round trip.
type Validator struct {
	secret []byte
}

// NewValidator returns a Validator sharing the issuer's signing secret.
func NewValidator(cfg config.AuthConfig) (*Validator, error) {
	if cfg.SecretKey == "" {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "SECRET_KEY must not be empty")
	}
	return &Validator{secret: []byte(cfg.SecretKey)}, nil
}

// ValidateAccessToken parses and verifies a signed access token. Rejections
// are distinguishable: malformed input, bad signature and expiry each map to
// their own error from pkg/errors.
func (v *Validator) ValidateAccessToken(raw string) (*models.AccessClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &models.AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, appErrors.Wrap(err, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, appErrors.ErrTokenMalformed.Message)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, appErrors.Wrap(err, appErrors.ErrBadSignature.Code, appErrors.ErrBadSignature.Status, appErrors.ErrBadSignature.Message)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
		}
	}

	claims, ok := tok.Claims.(*models.AccessClaims)
	if !ok || !tok.Valid {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid token claims")
	}
	if claims.TokenKind != models.TokenKindAccess {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "not an access token")
	}

	return claims, nil
}
