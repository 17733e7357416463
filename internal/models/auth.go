package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKindAccess is the kind claim stamped into every access token.
const TokenKindAccess = "access"

// RegisterRequest holds the payload for creating a local account.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,max=32"`
	Password  string `json:"password" validate:"required,min=6"`
	FullName  string `json:"full_name" validate:"max=128"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// LogoutRequest revokes the presented refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// TokenResponse returns an issued token pair. TokenType is always "bearer".
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	User         *UserInfo `json:"user,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Username  string       `json:"username"`
	FullName  string       `json:"full_name"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	Provider  AuthProvider `json:"provider"`
	Verified  bool         `json:"verified"`
}

// NewUserInfo projects a stored user onto its public representation.
func NewUserInfo(u *User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		Provider:  u.Provider,
		Verified:  u.Verified,
	}
}

// AccessClaims represents the JWT payload for access tokens.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenKind string `json:"token_kind"`
	jwt.RegisteredClaims
}
