package models

import "time"

// AuthProvider identifies where an account's identity is asserted.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	ProviderGitHub AuthProvider = "github"
)

// User represents an application user stored in the users table.
// PasswordHash is empty for accounts created through an external provider;
// such accounts carry Provider and ProviderID instead.
type User struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	Username     string       `db:"username" json:"username"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	AvatarURL    string       `db:"avatar_url" json:"avatar_url,omitempty"`
	Provider     AuthProvider `db:"provider" json:"provider"`
	ProviderID   string       `db:"provider_id" json:"-"`
	Active       bool         `db:"active" json:"active"`
	Verified     bool         `db:"verified" json:"verified"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
