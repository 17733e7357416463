package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskflow-api/internal/models"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
)

type userStoreStub struct {
	user *models.User
	err  error
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

func (s *userStoreStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func TestUserServiceGet(t *testing.T) {
	svc := NewUserService(&userStoreStub{user: &models.User{
		ID:       "user-1",
		Email:    "a@example.com",
		Username: "alice",
		Provider: models.ProviderLocal,
		Active:   true,
	}}, nil)

	info, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, models.ProviderLocal, info.Provider)
}

func TestUserServiceGetNotFound(t *testing.T) {
	svc := NewUserService(&userStoreStub{err: sql.ErrNoRows}, nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceGetDisabledAccount(t *testing.T) {
	svc := NewUserService(&userStoreStub{user: &models.User{ID: "user-1", Active: false}}, nil)

	_, err := svc.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAccountDisabled))
}
