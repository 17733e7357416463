package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskflow-api/internal/middleware"
	"github.com/noah-isme/taskflow-api/internal/models"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
	"github.com/noah-isme/taskflow-api/pkg/response"
)

type userServiceMock struct {
	resp   *models.UserInfo
	err    error
	lastID string
}

func (m *userServiceMock) Get(ctx context.Context, id string) (*models.UserInfo, error) {
	m.lastID = id
	return m.resp, m.err
}

func TestUserHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{
		resp: &models.UserInfo{ID: "user-1", Email: "a@example.com", Username: "alice"},
	}
	handler := NewUserHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.AccessClaims{UserID: "user-1", Email: "a@example.com"})

	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", mockSvc.lastID)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
}

func TestUserHandlerMeWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(&userServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	c.Request = req

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandlerMeServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &userServiceMock{err: appErrors.ErrNotFound}
	handler := NewUserHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.AccessClaims{UserID: "gone", Email: "x@example.com"})

	handler.Me(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
