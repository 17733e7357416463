package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/internal/oauth"
	"github.com/noah-isme/taskflow-api/pkg/config"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
	"github.com/noah-isme/taskflow-api/pkg/response"
)

type authServiceMock struct {
	registerResp *models.TokenResponse
	registerErr  error
	loginResp    *models.TokenResponse
	loginErr     error
	oauthResp    *models.TokenResponse
	oauthErr     error
	refreshResp  *models.TokenResponse
	refreshErr   error
	logoutErr    error

	lastRegister models.RegisterRequest
	lastLogin    models.LoginRequest
	lastRefresh  models.RefreshTokenRequest
	lastLogout   models.LogoutRequest
	lastProfile  *oauth.Profile
	logoutCalled bool
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	m.lastRegister = req
	return m.registerResp, m.registerErr
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	m.lastLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) OAuthLogin(ctx context.Context, profile *oauth.Profile, ip, userAgent string) (*models.TokenResponse, error) {
	m.lastProfile = profile
	return m.oauthResp, m.oauthErr
}

func (m *authServiceMock) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenResponse, error) {
	m.lastRefresh = req
	return m.refreshResp, m.refreshErr
}

func (m *authServiceMock) Logout(ctx context.Context, req models.LogoutRequest) error {
	m.logoutCalled = true
	m.lastLogout = req
	return m.logoutErr
}

func tokenResponseFixture() *models.TokenResponse {
	return &models.TokenResponse{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "bearer",
		ExpiresIn:    1800,
		IssuedAt:     time.Now().UTC(),
		User:         &models.UserInfo{ID: "user-1", Email: "a@example.com", Username: "alice"},
	}
}

func testRegistry() *oauth.Registry {
	return oauth.NewRegistry(config.OAuthConfig{
		Google: config.OAuthProviderConfig{
			ClientID:     "client-id",
			ClientSecret: "secret",
		},
		RedirectBase: "http://localhost:8080",
	})
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	c.Request = req
	handler(c)
	// Handlers invoked outside an engine never flush a bare status line
	// (204 from c.Status) into the recorder on their own.
	c.Writer.WriteHeaderNow()
	return w
}

func TestAuthHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{registerResp: tokenResponseFixture()}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Register, "/auth/register", `{"email":"a@example.com","username":"alice","password":"secret1"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "a@example.com", mockSvc.lastRegister.Email)
	assert.Equal(t, "test-agent", mockSvc.lastRegister.UserAgent)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "bearer", data["token_type"])
}

func TestAuthHandlerRegisterInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{}, testRegistry())

	w := postJSON(t, handler.Register, "/auth/register", `{"email":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{loginResp: tokenResponseFixture()}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Login, "/auth/login", `{"email":"a@example.com","password":"secret1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", mockSvc.lastLogin.Email)
}

func TestAuthHandlerLoginServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{loginErr: appErrors.ErrInvalidCredentials}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Login, "/auth/login", `{"email":"a@example.com","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, envelope.Error.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{refreshResp: tokenResponseFixture()}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Refresh, "/auth/refresh", `{"refresh_token":"tok"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", mockSvc.lastRefresh.RefreshToken)
}

// A detected reuse must be indistinguishable on the wire from any other
// invalid token: same status, same code, same message.
func TestAuthHandlerRefreshMasksReuse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{refreshErr: appErrors.Clone(appErrors.ErrTokenReused, "")}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Refresh, "/auth/refresh", `{"refresh_token":"stolen"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrInvalidToken.Code, envelope.Error.Code)
	assert.Equal(t, appErrors.ErrInvalidToken.Message, envelope.Error.Message)
	assert.NotContains(t, w.Body.String(), "REUSED")
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	handler := NewAuthHandler(mockSvc, testRegistry())

	w := postJSON(t, handler.Logout, "/auth/logout", `{"refresh_token":"tok"}`)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.logoutCalled)
	assert.Empty(t, w.Body.String())
}

func TestAuthHandlerOAuthRedirect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{}, testRegistry())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/google", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "provider", Value: "google"}}

	handler.OAuthRedirect(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	url, _ := data["url"].(string)
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "state=")
}

func TestAuthHandlerOAuthRedirectUnknownProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{}, testRegistry())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/gitlab", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "provider", Value: "gitlab"}}

	handler.OAuthRedirect(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthHandlerOAuthCallbackMissingCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{}, testRegistry())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "provider", Value: "google"}}

	handler.OAuthCallback(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
