package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/taskflow-api/internal/models"
	"github.com/noah-isme/taskflow-api/internal/oauth"
	"github.com/noah-isme/taskflow-api/internal/repository"
	"github.com/noah-isme/taskflow-api/internal/token"
	appErrors "github.com/noah-isme/taskflow-api/pkg/errors"
)

type credentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByProvider(ctx context.Context, provider models.AuthProvider, providerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

type refreshTokenLedger interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string, revokedAt time.Time) error
	RevokeIfActive(ctx context.Context, id string, revokedAt time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time) error
}

type auditTrail interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type loginLimiter interface {
	Allow(ctx context.Context, ip, email string) bool
	Reset(ctx context.Context, ip, email string)
}

// AuthService orchestrates the session lifecycle: registration, login,
// token refresh with rotation and reuse detection, and logout.
type AuthService struct {
	users     credentialStore
	tokens    refreshTokenLedger
	audit     auditTrail
	limiter   loginLimiter
	issuer    *token.Issuer
	validator *token.Validator
	validate  *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
}

// NewAuthService constructs an AuthService instance. The limiter and metrics
// arguments may be nil.
func NewAuthService(users credentialStore, tokens refreshTokenLedger, audit auditTrail, limiter loginLimiter, issuer *token.Issuer, tokenValidator *token.Validator, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		tokens:    tokens,
		audit:     audit,
		limiter:   limiter,
		issuer:    issuer,
		validator: tokenValidator,
		validate:  validate,
		logger:    logger,
		metrics:   metrics,
	}
}

// Register creates a local account and logs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Provider:     models.ProviderLocal,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.observeAuth(models.AuditActionRegister, "conflict")
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.recordAudit(ctx, &user.ID, models.AuditActionRegister, req.IP, req.UserAgent, map[string]string{"status": "created"})
	s.observeAuth(models.AuditActionRegister, "success")

	return s.openSession(ctx, user, req.IP, req.UserAgent)
}

// Login authenticates a user by email and password and returns issued tokens.
// Unknown email and wrong password produce the same error so callers cannot
// enumerate accounts.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, req.IP, req.Email) {
		s.observeAuth(models.AuditActionLogin, "rate_limited")
		return nil, appErrors.Clone(appErrors.ErrRateLimited, "")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observeAuth(models.AuditActionLogin, "invalid_credentials")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	// Provider-created accounts have no password to compare against.
	if user.PasswordHash == "" {
		s.observeAuth(models.AuditActionLogin, "invalid_credentials")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.observeAuth(models.AuditActionLogin, "invalid_credentials")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	if !user.Active {
		s.observeAuth(models.AuditActionLogin, "disabled")
		return nil, appErrors.Clone(appErrors.ErrAccountDisabled, "")
	}

	if s.limiter != nil {
		s.limiter.Reset(ctx, req.IP, req.Email)
	}

	s.recordAudit(ctx, &user.ID, models.AuditActionLogin, req.IP, req.UserAgent, map[string]string{"status": "success"})
	s.observeAuth(models.AuditActionLogin, "success")

	return s.openSession(ctx, user, req.IP, req.UserAgent)
}

// OAuthLogin finds or creates the identity asserted by an external provider
// and opens a session for it, without a password check. The profile is
// trusted: verifying the provider assertion is the oauth package's job.
func (s *AuthService) OAuthLogin(ctx context.Context, profile *oauth.Profile, ip, userAgent string) (*models.TokenResponse, error) {
	user, err := s.users.FindByProvider(ctx, profile.Provider, profile.ProviderID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
		}
		user, err = s.findOrCreateByProfile(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	if !user.Active {
		s.observeAuth(models.AuditActionOAuthLogin, "disabled")
		return nil, appErrors.Clone(appErrors.ErrAccountDisabled, "")
	}

	s.recordAudit(ctx, &user.ID, models.AuditActionOAuthLogin, ip, userAgent, map[string]string{"provider": string(profile.Provider)})
	s.observeAuth(models.AuditActionOAuthLogin, "success")

	return s.openSession(ctx, user, ip, userAgent)
}

func (s *AuthService) findOrCreateByProfile(ctx context.Context, profile *oauth.Profile) (*models.User, error) {
	// An existing local account with the same verified email is reused
	// rather than duplicated.
	user, err := s.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	user = &models.User{
		Email:      profile.Email,
		Username:   profile.Username,
		FullName:   profile.FullName,
		AvatarURL:  profile.AvatarURL,
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		Active:     true,
		Verified:   true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Username taken by another account; retry once with a suffix.
			user.ID = ""
			user.Username = profile.Username + "-" + uuid.NewString()[:8]
			if err := s.users.Create(ctx, user); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
			}
			return user, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. Presenting an already-revoked token is treated as theft:
// the whole token family for that user is revoked and the caller receives a
// rejection a client cannot tell apart from a plain invalid token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.tokens.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observeAuth(models.AuditActionRefresh, "invalid_token")
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	now := time.Now().UTC()
	if stored.Expired(now) {
		s.observeAuth(models.AuditActionRefresh, "expired")
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "refresh token has expired")
	}

	if stored.Revoked {
		return nil, s.handleReuse(ctx, stored, req.IP, req.UserAgent)
	}

	// Atomic check-and-revoke: of two concurrent refreshes presenting the
	// same token, exactly one wins this update; the loser goes down the
	// reuse path.
	won, err := s.tokens.RevokeIfActive(ctx, stored.ID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}
	if !won {
		return nil, s.handleReuse(ctx, stored, req.IP, req.UserAgent)
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		s.observeAuth(models.AuditActionRefresh, "disabled")
		return nil, appErrors.Clone(appErrors.ErrAccountDisabled, "")
	}

	s.recordAudit(ctx, &user.ID, models.AuditActionRefresh, req.IP, req.UserAgent, map[string]string{"rotated": stored.ID})
	s.observeAuth(models.AuditActionRefresh, "success")

	return s.openSession(ctx, user, req.IP, req.UserAgent)
}

// handleReuse invalidates the whole session family and returns the reuse
// error. The wire rendering is identical to a plain invalid token; the
// distinct code exists for audit and tests only.
func (s *AuthService) handleReuse(ctx context.Context, stored *models.RefreshToken, ip, userAgent string) error {
	s.logger.Warn("refresh token reuse detected, revoking session family",
		zap.String("user_id", stored.UserID),
		zap.String("token_id", stored.ID),
	)
	if err := s.tokens.RevokeAllForUser(ctx, stored.UserID, time.Now().UTC()); err != nil {
		s.logger.Error("failed to revoke session family", zap.Error(err), zap.String("user_id", stored.UserID))
	}
	s.recordAudit(ctx, &stored.UserID, models.AuditActionTokenReuse, ip, userAgent, map[string]string{"token_id": stored.ID})
	s.observeAuth(models.AuditActionRefresh, "reuse_detected")
	return appErrors.Clone(appErrors.ErrTokenReused, "")
}

// Logout revokes the presented refresh token. It is idempotent and succeeds
// even for unknown or already-revoked tokens, so it is safe to retry and
// leaks no validity information.
func (s *AuthService) Logout(ctx context.Context, req models.LogoutRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "refresh token required")
	}

	stored, err := s.tokens.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}

	if err := s.tokens.Revoke(ctx, stored.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.recordAudit(ctx, &stored.UserID, models.AuditActionLogout, req.IP, req.UserAgent, map[string]string{"status": "logout"})
	s.observeAuth(models.AuditActionLogout, "success")
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(raw string) (*models.AccessClaims, error) {
	return s.validator.ValidateAccessToken(raw)
}

// openSession mints a token pair for the user, records the refresh token in
// the ledger and refreshes the last-login timestamp.
func (s *AuthService) openSession(ctx context.Context, user *models.User, ip, userAgent string) (*models.TokenResponse, error) {
	accessToken, _, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, refreshExpiry, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refreshToken := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: refreshExpiry,
		CreatedAt: time.Now().UTC(),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.tokens.Create(ctx, refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.AccessTokenTTL().Seconds()),
		IssuedAt:     time.Now().UTC(),
		User:         models.NewUserInfo(user),
	}, nil
}

func (s *AuthService) recordAudit(ctx context.Context, userID *string, action, ip, userAgent string, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "auth",
		ResourceID: userID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err), zap.String("action", action))
	}
}

func (s *AuthService) observeAuth(action, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveAuthEvent(action, outcome)
	}
}
