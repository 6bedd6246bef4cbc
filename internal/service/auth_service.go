package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

// ViewerUsername is the identity of guest live-viewer sessions.
const ViewerUsername = "live-viewer"

var (
	compareHash = bcrypt.CompareHashAndPassword

	dummyHashOnce sync.Once
	dummyHash     []byte
)

// missingAccountHash is compared against when the username does not exist so
// unknown and known usernames cost the same bcrypt work.
func missingAccountHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("isagip-missing-account"), bcrypt.DefaultCost)
	})
	return dummyHash
}

type tokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	GuestTokenExpiry   time.Duration
	Issuer             string
	GuestViewerEnabled bool
}

// AuthService opens, validates and closes dashboard sessions.
type AuthService struct {
	store     repository.Store
	revoked   tokenRevoker
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(store repository.Store, revoked tokenRevoker, access *AccessService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if access == nil {
		access = NewAccessService(nil, nil, logger)
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	if config.GuestTokenExpiry <= 0 {
		config.GuestTokenExpiry = 8 * time.Hour
	}
	return &AuthService{store: store, revoked: revoked, access: access, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login authenticates a username and password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	account, err := s.store.Accounts().GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = compareHash(missingAccountHash(), []byte(req.Password))
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
		}
		return nil, storeError(err, "account")
	}
	if err := compareHash([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	if !account.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	role := string(rbac.NormalizeAccountRole(account.Role))
	resp, err := s.issue(ctx, account.ID, account.Username, account.DisplayName(), role, models.TierFull, s.config.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}

	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      account.Username,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: account.ID,
		IPAddress:  req.IP,
		CreatedAt:  resp.IssuedAt,
	})
	s.logger.Info("user signed in", zap.String("username", account.Username), zap.String("role", role))
	return resp, nil
}

// LoginViewer opens a guest live-viewer session without credentials.
func (s *AuthService) LoginViewer(ctx context.Context, meta models.LoginRequest) (*models.LoginResponse, error) {
	if !s.config.GuestViewerEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "guest viewer access is disabled")
	}
	resp, err := s.issue(ctx, "", ViewerUsername, "Live Viewer", string(rbac.RoleLiveViewer), models.TierGuest, s.config.GuestTokenExpiry)
	if err != nil {
		return nil, err
	}
	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:     ViewerUsername,
		Action:    models.AuditActionViewerLogin,
		Resource:  "auth",
		IPAddress: meta.IP,
		CreatedAt: resp.IssuedAt,
	})
	return resp, nil
}

// Logout revokes the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, ip string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "not signed in")
	}
	if s.revoked != nil && claims.ID != "" {
		ttl := time.Minute
		if claims.ExpiresAt != nil {
			ttl = claims.ExpiresAt.Time.Sub(s.now())
		}
		if ttl > 0 {
			if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
				return appErrors.Internal(err, "failed to revoke session")
			}
		}
	}
	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      claims.Username,
		Action:     models.AuditActionLogout,
		Resource:   "auth",
		ResourceID: claims.UserID,
		IPAddress:  ip,
		CreatedAt:  s.now().UTC(),
	})
	return nil
}

// ValidateToken parses the access token and rejects expired or revoked ones.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	if s.revoked != nil && claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("revocation lookup failed", zap.Error(err))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unable to verify session")
		}
		if revoked {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session has ended")
		}
	}
	return claims, nil
}

// Session describes the signed-in identity with its menu and landing page.
func (s *AuthService) Session(ctx context.Context, claims *models.JWTClaims) (*models.Session, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not signed in")
	}
	session := &models.Session{
		UserID:      claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.Actor(),
		Role:        claims.Role,
		Tier:        claims.Tier,
		Destination: s.access.Destination(ctx, claims.UserID, claims.Role),
		Menu:        s.access.Menu(claims.Role),
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, claims *models.JWTClaims, req models.ChangePasswordRequest) error {
	if claims == nil || claims.Tier != models.TierFull || claims.UserID == "" {
		return appErrors.Clone(appErrors.ErrForbidden, "password changes require a signed-in account")
	}
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid change password payload")
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		account, err := tx.Accounts().GetByID(ctx, claims.UserID)
		if err != nil {
			return storeError(err, "account")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return appErrors.WithField(appErrors.ErrValidation, "currentPassword", "current password does not match")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return appErrors.Internal(err, "failed to hash password")
		}
		account.PasswordHash = string(hash)
		account.UpdatedAt = s.now().UTC()
		return storeError(tx.Accounts().Update(ctx, account), "account")
	})
	if err != nil {
		return err
	}

	writeAudit(ctx, s.store.Audit(), s.logger, &models.AuditLog{
		Actor:      claims.Username,
		Action:     models.AuditActionPasswordChange,
		Resource:   "auth",
		ResourceID: claims.UserID,
		CreatedAt:  s.now().UTC(),
	})
	return nil
}

func (s *AuthService) issue(ctx context.Context, userID, username, displayName, role string, tier models.SessionTier, ttl time.Duration) (*models.LoginResponse, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	subject := userID
	if subject == "" {
		subject = username
	}
	claims := &models.JWTClaims{
		UserID:      userID,
		Username:    username,
		Role:        role,
		Tier:        tier,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	session, err := s.Session(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(ttl.Seconds()),
		IssuedAt:    issuedAt,
		Session:     *session,
	}, nil
}
