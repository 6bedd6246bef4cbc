package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memoryRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Duration)
	}
	m.revoked[jti] = ttl
	return nil
}

func (m *memoryRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

type authFixture struct {
	store   *memory.Store
	revoker *memoryRevoker
	prefs   *PreferenceService
	auth    *AuthService
	clock   time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	store := memory.NewStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Accounts().Create(ctx, &models.Account{ID: "u-admin", Username: "admin", PasswordHash: string(hash), Role: "system_admin", Active: true}))
	require.NoError(t, store.Accounts().Create(ctx, &models.Account{ID: "u-staff", Username: "staff", PasswordHash: string(hash), Role: "Barangay Staff", Active: true}))
	require.NoError(t, store.Accounts().Create(ctx, &models.Account{ID: "u-old", Username: "retired", PasswordHash: string(hash), Role: "barangay_staff", Active: false}))

	f := &authFixture{store: store, revoker: &memoryRevoker{}, clock: time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)}
	f.prefs = NewPreferenceService(store.Preferences(), nil, nil, zap.NewNop())
	access := NewAccessService(nil, f.prefs, zap.NewNop())
	f.auth = NewAuthService(store, f.revoker, access, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		GuestTokenExpiry:   30 * time.Minute,
		Issuer:             "isagip-test",
		GuestViewerEnabled: true,
	})
	f.auth.now = func() time.Time { return f.clock }
	return f
}

func TestLoginIssuesFullSession(t *testing.T) {
	f := newAuthFixture(t)
	resp, err := f.auth.Login(context.Background(), models.LoginRequest{Username: "ADMIN", Password: "pass", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.TierFull, resp.Session.Tier)
	assert.Equal(t, string(rbac.RoleSystemAdmin), resp.Session.Role)
	assert.NotEmpty(t, resp.Session.Menu)

	logs, err := f.store.Audit().List(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, models.AuditActionLogin, logs[0].Action)
}

func TestLoginNormalizesLegacyRole(t *testing.T) {
	f := newAuthFixture(t)
	resp, err := f.auth.Login(context.Background(), models.LoginRequest{Username: "staff", Password: "pass"})
	require.NoError(t, err)
	assert.Equal(t, string(rbac.RoleBarangayStaff), resp.Session.Role)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, models.LoginRequest{Username: "nobody", Password: "pass"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, models.LoginRequest{Username: "retired", Password: "pass"})
	assertAppError(t, err, appErrors.ErrInactiveAccount)

	_, err = f.auth.Login(ctx, models.LoginRequest{Username: "", Password: ""})
	assertAppError(t, err, appErrors.ErrValidation)
}

func TestLoginUnknownUserStillComparesHash(t *testing.T) {
	f := newAuthFixture(t)
	var compared [][]byte
	original := compareHash
	compareHash = func(hash, password []byte) error {
		compared = append(compared, hash)
		return original(hash, password)
	}
	t.Cleanup(func() { compareHash = original })

	_, err := f.auth.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "pass"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)
	require.Len(t, compared, 1)
	assert.Equal(t, missingAccountHash(), compared[0])
	assert.Error(t, bcrypt.CompareHashAndPassword(compared[0], []byte("pass")))

	_, err = f.auth.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	assertAppError(t, err, appErrors.ErrInvalidCredentials)
	assert.Len(t, compared, 2)
}

func TestValidateTokenExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "pass"})
	require.NoError(t, err)

	claims, err := f.auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-admin", claims.UserID)

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.auth.ValidateToken(ctx, resp.AccessToken)
	assertAppError(t, err, appErrors.ErrSessionExpired)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "pass"})
	require.NoError(t, err)
	claims, err := f.auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, claims, "10.0.0.1"))
	assert.Equal(t, time.Hour, f.revoker.revoked[claims.ID])

	_, err = f.auth.ValidateToken(ctx, resp.AccessToken)
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	f := newAuthFixture(t)
	resp, err := f.auth.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "pass"})
	require.NoError(t, err)

	_, err = f.auth.ValidateToken(context.Background(), resp.AccessToken+"x")
	assertAppError(t, err, appErrors.ErrUnauthorized)
}

func TestGuestViewerSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.auth.LoginViewer(ctx, models.LoginRequest{IP: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, models.TierGuest, resp.Session.Tier)
	assert.Equal(t, string(rbac.RoleLiveViewer), resp.Session.Role)
	assert.Equal(t, int64(1800), resp.ExpiresIn)
	assert.Equal(t, rbac.PageReportsViewing, resp.Session.Destination)

	claims, err := f.auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	err = f.auth.ChangePassword(ctx, claims, models.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "newpass", ConfirmPassword: "newpass"})
	assertAppError(t, err, appErrors.ErrForbidden)

	f.auth.config.GuestViewerEnabled = false
	_, err = f.auth.LoginViewer(ctx, models.LoginRequest{})
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp, err := f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "pass"})
	require.NoError(t, err)
	claims, err := f.auth.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)

	err = f.auth.ChangePassword(ctx, claims, models.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newpass", ConfirmPassword: "newpass"})
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "currentPassword", appErr.Field)

	err = f.auth.ChangePassword(ctx, claims, models.ChangePasswordRequest{CurrentPassword: "pass", NewPassword: "newpass", ConfirmPassword: "other"})
	assertAppError(t, err, appErrors.ErrValidation)

	require.NoError(t, f.auth.ChangePassword(ctx, claims, models.ChangePasswordRequest{CurrentPassword: "pass", NewPassword: "newpass", ConfirmPassword: "newpass"}))
	_, err = f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "newpass"})
	assert.NoError(t, err)
}

func TestSessionUsesPermittedLanding(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	landing := rbac.PageResidentManagement
	_, err := f.prefs.Update(ctx, "u-admin", string(rbac.RoleSystemAdmin), preferencesWithLanding(landing))
	require.NoError(t, err)

	resp, err := f.auth.Login(ctx, models.LoginRequest{Username: "admin", Password: "pass"})
	require.NoError(t, err)
	assert.Equal(t, landing, resp.Session.Destination)
}
