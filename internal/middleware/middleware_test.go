package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type roleChecker struct{}

func (roleChecker) Can(role string, capability rbac.Capability) bool {
	return rbac.Default().Can(rbac.Role(role), capability)
}

type fixedAvailability bool

func (f fixedAvailability) Available() bool { return bool(f) }

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTMiddleware(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Username: "staff", Role: "barangay_staff", Tier: models.TierFull}}
	router := gin.New()
	router.GET("/me", JWT(validator), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).Username)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staff", w.Body.String())
	assert.Equal(t, "abc", validator.seen)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?access_token=xyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "xyz", validator.seen)

	validator.err = appErrors.ErrSessionExpired
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_EXPIRED", errorCode(t, w))
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func TestRequireCapability(t *testing.T) {
	cases := []struct {
		name   string
		claims *models.JWTClaims
		want   int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "viewer denied", claims: &models.JWTClaims{Role: "live_viewer"}, want: http.StatusForbidden},
		{name: "responder alias allowed", claims: &models.JWTClaims{Role: "responder"}, want: http.StatusOK},
		{name: "admin denied", claims: &models.JWTClaims{Role: "system_admin"}, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/ambulances", withClaims(tc.claims), RequireCapability(roleChecker{}, rbac.CapAmbulance), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ambulances", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireFullTier(t *testing.T) {
	router := gin.New()
	router.PUT("/preferences", withClaims(&models.JWTClaims{Role: "live_viewer", Tier: models.TierGuest}), RequireFullTier(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/preferences", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReadOnlyBlocksWrites(t *testing.T) {
	router := gin.New()
	router.Use(ReadOnly(fixedAvailability(false)))
	router.GET("/reports", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/reports", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReadOnlyHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReadOnlyHeader))
	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body.Meta["readOnly"])
	assert.Equal(t, service.OfflineBanner, body.Meta["banner"])
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", w.Header().Get("Cache-Control"))
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(60, 2)
	clock := time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	router := gin.New()
	router.POST("/auth/login", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })
	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = ip + ":5000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))

	clock = clock.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
}

func TestMetricsMiddlewareCountsRequests(t *testing.T) {
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)
}
