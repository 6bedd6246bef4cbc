package server

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

	"github.com/isagip/barangay-dashboard-api/internal/repository/memory"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	"github.com/isagip/barangay-dashboard-api/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, GuestExpiration: 10 * time.Minute, Issuer: "isagip"},
		Auth:      config.AuthConfig{GuestViewerEnabled: true, LoginRatePerMinute: 600, LoginRateBurst: 50},
		Dashboard: config.DashboardConfig{CacheTTL: time.Minute},
		Notifications: config.NotificationsConfig{
			Workers:    1,
			Retries:    1,
			RetryDelay: 10 * time.Millisecond,
			Recent:     10,
		},
		Uploads: config.UploadsConfig{StorageDir: t.TempDir(), SignedURLSecret: "upload-secret", SignedURLTTL: time.Minute},
		Backend: config.BackendConfig{ProbeInterval: time.Hour, ProbeTimeout: time.Second},
	}
}

type harness struct {
	t     *testing.T
	app   *App
	store *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	require.NoError(t, service.Seed(context.Background(), store, nil))
	app, err := New(testConfig(t), nil, Options{Store: store, Location: time.UTC})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	t.Cleanup(func() {
		cancel()
		closeCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		app.Close(closeCtx)
	})
	return &harness{t: t, app: app, store: store}
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func (h *harness) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.app.Router.ServeHTTP(w, req)
	var resp apiResponse
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (h *harness) login(username string) string {
	h.t.Helper()
	w, resp := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": service.DemoPassword})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(h.t, json.Unmarshal(resp.Data, &out))
	return out.AccessToken
}

func TestRouterReportLifecycle(t *testing.T) {
	h := newHarness(t)
	token := h.login("staff")

	w, resp := h.do(http.MethodPost, "/api/v1/reports", token, map[string]interface{}{
		"type":        "Fire",
		"description": "Kitchen fire",
		"street":      "Block 3",
		"reportedBy":  "Ana",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "Pending", created.Status)

	w, _ = h.do(http.MethodPost, "/api/v1/reports/"+created.ID+"/relay", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = h.do(http.MethodPost, "/api/v1/reports/"+created.ID+"/resolve", token, map[string]bool{"confirm": false})
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", resp.Error.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/reports/"+created.ID+"/history", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/dashboard/summary", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		_, resp := h.do(http.MethodGet, "/api/v1/notifications", token, nil)
		var items []map[string]interface{}
		_ = json.Unmarshal(resp.Data, &items)
		return len(items) == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRouterCapabilityGates(t *testing.T) {
	h := newHarness(t)
	viewer := h.login("tv")
	admin := h.login("admin")

	w, _ := h.do(http.MethodGet, "/api/v1/reports", viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(http.MethodPost, "/api/v1/reports", viewer, map[string]string{"type": "Fire", "description": "x", "reportedBy": "y"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/ambulances", admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/residents", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = h.do(http.MethodGet, "/api/v1/dashboard/summary", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterAssignAmbulanceToReport(t *testing.T) {
	h := newHarness(t)
	token := h.login("staff")

	w, resp := h.do(http.MethodPost, "/api/v1/reports", token, map[string]interface{}{
		"type":        "Medical",
		"description": "Fall injury",
		"street":      "Purok 2",
		"reportedBy":  "Lito",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var report struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &report))

	w, resp = h.do(http.MethodPost, "/api/v1/ambulances/AMB-1/assign", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)

	w, resp = h.do(http.MethodPost, "/api/v1/ambulances/AMB-1/assign", token, map[string]string{"reportId": report.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var amb struct {
		Status           string `json:"status"`
		AssignedReportID string `json:"assigned_report_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &amb))
	assert.Equal(t, report.ID, amb.AssignedReportID)
	assert.NotEqual(t, "AVAILABLE", amb.Status)

	viewer := h.login("tv")
	w, _ = h.do(http.MethodPost, "/api/v1/ambulances/AMB-1/assign", viewer, map[string]string{"reportId": report.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token := h.login("staff")

	w, _ := h.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, `"cache", "storage"`, w.Header().Get("Clear-Site-Data"))

	w, _ = h.do(http.MethodGet, "/api/v1/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterReadOnlyWhenStoreDown(t *testing.T) {
	h := newHarness(t)
	token := h.login("staff")

	h.store.SetUnavailable(true)
	h.app.monitor.Check(context.Background())

	w, resp := h.do(http.MethodPost, "/api/v1/ambulances", token, map[string]string{"name": "Rescue 9"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, true, resp.Meta["readOnly"])

	w, _ = h.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.store.SetUnavailable(false)
	h.app.monitor.Check(context.Background())
	w, _ = h.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterUnknownRoute(t *testing.T) {
	h := newHarness(t)
	w, resp := h.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}
