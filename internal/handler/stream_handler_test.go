package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isagip/barangay-dashboard-api/internal/middleware"
	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/service"
)

type feedStub struct {
	collection string
	filter     models.ReportFilter
}

func (f *feedStub) Subscribe(ctx context.Context, collection string, filter models.ReportFilter) (<-chan service.FeedSnapshot, error) {
	f.collection = collection
	f.filter = filter
	out := make(chan service.FeedSnapshot, 1)
	out <- service.FeedSnapshot{Collection: collection, Total: 2, Items: []string{"REP-1", "REP-2"}, GeneratedAt: time.Now().UTC()}
	close(out)
	return out, nil
}

type registryChecker struct{}

func (registryChecker) Can(role string, capability rbac.Capability) bool {
	return rbac.Default().Can(rbac.NormalizeAccountRole(role), capability)
}

func streamRouter(feeds feedService, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStreamHandler(feeds, registryChecker{}, nil)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Username: "viewer", Role: role})
		}
		c.Next()
	})
	router.GET("/stream/:collection", h.SSE)
	router.GET("/ws/:collection", h.WebSocket)
	return router
}

func TestStreamHandlerSSE(t *testing.T) {
	feeds := &feedStub{}
	srv := httptest.NewServer(streamRouter(feeds, "live_viewer"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream/reports?status=Pending")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	body := strings.Join(lines, "\n")
	assert.Contains(t, body, "event:snapshot")
	assert.Contains(t, body, `"collection":"reports"`)
	assert.Equal(t, []models.IncidentStatus{models.StatusPending}, feeds.filter.Status)
}

func TestStreamHandlerRejectsForbiddenAndUnknown(t *testing.T) {
	srv := httptest.NewServer(streamRouter(&feedStub{}, "live_viewer"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stream/residents")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/stream/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	anon := httptest.NewServer(streamRouter(&feedStub{}, ""))
	defer anon.Close()
	resp, err = http.Get(anon.URL + "/stream/reports")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamHandlerWebSocket(t *testing.T) {
	feeds := &feedStub{}
	srv := httptest.NewServer(streamRouter(feeds, "barangay_staff"))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ambulances"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var snap service.FeedSnapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, models.CollectionAmbulances, snap.Collection)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, models.CollectionAmbulances, feeds.collection)
}
